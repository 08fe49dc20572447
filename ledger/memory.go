package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/loiphan2202/BAT/models"
)

// MemoryStore is an in-process Store with the same conditional-write and
// unique-key behaviour as MongoStore. Tests use it in place of MongoDB.
type MemoryStore struct {
	mu           sync.Mutex
	bookings     map[string]models.Booking
	destinations map[string]models.Destination
	requests     map[string]models.DestinationRequest
	users        map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings:     map[string]models.Booking{},
		destinations: map[string]models.Destination{},
		requests:     map[string]models.DestinationRequest{},
		users:        map[string]models.User{},
	}
}

// PutUser seeds a user record.
func (m *MemoryStore) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryStore) InsertBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; ok {
		return ErrDuplicate
	}
	if b.PaymentRef != "" {
		for _, other := range m.bookings {
			if other.PaymentRef == b.PaymentRef {
				return ErrDuplicate
			}
		}
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) FindBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryStore) ListBookings(_ context.Context, f BookingFilter) ([]models.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []models.Booking{}
	for _, b := range m.bookings {
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		matched = append(matched, b)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Skip >= total {
		return []models.Booking{}, total, nil
	}
	matched = matched[f.Skip:]
	if f.Limit > 0 && int64(len(matched)) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStore) SetBookingStatus(_ context.Context, id string, status models.BookingStatus, at time.Time) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = at
	m.bookings[id] = b
	return &b, nil
}

func (m *MemoryStore) UpdateBookingDetails(_ context.Context, id, ownerID string, p models.BookingDetailsPatch, at time.Time) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.UserID != ownerID {
		return nil, ErrNotFound
	}
	if p.Travelers != nil {
		b.Travelers = *p.Travelers
	}
	if p.SpecialRequests != nil {
		b.SpecialRequests = *p.SpecialRequests
	}
	b.UpdatedAt = at
	m.bookings[id] = b
	return &b, nil
}

func (m *MemoryStore) DeleteBooking(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *MemoryStore) InsertDestination(_ context.Context, d *models.Destination) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.destinations[d.ID]; ok {
		return ErrDuplicate
	}
	if m.sourceTaken(d.SourceRequest) {
		return ErrDuplicate
	}
	m.destinations[d.ID] = *d
	return nil
}

func (m *MemoryStore) sourceTaken(requestID string) bool {
	if requestID == "" {
		return false
	}
	for _, other := range m.destinations {
		if other.SourceRequest == requestID {
			return true
		}
	}
	return false
}

func (m *MemoryStore) FindDestination(_ context.Context, id string) (*models.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.destinations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStore) ListDestinations(_ context.Context) ([]models.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Destination, 0, len(m.destinations))
	for _, d := range m.destinations {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) DestinationsByID(_ context.Context, ids []string) (map[string]models.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Destination{}
	for _, id := range ids {
		if d, ok := m.destinations[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertRequest(_ context.Context, r *models.DestinationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return ErrDuplicate
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *MemoryStore) FindRequest(_ context.Context, id string) (*models.DestinationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) ListRequests(_ context.Context, userID string) ([]models.DestinationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.DestinationRequest{}
	for _, r := range m.requests {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) EditPendingRequest(_ context.Context, id string, p models.RequestPatch, at time.Time) (*models.DestinationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RequestPending {
		return nil, ErrConflict
	}
	p.Apply(&r.DestinationContent)
	r.UpdatedAt = at
	m.requests[id] = r
	return &r, nil
}

func (m *MemoryStore) TransitionRequest(_ context.Context, id string, from, to models.RequestStatus, at time.Time) (*models.DestinationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != from {
		return nil, ErrConflict
	}
	r.Status = to
	r.UpdatedAt = at
	m.requests[id] = r
	return &r, nil
}

func (m *MemoryStore) ApproveRequest(_ context.Context, id string, d *models.Destination, at time.Time) (*models.DestinationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RequestPending {
		return nil, ErrConflict
	}
	if _, taken := m.destinations[d.ID]; taken || m.sourceTaken(r.ID) {
		return nil, ErrDuplicate
	}
	r.Status = models.RequestApproved
	r.UpdatedAt = at
	d.DestinationContent = r.DestinationContent
	d.SourceRequest = r.ID
	m.requests[id] = r
	m.destinations[d.ID] = *d
	return &r, nil
}

func (m *MemoryStore) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *MemoryStore) FindUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) UsersByID(_ context.Context, ids []string) (map[string]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
