// Package ledger is the durable record store for bookings, destinations and
// destination requests. State changes are single-document writes with the
// precondition in the write filter, except approval, which commits the
// request and its destination together.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/loiphan2202/BAT/models"
)

var (
	ErrNotFound = errors.New("ledger: record not found")
	// ErrConflict means the record exists but the write precondition did not hold.
	ErrConflict = errors.New("ledger: precondition failed")
	// ErrDuplicate means a unique key (paymentRef, sourceRequest) is taken.
	ErrDuplicate = errors.New("ledger: duplicate key")
)

// BookingFilter selects bookings. Zero values match everything; Limit 0
// means no limit. Results are newest first.
type BookingFilter struct {
	UserID string
	Status models.BookingStatus
	Skip   int64
	Limit  int64
}

type Bookings interface {
	InsertBooking(ctx context.Context, b *models.Booking) error
	FindBooking(ctx context.Context, id string) (*models.Booking, error)
	// ListBookings returns one page and the number of bookings matching f
	// before Skip/Limit.
	ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, int64, error)
	SetBookingStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) (*models.Booking, error)
	// UpdateBookingDetails only matches a booking owned by ownerID.
	UpdateBookingDetails(ctx context.Context, id, ownerID string, p models.BookingDetailsPatch, at time.Time) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

type Destinations interface {
	InsertDestination(ctx context.Context, d *models.Destination) error
	FindDestination(ctx context.Context, id string) (*models.Destination, error)
	ListDestinations(ctx context.Context) ([]models.Destination, error)
	DestinationsByID(ctx context.Context, ids []string) (map[string]models.Destination, error)
}

type Requests interface {
	InsertRequest(ctx context.Context, r *models.DestinationRequest) error
	FindRequest(ctx context.Context, id string) (*models.DestinationRequest, error)
	// ListRequests lists newest first; userID "" lists every user's requests.
	ListRequests(ctx context.Context, userID string) ([]models.DestinationRequest, error)
	// EditPendingRequest applies p only while the request is Pending.
	EditPendingRequest(ctx context.Context, id string, p models.RequestPatch, at time.Time) (*models.DestinationRequest, error)
	// TransitionRequest moves the request from one status to another in a
	// single conditional write. It returns ErrConflict when the request is
	// not in status from.
	TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) (*models.DestinationRequest, error)
	// ApproveRequest moves a Pending request to Approved and inserts d,
	// filled with the approved content, in one unit: either both writes
	// happen or neither does.
	ApproveRequest(ctx context.Context, id string, d *models.Destination, at time.Time) (*models.DestinationRequest, error)
	DeleteRequest(ctx context.Context, id string) error
}

// Users is read only; accounts belong to the authentication service.
type Users interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	UsersByID(ctx context.Context, ids []string) (map[string]models.User, error)
}

type Store interface {
	Bookings
	Destinations
	Requests
	Users
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
