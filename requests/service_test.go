package requests

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/ledger"
	"github.com/loiphan2202/BAT/models"
	"github.com/loiphan2202/BAT/notify"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow  = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	submitter = access.Actor{UserID: "u-1", Username: "asha"}
	stranger  = access.Actor{UserID: "u-2", Username: "ravi"}
	admin     = access.Actor{UserID: "admin-123", Roles: []access.Role{access.RoleAdmin}}
)

type recordingDispatcher struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n notify.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, n)
	return nil
}

type failingDispatcher struct{ panics bool }

func (f failingDispatcher) Dispatch(context.Context, notify.Notification) error {
	if f.panics {
		panic("smtp exploded")
	}
	return errors.New("smtp unavailable")
}

type fakeImages struct {
	mu      sync.Mutex
	saved   []string
	removed []string
	err     error
}

func (f *fakeImages) SaveImage(r io.Reader, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "http://localhost:8080/uploads/" + filename
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeImages) Remove(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
}

// unreachableLedger fails every write while down is set.
type unreachableLedger struct {
	*ledger.MemoryStore
	down atomic.Bool
}

var errConnReset = errors.New("connection reset")

func (u *unreachableLedger) ApproveRequest(ctx context.Context, id string, d *models.Destination, at time.Time) (*models.DestinationRequest, error) {
	if u.down.Load() {
		return nil, errConnReset
	}
	return u.MemoryStore.ApproveRequest(ctx, id, d, at)
}

func (u *unreachableLedger) InsertDestination(ctx context.Context, d *models.Destination) error {
	if u.down.Load() {
		return errConnReset
	}
	return u.MemoryStore.InsertDestination(ctx, d)
}

func (u *unreachableLedger) TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) (*models.DestinationRequest, error) {
	if u.down.Load() {
		return nil, errConnReset
	}
	return u.MemoryStore.TransitionRequest(ctx, id, from, to, at)
}

type fixture struct {
	svc    *Service
	store  *ledger.MemoryStore
	notes  *recordingDispatcher
	images *fakeImages
	log    *logrus.Logger
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := ledger.NewMemoryStore()
	store.PutUser(models.User{ID: "u-1", Username: "asha", Email: "asha@example.com"})
	store.PutUser(models.User{ID: "u-2", Username: "ravi", Email: "ravi@example.com"})

	f := &fixture{store: store, notes: &recordingDispatcher{}, images: &fakeImages{}, log: log}
	deps := Deps{
		Store:    store,
		Notifier: f.notes,
		Images:   f.images,
		Log:      log,
		Now:      func() time.Time { return fixedNow },
	}
	for _, o := range opts {
		o(&deps)
	}
	f.svc = NewService(deps)
	return f
}

func num(v float64) *float64 { return &v }

func coorg() SubmitInput {
	return SubmitInput{
		Name:        "Coorg Hills",
		Landscape:   "Mountain",
		Description: "Coffee estates and misty hills",
		Rating:      num(4.5),
		Price:       num(600),
		Duration:    "4 days",
	}
}

func jpeg() *Upload {
	return &Upload{Filename: "coorg.jpg", Body: strings.NewReader("image bytes")}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected *apperr.Error, got %v", err)
	return ae.Fields
}

func TestCoorgHillsScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, "u-1", req.UserID)
	assert.Equal(t, "http://localhost:8080/uploads/coorg.jpg", req.Image)
	assert.Equal(t, models.LandscapeMountain, req.Landscape)

	dest, err := f.svc.Approve(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.DestinationContent, dest.DestinationContent)
	assert.Equal(t, req.ID, dest.SourceRequest)

	stored, err := f.store.FindDestination(ctx, dest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coorg Hills", stored.Name)
	assert.Equal(t, 600.0, stored.Price)
	assert.Equal(t, 4.5, stored.Rating)
	assert.Equal(t, "4 days", stored.Duration)

	after, err := f.store.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, after.Status)

	_, err = f.svc.Approve(ctx, admin, req.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	all, err := f.store.ListDestinations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.Len(t, f.notes.got, 1)
	assert.Equal(t, notify.RequestApproved, f.notes.got[0].Kind)
	assert.Equal(t, "asha@example.com", f.notes.got[0].To)
	assert.Equal(t, "Coorg Hills", f.notes.got[0].Data.DestinationName)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submitter, SubmitInput{}, jpeg())
	require.ErrorIs(t, err, apperr.ErrValidation)
	fields := fieldsOf(t, err)
	for _, k := range []string{"name", "landscape", "description", "rating", "price", "duration"} {
		assert.Contains(t, fields, k)
	}

	in := coorg()
	in.Rating = num(5.5)
	_, err = f.svc.Submit(ctx, submitter, in, jpeg())
	assert.Equal(t, "must be at most 5", fieldsOf(t, err)["rating"])

	in = coorg()
	in.Price = num(-1)
	_, err = f.svc.Submit(ctx, submitter, in, jpeg())
	assert.Contains(t, fieldsOf(t, err), "price")

	in = coorg()
	in.Landscape = "Desert"
	_, err = f.svc.Submit(ctx, submitter, in, jpeg())
	assert.Contains(t, fieldsOf(t, err), "landscape")

	_, err = f.svc.Submit(ctx, submitter, coorg(), nil)
	assert.Equal(t, "is required", fieldsOf(t, err)["image"])

	in = coorg()
	in.Rating = num(0)
	in.Price = num(0)
	_, err = f.svc.Submit(ctx, submitter, in, jpeg())
	assert.NoError(t, err, "zero rating and price are in range")

	assert.Len(t, f.images.saved, 1, "invalid submissions never store an image")
}

func TestEditOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)

	name := "  Coorg Highlands "
	landscape := "heritage"
	edited, err := f.svc.Edit(ctx, admin, req.ID, EditInput{Name: &name, Landscape: &landscape, Price: num(650)})
	require.NoError(t, err)
	assert.Equal(t, "Coorg Highlands", edited.Name)
	assert.Equal(t, models.LandscapeHeritage, edited.Landscape)
	assert.Equal(t, 650.0, edited.Price)
	assert.Equal(t, "4 days", edited.Duration, "omitted fields are kept")
	assert.Equal(t, 4.5, edited.Rating)

	_, err = f.svc.Edit(ctx, admin, req.ID, EditInput{Rating: num(9)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	blank := "   "
	_, err = f.svc.Edit(ctx, admin, req.ID, EditInput{Name: &blank, Duration: &blank})
	assert.Equal(t, map[string]string{"name": "must not be empty", "duration": "must not be empty"}, fieldsOf(t, err))
	kept, err := f.store.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coorg Highlands", kept.Name)
	assert.Equal(t, "4 days", kept.Duration)

	_, err = f.svc.Edit(ctx, submitter, req.ID, EditInput{Price: num(1)})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = f.svc.Edit(ctx, admin, "missing", EditInput{Price: num(1)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Reject(ctx, admin, req.ID)
	require.NoError(t, err)

	_, err = f.svc.Edit(ctx, admin, req.ID, EditInput{Price: num(1)})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "Cannot edit processed request")
}

func TestTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rejected, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, admin, rejected.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, admin, rejected.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.Approve(ctx, admin, rejected.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	after, err := f.store.FindRequest(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, after.Status)

	all, err := f.store.ListDestinations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "rejection creates nothing")

	_, err = f.svc.Approve(ctx, admin, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Reject(ctx, submitter, rejected.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestConcurrentApprovalsCreateOneDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, admin, req.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, apperr.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 15, conflicts)
	all, err := f.store.ListDestinations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApproveKeepsPendingWhenLedgerFails(t *testing.T) {
	f := newFixture(t)
	flaky := &unreachableLedger{MemoryStore: f.store}
	f.svc.store = flaky
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)

	flaky.down.Store(true)
	_, err = f.svc.Approve(ctx, admin, req.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	flaky.down.Store(false)

	after, err := f.store.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, after.Status)
	all, err := f.store.ListDestinations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.notes.got)

	// once the ledger is back the request can still be edited and approved
	_, err = f.svc.Edit(ctx, admin, req.ID, EditInput{Price: num(650)})
	require.NoError(t, err)
	dest, err := f.svc.Approve(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 650.0, dest.Price)
	assert.Equal(t, req.ID, dest.SourceRequest)
}

func TestNotificationFailureNeverChangesOutcome(t *testing.T) {
	for _, d := range []failingDispatcher{{}, {panics: true}} {
		f := newFixture(t, func(deps *Deps) { deps.Notifier = d })
		ctx := context.Background()

		approved, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
		require.NoError(t, err)
		dest, err := f.svc.Approve(ctx, admin, approved.ID)
		require.NoError(t, err)
		assert.Equal(t, "Coorg Hills", dest.Name)

		rejected, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
		require.NoError(t, err)
		r, err := f.svc.Reject(ctx, admin, rejected.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestRejected, r.Status)
	}
}

func TestListRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)
	f.svc.now = func() time.Time { return fixedNow.Add(time.Minute) }
	other, err := f.svc.Submit(ctx, stranger, coorg(), jpeg())
	require.NoError(t, err)

	mine, err := f.svc.ListOwn(ctx, submitter)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u-1", mine[0].UserID)

	all, err := f.svc.ListAll(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, other.ID, all[0].ID, "newest first")

	_, err = f.svc.ListAll(ctx, submitter)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestDeleteRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Delete(ctx, admin, "missing"), apperr.ErrNotFound)

	req, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(ctx, stranger, req.ID), apperr.ErrAuthorization)
	require.NoError(t, f.svc.Delete(ctx, submitter, req.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, submitter, req.ID), apperr.ErrNotFound)
	assert.Equal(t, []string{req.Image}, f.images.removed)

	approved, err := f.svc.Submit(ctx, submitter, coorg(), jpeg())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, admin, approved.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, admin, approved.ID))
	assert.Len(t, f.images.removed, 1, "the destination still uses an approved request's image")
}
