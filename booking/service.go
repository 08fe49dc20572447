// Package booking owns the Booking lifecycle: creation, payment
// reconciliation, administrative status changes, owner edits and deletion.
package booking

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/ledger"
	"github.com/loiphan2202/BAT/models"
	"github.com/loiphan2202/BAT/notify"
	"github.com/loiphan2202/BAT/payment"
	"github.com/loiphan2202/BAT/utils"
	"github.com/loiphan2202/BAT/validation"

	"github.com/sirupsen/logrus"
)

// Locker serialises work on one key across instances.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// StatusPublisher is told about every administrative status change.
type StatusPublisher interface {
	PublishStatus(b models.Booking)
}

type Deps struct {
	Store    ledger.Store
	Notifier notify.Dispatcher
	Gateway  payment.Gateway
	Verifier payment.Verifier
	// optional
	Locker    Locker
	Publisher StatusPublisher
	Log       logrus.FieldLogger
	Now       func() time.Time

	FrontendURL   string
	VoucherSecret []byte
}

type Service struct {
	store     ledger.Store
	notifier  notify.Dispatcher
	gateway   payment.Gateway
	verifier  payment.Verifier
	locker    Locker
	publisher StatusPublisher
	validate  *validation.Validator
	log       logrus.FieldLogger
	now       func() time.Time

	frontendURL   string
	voucherSecret []byte
}

func NewService(d Deps) *Service {
	s := &Service{
		store:         d.Store,
		notifier:      d.Notifier,
		gateway:       d.Gateway,
		verifier:      d.Verifier,
		locker:        d.Locker,
		publisher:     d.Publisher,
		validate:      validation.New(),
		log:           d.Log,
		now:           d.Now,
		frontendURL:   strings.TrimRight(d.FrontendURL, "/"),
		voucherSecret: d.VoucherSecret,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.verifier == nil {
		s.verifier = payment.ClientAssertedVerifier{}
	}
	if s.frontendURL == "" {
		s.frontendURL = "http://localhost:5174"
	}
	return s
}

// CreateInput is the traveller's booking form.
type CreateInput struct {
	DestinationID   string   `json:"destinationId" validate:"required"`
	PackageName     string   `json:"packageName" validate:"required"`
	TravelDate      string   `json:"travelDate" validate:"required"`
	Travelers       int      `json:"travelers" validate:"min=1"`
	TotalAmount     *float64 `json:"totalAmount" validate:"required,gte=0"`
	SpecialRequests string   `json:"specialRequests"`
}

// DetailsInput is an owner edit; omitted fields keep their value.
type DetailsInput struct {
	Travelers       *int    `json:"travelers" validate:"omitempty,min=1"`
	SpecialRequests *string `json:"specialRequests"`
}

type ListQuery struct {
	Page   int
	Limit  int
	Status string
	UserID string
}

// paidWith marks a creation coming from payment reconciliation.
type paidWith struct {
	sessionID string
}

func parseTravelDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) checkCreateInput(in *CreateInput) (time.Time, error) {
	in.DestinationID = strings.TrimSpace(in.DestinationID)
	in.PackageName = strings.TrimSpace(in.PackageName)
	in.SpecialRequests = strings.TrimSpace(in.SpecialRequests)

	if err := s.validate.Validate(in); err != nil {
		return time.Time{}, err
	}
	travelDate, ok := parseTravelDate(in.TravelDate)
	if !ok {
		return time.Time{}, apperr.Field("travelDate", "must be a date (YYYY-MM-DD)")
	}
	if day(travelDate).Before(day(s.now())) {
		return time.Time{}, apperr.Field("travelDate", "must be today or later")
	}
	return travelDate, nil
}

// Create books a package for the acting user with payment still pending.
func (s *Service) Create(ctx context.Context, actor access.Actor, in CreateInput) (*models.BookingView, error) {
	d, err := s.prepare(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, actor, d, nil)
}

// draft is a checked booking request with its user and destination loaded.
type draft struct {
	in         CreateInput
	travelDate time.Time
	user       *models.User
	dest       *models.Destination
}

func (s *Service) prepare(ctx context.Context, actor access.Actor, in CreateInput) (*draft, error) {
	if err := access.Check(actor, "", access.RoleUser); err != nil {
		return nil, err
	}
	travelDate, err := s.checkCreateInput(&in)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindUser(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, "user not found")
	}
	dest, err := s.store.FindDestination(ctx, in.DestinationID)
	if err != nil {
		return nil, translate(err, "destination not found")
	}
	return &draft{in: in, travelDate: travelDate, user: user, dest: dest}, nil
}

func (s *Service) record(ctx context.Context, actor access.Actor, d *draft, paid *paidWith) (*models.BookingView, error) {
	in, user, dest := d.in, d.user, d.dest
	now := s.now().UTC()
	b := models.Booking{
		ID:              utils.GetUUID(),
		UserID:          actor.UserID,
		DestinationID:   dest.ID,
		PackageName:     in.PackageName,
		TravelDate:      d.travelDate,
		Travelers:       in.Travelers,
		TotalAmount:     *in.TotalAmount,
		SpecialRequests: in.SpecialRequests,
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentPending,
		BookingDate:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	kind := notify.BookingReceived
	if paid != nil {
		b.PaymentStatus = models.PaymentPaid
		b.PaymentRef = paid.sessionID
		kind = notify.PaymentReceived
	}

	if err := s.store.InsertBooking(ctx, &b); err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, apperr.Conflict("payment has already been reconciled")
		}
		return nil, apperr.Internal("insert booking", err)
	}

	log := s.log.WithFields(logrus.Fields{
		"bookingId":     b.ID,
		"userId":        b.UserID,
		"destinationId": b.DestinationID,
		"paymentStatus": b.PaymentStatus,
	})
	log.Info("booking created")

	notify.Fire(ctx, s.notifier, log, notify.Notification{
		Kind: kind,
		To:   recipient(user, actor),
		Data: bookingData(b, user, dest),
	})

	view := viewOf(b, user, dest)
	return &view, nil
}

// ListOwn returns the actor's bookings, newest first, with destination
// name, image and price.
func (s *Service) ListOwn(ctx context.Context, actor access.Actor) ([]models.BookingView, error) {
	if err := access.Check(actor, "", access.RoleUser); err != nil {
		return nil, err
	}
	bookings, _, err := s.store.ListBookings(ctx, ledger.BookingFilter{UserID: actor.UserID})
	if err != nil {
		return nil, apperr.Internal("list bookings", err)
	}
	return s.views(ctx, bookings, false)
}

// ListAll is the paginated administrator view. Limit 0 returns every match.
func (s *Service) ListAll(ctx context.Context, actor access.Actor, q ListQuery) (*models.BookingPage, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 0 {
		q.Limit = 0
	}

	f := ledger.BookingFilter{UserID: strings.TrimSpace(q.UserID)}
	if q.Status != "" {
		st, ok := models.ParseBookingStatus(q.Status)
		if !ok {
			return nil, apperr.Field("status", "must be one of Pending, Confirmed, Cancelled")
		}
		f.Status = st
	}
	if q.Limit > 0 {
		f.Limit = int64(q.Limit)
		f.Skip = skipFor(q.Page, f.Limit)
	}

	bookings, total, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, apperr.Internal("list bookings", err)
	}
	views, err := s.views(ctx, bookings, true)
	if err != nil {
		return nil, err
	}

	page := &models.BookingPage{
		Bookings: views,
		Pagination: models.Pagination{
			CurrentPage:   q.Page,
			TotalPages:    1,
			TotalBookings: total,
		},
	}
	if q.Limit > 0 {
		limit := int64(q.Limit)
		page.Pagination.TotalPages = int((total + limit - 1) / limit)
		page.Pagination.HasNext = q.Page < page.Pagination.TotalPages
		page.Pagination.HasPrev = q.Page > 1
	}
	return page, nil
}

// skipFor is (page-1)*limit, saturating instead of overflowing.
func skipFor(page int, limit int64) int64 {
	if int64(page-1) > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return int64(page-1) * limit
}

// Get returns one booking to its owner or an administrator.
func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (*models.Booking, error) {
	b, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return nil, translate(err, "booking not found")
	}
	if err := access.Check(actor, b.UserID, access.RoleAdmin); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateStatus sets the booking status. Any status may follow any other;
// only the administrator role is checked.
func (s *Service) UpdateStatus(ctx context.Context, actor access.Actor, id, status string) (*models.Booking, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	target, ok := models.ParseBookingStatus(status)
	if !ok {
		return nil, apperr.Field("status", "must be one of Pending, Confirmed, Cancelled")
	}

	b, err := s.store.SetBookingStatus(ctx, id, target, s.now().UTC())
	if err != nil {
		return nil, translate(err, "booking not found")
	}

	log := s.log.WithFields(logrus.Fields{"bookingId": b.ID, "status": b.Status, "by": actor.UserID})
	log.Info("booking status updated")

	if s.publisher != nil {
		s.publisher.PublishStatus(*b)
	}

	var kind notify.Kind
	switch target {
	case models.BookingConfirmed:
		kind = notify.BookingConfirmed
	case models.BookingCancelled:
		kind = notify.BookingCancelled
	default:
		return b, nil
	}
	s.notifyOwner(ctx, log, kind, *b)
	return b, nil
}

// UpdateDetails lets the owner change travellers and special requests in
// any status. Other users get NotFound, as if the booking did not exist.
func (s *Service) UpdateDetails(ctx context.Context, actor access.Actor, id string, in DetailsInput) (*models.Booking, error) {
	if err := access.Check(actor, "", access.RoleUser); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	patch := models.BookingDetailsPatch{Travelers: in.Travelers}
	if in.SpecialRequests != nil {
		trimmed := strings.TrimSpace(*in.SpecialRequests)
		patch.SpecialRequests = &trimmed
	}

	b, err := s.store.UpdateBookingDetails(ctx, id, actor.UserID, patch, s.now().UTC())
	if err != nil {
		return nil, translate(err, "booking not found")
	}
	s.log.WithFields(logrus.Fields{"bookingId": b.ID, "userId": actor.UserID}).Info("booking details updated")
	return b, nil
}

// Delete removes a booking for its owner or an administrator.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	b, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return translate(err, "booking not found")
	}
	if err := access.Check(actor, b.UserID, access.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return translate(err, "booking not found")
	}
	s.log.WithFields(logrus.Fields{"bookingId": id, "by": actor.UserID}).Info("booking deleted")
	return nil
}

// notifyOwner looks up the addressee after a committed write. Lookup
// failures only cost the email.
func (s *Service) notifyOwner(ctx context.Context, log logrus.FieldLogger, kind notify.Kind, b models.Booking) {
	user, err := s.store.FindUser(ctx, b.UserID)
	if err != nil {
		log.WithError(err).Warn("booking owner lookup failed; notification skipped")
		return
	}
	dest, err := s.store.FindDestination(ctx, b.DestinationID)
	if err != nil {
		log.WithError(err).Debug("destination lookup failed")
		dest = nil
	}
	notify.Fire(ctx, s.notifier, log, notify.Notification{
		Kind: kind,
		To:   user.Email,
		Data: bookingData(b, user, dest),
	})
}

func (s *Service) views(ctx context.Context, bookings []models.Booking, withUsers bool) ([]models.BookingView, error) {
	destIDs := make([]string, 0, len(bookings))
	userIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		destIDs = append(destIDs, b.DestinationID)
		userIDs = append(userIDs, b.UserID)
	}
	dests, err := s.store.DestinationsByID(ctx, destIDs)
	if err != nil {
		return nil, apperr.Internal("load destinations", err)
	}
	users := map[string]models.User{}
	if withUsers {
		if users, err = s.store.UsersByID(ctx, userIDs); err != nil {
			return nil, apperr.Internal("load users", err)
		}
	}

	out := make([]models.BookingView, 0, len(bookings))
	for _, b := range bookings {
		var u *models.User
		if found, ok := users[b.UserID]; ok {
			u = &found
		}
		var d *models.Destination
		if found, ok := dests[b.DestinationID]; ok {
			d = &found
		}
		out = append(out, viewOf(b, u, d))
	}
	return out, nil
}

func viewOf(b models.Booking, u *models.User, d *models.Destination) models.BookingView {
	v := models.BookingView{Booking: b}
	if u != nil {
		v.UserName = u.DisplayName()
		v.UserEmail = u.Email
	}
	if d != nil {
		v.DestinationName = d.Name
		v.DestinationImage = d.Image
		v.DestinationPrice = d.Price
	}
	return v
}

func bookingData(b models.Booking, u *models.User, d *models.Destination) notify.Data {
	data := notify.Data{
		BookingID:   b.ID,
		PackageName: b.PackageName,
		TravelDate:  b.TravelDate,
		Travelers:   b.Travelers,
		TotalAmount: b.TotalAmount,
	}
	if u != nil {
		data.Name = u.DisplayName()
	}
	if d != nil {
		data.DestinationName = d.Name
	}
	return data
}

func recipient(u *models.User, actor access.Actor) string {
	if u != nil && u.Email != "" {
		return u.Email
	}
	return actor.Email
}

// translate maps ledger sentinels onto the error taxonomy.
func translate(err error, notFound string) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, ledger.ErrConflict):
		return apperr.Conflict("booking was modified concurrently")
	}
	return apperr.Internal("ledger", err)
}
