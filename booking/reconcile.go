package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/models"
	"github.com/loiphan2202/BAT/payment"
	"github.com/loiphan2202/BAT/rdx"

	"github.com/sirupsen/logrus"
)

const reconcileLockTTL = 15 * time.Second

// PaymentInput asks for a hosted checkout session. Amount is in minor
// units.
type PaymentInput struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string `json:"bookingDescription"`
}

// ReconcileInput is the booking form plus what the client brought back
// from the checkout redirect.
type ReconcileInput struct {
	CreateInput
	SessionID string `json:"sessionId" validate:"required"`
	Success   bool   `json:"success"`
}

// InitiatePayment opens a checkout session. No ledger state is touched.
func (s *Service) InitiatePayment(ctx context.Context, actor access.Actor, in PaymentInput) (*payment.Session, error) {
	if err := access.Check(actor, "", access.RoleUser); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "inr"
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = "Travel booking"
	}

	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		Amount:      in.Amount,
		Currency:    currency,
		Description: description,
		SuccessURL:  s.frontendURL + "/booking-status?success=true&session_id=" + payment.SessionPlaceholder,
		CancelURL:   s.frontendURL + "/booking?canceled=true",
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindGateway {
			err = apperr.Gateway("payment session could not be created", err)
		}
		s.log.WithError(err).WithField("userId", actor.UserID).Warn("payment session failed")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"userId": actor.UserID, "sessionId": session.ID, "amount": in.Amount}).Info("payment session created")
	return session, nil
}

// Reconcile turns a completed checkout into a Paid booking. Each session id
// reconciles at most once; replays get a Conflict.
func (s *Service) Reconcile(ctx context.Context, actor access.Actor, in ReconcileInput) (*models.BookingView, error) {
	if err := access.Check(actor, "", access.RoleUser); err != nil {
		return nil, err
	}
	in.SessionID = strings.TrimSpace(in.SessionID)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	// a malformed booking never costs a provider round trip
	d, err := s.prepare(ctx, actor, in.CreateInput)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "reconcile:"+in.SessionID, reconcileLockTTL)
		switch {
		case errors.Is(err, rdx.ErrLocked):
			return nil, apperr.Conflict("payment is already being reconciled")
		case err != nil:
			// the unique paymentRef index still rejects duplicates
			s.log.WithError(err).Warn("reconcile lock unavailable")
		default:
			defer unlock()
		}
	}

	if err := s.verifier.Verify(ctx, payment.Proof{SessionID: in.SessionID, Success: in.Success}); err != nil {
		return nil, err
	}
	return s.record(ctx, actor, d, &paidWith{sessionID: in.SessionID})
}
