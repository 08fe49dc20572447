// Package notify delivers transactional emails off the request path.
// Workflows hand a Notification to a Dispatcher after their ledger write
// has committed; delivery happens later on a worker and its failures are
// only logged.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	BookingReceived  Kind = "booking.received"
	PaymentReceived  Kind = "booking.payment_received"
	BookingConfirmed Kind = "booking.confirmed"
	BookingCancelled Kind = "booking.cancelled"
	RequestApproved  Kind = "request.approved"
	RequestRejected  Kind = "request.rejected"
)

// Data is the template payload. Booking kinds use the booking fields,
// request kinds use DestinationName.
type Data struct {
	Name            string    `json:"name,omitempty"`
	BookingID       string    `json:"bookingId,omitempty"`
	PackageName     string    `json:"packageName,omitempty"`
	DestinationName string    `json:"destinationName,omitempty"`
	TravelDate      time.Time `json:"travelDate,omitempty"`
	Travelers       int       `json:"travelers,omitempty"`
	TotalAmount     float64   `json:"totalAmount,omitempty"`
	RequestID       string    `json:"requestId,omitempty"`
}

type Notification struct {
	Kind Kind   `json:"kind"`
	To   string `json:"to"`
	Data Data   `json:"data"`
}

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrClosed    = errors.New("notify: dispatcher stopped")
)

// Dispatcher accepts a notification for later delivery. It must not block
// on delivery itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Sender delivers one notification synchronously.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Fire hands n to d and swallows every failure, panics included, after
// logging it. Workflows call it once their ledger write has committed.
func Fire(ctx context.Context, d Dispatcher, log logrus.FieldLogger, n Notification) {
	if d == nil || n.To == "" {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			log.WithFields(logrus.Fields{"kind": n.Kind, "panic": fmt.Sprint(v)}).Warn("notification dispatch panicked")
		}
	}()
	// detached: the request may finish before the dispatcher looks at ctx
	if err := d.Dispatch(context.WithoutCancel(ctx), n); err != nil {
		log.WithError(err).WithField("kind", n.Kind).Warn("notification not dispatched")
	}
}

// LogSender writes notifications to the log instead of sending them.
// Used when no SMTP host is configured.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Send(_ context.Context, n Notification) error {
	subject, _, err := Render(n)
	if err != nil {
		return err
	}
	s.Log.WithFields(logrus.Fields{"kind": n.Kind, "to": n.To, "subject": subject}).Info("email (log only)")
	return nil
}
