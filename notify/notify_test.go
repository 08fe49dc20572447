package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recordingSender struct {
	mu   sync.Mutex
	got  []Notification
	err  error
	wait chan struct{}
}

func (r *recordingSender) Send(_ context.Context, n Notification) error {
	if r.wait != nil {
		<-r.wait
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestQueueDeliversAndDrainsOnStop(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, quietLog(), 2, 8)
	q.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Dispatch(context.Background(), Notification{Kind: BookingReceived, To: "a@example.com"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
	assert.Equal(t, 5, sender.count())

	assert.ErrorIs(t, q.Dispatch(context.Background(), Notification{Kind: BookingReceived, To: "a@example.com"}), ErrClosed)
}

func TestQueueDropsWhenFull(t *testing.T) {
	sender := &recordingSender{wait: make(chan struct{})}
	q := NewQueue(sender, quietLog(), 1, 1)
	q.Start()

	n := Notification{Kind: BookingConfirmed, To: "a@example.com"}
	// first is picked up by the blocked worker, second fills the buffer
	require.NoError(t, q.Dispatch(context.Background(), n))
	require.Eventually(t, func() bool { return q.Dispatch(context.Background(), n) == nil }, time.Second, time.Millisecond)

	start := time.Now()
	err := q.Dispatch(context.Background(), n)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "dispatch must not block")

	close(sender.wait)
	require.NoError(t, q.Stop(context.Background()))
}

func TestDispatchDoesNotWaitForTransport(t *testing.T) {
	// a transport stuck on the network, like an unreachable Redis
	sender := &recordingSender{wait: make(chan struct{})}
	q := NewQueue(sender, quietLog(), 1, 4)
	q.Start()

	start := time.Now()
	require.NoError(t, q.Dispatch(context.Background(), Notification{Kind: BookingReceived, To: "a@example.com"}))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, sender.count())

	close(sender.wait)
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, 1, sender.count())
}

func TestSenderFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	q := NewQueue(sender, quietLog(), 1, 4)
	q.Start()
	require.NoError(t, q.Dispatch(context.Background(), Notification{Kind: BookingCancelled, To: "a@example.com"}))
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, 1, sender.count())
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, Notification) error { panic("boom") }

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, Notification) error { return errors.New("down") }

func TestFireNeverPropagates(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	n := Notification{Kind: BookingReceived, To: "a@example.com"}
	assert.NotPanics(t, func() { Fire(context.Background(), panickingDispatcher{}, log, n) })
	assert.NotPanics(t, func() { Fire(context.Background(), failingDispatcher{}, log, n) })
	assert.NotPanics(t, func() { Fire(context.Background(), nil, log, n) })
	assert.Contains(t, buf.String(), "notification not dispatched")
}

func TestRender(t *testing.T) {
	subject, body, err := Render(Notification{Kind: BookingConfirmed, To: "a@example.com", Data: Data{
		Name:            "Asha <script>",
		PackageName:     "Weekend Escape",
		DestinationName: "Goa",
		TravelDate:      time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC),
		Travelers:       2,
		TotalAmount:     700,
	}})
	require.NoError(t, err)
	assert.Equal(t, "Booking Confirmed - Travel Agency", subject)
	assert.Contains(t, body, "₹700.00")
	assert.Contains(t, body, "24 Dec 2026")
	assert.Contains(t, body, "Asha &lt;script&gt;")

	for kind := range templates {
		_, _, err := Render(Notification{Kind: kind})
		assert.NoError(t, err, kind)
	}

	_, _, err = Render(Notification{Kind: "welcome"})
	assert.Error(t, err)
}

func TestSMTPMessage(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "mailer@example.com", "secret", "")
	m, err := s.message(Notification{Kind: RequestApproved, To: "a@example.com", Data: Data{DestinationName: "Coorg Hills"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"mailer@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"Destination Request Approved - Travel Agency"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"a@example.com"}, m.GetHeader("To"))
}
