package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const sendTimeout = 30 * time.Second

// Queue is an in-process worker pool. Dispatch only enqueues; a full queue
// drops the notification rather than blocking the caller.
type Queue struct {
	jobs    chan Notification
	sender  Sender
	log     logrus.FieldLogger
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	start  sync.Once
}

func NewQueue(sender Sender, log logrus.FieldLogger, workers, size int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	return &Queue{
		jobs:    make(chan Notification, size),
		sender:  sender,
		log:     log,
		workers: workers,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.start.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i)
		}
	})
}

func (q *Queue) work(id int) {
	defer q.wg.Done()
	for n := range q.jobs {
		deliver(q.sender, q.log.WithField("worker", id), n)
	}
}

// deliver sends one notification, logging and swallowing every failure.
func deliver(sender Sender, log logrus.FieldLogger, n Notification) {
	defer func() {
		if v := recover(); v != nil {
			log.WithFields(logrus.Fields{"kind": n.Kind, "panic": v}).Error("notification sender panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := sender.Send(ctx, n); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"kind": n.Kind, "to": n.To}).Warn("notification delivery failed")
		return
	}
	log.WithFields(logrus.Fields{"kind": n.Kind, "to": n.To}).Debug("notification delivered")
}

func (q *Queue) Dispatch(_ context.Context, n Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.jobs <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new notifications and waits for queued ones to drain, or
// for ctx to end.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
