package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis when REDIS_ADDR is set.
func TestRedisQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	conn := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	defer conn.Close()

	key := "test:notify:" + time.Now().Format(time.RFC3339Nano)
	rq := NewRedisQueue(conn, key)
	sender := &recordingSender{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rq.RunWorker(ctx, sender, quietLog())
	}()

	q := NewQueue(rq, quietLog(), 1, 4)
	q.Start()
	require.NoError(t, q.Dispatch(context.Background(), Notification{Kind: RequestApproved, To: "a@example.com"}))
	require.NoError(t, q.Stop(context.Background()))

	require.Eventually(t, func() bool { return sender.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, RequestApproved, sender.got[0].Kind)

	cancel()
	<-done
}
