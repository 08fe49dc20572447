package rdx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis when REDIS_ADDR is set.
func TestLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	conn, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	defer conn.Close()

	l := NewLocker(conn, "test:lock:")
	key := "reconcile:" + time.Now().Format(time.RFC3339Nano)

	unlock, err := l.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = l.Lock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()
	unlock2, err := l.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	unlock2()
}
