package rdx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loiphan2202/BAT/utils"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("rdx: lock held by another request")

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx).Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return conn, nil
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a SetNX based mutual exclusion lock shared by every instance
// that talks to the same Redis.
type Locker struct {
	conn   *redis.Client
	prefix string
}

func NewLocker(conn *redis.Client, prefix string) *Locker {
	return &Locker{conn: conn, prefix: prefix}
}

// Lock acquires key for ttl. It returns ErrLocked if the key is taken.
// The returned unlock func is safe to call once the lock has expired.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := l.prefix + key
	token := utils.GetUUID()
	ok, err := l.conn.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// the request context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.conn, []string{full}, token)
	}, nil
}
