package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultRedisKey = "notify:emails"

// RedisQueue hands notifications over to a Redis list so that any instance
// running RunWorker can deliver them. It is a Sender: put it behind a Queue
// so the push runs on a queue worker and never on the request path.
type RedisQueue struct {
	conn *redis.Client
	key  string
}

func NewRedisQueue(conn *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{conn: conn, key: key}
}

// Send pushes n onto the list.
func (q *RedisQueue) Send(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return q.conn.LPush(ctx, q.key, data).Err()
}

// RunWorker pops notifications and delivers them until ctx is done.
func (q *RedisQueue) RunWorker(ctx context.Context, sender Sender, log logrus.FieldLogger) {
	log.WithField("key", q.key).Info("notification worker listening")
	for {
		res, err := q.conn.BRPop(ctx, 5*time.Second, q.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("notification worker stopped")
				return
			}
			if !errors.Is(err, redis.Nil) {
				log.WithError(err).Warn("notification queue pop failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
			continue
		}

		// res is [key, value]
		var n Notification
		if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
			log.WithError(err).Warn("dropping malformed notification")
			continue
		}
		deliver(sender, log, n)
	}
}
