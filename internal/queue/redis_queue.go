// Package queue carries job slugs from the API to the worker over a Redis list.
package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperr "inmoveo/internal/pkg/errors"
)

// RedisQueue is a FIFO of slugs: LPUSH on enqueue, BRPOP on pop.
type RedisQueue struct {
	rdb       redis.Cmdable
	queueName string
}

func NewRedisQueue(rdb redis.Cmdable, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

func (q *RedisQueue) Name() string { return q.queueName }

func (q *RedisQueue) Enqueue(ctx context.Context, slug string) error {
	if strings.TrimSpace(slug) == "" {
		return apperr.ValidationField("slug", "cannot enqueue an empty slug")
	}
	if err := q.rdb.LPush(ctx, q.queueName, slug).Err(); err != nil {
		return apperr.Unavailable("queue.enqueue", "redis", err).WithField("queue", q.queueName)
	}
	return nil
}

// Pop blocks up to timeout for the next slug. It returns "" with a nil error
// when the wait times out; timeout 0 blocks until ctx is done.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperr.Unavailable("queue.pop", "redis", err).WithField("queue", q.queueName)
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.queueName).Result()
	if err != nil {
		return 0, apperr.Unavailable("queue.len", "redis", err)
	}
	return n, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
