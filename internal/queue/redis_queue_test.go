package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	apperr "inmoveo/internal/pkg/errors"
)

// Tests against a live Redis run only when TEST_REDIS_ADDR is set.
func liveQueue(t *testing.T) *RedisQueue {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })

	name := "inmoveo:test:" + t.Name()
	ctx := context.Background()
	if err := rdb.Del(ctx, name).Err(); err != nil {
		t.Fatalf("reset queue: %v", err)
	}
	t.Cleanup(func() { rdb.Del(context.Background(), name) })
	return NewRedisQueue(rdb, name)
}

func TestEnqueueRejectsEmptySlug(t *testing.T) {
	q := NewRedisQueue(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "inmoveo:jobs")
	if err := q.Enqueue(context.Background(), "  "); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestEnqueueUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	err := NewRedisQueue(rdb, "inmoveo:jobs").Enqueue(context.Background(), "demo")
	if !apperr.IsCode(err, apperr.CodeUnavailable) {
		t.Errorf("expected UNAVAILABLE, got %v", err)
	}
}

func TestFIFO(t *testing.T) {
	q := liveQueue(t)
	ctx := context.Background()

	for _, s := range []string{"uno", "dos", "tres"} {
		if err := q.Enqueue(ctx, s); err != nil {
			t.Fatalf("Enqueue(%s): %v", s, err)
		}
	}
	if n, _ := q.Len(ctx); n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}
	for _, want := range []string{"uno", "dos", "tres"} {
		got, err := q.Pop(ctx, time.Second)
		if err != nil || got != want {
			t.Errorf("Pop = %q %v, want %q", got, err, want)
		}
	}
}

func TestPopTimeout(t *testing.T) {
	q := liveQueue(t)
	got, err := q.Pop(context.Background(), time.Second)
	if err != nil || got != "" {
		t.Errorf("expected empty pop on timeout, got %q %v", got, err)
	}
}
