package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type loginLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
}

func exerciseBudget(t *testing.T, l loginLimiter) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "Alice", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: unexpected limit: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice", "10.0.0.1"); err != nil {
			t.Fatalf("IncrementLogin: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if err := l.ResetLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	// The IP budget survives a successful login.
	if err := l.CheckLogin(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget to remain exhausted, got %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", "10.0.0.2"); err != nil {
		t.Fatalf("expected identifier budget reset, got %v", err)
	}
}

func TestRedisLimiterBudget(t *testing.T) {
	_, rdb := newRedis(t)
	exerciseBudget(t, New(rdb, Config{MaxLoginAttempts: 3, Cooldown: time.Minute, EnableIPThrottle: true}))
}

func TestLocalLimiterBudget(t *testing.T) {
	exerciseBudget(t, NewLocal(Config{MaxLoginAttempts: 3, Cooldown: time.Hour, EnableIPThrottle: true}))
}

func TestRedisLimiterWindowExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	l := New(rdb, Config{MaxLoginAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("IncrementLogin: %v", err)
	}
	if n, _ := l.Attempts(ctx, "alice"); n != 1 {
		t.Fatalf("Attempts = %d, want 1", n)
	}
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	l := New(rdb, Config{MaxLoginAttempts: 1, Cooldown: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
