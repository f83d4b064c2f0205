package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, cfg), mr
}

func TestLoginLimiterWindow(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, Config{
		MaxLoginAttempts: 3,
		LoginCooldown:    time.Minute,
	})

	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("fresh identifier should pass: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := limiter.IncrementLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	if err := limiter.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on attempt over budget, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected CheckLogin to reject, got %v", err)
	}

	attempts, err := limiter.GetLoginAttempts(ctx, "alice")
	if err != nil {
		t.Fatalf("GetLoginAttempts: %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 recorded attempts, got %d", attempts)
	}
}

func TestLoginLimiterWindowExpiry(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newTestLimiter(t, Config{
		MaxLoginAttempts: 1,
		LoginCooldown:    time.Minute,
	})

	_ = limiter.IncrementLogin(ctx, "alice", "")
	if err := limiter.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("window should reset after cooldown: %v", err)
	}
}

func TestResetLoginClearsCounter(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, Config{
		MaxLoginAttempts: 1,
		LoginCooldown:    time.Minute,
	})

	_ = limiter.IncrementLogin(ctx, "alice", "")
	_ = limiter.IncrementLogin(ctx, "alice", "")
	if err := limiter.ResetLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("counter should be cleared: %v", err)
	}
}

func TestIPThrottleIndependentOfIdentifier(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, Config{
		EnableIPThrottle: true,
		MaxLoginAttempts: 1,
		LoginCooldown:    time.Minute,
	})

	_ = limiter.IncrementLogin(ctx, "alice", "10.0.0.1")
	if err := limiter.IncrementLogin(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("shared IP should hit the limit, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "bob", "10.0.0.2"); err != nil {
		t.Fatalf("other IP should pass: %v", err)
	}
}

func TestForgotLimiter(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, Config{
		MaxForgotRequests: 2,
		ForgotCooldown:    time.Hour,
	})

	for i := 0; i < 2; i++ {
		if err := limiter.CheckForgot(ctx, "alice@example.com"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := limiter.CheckForgot(ctx, "alice@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := limiter.CheckForgot(ctx, "bob@example.com"); err != nil {
		t.Fatalf("other contact should pass: %v", err)
	}
}

func TestRedisDownSurfacesAsUnavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := New(client, Config{MaxLoginAttempts: 1, LoginCooldown: time.Minute})
	mr.Close()

	if err := limiter.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
