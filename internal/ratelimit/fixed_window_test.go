package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestFixedWindowLimiter(t *testing.T) {
	_, client := newTestClient(t)
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", 2, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if !limiter.Allow("user-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow("user-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow("user-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow("user-2") {
		t.Fatalf("other keys have their own quota")
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	mr, client := newTestClient(t)
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow("user-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	_, client := newTestClient(t)
	if _, err := NewFixedWindowLimiter(nil, "p", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewFixedWindowLimiter(client, "p", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
