package middleware

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
)

// redisOrSkip connects to REDIS_URL (default redis://localhost:6379/0) and
// skips the test when no server answers.
func redisOrSkip(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL(%q) error = %v", url, err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// uniqueKey returns a rate limit key that is deleted when the test ends.
func uniqueKey(t *testing.T, client *redis.Client, name string) string {
	key := "test:" + name + ":" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { client.Del(context.Background(), rateLimitKeyPrefix+key) })
	return key
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redisOrSkip(t)
	store := NewRedisRateLimitStore(client)
	config := DefaultSearchLimit()
	config.RequestsPerWindow = 5
	key := uniqueKey(t, client, "allow")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, config)
		if !allowed || remaining != 4-i {
			t.Errorf("request %d: Allow() = (%v, %d), want (true, %d)", i+1, allowed, remaining, 4-i)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, config)
	if allowed || remaining != 0 {
		t.Errorf("6th request: Allow() = (%v, %d), want (false, 0)", allowed, remaining)
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}

	// A scoped key for the same caller has its own counter.
	other := uniqueKey(t, client, "allow:embed")
	if allowed, _, _ := store.Allow(ctx, other, config); !allowed {
		t.Error("a different key was blocked")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := redisOrSkip(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}
	key := uniqueKey(t, client, "expiry")
	ctx := context.Background()

	want := []bool{true, false}
	for i, w := range want {
		if allowed, _, _ := store.Allow(ctx, key, config); allowed != w {
			t.Errorf("request %d: allowed = %v, want %v", i+1, allowed, w)
		}
	}

	time.Sleep(150 * time.Millisecond)
	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	m := NewMetrics()
	store := NewRedisRateLimitStore(client).WithMetrics(m)
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}

	allowed, remaining, retryAfter := store.Allow(context.Background(), "user:alice", config)
	if !allowed || remaining != config.RequestsPerWindow || retryAfter != 0 {
		t.Errorf("Allow() = (%v, %d, %d), want (true, 3, 0)", allowed, remaining, retryAfter)
	}

	var metric dto.Metric
	if err := m.rateLimitRedisErrors.Write(&metric); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("redis error counter = %v, want 1", got)
	}
}
