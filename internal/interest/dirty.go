package interest

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DirtyTracker records users whose interest vector needs recomputation.
type DirtyTracker interface {
	MarkDirty(ctx context.Context, userID string) error
	ClearDirty(ctx context.Context, userID string) error
	DirtyUsers(ctx context.Context) ([]string, error)
}

// InMemoryDirtyTracker is a process-local DirtyTracker.
type InMemoryDirtyTracker struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

// NewInMemoryDirtyTracker creates an empty tracker.
func NewInMemoryDirtyTracker() *InMemoryDirtyTracker {
	return &InMemoryDirtyTracker{users: make(map[string]struct{})}
}

// MarkDirty flags a user for recomputation.
func (t *InMemoryDirtyTracker) MarkDirty(ctx context.Context, userID string) error {
	t.mu.Lock()
	t.users[userID] = struct{}{}
	t.mu.Unlock()
	return nil
}

// ClearDirty removes the flag after recomputation.
func (t *InMemoryDirtyTracker) ClearDirty(ctx context.Context, userID string) error {
	t.mu.Lock()
	delete(t.users, userID)
	t.mu.Unlock()
	return nil
}

// DirtyUsers returns a snapshot of flagged users.
func (t *InMemoryDirtyTracker) DirtyUsers(ctx context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]string, 0, len(t.users))
	for id := range t.users {
		users = append(users, id)
	}
	return users, nil
}

// DefaultDirtyKey is the Redis set holding dirty user ids.
const DefaultDirtyKey = "interest:dirty_users"

// RedisDirtyTracker stores dirty users in a Redis set so that every API
// instance feeds the same recompute job.
type RedisDirtyTracker struct {
	client *redis.Client
	key    string
}

// NewRedisDirtyTracker creates a tracker using key, or DefaultDirtyKey if empty.
func NewRedisDirtyTracker(client *redis.Client, key string) *RedisDirtyTracker {
	if key == "" {
		key = DefaultDirtyKey
	}
	return &RedisDirtyTracker{client: client, key: key}
}

// MarkDirty adds the user to the set.
func (t *RedisDirtyTracker) MarkDirty(ctx context.Context, userID string) error {
	if err := t.client.SAdd(ctx, t.key, userID).Err(); err != nil {
		return fmt.Errorf("failed to mark user dirty: %w", err)
	}
	return nil
}

// ClearDirty removes the user from the set.
func (t *RedisDirtyTracker) ClearDirty(ctx context.Context, userID string) error {
	if err := t.client.SRem(ctx, t.key, userID).Err(); err != nil {
		return fmt.Errorf("failed to clear dirty user: %w", err)
	}
	return nil
}

// DirtyUsers returns the members of the set.
func (t *RedisDirtyTracker) DirtyUsers(ctx context.Context) ([]string, error) {
	users, err := t.client.SMembers(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty users: %w", err)
	}
	return users, nil
}
