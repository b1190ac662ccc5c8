package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryLog is an in-memory implementation of Log.
type InMemoryLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryLog creates an empty in-memory log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{}
}

// Append validates and stores an event.
func (l *InMemoryLog) Append(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

// PositivePostIDs scans events newest first.
func (l *InMemoryLog) PositivePostIDs(ctx context.Context, userID string, since time.Time, limit int) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0)
	for i := len(l.events) - 1; i >= 0 && len(ids) < limit; i-- {
		e := l.events[i]
		if e.UserID != userID || !e.Type.Positive() || e.CreatedAt.Before(since) {
			continue
		}
		ids = append(ids, e.PostID)
	}
	return distinct(ids), nil
}

// Events returns a copy of all stored events.
func (l *InMemoryLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
