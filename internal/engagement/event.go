// Package engagement records raw user interaction events and reads back the
// positive signals used for personalization.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/highlights/internal/validate"
)

// EventType is the kind of interaction a user had with a post.
type EventType string

// Event types.
const (
	EventView     EventType = "view"
	EventLike     EventType = "like"
	EventComplete EventType = "complete"
	EventShare    EventType = "share"
	EventComment  EventType = "comment"
	EventFollow   EventType = "follow"
	EventReport   EventType = "report"
)

// PositiveTypes are the event types read by interest aggregation.
var PositiveTypes = []EventType{EventLike, EventComplete}

// Validation errors.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingPostID    = errors.New("post_id is required")
	ErrMissingUserID    = errors.New("user_id is required")
)

// Event is a single append-only interaction record.
type Event struct {
	ID        string
	UserID    string
	PostID    string
	Type      EventType
	ValueNum  *float64
	ValueText *string
	Meta      map[string]any
	CreatedAt time.Time
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventLike, EventComplete, EventShare, EventComment, EventFollow, EventReport:
		return true
	}
	return false
}

// Positive reports whether t counts as a positive personalization signal.
func (t EventType) Positive() bool {
	return t == EventLike || t == EventComplete
}

// Validate checks the fields required to append an event.
func (e Event) Validate() error {
	if e.UserID == "" {
		return ErrMissingUserID
	}
	if e.PostID == "" {
		return ErrMissingPostID
	}
	if _, err := validate.Identifier(e.UserID); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	if _, err := validate.Identifier(e.PostID); err != nil {
		return fmt.Errorf("post_id: %w", err)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if e.ValueText != nil {
		if _, err := validate.FreeText(*e.ValueText); err != nil {
			return fmt.Errorf("value_text: %w", err)
		}
	}
	return nil
}

// Log is the append-only interaction log.
type Log interface {
	// Append stores a validated event. ID and CreatedAt are assigned when empty.
	Append(ctx context.Context, e Event) error

	// PositivePostIDs returns the distinct post ids referenced by the user's
	// most recent like/complete events created at or after since. At most
	// limit events are read before deduplication.
	PositivePostIDs(ctx context.Context, userID string, since time.Time, limit int) ([]string, error)
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
