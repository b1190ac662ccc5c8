// Package post provides the post model, its rolling engagement metrics and
// repositories for reading them.
package post

import (
	"context"
	"errors"
	"time"
)

// ErrPostNotFound is returned when a post does not exist or has been deleted.
var ErrPostNotFound = errors.New("post not found")

// Post is a short video or photo published by a user.
type Post struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	Sport       string    `json:"sport,omitempty"`
	Team        string    `json:"team,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Metrics are the rolling 7-day engagement statistics of a post. They are
// derived outside this service and are read-only here.
type Metrics struct {
	Views7d           int64   `json:"views_7d"`
	Likes7d           int64   `json:"likes_7d"`
	Shares7d          int64   `json:"shares_7d"`
	CompletionRate7d  float64 `json:"completion_rate_7d"`
	AvgWatchSeconds7d float64 `json:"avg_watch_seconds_7d"`
}

// Candidate is a post row from the 7-day metrics view, as consumed by feed ranking.
type Candidate struct {
	PostID    string
	Sport     string
	CreatedAt time.Time
	Metrics
}

// Repository defines read access to posts and their metrics.
type Repository interface {
	// GetByID returns the post with the given id, or ErrPostNotFound.
	GetByID(ctx context.Context, id string) (*Post, error)

	// ListCandidates returns up to limit rows of the 7-day metrics view in
	// store order. A non-empty sport restricts rows to that exact sport.
	ListCandidates(ctx context.Context, sport string, limit int) ([]Candidate, error)
}
