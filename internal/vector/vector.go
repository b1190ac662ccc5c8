// Package vector stores post embeddings and user interest vectors and answers
// nearest-neighbor queries over them.
package vector

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no embedding or interest vector exists for a key.
var ErrNotFound = errors.New("vector not found")

// PostEmbedding is the stored embedding of a post's canonical text blob.
// ContentHash is the fingerprint of the exact blob that produced Vector.
type PostEmbedding struct {
	PostID      string
	ModelID     string
	ContentHash string
	Vector      []float32
	UpdatedAt   time.Time
}

// UserInterest is a user's interest profile: the centroid of embeddings of
// posts they engaged with positively. It is always replaced wholesale.
type UserInterest struct {
	UserID    string
	ModelID   string
	Vector    []float32
	UpdatedAt time.Time
}

// Neighbor is a post returned by a nearest-neighbor query.
type Neighbor struct {
	PostID   string
	Distance float64 // cosine distance, smaller is closer
}

// EmbeddingStore persists post embeddings. Upsert is last-writer-wins on post id.
type EmbeddingStore interface {
	Get(ctx context.Context, postID string) (*PostEmbedding, error)
	Upsert(ctx context.Context, e PostEmbedding) error
	GetMany(ctx context.Context, postIDs []string, limit int) ([]PostEmbedding, error)
}

// InterestStore persists user interest vectors. Get returns ErrNotFound for
// users that have none.
type InterestStore interface {
	Get(ctx context.Context, userID string) (*UserInterest, error)
	Upsert(ctx context.Context, v UserInterest) error
}

// NeighborIndex answers nearest-neighbor queries against stored post
// embeddings. Results are ordered by ascending distance.
type NeighborIndex interface {
	NearestNeighbors(ctx context.Context, vec []float32, k int) ([]Neighbor, error)
}
