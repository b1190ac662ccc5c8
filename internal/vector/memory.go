package vector

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// InMemoryStore implements EmbeddingStore, InterestStore and NeighborIndex
// with an exact cosine scan. Intended for tests and local development.
type InMemoryStore struct {
	mu         sync.RWMutex
	embeddings map[string]PostEmbedding
	interests  map[string]UserInterest
}

// NewInMemoryStore creates an empty in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		embeddings: make(map[string]PostEmbedding),
		interests:  make(map[string]UserInterest),
	}
}

// Get returns the stored embedding for postID.
func (s *InMemoryStore) Get(ctx context.Context, postID string) (*PostEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.embeddings[postID]
	if !ok {
		return nil, ErrNotFound
	}
	e.Vector = slices.Clone(e.Vector)
	return &e, nil
}

// Upsert replaces the embedding for e.PostID.
func (s *InMemoryStore) Upsert(ctx context.Context, e PostEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Vector = slices.Clone(e.Vector)
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	s.embeddings[e.PostID] = e
	return nil
}

// GetMany returns the embeddings that exist among postIDs, in the order of
// postIDs, up to limit.
func (s *InMemoryStore) GetMany(ctx context.Context, postIDs []string, limit int) ([]PostEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PostEmbedding, 0, min(limit, len(postIDs)))
	for _, id := range postIDs {
		if len(out) >= limit {
			break
		}
		if e, ok := s.embeddings[id]; ok {
			e.Vector = slices.Clone(e.Vector)
			out = append(out, e)
		}
	}
	return out, nil
}

// GetInterest returns the interest vector for userID.
func (s *InMemoryStore) GetInterest(ctx context.Context, userID string) (*UserInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.interests[userID]
	if !ok {
		return nil, ErrNotFound
	}
	v.Vector = slices.Clone(v.Vector)
	return &v, nil
}

// UpsertInterest replaces the interest vector for v.UserID.
func (s *InMemoryStore) UpsertInterest(ctx context.Context, v UserInterest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.Vector = slices.Clone(v.Vector)
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now()
	}
	s.interests[v.UserID] = v
	return nil
}

// Interests returns an InterestStore view over this store.
func (s *InMemoryStore) Interests() InterestStore {
	return inMemoryInterests{s}
}

// NearestNeighbors scans every stored embedding of matching dimension.
// Equal distances are ordered by post id.
func (s *InMemoryStore) NearestNeighbors(ctx context.Context, vec []float32, k int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Neighbor, 0, len(s.embeddings))
	for id, e := range s.embeddings {
		if len(e.Vector) != len(vec) {
			continue
		}
		out = append(out, Neighbor{PostID: id, Distance: CosineDistance(vec, e.Vector)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].PostID < out[j].PostID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

type inMemoryInterests struct{ s *InMemoryStore }

func (i inMemoryInterests) Get(ctx context.Context, userID string) (*UserInterest, error) {
	return i.s.GetInterest(ctx, userID)
}

func (i inMemoryInterests) Upsert(ctx context.Context, v UserInterest) error {
	return i.s.UpsertInterest(ctx, v)
}
