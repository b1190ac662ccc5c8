package post

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Candidates are listed in insertion order.
type InMemoryRepository struct {
	mu      sync.RWMutex
	posts   map[string]*Post
	metrics map[string]Metrics
	order   []string
}

// NewInMemoryRepository creates a new in-memory post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts:   make(map[string]*Post),
		metrics: make(map[string]Metrics),
	}
}

// Put inserts or replaces a post.
func (r *InMemoryRepository) Put(p *Post) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	cp := *p
	r.posts[p.ID] = &cp
}

// SetMetrics records the 7-day metrics for a post.
func (r *InMemoryRepository) SetMetrics(postID string, m Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[postID] = m
}

// GetByID returns a copy of the post.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

// ListCandidates returns posts joined with their metrics. Posts without
// recorded metrics appear with zero metrics.
func (r *InMemoryRepository) ListCandidates(ctx context.Context, sport string, limit int) ([]Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Candidate, 0, min(limit, len(r.order)))
	for _, id := range r.order {
		if len(out) >= limit {
			break
		}
		p := r.posts[id]
		if sport != "" && p.Sport != sport {
			continue
		}
		out = append(out, Candidate{
			PostID:    p.ID,
			Sport:     p.Sport,
			CreatedAt: p.CreatedAt,
			Metrics:   r.metrics[p.ID],
		})
	}
	return out, nil
}
