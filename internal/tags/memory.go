package tags

import (
	"context"
	"sync"
)

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	ids    map[string]int64
	posts  map[int64][]string
	byPost map[string][]int64
}

// NewInMemoryStore creates an empty tag store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		ids:    make(map[string]int64),
		posts:  make(map[int64][]string),
		byPost: make(map[string][]int64),
	}
}

// UpsertPostTags replaces the tags of postID.
func (s *InMemoryStore) UpsertPostTags(ctx context.Context, postID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byPost[postID] {
		s.posts[id] = remove(s.posts[id], postID)
	}

	ids := make([]int64, 0, len(tags))
	for _, name := range tags {
		id, ok := s.ids[name]
		if !ok {
			s.nextID++
			id = s.nextID
			s.ids[name] = id
		}
		ids = append(ids, id)
		s.posts[id] = append(s.posts[id], postID)
	}
	s.byPost[postID] = ids
	return nil
}

// Resolve returns the id of a tag name.
func (s *InMemoryStore) Resolve(ctx context.Context, name string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[name]
	return id, ok, nil
}

// PostIDs returns the posts tagged with tagID in tagging order.
func (s *InMemoryStore) PostIDs(ctx context.Context, tagID int64, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := s.posts[tagID]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	out := make([]string, len(posts))
	copy(out, posts)
	return out, nil
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
