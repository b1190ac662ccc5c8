// Package search answers free-text queries by nearest-neighbor retrieval
// over stored post embeddings.
package search

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/highlights/internal/apperr"
	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/embedding"
	"github.com/onnwee/highlights/internal/tracing"
	"github.com/onnwee/highlights/internal/vector"
)

// Result size bounds.
const (
	DefaultLimit = 20
	MinLimit     = 5
	MaxLimit     = 50
)

// Config wires the search service.
type Config struct {
	Provider  embedding.Provider
	Neighbors vector.NeighborIndex
	// CacheSize is the number of query embeddings kept in memory. Zero disables caching.
	CacheSize int
	Logger    *slog.Logger
}

// Service performs semantic search.
type Service struct {
	provider  embedding.Provider
	neighbors vector.NeighborIndex
	cache     *lru.Cache[string, []float32]
	logger    *slog.Logger
}

// NewService creates a search service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{
		provider:  cfg.Provider,
		neighbors: cfg.Neighbors,
		logger:    cfg.Logger,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// ClampLimit applies the default and the [5, 50] bounds.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	return min(max(limit, MinLimit), MaxLimit)
}

// Search returns post ids ordered by the similarity index. Blank queries
// return an empty result without calling the embedding provider.
func (s *Service) Search(ctx context.Context, caller auth.Caller, query string, limit int) (ids []string, err error) {
	const op = "search.Search"

	ctx, endSpan := tracing.StartSpan(ctx, op)
	defer func() { endSpan(err) }()

	if !caller.Authenticated() {
		return nil, apperr.E(apperr.ErrUnauthorized, op, nil)
	}
	limit = ClampLimit(limit)
	tracing.SetAttributes(ctx, attribute.Int("search.limit", limit))
	if strings.TrimSpace(query) == "" {
		return []string{}, nil
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, apperr.E(apperr.ErrEmbeddingFailed, op, err)
	}

	neighbors, err := s.neighbors.NearestNeighbors(ctx, vec, limit)
	if err != nil {
		return nil, apperr.E(apperr.ErrStoreFailed, op, err)
	}

	ids = make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.PostID
	}
	s.logger.DebugContext(ctx, "semantic search",
		slog.String("user_id", caller.UserID),
		slog.Int("limit", limit),
		slog.Int("results", len(ids)))
	return ids, nil
}

// embed returns the query embedding, consulting the cache first. Keys
// include the model so a model change never serves stale vectors.
func (s *Service) embed(ctx context.Context, query string) ([]float32, error) {
	key := s.provider.Model() + "\x00" + query
	if s.cache != nil {
		if vec, ok := s.cache.Get(key); ok {
			tracing.AddEvent(ctx, "query_cache.hit")
			return vec, nil
		}
		tracing.AddEvent(ctx, "query_cache.miss")
	}

	vec, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, vec)
	}
	return vec, nil
}
