package api

import (
	"net/http"
)

// Route paths.
const (
	PathEmbedPost         = "/v1/posts/embed"
	PathAggregateInterest = "/v1/users/interest"
	PathFeed              = "/v1/feed"
	PathSearch            = "/v1/search"
	PathEvents            = "/v1/events"
	PathHealth            = "/health"
	PathReady             = "/health/ready"
	PathMetrics           = "/metrics"
)

// RouterConfig wires handlers into the API mux.
type RouterConfig struct {
	Embed    *EmbedHandlers
	Interest *InterestHandlers
	Feed     *FeedHandlers
	Search   *SearchHandlers
	Events   *EventHandlers
	Health   *HealthHandlers

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// EmbedLimiter and SearchLimiter wrap the endpoints that may call the
	// embedding provider. Both are optional.
	EmbedLimiter  func(http.Handler) http.Handler
	SearchLimiter func(http.Handler) http.Handler
}

// NewRouter builds the API mux. Unknown paths get a JSON 404.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	limit := func(wrap func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
		if wrap == nil {
			return h
		}
		return wrap(h)
	}

	if cfg.Embed != nil {
		mux.Handle(PathEmbedPost, limit(cfg.EmbedLimiter, cfg.Embed.EmbedPost))
	}
	if cfg.Interest != nil {
		mux.HandleFunc(PathAggregateInterest, cfg.Interest.AggregateInterest)
	}
	if cfg.Feed != nil {
		mux.HandleFunc(PathFeed, cfg.Feed.Feed)
	}
	if cfg.Search != nil {
		mux.Handle(PathSearch, limit(cfg.SearchLimiter, cfg.Search.Search))
	}
	if cfg.Events != nil {
		mux.HandleFunc(PathEvents, cfg.Events.TrackEvent)
	}
	if cfg.Health != nil {
		mux.HandleFunc(PathHealth, cfg.Health.Health)
		mux.HandleFunc(PathReady, cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		mux.Handle(PathMetrics, cfg.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})

	return mux
}
