package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/highlights/internal/api"
	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/config"
	"github.com/onnwee/highlights/internal/db"
	"github.com/onnwee/highlights/internal/embedder"
	"github.com/onnwee/highlights/internal/embedding"
	"github.com/onnwee/highlights/internal/engagement"
	"github.com/onnwee/highlights/internal/health"
	"github.com/onnwee/highlights/internal/interest"
	"github.com/onnwee/highlights/internal/jobs"
	"github.com/onnwee/highlights/internal/middleware"
	"github.com/onnwee/highlights/internal/post"
	"github.com/onnwee/highlights/internal/ranking"
	"github.com/onnwee/highlights/internal/search"
	"github.com/onnwee/highlights/internal/tags"
	"github.com/onnwee/highlights/internal/vector"
)

const (
	serviceName       = "highlights-api"
	dirtyUsersKey     = "interest:dirty"
	redisPingTimeout  = 5 * time.Second
	rateLimitSweepGap = time.Minute
)

// embeddingIndex is a post embedding store that also answers similarity queries.
type embeddingIndex interface {
	vector.EmbeddingStore
	vector.NeighborIndex
}

// storage is the persistence layer selected from configuration.
type storage struct {
	posts      post.Repository
	embeddings embeddingIndex
	interests  vector.InterestStore
	events     engagement.Log
	tags       tags.Store
	dbChecker  api.HealthChecker
	close      func() error
}

// app is the fully wired API server.
type app struct {
	handler  http.Handler
	job      *interest.RecomputeJob
	embedder *embedder.Service
	logger   *slog.Logger

	stopSweep chan struct{}
	closers   []func() error
}

// newApp wires every service from cfg. Postgres and Redis are used when
// configured; otherwise in-memory stores keep the service usable for local work.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{logger: logger, stopSweep: make(chan struct{})}

	httpMetrics := middleware.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	embedMetrics := embedder.NewMetrics()
	rankMetrics := ranking.NewMetrics()
	breakerMetrics := embedding.NewBreakerMetrics()
	for _, r := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, jobMetrics, embedMetrics, rankMetrics, breakerMetrics} {
		if err := r.Register(reg); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.close)

	var (
		dirty        interest.DirtyTracker
		limitStore   middleware.RateLimitStore
		redisChecker api.HealthChecker
	)
	if cfg.RedisURL != "" {
		client, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		dirty = interest.NewRedisDirtyTracker(client, dirtyUsersKey)
		limitStore = middleware.NewRedisRateLimitStore(client).WithMetrics(httpMetrics).WithLogger(logger)
		redisChecker = health.NewRedisChecker(client)
	} else {
		logger.Warn("REDIS_URL not set, using in-memory dirty tracking and rate limits")
		dirty = interest.NewInMemoryDirtyTracker()
		mem := middleware.NewInMemoryRateLimitStore()
		go a.sweep(mem)
		limitStore = mem
	}

	client, err := embedding.NewClient(embedding.ClientConfig{
		BaseURL: cfg.EmbeddingBaseURL,
		APIKey:  cfg.EmbeddingAPIKey,
		Model:   cfg.EmbeddingModel,
		Timeout: cfg.EmbeddingTimeout(),
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	breakerCfg := embedding.DefaultBreakerConfig()
	breakerCfg.Logger = logger
	breakerCfg.Metrics = breakerMetrics
	provider := embedding.NewBreakerProvider(client, breakerCfg)

	a.embedder = embedder.NewService(embedder.Config{
		Posts:      store.posts,
		Embeddings: store.embeddings,
		Provider:   provider,
		Tags:       tags.NewExtractor(store.tags, logger),
		Logger:     logger,
		Metrics:    embedMetrics,
		JobMetrics: jobMetrics,
	})

	aggregator := interest.NewAggregator(interest.AggregatorConfig{
		Events:     store.events,
		Embeddings: store.embeddings,
		Interests:  store.interests,
		Window:     cfg.InterestWindow(),
		Logger:     logger,
	})
	a.job = interest.NewRecomputeJob(interest.RecomputeJobConfig{
		Interval:   cfg.InterestRecomputeInterval(),
		Logger:     logger,
		JobMetrics: jobMetrics,
	}, dirty, aggregator)

	engine := ranking.NewEngine(ranking.Config{
		Candidates: store.posts,
		Tags:       store.tags,
		Interests:  store.interests,
		Neighbors:  store.embeddings,
		Logger:     logger,
		Metrics:    rankMetrics,
	})

	searcher, err := search.NewService(search.Config{
		Provider:  provider,
		Neighbors: store.embeddings,
		CacheSize: cfg.SearchCacheSize,
		Logger:    logger,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	userKey := middleware.UserKeyFunc()
	mux := api.NewRouter(api.RouterConfig{
		Embed:    api.NewEmbedHandlers(a.embedder, logger),
		Interest: api.NewInterestHandlers(aggregator, logger),
		Feed:     api.NewFeedHandlers(engine, logger),
		Search:   api.NewSearchHandlers(searcher, logger),
		Events:   api.NewEventHandlers(store.events, dirty, logger),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:        store.dbChecker,
			RedisChecker:     redisChecker,
			EmbeddingChecker: health.NewBreakerChecker(provider),
		}),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		EmbedLimiter: middleware.RateLimiter(limitStore, middleware.DefaultEmbedLimit(),
			middleware.ScopedKeyFunc("embed", userKey), httpMetrics),
		SearchLimiter: middleware.RateLimiter(limitStore, middleware.DefaultSearchLimit(),
			middleware.ScopedKeyFunc("search", userKey), httpMetrics),
	})

	globalLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitPerMinute,
		WindowDuration:    time.Minute,
	}
	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	// Outermost first: RequestID -> Tracing -> Logging -> Recover -> HTTPMetrics -> Authenticate -> RateLimiter.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(limitStore, globalLimit, userKey, httpMetrics)(handler)
	handler = middleware.Authenticate(jwtService)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Recover(logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	a.handler = middleware.RequestID(handler)

	return a, nil
}

// openStorage connects to Postgres when DATABASE_URL is set and falls back
// to in-memory stores otherwise.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		mem := vector.NewInMemoryStore()
		return &storage{
			posts:      post.NewInMemoryRepository(),
			embeddings: mem,
			interests:  mem.Interests(),
			events:     engagement.NewInMemoryLog(),
			tags:       tags.NewInMemoryStore(),
			close:      func() error { return nil },
		}, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultOptions())
	if err != nil {
		return nil, err
	}
	return &storage{
		posts:      post.NewPostgresRepository(conn),
		embeddings: vector.NewPostgresStore(conn),
		interests:  vector.NewPostgresInterestStore(conn),
		events:     engagement.NewPostgresLog(conn),
		tags:       tags.NewPostgresStore(conn),
		dbChecker:  health.NewDBChecker(conn).RequireExtension(db.VectorExtension),
		close:      conn.Close,
	}, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// sweep drops expired in-memory rate limit windows until the app closes.
func (a *app) sweep(store *middleware.InMemoryRateLimitStore) {
	ticker := time.NewTicker(rateLimitSweepGap)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopSweep:
			return
		case <-ticker.C:
			store.Cleanup()
		}
	}
}

// Start launches background work.
func (a *app) Start(ctx context.Context) error {
	if err := a.job.Start(ctx); err != nil {
		return fmt.Errorf("failed to start interest recompute job: %w", err)
	}
	return nil
}

// Shutdown stops background work, waits for in-flight tag extraction and
// releases connections. The HTTP server must already be shut down.
func (a *app) Shutdown() error {
	if a.job != nil {
		a.job.Stop()
	}
	if a.embedder != nil {
		a.embedder.Wait()
	}
	return a.close()
}

func (a *app) close() error {
	select {
	case <-a.stopSweep:
	default:
		close(a.stopSweep)
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
