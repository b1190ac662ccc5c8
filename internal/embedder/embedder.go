// Package embedder computes and stores post embeddings, skipping posts whose
// canonical text has not changed since the last successful embed.
package embedder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/highlights/internal/apperr"
	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/content"
	"github.com/onnwee/highlights/internal/embedding"
	"github.com/onnwee/highlights/internal/jobs"
	"github.com/onnwee/highlights/internal/post"
	"github.com/onnwee/highlights/internal/tags"
	"github.com/onnwee/highlights/internal/tracing"
	"github.com/onnwee/highlights/internal/vector"
)

// DefaultTagTimeout bounds a background tag dispatch.
const DefaultTagTimeout = 10 * time.Second

// TagDispatcher receives the text fields of every processed post.
type TagDispatcher interface {
	Dispatch(ctx context.Context, req tags.Request) error
}

// JobMetrics records background tag dispatch outcomes.
type JobMetrics interface {
	ObserveRun(jobType, status string, elapsed time.Duration)
	IncErrors(jobType, errorType string)
}

// Config wires the embedder's collaborators.
type Config struct {
	Posts      post.Repository
	Embeddings vector.EmbeddingStore
	Provider   embedding.Provider
	Tags       TagDispatcher // optional
	Logger     *slog.Logger
	Metrics    *Metrics   // optional
	JobMetrics JobMetrics // optional
	TagTimeout time.Duration
}

// Result reports what EmbedPost did.
type Result struct {
	Skipped bool
}

// Service embeds posts.
type Service struct {
	cfg Config
	wg  sync.WaitGroup
}

// NewService creates a new embedder.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TagTimeout == 0 {
		cfg.TagTimeout = DefaultTagTimeout
	}
	return &Service{cfg: cfg}
}

// EmbedPost embeds the post unless its stored content hash is current.
// The caller must own the post or be privileged. Tag extraction is dispatched
// in the background for every authorized call, including skipped ones.
func (s *Service) EmbedPost(ctx context.Context, caller auth.Caller, postID string) (res Result, err error) {
	const op = "embedder.EmbedPost"

	ctx, endSpan := tracing.StartSpan(ctx, op, attribute.String("post.id", postID))
	defer func() {
		endSpan(err)
		s.observe(res, err)
	}()

	if !caller.Authenticated() {
		return Result{}, apperr.E(apperr.ErrUnauthorized, op, nil)
	}
	if postID == "" {
		return Result{}, apperr.Invalid(op, "post_id is required")
	}

	p, err := s.cfg.Posts.GetByID(ctx, postID)
	if errors.Is(err, post.ErrPostNotFound) {
		return Result{}, apperr.E(apperr.ErrNotFound, op, err)
	}
	if err != nil {
		return Result{}, apperr.E(apperr.ErrStoreFailed, op, err)
	}
	if !caller.CanActOn(p.OwnerID) {
		return Result{}, apperr.E(apperr.ErrForbidden, op, nil)
	}

	fp := content.Of(content.Fields{
		Description: p.Description,
		Sport:       p.Sport,
		Team:        p.Team,
	})

	s.dispatchTags(ctx, tags.Request{
		PostID:  p.ID,
		Caption: p.Description,
		Sport:   p.Sport,
		Team:    p.Team,
	})

	stored, err := s.cfg.Embeddings.Get(ctx, p.ID)
	switch {
	case errors.Is(err, vector.ErrNotFound):
		stored = nil
	case err != nil:
		return Result{}, apperr.E(apperr.ErrStoreFailed, op, err)
	}

	storedHash := ""
	if stored != nil {
		storedHash = stored.ContentHash
	}
	if !content.NeedsEmbedding(stored != nil, storedHash, fp.Hash) {
		s.cfg.Logger.DebugContext(ctx, "post embedding up to date",
			slog.String("post_id", p.ID),
			slog.String("content_hash", fp.Hash))
		return Result{Skipped: true}, nil
	}

	vec, err := s.cfg.Provider.Embed(ctx, fp.Blob)
	if err != nil {
		return Result{}, apperr.E(apperr.ErrEmbeddingFailed, op, err)
	}

	err = s.cfg.Embeddings.Upsert(ctx, vector.PostEmbedding{
		PostID:      p.ID,
		ModelID:     s.cfg.Provider.Model(),
		ContentHash: fp.Hash,
		Vector:      vec,
	})
	if err != nil {
		return Result{}, apperr.E(apperr.ErrStoreFailed, op, err)
	}

	s.cfg.Logger.InfoContext(ctx, "post embedded",
		slog.String("post_id", p.ID),
		slog.String("model", s.cfg.Provider.Model()),
		slog.Int("dimensions", len(vec)))
	return Result{}, nil
}

// Wait blocks until all in-flight tag dispatches have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) dispatchTags(ctx context.Context, req tags.Request) {
	if s.cfg.Tags == nil {
		return
	}

	// Detached from the request so a finished response does not cancel it.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TagTimeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		start := time.Now()
		err := s.cfg.Tags.Dispatch(dctx, req)
		status := jobs.StatusSuccess
		if err != nil {
			status = jobs.StatusFailure
			s.cfg.Logger.WarnContext(dctx, "tag extraction failed",
				slog.String("post_id", req.PostID),
				slog.String("error", err.Error()))
			if s.cfg.JobMetrics != nil {
				s.cfg.JobMetrics.IncErrors(jobs.JobTypeTagExtraction, jobs.ErrorTypeDispatch)
			}
		}
		if s.cfg.JobMetrics != nil {
			s.cfg.JobMetrics.ObserveRun(jobs.JobTypeTagExtraction, status, time.Since(start))
		}
	}()
}

func (s *Service) observe(res Result, err error) {
	if s.cfg.Metrics == nil {
		return
	}
	switch {
	case err != nil:
		s.cfg.Metrics.IncOutcome(OutcomeFailed)
	case res.Skipped:
		s.cfg.Metrics.IncOutcome(OutcomeSkipped)
	default:
		s.cfg.Metrics.IncOutcome(OutcomeEmbedded)
	}
}
