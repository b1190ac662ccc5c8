// Package interest maintains per-user interest vectors: the centroid of the
// embeddings of posts a user recently liked or watched to completion.
package interest

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/highlights/internal/apperr"
	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/engagement"
	"github.com/onnwee/highlights/internal/tracing"
	"github.com/onnwee/highlights/internal/vector"
)

// Aggregation bounds.
const (
	DefaultWindow = 21 * 24 * time.Hour
	MaxEvents     = 500
	MaxEmbeddings = 200
	MinEmbeddings = 3
)

// AggregatorConfig wires the aggregator's collaborators.
type AggregatorConfig struct {
	Events     engagement.Log
	Embeddings vector.EmbeddingStore
	Interests  vector.InterestStore
	Window     time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Result reports the outcome of an aggregation. Count is the number of
// embeddings averaged; it is zero when Skipped.
type Result struct {
	Count   int
	Skipped bool
}

// Aggregator recomputes user interest vectors.
type Aggregator struct {
	cfg AggregatorConfig
}

// NewAggregator creates a new Aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{cfg: cfg}
}

// Aggregate recomputes the interest vector of userID from scratch. Users
// with fewer than MinEmbeddings usable embeddings are skipped and any
// existing vector is left untouched. Only privileged callers may aggregate.
func (a *Aggregator) Aggregate(ctx context.Context, caller auth.Caller, userID string) (res Result, err error) {
	const op = "interest.Aggregate"

	ctx, endSpan := tracing.StartSpan(ctx, op, attribute.String("user.id", userID))
	defer func() { endSpan(err) }()

	if !caller.Authenticated() {
		return Result{}, apperr.E(apperr.ErrUnauthorized, op, nil)
	}
	if !caller.Privileged() {
		return Result{}, apperr.E(apperr.ErrForbidden, op, nil)
	}
	if userID == "" {
		return Result{}, apperr.Invalid(op, "user_id is required")
	}

	since := a.cfg.Now().Add(-a.cfg.Window)
	postIDs, err := a.cfg.Events.PositivePostIDs(ctx, userID, since, MaxEvents)
	if err != nil {
		return Result{}, apperr.E(apperr.ErrStoreFailed, op, err)
	}
	if len(postIDs) == 0 {
		return Result{Skipped: true}, nil
	}

	embeddings, err := a.cfg.Embeddings.GetMany(ctx, postIDs, MaxEmbeddings)
	if err != nil {
		return Result{}, apperr.E(apperr.ErrStoreFailed, op, err)
	}

	model, vectors := a.usable(ctx, userID, embeddings)
	if len(vectors) < MinEmbeddings {
		a.cfg.Logger.DebugContext(ctx, "not enough embeddings for interest vector",
			slog.String("user_id", userID),
			slog.Int("engaged_posts", len(postIDs)),
			slog.Int("usable_embeddings", len(vectors)))
		return Result{Skipped: true}, nil
	}

	err = a.cfg.Interests.Upsert(ctx, vector.UserInterest{
		UserID:  userID,
		ModelID: model,
		Vector:  vector.Centroid(vectors),
	})
	if err != nil {
		return Result{}, apperr.E(apperr.ErrStoreFailed, op, err)
	}

	a.cfg.Logger.InfoContext(ctx, "interest vector updated",
		slog.String("user_id", userID),
		slog.String("model", model),
		slog.Int("count", len(vectors)))
	return Result{Count: len(vectors)}, nil
}

// usable keeps the embeddings of the dominant model whose dimension matches
// the first of them. Ties between models go to the model seen first.
func (a *Aggregator) usable(ctx context.Context, userID string, embeddings []vector.PostEmbedding) (string, [][]float32) {
	if len(embeddings) == 0 {
		return "", nil
	}

	counts := make(map[string]int)
	order := make([]string, 0, 1)
	for _, e := range embeddings {
		if counts[e.ModelID] == 0 {
			order = append(order, e.ModelID)
		}
		counts[e.ModelID]++
	}
	model := order[0]
	for _, m := range order[1:] {
		if counts[m] > counts[model] {
			model = m
		}
	}

	dim := -1
	vectors := make([][]float32, 0, counts[model])
	var otherModel, badDim int
	for _, e := range embeddings {
		if e.ModelID != model {
			otherModel++
			continue
		}
		if dim < 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim || dim == 0 {
			badDim++
			continue
		}
		vectors = append(vectors, e.Vector)
	}

	if otherModel > 0 || badDim > 0 {
		a.cfg.Logger.WarnContext(ctx, "discarded mismatched embeddings",
			slog.String("user_id", userID),
			slog.String("model", model),
			slog.Int("other_model", otherModel),
			slog.Int("dimension_mismatch", badDim))
	}
	return model, vectors
}
