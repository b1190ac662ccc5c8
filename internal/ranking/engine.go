package ranking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/highlights/internal/apperr"
	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/post"
	"github.com/onnwee/highlights/internal/tags"
	"github.com/onnwee/highlights/internal/tracing"
	"github.com/onnwee/highlights/internal/vector"
)

// Retrieval bounds.
const (
	DefaultLimit     = 30
	MinLimit         = 5
	MaxLimit         = 60
	MaxCandidates    = 400
	MaxTaggedPosts   = 800
	MaxNeighbors     = 300
	debugTopScoreLog = 5
)

// CandidateSource lists posts from the 7-day metrics view.
type CandidateSource interface {
	ListCandidates(ctx context.Context, sport string, limit int) ([]post.Candidate, error)
}

// TagIndex resolves hashtags to tagged posts.
type TagIndex interface {
	Resolve(ctx context.Context, name string) (id int64, found bool, err error)
	PostIDs(ctx context.Context, tagID int64, limit int) ([]string, error)
}

// FeedRequest holds the optional feed filters.
type FeedRequest struct {
	Limit   int
	Sport   string
	Hashtag string
}

// Config wires the engine's collaborators.
type Config struct {
	Candidates CandidateSource
	Tags       TagIndex
	Interests  vector.InterestStore
	Neighbors  vector.NeighborIndex
	Shuffle    ShuffleFunc
	Now        func() time.Time
	Logger     *slog.Logger
	Metrics    *Metrics // optional
}

// Engine ranks feeds.
type Engine struct {
	cfg Config
}

// NewEngine creates a new Engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Shuffle == nil {
		cfg.Shuffle = DefaultShuffle
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{cfg: cfg}
}

// ClampLimit applies the default and the [5, 60] bounds.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	return min(max(limit, MinLimit), MaxLimit)
}

// RankFeed returns the ordered post ids of the caller's feed.
func (e *Engine) RankFeed(ctx context.Context, caller auth.Caller, req FeedRequest) ([]string, error) {
	scored, err := e.Rank(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.PostID
	}
	return ids, nil
}

// Rank is RankFeed with the per-signal score breakdown.
func (e *Engine) Rank(ctx context.Context, caller auth.Caller, req FeedRequest) (out []Scored, err error) {
	const op = "ranking.RankFeed"

	ctx, endSpan := tracing.StartSpan(ctx, op)
	defer func() {
		endSpan(err)
		e.observe(out, err)
	}()

	if !caller.Authenticated() {
		return nil, apperr.E(apperr.ErrUnauthorized, op, nil)
	}
	limit := ClampLimit(req.Limit)

	candidates, err := e.cfg.Candidates.ListCandidates(ctx, strings.TrimSpace(req.Sport), MaxCandidates)
	if err != nil {
		return nil, apperr.E(apperr.ErrStoreFailed, op, err)
	}

	if hashtag := tags.Normalize(req.Hashtag); hashtag != "" {
		candidates, err = e.filterByTag(ctx, candidates, hashtag)
		if err != nil {
			return nil, apperr.E(apperr.ErrStoreFailed, op, err)
		}
	}
	tracing.SetAttributes(ctx, attribute.Int("feed.candidates", len(candidates)))
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.ObserveCandidates(len(candidates))
	}
	if len(candidates) == 0 {
		return []Scored{}, nil
	}

	similarity, err := e.similarities(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.E(apperr.ErrStoreFailed, op, err)
	}

	now := e.cfg.Now()
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = score(c, similarity[c.PostID], now)
	}

	out = Select(scored, limit, e.cfg.Shuffle)

	if e.cfg.Logger.Enabled(ctx, slog.LevelDebug) {
		top := out[:min(debugTopScoreLog, len(out))]
		e.cfg.Logger.DebugContext(ctx, "feed ranked",
			slog.String("user_id", caller.UserID),
			slog.Int("candidates", len(candidates)),
			slog.Int("returned", len(out)),
			slog.Any("top", top))
	}
	return out, nil
}

func score(c post.Candidate, similarity float64, now time.Time) Scored {
	s := Signals{
		Completion: Clamp01(c.CompletionRate7d),
		AvgWatch:   LogCount(c.AvgWatchSeconds7d),
		Likes:      LogCount(float64(c.Likes7d)),
		Shares:     LogCount(float64(c.Shares7d)),
		Freshness:  Freshness(c.CreatedAt, now),
		Similarity: Clamp01(similarity),
		Views:      LogCount(float64(c.Views7d)),
	}
	return Scored{PostID: c.PostID, Score: Composite(s), Signals: s}
}

// filterByTag keeps candidates carrying hashtag. Unknown or unused tags
// yield no candidates.
func (e *Engine) filterByTag(ctx context.Context, candidates []post.Candidate, hashtag string) ([]post.Candidate, error) {
	if e.cfg.Tags == nil {
		return nil, nil
	}
	id, found, err := e.cfg.Tags.Resolve(ctx, hashtag)
	if err != nil || !found {
		return nil, err
	}
	tagged, err := e.cfg.Tags.PostIDs(ctx, id, MaxTaggedPosts)
	if err != nil || len(tagged) == 0 {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(tagged))
	for _, id := range tagged {
		allowed[id] = struct{}{}
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if _, ok := allowed[c.PostID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// similarities maps post ids near the user's interest vector to their
// similarity. A missing or unreadable interest vector yields an empty map;
// a failing neighbor query is returned as an error.
func (e *Engine) similarities(ctx context.Context, userID string) (map[string]float64, error) {
	if e.cfg.Interests == nil || e.cfg.Neighbors == nil {
		return nil, nil
	}

	interest, err := e.cfg.Interests.Get(ctx, userID)
	if errors.Is(err, vector.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		e.cfg.Logger.WarnContext(ctx, "interest vector unavailable, ranking without similarity",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.IncDegraded()
		}
		return nil, nil
	}
	if len(interest.Vector) == 0 {
		return nil, nil
	}

	neighbors, err := e.cfg.Neighbors.NearestNeighbors(ctx, interest.Vector, MaxNeighbors)
	if err != nil {
		return nil, err
	}
	sim := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		sim[n.PostID] = vector.SimilarityFromDistance(n.Distance)
	}
	return sim, nil
}

func (e *Engine) observe(out []Scored, err error) {
	if e.cfg.Metrics == nil {
		return
	}
	switch {
	case err != nil:
		e.cfg.Metrics.IncRequests(ResultError)
	case len(out) == 0:
		e.cfg.Metrics.IncRequests(ResultEmpty)
	default:
		e.cfg.Metrics.IncRequests(ResultOK)
	}
}
