package ranking

import (
	"math"
	"time"
)

// Signal weights. They sum to 1.
const (
	WeightCompletion = 0.28
	WeightAvgWatch   = 0.22
	WeightLikes      = 0.14
	WeightShares     = 0.12
	WeightFreshness  = 0.10
	WeightSimilarity = 0.08
	WeightViews      = 0.06
)

// FreshnessDecayHours is the e-folding time of the freshness signal.
const FreshnessDecayHours = 18.0

// Signals are the per-candidate inputs to the composite score.
type Signals struct {
	Completion float64 `json:"completion"`
	AvgWatch   float64 `json:"avg_watch"`
	Likes      float64 `json:"likes"`
	Shares     float64 `json:"shares"`
	Freshness  float64 `json:"freshness"`
	Similarity float64 `json:"similarity"`
	Views      float64 `json:"views"`
}

// Scored is a candidate with its composite score.
type Scored struct {
	PostID  string  `json:"post_id"`
	Score   float64 `json:"score"`
	Signals Signals `json:"signals"`
}

// Freshness computes exp(-hours/18) for a post created at createdAt.
// A post created now scores 1.0, one 18 hours old about 0.37.
// Creation times in the future count as age zero.
func Freshness(createdAt, now time.Time) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / FreshnessDecayHours)
}

// LogCount compresses a non-negative count or duration with ln(1+x).
// Negative inputs are treated as zero.
func LogCount(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log1p(x)
}

// Clamp01 clamps x to [0, 1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x > 0 {
		return x
	}
	return 0
}

// Composite combines signals with the fixed weights.
func Composite(s Signals) float64 {
	return WeightCompletion*s.Completion +
		WeightAvgWatch*s.AvgWatch +
		WeightLikes*s.Likes +
		WeightShares*s.Shares +
		WeightFreshness*s.Freshness +
		WeightSimilarity*s.Similarity +
		WeightViews*s.Views
}
