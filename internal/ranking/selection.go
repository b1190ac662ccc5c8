package ranking

import (
	"math/rand/v2"
	"sort"
)

// Selection bounds.
const (
	ExplorationRatio = 0.18
	MinExploration   = 2
	TailPoolSize     = 150
)

// ShuffleFunc permutes n elements using swap, like rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// DefaultShuffle uses the global math/rand/v2 source.
func DefaultShuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// ExplorationCount returns max(2, floor(limit*0.18)).
func ExplorationCount(limit int) int {
	return max(MinExploration, int(float64(limit)*ExplorationRatio))
}

// MainCount returns the size of the main bucket for limit.
func MainCount(limit int) int {
	return max(0, limit-ExplorationCount(limit))
}

// sortScored orders by descending score, then ascending post id.
func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].PostID < s[j].PostID
	})
}

// Select picks at most limit posts from scored: the best MainCount by score
// plus ExplorationCount drawn uniformly from the next TailPoolSize. The
// result is sorted by score. scored is reordered in place.
func Select(scored []Scored, limit int, shuffle ShuffleFunc) []Scored {
	if limit <= 0 || len(scored) == 0 {
		return []Scored{}
	}
	if shuffle == nil {
		shuffle = DefaultShuffle
	}

	sortScored(scored)

	mainCount := min(MainCount(limit), len(scored))
	out := make([]Scored, 0, limit)
	out = append(out, scored[:mainCount]...)

	rest := scored[mainCount:]
	tail := make([]Scored, min(TailPoolSize, len(rest)))
	copy(tail, rest)
	shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })

	explore := min(ExplorationCount(limit), len(tail))
	out = append(out, tail[:explore]...)

	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
