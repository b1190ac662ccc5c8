// Package ranking orders candidate posts into a personalized feed.
//
// Every candidate is scored independently from its own 7-day engagement
// metrics, its age and its similarity to the requesting user's interest
// vector:
//
//	score = 0.28*completion + 0.22*avgWatch + 0.14*likes + 0.12*shares
//	      + 0.10*freshness + 0.08*similarity + 0.06*views
//
// Count-like metrics are compressed with ln(1+x) and freshness decays as
// exp(-hours/18). The weights are fixed product tuning and are not
// configurable.
//
// Selection:
//
// The top limit-explorationCount posts form the main bucket. The next
// TailPoolSize posts are shuffled and the first explorationCount of them are
// added as an exploration bucket, then the union is re-sorted by score.
// Repeated calls with the same data may therefore return different feeds.
// The shuffle is injected through Config.Shuffle so tests can make it
// deterministic.
package ranking
