package source

import "time"

// Boost adds to the confidence score once a metric exceeds its threshold.
type Boost struct {
	Threshold int
	Add       float64
}

// RecencyBucket maps a maximum age to a fixed recency score. Buckets are
// evaluated in order, so they must be sorted by ascending age.
type RecencyBucket struct {
	MaxAgeDays int
	Score      float64
}

// ScorePolicy holds the per-source heuristics for turning raw engagement
// signals into confidence and recency scores. The constants are
// replaceable policy, not derived truths; swapping a policy never
// requires touching the aggregator.
type ScorePolicy struct {
	BaseConfidence  float64
	EngagementBoost []Boost // applied against the primary metric (votes, points, reactions)
	CommentBoost    []Boost // applied against the comment count
	RecencyBuckets  []RecencyBucket
	RecencyFloor    float64 // score for anything older than the last bucket
	FrequencyNorm   int     // saturation point for the adapter's own pre-ranking
}

// Confidence computes the clamped confidence score for the given
// engagement and comment counts.
func (p ScorePolicy) Confidence(engagement, comments int) float64 {
	score := p.BaseConfidence
	for _, b := range p.EngagementBoost {
		if engagement > b.Threshold {
			score += b.Add
		}
	}
	for _, b := range p.CommentBoost {
		if comments > b.Threshold {
			score += b.Add
		}
	}
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// Recency computes the age-bucketed recency score for an item created at
// the given time. Scores decrease monotonically with age.
func (p ScorePolicy) Recency(createdAt, now time.Time) float64 {
	ageDays := int(now.Sub(createdAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	for _, b := range p.RecencyBuckets {
		if ageDays <= b.MaxAgeDays {
			return b.Score
		}
	}
	return p.RecencyFloor
}
