package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScorePolicy_Confidence(t *testing.T) {
	policy := DefaultHackerNewsPolicy

	tests := []struct {
		name       string
		engagement int
		comments   int
		want       float64
	}{
		{name: "no signal", engagement: 0, comments: 0, want: 0.5},
		{name: "first engagement boost", engagement: 11, comments: 0, want: 0.7},
		{name: "both engagement boosts", engagement: 51, comments: 0, want: 0.8},
		{name: "first comment boost", engagement: 0, comments: 6, want: 0.6},
		{name: "everything capped at one", engagement: 100, comments: 100, want: 1.0},
		{name: "thresholds are strict", engagement: 10, comments: 5, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, policy.Confidence(tt.engagement, tt.comments), 0.001)
		})
	}
}

func TestScorePolicy_Recency(t *testing.T) {
	policy := DefaultHackerNewsPolicy
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{name: "hours old", age: 6 * time.Hour, want: 1.0},
		{name: "three days", age: 3 * 24 * time.Hour, want: 0.8},
		{name: "two weeks", age: 14 * 24 * time.Hour, want: 0.5},
		{name: "two months", age: 60 * 24 * time.Hour, want: 0.2},
		{name: "future timestamp clamps to fresh", age: -2 * time.Hour, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, policy.Recency(now.Add(-tt.age), now), 0.001)
		})
	}
}

func TestScorePolicy_RecencyMonotone(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for _, policy := range []ScorePolicy{DefaultHackerNewsPolicy, DefaultGitHubPolicy, DefaultRedditPolicy} {
		prev := 2.0
		for days := 0; days <= 120; days += 5 {
			score := policy.Recency(now.AddDate(0, 0, -days), now)
			assert.LessOrEqual(t, score, prev, "recency must not increase with age (days=%d)", days)
			prev = score
		}
		assert.Equal(t, policy.RecencyFloor, prev)
	}
}
