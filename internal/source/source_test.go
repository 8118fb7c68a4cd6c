package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipsmith/shipsmith/internal/model"
)

type stubAdapter struct {
	name       string
	configured bool
}

func (s *stubAdapter) Name() string       { return s.name }
func (s *stubAdapter) IsConfigured() bool { return s.configured }
func (s *stubAdapter) Discover(ctx context.Context, limit int) ([]model.Problem, error) {
	return nil, nil
}

func TestRegistry_Order(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{name: "hackernews", configured: true})
	r.Register(&stubAdapter{name: "github", configured: false})
	r.Register(&stubAdapter{name: "reddit", configured: true})

	assert.Equal(t, []string{"hackernews", "github", "reddit"}, r.AllNames())

	configured := r.Configured()
	require.Len(t, configured, 2)
	assert.Equal(t, "hackernews", configured[0].Name())
	assert.Equal(t, "reddit", configured[1].Name())
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{name: "github"})

	a, err := r.Get("github")
	require.NoError(t, err)
	assert.Equal(t, "github", a.Name())

	_, err = r.Get("gitlab")
	assert.Error(t, err)
}

func TestCompositeScore_Weights(t *testing.T) {
	p := model.Problem{ConfidenceScore: 1, RecencyScore: 1, FrequencyScore: 15}
	assert.InDelta(t, 1.0, CompositeScore(p, 15), 0.001)

	p = model.Problem{ConfidenceScore: 0.5, RecencyScore: 0.5, FrequencyScore: 0}
	assert.InDelta(t, 0.35, CompositeScore(p, 15), 0.001)
}

func TestCompositeScore_FrequencySaturates(t *testing.T) {
	at := model.Problem{FrequencyScore: 15}
	over := model.Problem{FrequencyScore: 9000}
	assert.InDelta(t, CompositeScore(at, 15), CompositeScore(over, 15), 0.001)
}

func TestCompositeScore_MonotoneInEachComponent(t *testing.T) {
	base := model.Problem{ConfidenceScore: 0.5, RecencyScore: 0.5, FrequencyScore: 5}

	for _, step := range []float64{0.1, 0.2, 0.5} {
		higherC := base
		higherC.ConfidenceScore = base.ConfidenceScore + step
		assert.Greater(t, CompositeScore(higherC, 15), CompositeScore(base, 15))

		higherR := base
		higherR.RecencyScore = base.RecencyScore + step
		assert.Greater(t, CompositeScore(higherR, 15), CompositeScore(base, 15))
	}

	higherF := base
	higherF.FrequencyScore = base.FrequencyScore + 5
	assert.Greater(t, CompositeScore(higherF, 15), CompositeScore(base, 15))

	// Non-decreasing even past saturation.
	saturated := base
	saturated.FrequencyScore = 100
	beyond := base
	beyond.FrequencyScore = 200
	assert.GreaterOrEqual(t, CompositeScore(beyond, 15), CompositeScore(saturated, 15))
}

func TestSortByComposite_StableOnTies(t *testing.T) {
	first := model.Problem{Title: "first", ConfidenceScore: 0.5, RecencyScore: 0.5, FrequencyScore: 5}
	second := model.Problem{Title: "second", ConfidenceScore: 0.5, RecencyScore: 0.5, FrequencyScore: 5}
	top := model.Problem{Title: "top", ConfidenceScore: 0.9, RecencyScore: 0.9, FrequencyScore: 15}

	problems := []model.Problem{first, second, top}
	SortByComposite(problems, 15)

	assert.Equal(t, "top", problems[0].Title)
	assert.Equal(t, "first", problems[1].Title)
	assert.Equal(t, "second", problems[2].Title)
}
