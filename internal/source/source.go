// Package source defines the problem-source adapter contract and the
// shared scoring/extraction policy adapters use to normalize raw items.
package source

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/shipsmith/shipsmith/internal/model"
)

// Adapter discovers problems from one external source.
//
// Discover must not fail for ordinary empty results, and must contain
// per-request faults internally (log and continue with partial results).
// It returns an error only when the source is systemically unusable, and
// callers are expected to degrade rather than abort on that error.
type Adapter interface {
	// Name identifies the adapter (stable, lowercase).
	Name() string
	// IsConfigured reports whether required credentials/settings are
	// present. Pure configuration check, no I/O.
	IsConfigured() bool
	// Discover fetches up to limit problems from the source.
	Discover(ctx context.Context, limit int) ([]model.Problem, error)
}

// Registry maps adapter names to their implementations.
type Registry struct {
	adapters map[string]Adapter
	order    []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	r.adapters[name] = a
	r.order = append(r.order, name)
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, eris.Errorf("source: unknown adapter %q", name)
	}
	return a, nil
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	result := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.adapters[name])
	}
	return result
}

// Configured returns the configured adapters in registration order.
func (r *Registry) Configured() []Adapter {
	var result []Adapter
	for _, name := range r.order {
		if r.adapters[name].IsConfigured() {
			result = append(result, r.adapters[name])
		}
	}
	return result
}

// AllNames returns all registered adapter names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// CompositeScore blends confidence, recency, and normalized frequency
// into the ranking score. freqNorm is the frequency saturation point.
func CompositeScore(p model.Problem, freqNorm int) float64 {
	if freqNorm <= 0 {
		freqNorm = 1
	}
	freq := float64(p.FrequencyScore) / float64(freqNorm)
	if freq > 1 {
		freq = 1
	}
	return 0.4*p.ConfidenceScore + 0.3*p.RecencyScore + 0.3*freq
}

// SortByComposite orders problems by composite score descending, in
// place. The sort is stable so equal scores keep their input order.
func SortByComposite(problems []model.Problem, freqNorm int) {
	sort.SliceStable(problems, func(i, j int) bool {
		return CompositeScore(problems[i], freqNorm) > CompositeScore(problems[j], freqNorm)
	})
}
