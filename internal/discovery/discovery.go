// Package discovery fans discovery out across configured source adapters
// and merges their results into one deduplicated, ranked problem list.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/internal/source"
)

// Warning records a source that failed without aborting discovery.
type Warning struct {
	Adapter string
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("source %s failed: %v", w.Adapter, w.Err)
}

// Result is the outcome of one discovery round. Warnings carry per-source
// failures; a Result with warnings and an empty problem list is still a
// successful round.
type Result struct {
	Problems []model.Problem
	Warnings []Warning
}

// Aggregator runs all configured adapters and merges their output.
type Aggregator struct {
	registry *source.Registry
	freqNorm int
}

// NewAggregator creates an aggregator over the given adapter registry.
// freqNorm is the frequency saturation point used for the merged ranking.
func NewAggregator(registry *source.Registry, freqNorm int) *Aggregator {
	if freqNorm <= 0 {
		freqNorm = 15
	}
	return &Aggregator{registry: registry, freqNorm: freqNorm}
}

// Discover queries every configured adapter concurrently and returns up
// to limit problems, ranked by composite score. Adapter failures become
// warnings, never errors; zero configured adapters yields an empty
// result. The merge is deterministic: adapters contribute in
// registration order regardless of completion order.
func (a *Aggregator) Discover(ctx context.Context, limit int) (*Result, error) {
	if limit < 1 {
		limit = 1
	}

	adapters := a.registry.Configured()
	log := zap.L().With(zap.Int("adapters", len(adapters)), zap.Int("limit", limit))

	if len(adapters) == 0 {
		log.Warn("discovery: no sources configured")
		return &Result{}, nil
	}

	// One slot per adapter keeps the merge order stable under
	// concurrency.
	slots := make([][]model.Problem, len(adapters))
	errs := make([]error, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range adapters {
		g.Go(func() error {
			problems, err := adapter.Discover(gctx, limit)
			if err != nil {
				errs[i] = err
				return nil
			}
			slots[i] = problems
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	var merged []model.Problem
	for i, adapter := range adapters {
		if errs[i] != nil {
			log.Warn("discovery: source failed",
				zap.String("adapter", adapter.Name()), zap.Error(errs[i]))
			result.Warnings = append(result.Warnings, Warning{Adapter: adapter.Name(), Err: errs[i]})
			continue
		}
		merged = append(merged, slots[i]...)
	}

	merged = dedupeByTitle(merged)
	source.SortByComposite(merged, a.freqNorm)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	result.Problems = merged

	log.Info("discovery: round complete",
		zap.Int("problems", len(result.Problems)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// dedupeByTitle keeps the first problem for each case-folded, trimmed title.
func dedupeByTitle(problems []model.Problem) []model.Problem {
	folder := cases.Fold()
	seen := make(map[string]struct{}, len(problems))
	out := make([]model.Problem, 0, len(problems))
	for _, p := range problems {
		key := folder.String(strings.TrimSpace(p.Title))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
