// Package store persists problems, products, listings, and pipeline
// runs behind a driver-agnostic interface.
package store

import (
	"context"

	"github.com/shipsmith/shipsmith/internal/model"
)

// ProblemFilter specifies criteria for listing problems.
type ProblemFilter struct {
	Source model.Source `json:"source,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

// RunFilter specifies criteria for listing pipeline runs.
type RunFilter struct {
	Status model.Status `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// Store defines the persistence interface for the pipeline. Get
// operations return (nil, nil) when the record does not exist; absence
// is an ordinary outcome, not an error.
type Store interface {
	// Problems
	SaveProblem(ctx context.Context, problem model.Problem) error
	GetProblem(ctx context.Context, id string) (*model.Problem, error)
	ListProblems(ctx context.Context, filter ProblemFilter) ([]model.Problem, error)

	// Products
	SaveProduct(ctx context.Context, product model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	// ListProducts returns products newest first.
	ListProducts(ctx context.Context, limit int) ([]model.Product, error)

	// Listings
	SaveListing(ctx context.Context, listing model.MarketplaceListing) error
	GetListing(ctx context.Context, id string) (*model.MarketplaceListing, error)
	ListListings(ctx context.Context, limit int) ([]model.MarketplaceListing, error)

	// Runs
	CreateRun(ctx context.Context, run *model.PipelineRun) error
	UpdateRun(ctx context.Context, run *model.PipelineRun) error
	GetRun(ctx context.Context, id string) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100
