// Package pipeline drives a run through the discover, define, build,
// and package stages against the store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/config"
	"github.com/shipsmith/shipsmith/internal/discovery"
	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/internal/store"
)

// Discoverer produces ranked problems from the configured sources.
type Discoverer interface {
	Discover(ctx context.Context, limit int) (*discovery.Result, error)
}

// Definer converts a problem into a product definition.
type Definer interface {
	Define(problem model.Problem) model.Product
}

// Generator writes product assets and returns the asset directory.
type Generator interface {
	Generate(product model.Product) (string, error)
}

// Packager creates a marketplace listing from a product and its assets.
type Packager interface {
	Package(product model.Product, assetDir string) (model.MarketplaceListing, error)
}

// Options parameterizes one pipeline run.
type Options struct {
	// ProblemID selects an existing problem. Required when StartFrom
	// skips the discover stage.
	ProblemID string
	// StartFrom is the first stage to execute. Empty means discover.
	StartFrom model.Stage
}

// Orchestrator owns run state and executes stages in order. Exactly one
// run proceeds per Run call; the orchestrator never resumes a terminal
// run.
type Orchestrator struct {
	cfg       config.PipelineConfig
	store     store.Store
	discover  Discoverer
	definer   Definer
	generator Generator
	packager  Packager
}

// New creates an orchestrator with all stage collaborators.
func New(cfg config.PipelineConfig, st store.Store, d Discoverer, def Definer, gen Generator, pkgr Packager) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		discover:  d,
		definer:   def,
		generator: gen,
		packager:  pkgr,
	}
}

// Run executes the pipeline from opts.StartFrom to the package stage.
//
// Every reachable failure (nothing discovered, missing problem, stage
// fault, persistence fault mid-run) ends as a terminal failed run with
// the cause in ErrorMessage; Run returns an error only for caller
// mistakes detected before any work is persisted, or when the initial
// run record cannot be written at all.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*model.PipelineRun, error) {
	run, err := o.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, run, opts), nil
}

// Begin validates opts and persists the initial run record without
// executing any stage. Callers that need the run id before work starts
// (the HTTP API) call Begin, hand the id back, and Execute in the
// background.
func (o *Orchestrator) Begin(ctx context.Context, opts Options) (*model.PipelineRun, error) {
	start := opts.StartFrom
	if start == "" {
		start = model.StageDiscover
	}
	if !start.Known() {
		return nil, eris.Errorf("pipeline: unknown stage %q", start)
	}
	if start != model.StageDiscover && opts.ProblemID == "" {
		return nil, eris.New("pipeline: problem ID required when skipping discovery")
	}

	run := model.NewPipelineRun(start)
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return run, nil
}

// Execute runs the stages of a run created by Begin and always returns
// the run in a terminal state.
func (o *Orchestrator) Execute(ctx context.Context, run *model.PipelineRun, opts Options) *model.PipelineRun {
	start := run.Stage

	log := zap.L().With(
		zap.String("start_from", string(start)),
		zap.String("run_id", run.ID),
	)
	log.Info("pipeline: run started")

	// Stage 1: resolve the problem.
	var problem *model.Problem
	if start == model.StageDiscover {
		p, err := o.discoverStage(ctx, run)
		if err != nil {
			return o.failRun(ctx, run, stringifyCause(err))
		}
		if p == nil {
			return o.failRun(ctx, run, "no problems discovered")
		}
		problem = p
	} else {
		p, err := o.store.GetProblem(ctx, opts.ProblemID)
		if err != nil {
			return o.failRun(ctx, run, stringifyCause(err))
		}
		if p == nil {
			return o.failRun(ctx, run, "problem not found")
		}
		run.AppendLog("Resuming with problem: %s", p.Title)
		problem = p
	}
	run.ProblemID = problem.ID

	// Stage 2: define.
	var product *model.Product
	if start.AtOrBefore(model.StageDefine) {
		p, err := o.defineStage(ctx, run, *problem)
		if err != nil {
			return o.failRun(ctx, run, stringifyCause(err))
		}
		run.ProductID = p.ID
		product = p
	}

	// Stage 3: build.
	if start.AtOrBefore(model.StageBuild) {
		if product == nil {
			products, err := o.store.ListProducts(ctx, 1)
			if err != nil {
				return o.failRun(ctx, run, stringifyCause(err))
			}
			if len(products) == 0 {
				return o.failRun(ctx, run, "no product found to build")
			}
			product = &products[0]
			run.ProductID = product.ID
			run.AppendLog("Resuming with product: %s", product.Title)
		}

		assetDir, err := o.buildStage(ctx, run, *product)
		if err != nil {
			return o.failRun(ctx, run, stringifyCause(err))
		}
		run.Artifacts = append(run.Artifacts, assetDir)
	}

	// Stage 4: package.
	if start.AtOrBefore(model.StagePackage) {
		if len(run.Artifacts) == 0 {
			return o.failRun(ctx, run, "no product artifacts found")
		}
		if product == nil {
			// Unreachable today (build always resolves a product),
			// kept as a guard for future stage reordering.
			return o.failRun(ctx, run, "no product found to build")
		}

		listing, err := o.packageStage(ctx, run, *product, run.Artifacts[len(run.Artifacts)-1])
		if err != nil {
			return o.failRun(ctx, run, stringifyCause(err))
		}
		run.ListingID = listing.ID
	}

	return o.completeRun(ctx, run)
}

// discoverStage runs discovery and persists the top-ranked problem.
// Returns (nil, nil) when nothing was discovered.
func (o *Orchestrator) discoverStage(ctx context.Context, run *model.PipelineRun) (*model.Problem, error) {
	if err := o.enterStage(ctx, run, model.StageDiscover); err != nil {
		return nil, err
	}

	limit := o.cfg.DiscoverLimit
	if limit <= 0 {
		limit = 10
	}

	result, err := o.discover.Discover(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "discovery stage")
	}
	for _, w := range result.Warnings {
		run.AppendLog("Warning: %s", w)
	}
	if len(result.Problems) == 0 {
		run.AppendLog("No problems discovered")
		return nil, nil
	}

	problem := result.Problems[0]
	if err := o.store.SaveProblem(ctx, problem); err != nil {
		return nil, eris.Wrap(err, "discovery stage: save problem")
	}

	run.AppendLog("Discovered problem: %s", problem.Title)
	run.AppendLog("Confidence: %.2f, Frequency: %d, Recency: %.2f",
		problem.ConfidenceScore, problem.FrequencyScore, problem.RecencyScore)
	return &problem, nil
}

func (o *Orchestrator) defineStage(ctx context.Context, run *model.PipelineRun, problem model.Problem) (*model.Product, error) {
	if err := o.enterStage(ctx, run, model.StageDefine); err != nil {
		return nil, err
	}

	product := o.definer.Define(problem)
	if err := o.store.SaveProduct(ctx, product); err != nil {
		return nil, eris.Wrap(err, "definition stage: save product")
	}

	run.AppendLog("Defined product: %s", product.Title)
	run.AppendLog("Type: %s", product.ProductType)
	run.AppendLog("Features: %d", len(product.Features))
	return &product, nil
}

func (o *Orchestrator) buildStage(ctx context.Context, run *model.PipelineRun, product model.Product) (string, error) {
	if err := o.enterStage(ctx, run, model.StageBuild); err != nil {
		return "", err
	}

	assetDir, err := o.generator.Generate(product)
	if err != nil {
		return "", eris.Wrap(err, "build stage")
	}

	run.AppendLog("Generated assets in: %s", assetDir)
	return assetDir, nil
}

func (o *Orchestrator) packageStage(ctx context.Context, run *model.PipelineRun, product model.Product, assetDir string) (*model.MarketplaceListing, error) {
	if err := o.enterStage(ctx, run, model.StagePackage); err != nil {
		return nil, err
	}

	listing, err := o.packager.Package(product, assetDir)
	if err != nil {
		return nil, eris.Wrap(err, "packaging stage")
	}
	if err := o.store.SaveListing(ctx, listing); err != nil {
		return nil, eris.Wrap(err, "packaging stage: save listing")
	}

	run.AppendLog("Created marketplace listing: %s", listing.Title)
	run.AppendLog("Pricing: $%.2f (impulse) / $%.2f (anchor)", listing.ImpulsePrice, listing.AnchorPrice)
	run.AppendLog("Bundle: %s", listing.AssetBundlePath)
	return &listing, nil
}

// enterStage records the stage transition and persists the run before
// any stage work happens, so a crash mid-stage leaves an accurate
// record of where it got to.
func (o *Orchestrator) enterStage(ctx context.Context, run *model.PipelineRun, stage model.Stage) error {
	run.Stage = stage
	run.AppendLog("Starting %s stage", stage)
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return eris.Wrapf(err, "persist run at %s", stage)
	}
	return nil
}

func (o *Orchestrator) completeRun(ctx context.Context, run *model.PipelineRun) *model.PipelineRun {
	now := time.Now().UTC()
	run.Status = model.StatusSuccess
	run.CompletedAt = &now
	run.AppendLog("Pipeline completed successfully")
	if err := o.store.UpdateRun(ctx, run); err != nil {
		zap.L().Warn("pipeline: persist completed run", zap.String("run_id", run.ID), zap.Error(err))
	}
	zap.L().Info("pipeline: run succeeded", zap.String("run_id", run.ID), zap.String("listing_id", run.ListingID))
	return run
}

// failRun marks the run failed and persists it. Partial progress from
// earlier stages stays persisted; there is no rollback.
func (o *Orchestrator) failRun(ctx context.Context, run *model.PipelineRun, message string) *model.PipelineRun {
	now := time.Now().UTC()
	run.Status = model.StatusFailed
	run.ErrorMessage = message
	run.CompletedAt = &now
	run.AppendLog("Pipeline failed: %s", message)
	if err := o.store.UpdateRun(ctx, run); err != nil {
		zap.L().Warn("pipeline: persist failed run", zap.String("run_id", run.ID), zap.Error(err))
	}
	zap.L().Warn("pipeline: run failed", zap.String("run_id", run.ID), zap.String("error", message))
	return run
}

func stringifyCause(err error) string {
	return fmt.Sprintf("pipeline error: %s", err.Error())
}
