package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipsmith/shipsmith/internal/config"
	"github.com/shipsmith/shipsmith/internal/discovery"
	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/internal/store"
)

// memStore is an in-memory Store that records the order of mutations.
type memStore struct {
	events   []string
	problems map[string]model.Problem
	products []model.Product
	listings map[string]model.MarketplaceListing
	runs     map[string]model.PipelineRun

	createRunErr   error
	updateRunErr   error
	saveProductErr error
}

func newMemStore() *memStore {
	return &memStore{
		problems: make(map[string]model.Problem),
		listings: make(map[string]model.MarketplaceListing),
		runs:     make(map[string]model.PipelineRun),
	}
}

func (m *memStore) record(format string, args ...any) {
	m.events = append(m.events, fmt.Sprintf(format, args...))
}

func (m *memStore) SaveProblem(ctx context.Context, p model.Problem) error {
	m.record("save_problem")
	m.problems[p.ID] = p
	return nil
}

func (m *memStore) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	p, ok := m.problems[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ListProblems(ctx context.Context, filter store.ProblemFilter) ([]model.Problem, error) {
	var out []model.Problem
	for _, p := range m.problems {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) SaveProduct(ctx context.Context, p model.Product) error {
	m.record("save_product")
	if m.saveProductErr != nil {
		return m.saveProductErr
	}
	m.products = append(m.products, p)
	return nil
}

func (m *memStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	// Newest first: products are appended in creation order.
	var out []model.Product
	for i := len(m.products) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.products[i])
	}
	return out, nil
}

func (m *memStore) SaveListing(ctx context.Context, l model.MarketplaceListing) error {
	m.record("save_listing")
	m.listings[l.ID] = l
	return nil
}

func (m *memStore) GetListing(ctx context.Context, id string) (*model.MarketplaceListing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memStore) ListListings(ctx context.Context, limit int) ([]model.MarketplaceListing, error) {
	var out []model.MarketplaceListing
	for _, l := range m.listings {
		out = append(out, l)
	}
	return out, nil
}

func (m *memStore) CreateRun(ctx context.Context, run *model.PipelineRun) error {
	m.record("create_run")
	if m.createRunErr != nil {
		return m.createRunErr
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *memStore) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	m.record("update_run stage=%s status=%s", run.Stage, run.Status)
	if m.updateRunErr != nil {
		return m.updateRunErr
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *memStore) GetRun(ctx context.Context, id string) (*model.PipelineRun, error) {
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.PipelineRun, error) {
	var out []model.PipelineRun
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

// stage collaborators

type mockDiscoverer struct {
	result *discovery.Result
	err    error
	calls  int
}

func (d *mockDiscoverer) Discover(ctx context.Context, limit int) (*discovery.Result, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

type mockDefiner struct {
	calls int
}

func (d *mockDefiner) Define(problem model.Problem) model.Product {
	d.calls++
	p := model.NewProduct(problem.ID, problem.Title+" - Complete Guide", model.ProductTypeGuide)
	p.Features = []string{"f1"}
	return p
}

type mockGenerator struct {
	dir   string
	err   error
	calls int
}

func (g *mockGenerator) Generate(product model.Product) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.dir, nil
}

type mockPackager struct {
	err   error
	calls int
}

func (p *mockPackager) Package(product model.Product, assetDir string) (model.MarketplaceListing, error) {
	p.calls++
	if p.err != nil {
		return model.MarketplaceListing{}, p.err
	}
	l := model.NewMarketplaceListing(product.ID)
	l.Title = product.Title
	l.AnchorPrice = 29.99
	l.ImpulsePrice = 19.99
	l.AssetBundlePath = assetDir + ".zip"
	return l, nil
}

type fixture struct {
	store      *memStore
	discoverer *mockDiscoverer
	definer    *mockDefiner
	generator  *mockGenerator
	packager   *mockPackager
	orch       *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		store: newMemStore(),
		discoverer: &mockDiscoverer{result: &discovery.Result{
			Problems: []model.Problem{
				model.NewProblem("Docker networking breaks", "desc", model.IntentPain, model.SourceHackerNews, 0.9, 20, 1.0),
				model.NewProblem("Lower ranked", "desc", model.IntentPain, model.SourceReddit, 0.4, 2, 0.2),
			},
		}},
		definer:   &mockDefiner{},
		generator: &mockGenerator{dir: "/tmp/artifacts/prod"},
		packager:  &mockPackager{},
	}
	f.orch = New(config.PipelineConfig{DiscoverLimit: 10}, f.store, f.discoverer, f.definer, f.generator, f.packager)
	return f
}

func TestOrchestrator_FullRunSucceeds(t *testing.T) {
	f := newFixture()

	run, err := f.orch.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, model.StatusSuccess, run.Status)
	assert.Equal(t, model.StagePackage, run.Stage)
	require.NotNil(t, run.CompletedAt)

	// The top-ranked problem was selected and every stage produced its entity.
	top := f.discoverer.result.Problems[0]
	assert.Equal(t, top.ID, run.ProblemID)
	assert.NotEmpty(t, run.ProductID)
	assert.NotEmpty(t, run.ListingID)
	require.Len(t, run.Artifacts, 1)
	assert.Equal(t, "/tmp/artifacts/prod", run.Artifacts[0])

	assert.Equal(t, 1, f.discoverer.calls)
	assert.Equal(t, 1, f.definer.calls)
	assert.Equal(t, 1, f.generator.calls)
	assert.Equal(t, 1, f.packager.calls)

	// Logs are append-only and cover every stage.
	joined := strings.Join(run.Logs, "\n")
	assert.Contains(t, joined, "Starting discover stage")
	assert.Contains(t, joined, "Starting package stage")
	assert.Contains(t, joined, "Pipeline completed successfully")
}

func TestOrchestrator_BeginThenExecute(t *testing.T) {
	f := newFixture()

	run, err := f.orch.Begin(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, run)

	// Begin persists the run record and nothing else; the id is usable
	// as a handle before any stage work starts.
	assert.Equal(t, []string{"create_run"}, f.store.events)
	assert.Equal(t, model.StatusRunning, run.Status)
	assert.Zero(t, f.discoverer.calls)

	stored, err := f.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	done := f.orch.Execute(context.Background(), run, Options{})
	assert.Equal(t, model.StatusSuccess, done.Status)
	assert.Equal(t, run.ID, done.ID)
	assert.Equal(t, 1, f.discoverer.calls)
}

func TestOrchestrator_BeginRejectsUnknownStage(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Begin(context.Background(), Options{ProblemID: "x", StartFrom: model.Stage("ship")})
	require.Error(t, err)
	assert.Empty(t, f.store.events)
}

func TestOrchestrator_PersistBeforeWorkOrdering(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create_run",
		"update_run stage=discover status=running",
		"save_problem",
		"update_run stage=define status=running",
		"save_product",
		"update_run stage=build status=running",
		"update_run stage=package status=running",
		"save_listing",
		"update_run stage=package status=success",
	}, f.store.events)
}

func TestOrchestrator_NoProblemsDiscovered(t *testing.T) {
	f := newFixture()
	f.discoverer.result = &discovery.Result{}

	run, err := f.orch.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, "no problems discovered", run.ErrorMessage)
	assert.Equal(t, model.StageDiscover, run.Stage)
	assert.Empty(t, run.ProductID)
	assert.Empty(t, run.ListingID)
	require.NotNil(t, run.CompletedAt)

	assert.Zero(t, f.definer.calls)
	assert.Zero(t, f.generator.calls)
}

func TestOrchestrator_DiscoveryWarningsLogged(t *testing.T) {
	f := newFixture()
	f.discoverer.result.Warnings = []discovery.Warning{
		{Adapter: "reddit", Err: eris.New("status 503")},
	}

	run, err := f.orch.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, run.Status)

	var found bool
	for _, line := range run.Logs {
		if strings.Contains(line, "source reddit failed") {
			found = true
		}
	}
	assert.True(t, found, "warning for reddit must appear in run logs")
}

func TestOrchestrator_ResumeFromDefine(t *testing.T) {
	f := newFixture()
	problem := model.NewProblem("Known problem", "desc", model.IntentPain, model.SourceGitHub, 0.8, 5, 0.7)
	f.store.problems[problem.ID] = problem

	run, err := f.orch.Run(context.Background(), Options{ProblemID: problem.ID, StartFrom: model.StageDefine})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, run.Status)
	assert.Equal(t, problem.ID, run.ProblemID)
	assert.Zero(t, f.discoverer.calls)
	assert.Equal(t, 1, f.definer.calls)
	assert.Equal(t, 1, f.packager.calls)
}

func TestOrchestrator_ResumeProblemNotFound(t *testing.T) {
	f := newFixture()

	run, err := f.orch.Run(context.Background(), Options{ProblemID: "missing", StartFrom: model.StageDefine})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, "problem not found", run.ErrorMessage)
	assert.Zero(t, f.definer.calls)
}

func TestOrchestrator_MissingProblemIDIsImmediateError(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Run(context.Background(), Options{StartFrom: model.StageBuild})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "problem ID required")
	// Nothing was persisted.
	assert.Empty(t, f.store.events)
}

func TestOrchestrator_UnknownStageIsImmediateError(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Run(context.Background(), Options{ProblemID: "x", StartFrom: model.Stage("ship")})
	require.Error(t, err)
	assert.Empty(t, f.store.events)
}

func TestOrchestrator_ResumeFromBuildUsesStoredProduct(t *testing.T) {
	f := newFixture()
	problem := model.NewProblem("Known problem", "desc", model.IntentPain, model.SourceGitHub, 0.8, 5, 0.7)
	f.store.problems[problem.ID] = problem
	product := model.NewProduct(problem.ID, "Stored product", model.ProductTypeScript)
	f.store.products = append(f.store.products, product)

	run, err := f.orch.Run(context.Background(), Options{ProblemID: problem.ID, StartFrom: model.StageBuild})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, run.Status)
	assert.Equal(t, product.ID, run.ProductID)
	assert.Zero(t, f.discoverer.calls)
	assert.Zero(t, f.definer.calls)
	assert.Equal(t, 1, f.generator.calls)
}

func TestOrchestrator_ResumeFromBuildWithoutProduct(t *testing.T) {
	f := newFixture()
	problem := model.NewProblem("Known problem", "desc", model.IntentPain, model.SourceGitHub, 0.8, 5, 0.7)
	f.store.problems[problem.ID] = problem

	run, err := f.orch.Run(context.Background(), Options{ProblemID: problem.ID, StartFrom: model.StageBuild})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, "no product found to build", run.ErrorMessage)
}

func TestOrchestrator_ResumeFromPackageWithoutArtifacts(t *testing.T) {
	f := newFixture()
	problem := model.NewProblem("Known problem", "desc", model.IntentPain, model.SourceGitHub, 0.8, 5, 0.7)
	f.store.problems[problem.ID] = problem

	run, err := f.orch.Run(context.Background(), Options{ProblemID: problem.ID, StartFrom: model.StagePackage})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, "no product artifacts found", run.ErrorMessage)
	assert.Zero(t, f.packager.calls)
}

func TestOrchestrator_StageFaultBecomesFailedRun(t *testing.T) {
	f := newFixture()
	f.generator.err = eris.New("disk full")

	run, err := f.orch.Run(context.Background(), Options{})
	require.NoError(t, err, "stage faults must not escape as errors")

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "pipeline error")
	assert.Contains(t, run.ErrorMessage, "disk full")
	assert.Equal(t, model.StageBuild, run.Stage)

	// Forward-only failure: earlier stages' entities stay persisted.
	assert.Len(t, f.store.problems, 1)
	assert.Len(t, f.store.products, 1)
	assert.Empty(t, f.store.listings)
	assert.NotEmpty(t, run.ProductID)
	assert.Empty(t, run.ListingID)
}

func TestOrchestrator_CreateRunFaultPropagates(t *testing.T) {
	f := newFixture()
	f.store.createRunErr = eris.New("db down")

	_, err := f.orch.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Zero(t, f.discoverer.calls)
}

func TestOrchestrator_MidRunPersistFaultFailsRun(t *testing.T) {
	f := newFixture()
	f.store.updateRunErr = eris.New("db down")

	run, err := f.orch.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "db down")
	// Stage work never started.
	assert.Zero(t, f.discoverer.calls)
}
