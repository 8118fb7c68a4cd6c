package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/shipsmith/shipsmith/internal/assets"
	"github.com/shipsmith/shipsmith/internal/define"
	"github.com/shipsmith/shipsmith/internal/discovery"
	"github.com/shipsmith/shipsmith/internal/packaging"
	"github.com/shipsmith/shipsmith/internal/pipeline"
	"github.com/shipsmith/shipsmith/internal/source"
	"github.com/shipsmith/shipsmith/internal/store"
	"github.com/shipsmith/shipsmith/pkg/algolia"
	"github.com/shipsmith/shipsmith/pkg/githubapi"
	"github.com/shipsmith/shipsmith/pkg/reddit"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "shipsmith.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildRegistry registers every known source adapter. Registration order
// is the merge order for discovery results, so it stays fixed.
func buildRegistry() *source.Registry {
	reg := source.NewRegistry()

	reg.Register(source.NewHackerNewsAdapter(
		cfg.Sources.HackerNews,
		algolia.NewClient(),
		source.DefaultHackerNewsPolicy,
	))
	reg.Register(source.NewGitHubAdapter(
		cfg.Sources.GitHub,
		githubapi.NewClient(cfg.Sources.GitHub.Token),
		source.DefaultGitHubPolicy,
	))
	reg.Register(source.NewRedditAdapter(
		cfg.Sources.Reddit,
		reddit.NewClient(
			cfg.Sources.Reddit.ClientID,
			cfg.Sources.Reddit.ClientSecret,
			cfg.Sources.Reddit.UserAgent,
		),
		source.DefaultRedditPolicy,
	))

	return reg
}

// pipelineEnv bundles everything a command needs to execute runs.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Orchestrator
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	agg := discovery.NewAggregator(buildRegistry(), cfg.Pipeline.FrequencyNorm)

	p := pipeline.New(
		cfg.Pipeline,
		st,
		agg,
		define.NewEngine(),
		assets.NewGenerator(cfg.Pipeline.ArtifactsDir),
		packaging.NewPackager(cfg.Pipeline.ArtifactsDir),
	)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
