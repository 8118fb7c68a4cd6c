package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shipsmith/shipsmith/internal/model"
)

// Pool is the subset of pgxpool.Pool the store relies on, kept narrow
// so tests can substitute a mock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_problem": `INSERT INTO problems (id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"get_problem":    `SELECT id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at FROM problems WHERE id = $1`,
	"insert_product": `INSERT INTO products (id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"get_product":    `SELECT id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at FROM products WHERE id = $1`,
	"insert_run":     `INSERT INTO pipeline_runs (id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"update_run":     `UPDATE pipeline_runs SET stage = $1, status = $2, problem_id = $3, product_id = $4, listing_id = $5, error_message = $6, logs = $7, artifacts = $8, completed_at = $9 WHERE id = $10`,
	"get_run":        `SELECT id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at FROM pipeline_runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS problems (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	intent           TEXT NOT NULL,
	source           TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	frequency_score  INTEGER NOT NULL,
	recency_score    DOUBLE PRECISION NOT NULL,
	evidence         JSONB NOT NULL,
	keywords         JSONB NOT NULL,
	discovered_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id                TEXT PRIMARY KEY,
	problem_id        TEXT NOT NULL REFERENCES problems(id),
	title             TEXT NOT NULL,
	product_type      TEXT NOT NULL,
	target_persona    TEXT NOT NULL,
	value_proposition TEXT NOT NULL,
	features          JSONB NOT NULL,
	non_goals         JSONB NOT NULL,
	why_shippable     TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	id                TEXT PRIMARY KEY,
	product_id        TEXT NOT NULL REFERENCES products(id),
	title             TEXT NOT NULL,
	title_variants    JSONB NOT NULL,
	description       TEXT NOT NULL,
	feature_bullets   JSONB NOT NULL,
	faq               JSONB NOT NULL,
	anchor_price      DOUBLE PRECISION NOT NULL,
	impulse_price     DOUBLE PRECISION NOT NULL,
	asset_bundle_path TEXT,
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            TEXT PRIMARY KEY,
	stage         TEXT NOT NULL,
	status        TEXT NOT NULL,
	problem_id    TEXT,
	product_id    TEXT,
	listing_id    TEXT,
	error_message TEXT,
	logs          JSONB NOT NULL,
	artifacts     JSONB NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_problems_source ON problems(source);
CREATE INDEX IF NOT EXISTS idx_products_problem_id ON products(problem_id);
CREATE INDEX IF NOT EXISTS idx_listings_product_id ON listings(product_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveProblem(ctx context.Context, problem model.Problem) error {
	evidenceJSON, err := json.Marshal(problem.Evidence)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}
	keywordsJSON, err := json.Marshal(problem.Keywords)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal keywords")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO problems (id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		problem.ID, problem.Title, problem.Description, string(problem.Intent), string(problem.Source),
		problem.ConfidenceScore, problem.FrequencyScore, problem.RecencyScore,
		evidenceJSON, keywordsJSON, problem.DiscoveredAt,
	)
	return eris.Wrapf(err, "postgres: insert problem %s", problem.ID)
}

func (s *PostgresStore) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	var p model.Problem
	var evidenceJSON, keywordsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at
		 FROM problems WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Description, &p.Intent, &p.Source,
		&p.ConfidenceScore, &p.FrequencyScore, &p.RecencyScore,
		&evidenceJSON, &keywordsJSON, &p.DiscoveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get problem %s", id)
	}

	if err := json.Unmarshal(evidenceJSON, &p.Evidence); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evidence")
	}
	if err := json.Unmarshal(keywordsJSON, &p.Keywords); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal keywords")
	}
	return &p, nil
}

func (s *PostgresStore) ListProblems(ctx context.Context, filter ProblemFilter) ([]model.Problem, error) {
	query := `SELECT id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at
	          FROM problems WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, string(filter.Source))
		argIdx++
	}
	query += ` ORDER BY discovered_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list problems")
	}
	defer rows.Close()

	var problems []model.Problem
	for rows.Next() {
		var p model.Problem
		var evidenceJSON, keywordsJSON []byte
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Intent, &p.Source,
			&p.ConfidenceScore, &p.FrequencyScore, &p.RecencyScore,
			&evidenceJSON, &keywordsJSON, &p.DiscoveredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan problem")
		}
		if err := json.Unmarshal(evidenceJSON, &p.Evidence); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evidence")
		}
		if err := json.Unmarshal(keywordsJSON, &p.Keywords); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal keywords")
		}
		problems = append(problems, p)
	}
	return problems, eris.Wrap(rows.Err(), "postgres: list problems iterate")
}

func (s *PostgresStore) SaveProduct(ctx context.Context, product model.Product) error {
	featuresJSON, err := json.Marshal(product.Features)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal features")
	}
	nonGoalsJSON, err := json.Marshal(product.NonGoals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal non-goals")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO products (id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID, product.ProblemID, product.Title, string(product.ProductType),
		product.TargetPersona, product.ValueProposition,
		featuresJSON, nonGoalsJSON, product.WhyShippable, product.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert product %s", product.ID)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	var featuresJSON, nonGoalsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at
		 FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.ProblemID, &p.Title, &p.ProductType,
		&p.TargetPersona, &p.ValueProposition, &featuresJSON, &nonGoalsJSON,
		&p.WhyShippable, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", id)
	}

	if err := json.Unmarshal(featuresJSON, &p.Features); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal features")
	}
	if err := json.Unmarshal(nonGoalsJSON, &p.NonGoals); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal non-goals")
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at
		 FROM products ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var featuresJSON, nonGoalsJSON []byte
		if err := rows.Scan(&p.ID, &p.ProblemID, &p.Title, &p.ProductType,
			&p.TargetPersona, &p.ValueProposition, &featuresJSON, &nonGoalsJSON,
			&p.WhyShippable, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		if err := json.Unmarshal(featuresJSON, &p.Features); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal features")
		}
		if err := json.Unmarshal(nonGoalsJSON, &p.NonGoals); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal non-goals")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "postgres: list products iterate")
}

func (s *PostgresStore) SaveListing(ctx context.Context, listing model.MarketplaceListing) error {
	variantsJSON, err := json.Marshal(listing.TitleVariants)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal title variants")
	}
	bulletsJSON, err := json.Marshal(listing.FeatureBullets)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal feature bullets")
	}
	faqJSON, err := json.Marshal(listing.FAQ)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal faq")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO listings (id, product_id, title, title_variants, description, feature_bullets, faq, anchor_price, impulse_price, asset_bundle_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		listing.ID, listing.ProductID, listing.Title, variantsJSON, listing.Description,
		bulletsJSON, faqJSON, listing.AnchorPrice, listing.ImpulsePrice,
		listing.AssetBundlePath, listing.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert listing %s", listing.ID)
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.MarketplaceListing, error) {
	var l model.MarketplaceListing
	var variantsJSON, bulletsJSON, faqJSON []byte
	var bundlePath *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, product_id, title, title_variants, description, feature_bullets, faq, anchor_price, impulse_price, asset_bundle_path, created_at
		 FROM listings WHERE id = $1`, id,
	).Scan(&l.ID, &l.ProductID, &l.Title, &variantsJSON, &l.Description,
		&bulletsJSON, &faqJSON, &l.AnchorPrice, &l.ImpulsePrice, &bundlePath, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %s", id)
	}

	if err := unmarshalListing(&l, variantsJSON, bulletsJSON, faqJSON); err != nil {
		return nil, err
	}
	if bundlePath != nil {
		l.AssetBundlePath = *bundlePath
	}
	return &l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, limit int) ([]model.MarketplaceListing, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, title, title_variants, description, feature_bullets, faq, anchor_price, impulse_price, asset_bundle_path, created_at
		 FROM listings ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var listings []model.MarketplaceListing
	for rows.Next() {
		var l model.MarketplaceListing
		var variantsJSON, bulletsJSON, faqJSON []byte
		var bundlePath *string
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Title, &variantsJSON, &l.Description,
			&bulletsJSON, &faqJSON, &l.AnchorPrice, &l.ImpulsePrice, &bundlePath, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		if err := unmarshalListing(&l, variantsJSON, bulletsJSON, faqJSON); err != nil {
			return nil, err
		}
		if bundlePath != nil {
			l.AssetBundlePath = *bundlePath
		}
		listings = append(listings, l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: list listings iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.PipelineRun) error {
	logsJSON, artifactsJSON, err := marshalRunLists(run)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, string(run.Stage), string(run.Status), run.ProblemID, run.ProductID, run.ListingID,
		run.ErrorMessage, []byte(logsJSON), []byte(artifactsJSON), run.StartedAt, run.CompletedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	logsJSON, artifactsJSON, err := marshalRunLists(run)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET stage = $1, status = $2, problem_id = $3, product_id = $4, listing_id = $5, error_message = $6, logs = $7, artifacts = $8, completed_at = $9
		 WHERE id = $10`,
		string(run.Stage), string(run.Status), run.ProblemID, run.ProductID, run.ListingID,
		run.ErrorMessage, []byte(logsJSON), []byte(artifactsJSON), run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.PipelineRun, error) {
	var r model.PipelineRun
	var logsJSON, artifactsJSON []byte
	var problemID, productID, listingID, errorMessage *string
	var completedAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at
		 FROM pipeline_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.Stage, &r.Status, &problemID, &productID, &listingID,
		&errorMessage, &logsJSON, &artifactsJSON, &r.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}

	if err := json.Unmarshal(logsJSON, &r.Logs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run logs")
	}
	if err := json.Unmarshal(artifactsJSON, &r.Artifacts); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run artifacts")
	}
	setIfPresent(&r.ProblemID, problemID)
	setIfPresent(&r.ProductID, productID)
	setIfPresent(&r.ListingID, listingID)
	setIfPresent(&r.ErrorMessage, errorMessage)
	r.CompletedAt = completedAt
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at
	          FROM pipeline_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var logsJSON, artifactsJSON []byte
		var problemID, productID, listingID, errorMessage *string
		var completedAt *time.Time
		if err := rows.Scan(&r.ID, &r.Stage, &r.Status, &problemID, &productID, &listingID,
			&errorMessage, &logsJSON, &artifactsJSON, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(logsJSON, &r.Logs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run logs")
		}
		if err := json.Unmarshal(artifactsJSON, &r.Artifacts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run artifacts")
		}
		setIfPresent(&r.ProblemID, problemID)
		setIfPresent(&r.ProductID, productID)
		setIfPresent(&r.ListingID, listingID)
		setIfPresent(&r.ErrorMessage, errorMessage)
		r.CompletedAt = completedAt
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func unmarshalListing(l *model.MarketplaceListing, variantsJSON, bulletsJSON, faqJSON []byte) error {
	if err := json.Unmarshal(variantsJSON, &l.TitleVariants); err != nil {
		return eris.Wrap(err, "postgres: unmarshal title variants")
	}
	if err := json.Unmarshal(bulletsJSON, &l.FeatureBullets); err != nil {
		return eris.Wrap(err, "postgres: unmarshal feature bullets")
	}
	if err := json.Unmarshal(faqJSON, &l.FAQ); err != nil {
		return eris.Wrap(err, "postgres: unmarshal faq")
	}
	return nil
}

func setIfPresent(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
