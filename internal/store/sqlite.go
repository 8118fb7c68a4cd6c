package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shipsmith/shipsmith/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS problems (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	intent           TEXT NOT NULL,
	source           TEXT NOT NULL,
	confidence_score REAL NOT NULL,
	frequency_score  INTEGER NOT NULL,
	recency_score    REAL NOT NULL,
	evidence         TEXT NOT NULL,
	keywords         TEXT NOT NULL,
	discovered_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id                TEXT PRIMARY KEY,
	problem_id        TEXT NOT NULL REFERENCES problems(id),
	title             TEXT NOT NULL,
	product_type      TEXT NOT NULL,
	target_persona    TEXT NOT NULL,
	value_proposition TEXT NOT NULL,
	features          TEXT NOT NULL,
	non_goals         TEXT NOT NULL,
	why_shippable     TEXT NOT NULL,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	id                TEXT PRIMARY KEY,
	product_id        TEXT NOT NULL REFERENCES products(id),
	title             TEXT NOT NULL,
	title_variants    TEXT NOT NULL,
	description       TEXT NOT NULL,
	feature_bullets   TEXT NOT NULL,
	faq               TEXT NOT NULL,
	anchor_price      REAL NOT NULL,
	impulse_price     REAL NOT NULL,
	asset_bundle_path TEXT,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            TEXT PRIMARY KEY,
	stage         TEXT NOT NULL,
	status        TEXT NOT NULL,
	problem_id    TEXT,
	product_id    TEXT,
	listing_id    TEXT,
	error_message TEXT,
	logs          TEXT NOT NULL,
	artifacts     TEXT NOT NULL,
	started_at    DATETIME NOT NULL,
	completed_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_problems_source ON problems(source);
CREATE INDEX IF NOT EXISTS idx_products_problem_id ON products(problem_id);
CREATE INDEX IF NOT EXISTS idx_listings_product_id ON listings(product_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveProblem(ctx context.Context, problem model.Problem) error {
	evidenceJSON, err := json.Marshal(problem.Evidence)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}
	keywordsJSON, err := json.Marshal(problem.Keywords)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keywords")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO problems (id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		problem.ID, problem.Title, problem.Description, string(problem.Intent), string(problem.Source),
		problem.ConfidenceScore, problem.FrequencyScore, problem.RecencyScore,
		string(evidenceJSON), string(keywordsJSON), problem.DiscoveredAt,
	)
	return eris.Wrapf(err, "sqlite: insert problem %s", problem.ID)
}

func (s *SQLiteStore) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at
		 FROM problems WHERE id = ?`, id)
	p, err := scanProblem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) ListProblems(ctx context.Context, filter ProblemFilter) ([]model.Problem, error) {
	query := `SELECT id, title, description, intent, source, confidence_score, frequency_score, recency_score, evidence, keywords, discovered_at
	          FROM problems WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	query += ` ORDER BY discovered_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list problems")
	}
	defer rows.Close()

	var problems []model.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, *p)
	}
	return problems, eris.Wrap(rows.Err(), "sqlite: list problems iterate")
}

func (s *SQLiteStore) SaveProduct(ctx context.Context, product model.Product) error {
	featuresJSON, err := json.Marshal(product.Features)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal features")
	}
	nonGoalsJSON, err := json.Marshal(product.NonGoals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal non-goals")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO products (id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.ProblemID, product.Title, string(product.ProductType),
		product.TargetPersona, product.ValueProposition,
		string(featuresJSON), string(nonGoalsJSON), product.WhyShippable, product.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert product %s", product.ID)
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at
		 FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, problem_id, title, product_type, target_persona, value_proposition, features, non_goals, why_shippable, created_at
		 FROM products ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

func (s *SQLiteStore) SaveListing(ctx context.Context, listing model.MarketplaceListing) error {
	variantsJSON, err := json.Marshal(listing.TitleVariants)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal title variants")
	}
	bulletsJSON, err := json.Marshal(listing.FeatureBullets)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal feature bullets")
	}
	faqJSON, err := json.Marshal(listing.FAQ)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal faq")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listings (id, product_id, title, title_variants, description, feature_bullets, faq, anchor_price, impulse_price, asset_bundle_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID, listing.ProductID, listing.Title, string(variantsJSON), listing.Description,
		string(bulletsJSON), string(faqJSON), listing.AnchorPrice, listing.ImpulsePrice,
		listing.AssetBundlePath, listing.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert listing %s", listing.ID)
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.MarketplaceListing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, title, title_variants, description, feature_bullets, faq, anchor_price, impulse_price, asset_bundle_path, created_at
		 FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *SQLiteStore) ListListings(ctx context.Context, limit int) ([]model.MarketplaceListing, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, title, title_variants, description, feature_bullets, faq, anchor_price, impulse_price, asset_bundle_path, created_at
		 FROM listings ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close()

	var listings []model.MarketplaceListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: list listings iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.PipelineRun) error {
	logsJSON, artifactsJSON, err := marshalRunLists(run)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Stage), string(run.Status), run.ProblemID, run.ProductID, run.ListingID,
		run.ErrorMessage, logsJSON, artifactsJSON, run.StartedAt, run.CompletedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	logsJSON, artifactsJSON, err := marshalRunLists(run)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET stage = ?, status = ?, problem_id = ?, product_id = ?, listing_id = ?, error_message = ?, logs = ?, artifacts = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.Stage), string(run.Status), run.ProblemID, run.ProductID, run.ListingID,
		run.ErrorMessage, logsJSON, artifactsJSON, run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at
		 FROM pipeline_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, stage, status, problem_id, product_id, listing_id, error_message, logs, artifacts, started_at, completed_at
	          FROM pipeline_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalRunLists(run *model.PipelineRun) (logs, artifacts string, err error) {
	logsJSON, err := json.Marshal(run.Logs)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal run logs")
	}
	artifactsJSON, err := json.Marshal(run.Artifacts)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal run artifacts")
	}
	return string(logsJSON), string(artifactsJSON), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProblem(row scannable) (*model.Problem, error) {
	var p model.Problem
	var evidenceJSON, keywordsJSON string

	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Intent, &p.Source,
		&p.ConfidenceScore, &p.FrequencyScore, &p.RecencyScore,
		&evidenceJSON, &keywordsJSON, &p.DiscoveredAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan problem")
	}

	if err := json.Unmarshal([]byte(evidenceJSON), &p.Evidence); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
	}
	if err := json.Unmarshal([]byte(keywordsJSON), &p.Keywords); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal keywords")
	}
	return &p, nil
}

func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	var featuresJSON, nonGoalsJSON string

	err := row.Scan(&p.ID, &p.ProblemID, &p.Title, &p.ProductType,
		&p.TargetPersona, &p.ValueProposition, &featuresJSON, &nonGoalsJSON,
		&p.WhyShippable, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan product")
	}

	if err := json.Unmarshal([]byte(featuresJSON), &p.Features); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal features")
	}
	if err := json.Unmarshal([]byte(nonGoalsJSON), &p.NonGoals); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal non-goals")
	}
	return &p, nil
}

func scanListing(row scannable) (*model.MarketplaceListing, error) {
	var l model.MarketplaceListing
	var variantsJSON, bulletsJSON, faqJSON string
	var bundlePath sql.NullString

	err := row.Scan(&l.ID, &l.ProductID, &l.Title, &variantsJSON, &l.Description,
		&bulletsJSON, &faqJSON, &l.AnchorPrice, &l.ImpulsePrice, &bundlePath, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan listing")
	}

	if err := json.Unmarshal([]byte(variantsJSON), &l.TitleVariants); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal title variants")
	}
	if err := json.Unmarshal([]byte(bulletsJSON), &l.FeatureBullets); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal feature bullets")
	}
	if err := json.Unmarshal([]byte(faqJSON), &l.FAQ); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal faq")
	}
	l.AssetBundlePath = bundlePath.String
	return &l, nil
}

func scanRun(row scannable) (*model.PipelineRun, error) {
	var r model.PipelineRun
	var logsJSON, artifactsJSON string
	var problemID, productID, listingID, errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Stage, &r.Status, &problemID, &productID, &listingID,
		&errorMessage, &logsJSON, &artifactsJSON, &r.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(logsJSON), &r.Logs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run logs")
	}
	if err := json.Unmarshal([]byte(artifactsJSON), &r.Artifacts); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run artifacts")
	}
	r.ProblemID = problemID.String
	r.ProductID = productID.String
	r.ListingID = listingID.String
	r.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
