package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/db"
	"github.com/sells-group/dealflow-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Payloads are stored as TEXT, not JSONB: GetRun must return the exact
// bytes SaveRun wrote, and JSONB rewrites its input (whitespace, key
// order) on the way in.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	model_version TEXT NOT NULL DEFAULT '',
	analysis_mode TEXT NOT NULL,
	payload       TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ai_reports (
	orgnr        TEXT PRIMARY KEY,
	report       TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS business_rules (
	version  INTEGER PRIMARY KEY,
	rules    TEXT NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_started_at ON analysis_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_mode ON analysis_runs(analysis_mode);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.AnalysisRun) error {
	payloadJSON, err := json.Marshal(run.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal payload")
	}

	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, status, model_version, analysis_mode, payload, error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Status), run.ModelVersion, string(run.Mode),
		string(payloadJSON), run.ErrorMessage, run.StartedAt.UTC(), completedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, model_version, analysis_mode, payload, error_message, started_at, completed_at
		 FROM analysis_runs WHERE id = $1`,
		runID,
	)
	run, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return run, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, model_version, analysis_mode, payload, error_message, started_at, completed_at
		 FROM analysis_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	var reportJSON string
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM ai_reports WHERE orgnr = $1`, orgnr,
	).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report %s", orgnr)
	}

	var report model.AIReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &report, nil
}

func (s *PostgresStore) PutReport(ctx context.Context, report *model.AIReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ai_reports (orgnr, report, generated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (orgnr) DO UPDATE SET report = EXCLUDED.report, generated_at = EXCLUDED.generated_at`,
		report.Orgnr, string(reportJSON), report.GeneratedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: put report %s", report.Orgnr)
}

func (s *PostgresStore) SaveBusinessRules(ctx context.Context, rules *model.BusinessRules) error {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rules")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO business_rules (version, rules, saved_at) VALUES ($1, $2, $3)
		 ON CONFLICT (version) DO UPDATE SET rules = EXCLUDED.rules, saved_at = EXCLUDED.saved_at`,
		rules.Version, string(rulesJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save rules")
}

func (s *PostgresStore) GetBusinessRules(ctx context.Context) (*model.BusinessRules, error) {
	var rulesJSON string
	err := s.pool.QueryRow(ctx,
		`SELECT rules FROM business_rules ORDER BY version DESC LIMIT 1`,
	).Scan(&rulesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get rules")
	}

	var rules model.BusinessRules
	if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal rules")
	}
	return &rules, nil
}

func scanPgRun(row pgx.Row) (*model.AnalysisRun, error) {
	var r model.AnalysisRun
	var payloadJSON string
	var completedAt *time.Time

	err := row.Scan(&r.ID, &r.Status, &r.ModelVersion, &r.Mode, &payloadJSON, &r.ErrorMessage, &r.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	r.RawPayload = json.RawMessage(payloadJSON)
	if err := json.Unmarshal(r.RawPayload, &r.Payload); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal payload")
	}
	r.CompletedAt = completedAt
	return &r, nil
}
