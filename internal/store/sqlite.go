package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealflow-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS analysis_runs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	model_version TEXT NOT NULL DEFAULT '',
	analysis_mode TEXT NOT NULL,
	payload       TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	completed_at  DATETIME
);

CREATE TABLE IF NOT EXISTS ai_reports (
	orgnr        TEXT PRIMARY KEY,
	report       TEXT NOT NULL,
	generated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS business_rules (
	version  INTEGER PRIMARY KEY,
	rules    TEXT NOT NULL,
	saved_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_started_at ON analysis_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_mode ON analysis_runs(analysis_mode);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.AnalysisRun) error {
	payloadJSON, err := json.Marshal(run.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal payload")
	}

	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, status, model_version, analysis_mode, payload, error_message, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.ModelVersion, string(run.Mode),
		string(payloadJSON), run.ErrorMessage, run.StartedAt.UTC(), completedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, model_version, analysis_mode, payload, error_message, started_at, completed_at
		 FROM analysis_runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, model_version, analysis_mode, payload, error_message, started_at, completed_at
		 FROM analysis_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM ai_reports WHERE orgnr = ?`, orgnr,
	).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", orgnr)
	}

	var report model.AIReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &report, nil
}

func (s *SQLiteStore) PutReport(ctx context.Context, report *model.AIReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ai_reports (orgnr, report, generated_at) VALUES (?, ?, ?)
		 ON CONFLICT(orgnr) DO UPDATE SET report = excluded.report, generated_at = excluded.generated_at`,
		report.Orgnr, string(reportJSON), report.GeneratedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: put report %s", report.Orgnr)
}

func (s *SQLiteStore) SaveBusinessRules(ctx context.Context, rules *model.BusinessRules) error {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rules")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO business_rules (version, rules, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(version) DO UPDATE SET rules = excluded.rules, saved_at = excluded.saved_at`,
		rules.Version, string(rulesJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save rules")
}

func (s *SQLiteStore) GetBusinessRules(ctx context.Context) (*model.BusinessRules, error) {
	var rulesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT rules FROM business_rules ORDER BY version DESC LIMIT 1`,
	).Scan(&rulesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get rules")
	}

	var rules model.BusinessRules
	if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal rules")
	}
	return &rules, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.AnalysisRun, error) {
	var r model.AnalysisRun
	var payloadJSON string
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Status, &r.ModelVersion, &r.Mode, &payloadJSON, &r.ErrorMessage, &r.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.RawPayload = json.RawMessage(payloadJSON)
	if err := json.Unmarshal(r.RawPayload, &r.Payload); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal payload")
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
