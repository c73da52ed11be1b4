package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

var (
	// ErrEmptySelection is returned when a run is submitted with no
	// companies. Caught before any backend call.
	ErrEmptySelection = eris.New("analysis: empty company selection")

	// ErrSubmitInFlight is returned when a run submission arrives while
	// another is still in flight.
	ErrSubmitInFlight = eris.New("analysis: a run is already in flight")

	// ErrReportNotFound means the report has never been generated. A
	// legitimate state, not a failure.
	ErrReportNotFound = eris.New("analysis: report not generated")

	// ErrGenerationInFlight means a forced regeneration for this orgnr is
	// already running.
	ErrGenerationInFlight = eris.New("analysis: report generation already in flight")

	// ErrReportPending means the legacy polling fallback timed out before
	// a populated report appeared.
	ErrReportPending = eris.New("analysis: report still not ready")
)

// Config tunes the orchestrator.
type Config struct {
	HistoryLimit int           `yaml:"history_limit" mapstructure:"history_limit"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout"`
}

func (c Config) withDefaults() Config {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 60 * time.Second
	}
	return c
}

// Orchestrator drives the screening → deep-dive workflow: it validates
// submissions, calls the backend, persists run envelopes, and provides
// cache-first single-company report generation.
type Orchestrator struct {
	store   store.Store
	backend Backend
	cfg     Config

	mu         sync.Mutex
	submitting bool
	currentRun *model.AnalysisRun
	screening  []model.ScreeningResult
	inflight   map[string]struct{}
}

// New creates an Orchestrator. Zero Config fields fall back to defaults.
func New(st store.Store, backend Backend, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:    st,
		backend:  backend,
		cfg:      cfg.withDefaults(),
		inflight: make(map[string]struct{}),
	}
}

// Submit runs one analysis. The selection is validated before any backend
// call. The returned run is persisted in a terminal state; on backend
// failure the run is persisted as failed and the error is returned
// alongside it.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*model.AnalysisRun, error) {
	if len(req.Companies) == 0 {
		return nil, ErrEmptySelection
	}

	o.mu.Lock()
	if o.submitting {
		o.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	o.submitting = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.submitting = false
		o.mu.Unlock()
	}()

	run := &model.AnalysisRun{
		ID:           uuid.NewString(),
		Status:       model.RunStatusSubmitting,
		ModelVersion: o.backend.ModelVersion(),
		Mode:         req.Mode,
		StartedAt:    time.Now().UTC(),
	}

	zap.L().Info("analysis: submitting run",
		zap.String("run_id", run.ID),
		zap.String("mode", string(req.Mode)),
		zap.Int("companies", len(req.Companies)),
		zap.String("initiated_by", req.InitiatedBy),
	)

	switch req.Mode {
	case model.ModeScreening:
		results, err := o.backend.Screen(ctx, req)
		if err != nil {
			return o.finishFailed(ctx, run, err)
		}
		run.Payload = model.AnalysisPayload{Mode: model.ModeScreening, Results: results}
		run.Status = model.RunStatusCompleted
	case model.ModeDeep:
		companies, err := o.backend.DeepDive(ctx, req)
		if err != nil {
			return o.finishFailed(ctx, run, err)
		}
		run.Payload = model.AnalysisPayload{Mode: model.ModeDeep, Companies: companies}
		run.Status = model.RunStatusCompleted
		for _, c := range companies {
			if c.Error != "" {
				run.Status = model.RunStatusCompletedWithErrors
				run.ErrorMessage = "one or more companies failed server-side"
				break
			}
		}
	default:
		return nil, eris.Errorf("analysis: unknown mode %q", req.Mode)
	}

	now := time.Now().UTC()
	run.CompletedAt = &now

	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, eris.Wrapf(err, "analysis: persist run %s", run.ID)
	}

	o.mu.Lock()
	switch req.Mode {
	case model.ModeScreening:
		// New screening results replace the session set and clear any
		// previously displayed deep-dive run.
		o.screening = run.Payload.Results
		o.currentRun = nil
	case model.ModeDeep:
		// Deep run replaces the displayed run; screening results stay
		// visible for reference.
		o.currentRun = run
	}
	o.mu.Unlock()

	zap.L().Info("analysis: run complete",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
	)
	return run, nil
}

// finishFailed persists a failed run envelope and returns it with the
// backend error attached.
func (o *Orchestrator) finishFailed(ctx context.Context, run *model.AnalysisRun, cause error) (*model.AnalysisRun, error) {
	now := time.Now().UTC()
	run.Status = model.RunStatusFailed
	run.CompletedAt = &now
	run.ErrorMessage = cause.Error()
	run.Payload = model.AnalysisPayload{Mode: run.Mode}

	if err := o.store.SaveRun(ctx, run); err != nil {
		zap.L().Error("analysis: failed to persist failed run",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
	return run, eris.Wrapf(cause, "analysis: run %s failed", run.ID)
}

// History returns the most recent runs, newest first, bounded by limit
// (configured default when limit <= 0).
func (o *Orchestrator) History(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = o.cfg.HistoryLimit
	}
	return o.store.ListRuns(ctx, limit)
}

// Run retrieves a past run by ID. The payload is replayed exactly as
// persisted; RawPayload carries the stored bytes.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	return o.store.GetRun(ctx, runID)
}

// ScreeningResults returns the current session's screening results.
func (o *Orchestrator) ScreeningResults() []model.ScreeningResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.screening
}

// CurrentRun returns the currently displayed deep-dive run, if any.
func (o *Orchestrator) CurrentRun() *model.AnalysisRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentRun
}

// Submitting reports whether a run submission is in flight.
func (o *Orchestrator) Submitting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.submitting
}

// ResetSession clears screening results and the displayed run. Persisted
// run history is untouched.
func (o *Orchestrator) ResetSession() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.screening = nil
	o.currentRun = nil
}
