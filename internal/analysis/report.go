package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// GetReport returns the cached report for orgnr, or ErrReportNotFound when
// it has never been generated. Never triggers generation.
func (o *Orchestrator) GetReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	report, err := o.store.GetReport(ctx, orgnr)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: get report %s", orgnr)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// GenerateReport produces the report for orgnr, cache-first: with force
// false an existing cached report is returned without touching the
// backend. At most one generation is in flight per orgnr; a second caller
// gets ErrGenerationInFlight. A status-only acknowledgement from the
// backend enters the bounded polling fallback.
func (o *Orchestrator) GenerateReport(ctx context.Context, orgnr string, force bool) (*model.AIReport, error) {
	if !force {
		cached, err := o.store.GetReport(ctx, orgnr)
		if err != nil {
			return nil, eris.Wrapf(err, "analysis: get cached report %s", orgnr)
		}
		if cached != nil {
			return cached, nil
		}
	}

	o.mu.Lock()
	if _, busy := o.inflight[orgnr]; busy {
		o.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	o.inflight[orgnr] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inflight, orgnr)
		o.mu.Unlock()
	}()

	res, err := o.backend.GenerateReport(ctx, orgnr, force)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: generate report %s", orgnr)
	}

	// A populated body wins outright; the polling fallback must not fire
	// on top of it.
	if res.Report != nil {
		if err := o.store.PutReport(ctx, res.Report); err != nil {
			return nil, eris.Wrapf(err, "analysis: cache report %s", orgnr)
		}
		return res.Report, nil
	}

	if !res.Accepted {
		return nil, eris.Errorf("analysis: backend returned neither report nor acknowledgement for %s", orgnr)
	}

	return o.pollReport(ctx, orgnr)
}

// pollReport re-fetches at a fixed interval until a populated report
// appears or the hard timeout elapses. Cancelable via ctx.
func (o *Orchestrator) pollReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	zap.L().Info("analysis: backend acknowledged without body, polling",
		zap.String("orgnr", orgnr),
		zap.Duration("interval", o.cfg.PollInterval),
		zap.Duration("timeout", o.cfg.PollTimeout),
	)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(o.cfg.PollTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "analysis: poll report %s canceled", orgnr)
		case <-deadline.C:
			return nil, ErrReportPending
		case <-ticker.C:
			report, err := o.backend.FetchReport(ctx, orgnr)
			if err != nil {
				zap.L().Warn("analysis: poll fetch failed",
					zap.String("orgnr", orgnr),
					zap.Error(err),
				)
				continue
			}
			if report == nil {
				continue
			}
			if err := o.store.PutReport(ctx, report); err != nil {
				return nil, eris.Wrapf(err, "analysis: cache polled report %s", orgnr)
			}
			return report, nil
		}
	}
}
