package store

import (
	"context"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// ReportCache is the orgnr-keyed AI report cache. A miss returns (nil, nil):
// "not yet generated" is a legitimate state, not an error. Writes overwrite
// in place; last writer wins.
type ReportCache interface {
	GetReport(ctx context.Context, orgnr string) (*model.AIReport, error)
	PutReport(ctx context.Context, report *model.AIReport) error
}

// Store is the persistence interface for analysis runs, cached AI reports,
// and versioned business rules.
type Store interface {
	ReportCache

	// Runs. SaveRun persists the run envelope with its payload marshaled
	// once; GetRun replays the stored payload bytes exactly.
	SaveRun(ctx context.Context, run *model.AnalysisRun) error
	GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.AnalysisRun, error)

	// Business rules, versioned. GetBusinessRules returns the highest
	// version, or (nil, nil) when none has been saved.
	SaveBusinessRules(ctx context.Context, rules *model.BusinessRules) error
	GetBusinessRules(ctx context.Context) (*model.BusinessRules, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type cachedStore struct {
	Store
	cache ReportCache
}

// WithReportCache redirects report reads and writes to cache, leaving runs
// and rules on the backing store. Used to front a SQL store with Redis.
func WithReportCache(st Store, cache ReportCache) Store {
	return &cachedStore{Store: st, cache: cache}
}

func (c *cachedStore) GetReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	return c.cache.GetReport(ctx, orgnr)
}

func (c *cachedStore) PutReport(ctx context.Context, report *model.AIReport) error {
	return c.cache.PutReport(ctx, report)
}
