package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/analysis"
	"github.com/sells-group/dealflow-cli/internal/cost"
	"github.com/sells-group/dealflow-cli/internal/store"
	"github.com/sells-group/dealflow-cli/pkg/anthropic"
)

// initStore opens the configured store backend, runs migrations, and
// optionally fronts the report cache with Redis.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "dealflow.db"
		}
		st, err = store.NewSQLite(path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	if cfg.Redis.Enabled {
		cache, err := store.NewRedisReportCache(ctx, cfg.Redis)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		zap.L().Info("report cache on redis", zap.String("addr", cfg.Redis.Addr))
		st = store.WithReportCache(st, cache)
	}

	return st, nil
}

// initOrchestrator builds the analysis orchestrator on the configured
// store and a Claude backend.
func initOrchestrator(st store.Store) *analysis.Orchestrator {
	client := anthropic.NewClient(cfg.Anthropic.Key)
	backend := analysis.NewClaudeBackend(client, cfg.Anthropic.ClaudeConfig(), cost.NewCalculator(cfg.Cost))
	return analysis.New(st, backend, cfg.Analysis)
}
