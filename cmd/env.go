package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clahage/my-clever-crm-sub012/internal/dedupe"
	"github.com/clahage/my-clever-crm-sub012/internal/ingest"
	"github.com/clahage/my-clever-crm-sub012/internal/lifecycle"
	"github.com/clahage/my-clever-crm-sub012/internal/monitoring"
	"github.com/clahage/my-clever-crm-sub012/internal/store"
)

// crmEnv holds the initialized store and engines shared by the serve,
// process, sweep, and dedupe commands.
type crmEnv struct {
	Store     store.Store
	Pipeline  *ingest.Pipeline
	Lifecycle *lifecycle.Engine
	Dedupe    *dedupe.Engine
	Notifier  monitoring.Notifier
}

// Close releases resources held by the environment.
func (e *crmEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the configured store, migrates it, loads classification
// rules, and wires the engines. Callers should defer env.Close().
func initEnv(ctx context.Context) (*crmEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	rules := ingest.DefaultRules()
	if cfg.Ingest.RulesPath != "" {
		rules, err = ingest.LoadRules(cfg.Ingest.RulesPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		zap.L().Info("classification rules loaded", zap.String("path", cfg.Ingest.RulesPath))
	}

	var notifier monitoring.Notifier = monitoring.NopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = monitoring.NewWebhookNotifier(cfg.Notify.WebhookURL)
		zap.L().Info("webhook notifications enabled")
	} else {
		zap.L().Debug("CRM_NOTIFY_WEBHOOK_URL not set, notifications disabled")
	}

	return &crmEnv{
		Store:     st,
		Pipeline:  ingest.NewPipeline(st, st, rules, notifier),
		Lifecycle: lifecycle.NewEngine(st),
		Dedupe:    dedupe.NewEngine(st, notifier, cfg.Dedupe.MergesPerSecond),
		Notifier:  notifier,
	}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("using sqlite store", zap.String("path", cfg.Store.SQLitePath))
		return st, nil
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url required for postgres driver")
		}
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		zap.L().Info("using postgres store")
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
