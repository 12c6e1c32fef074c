package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/adapters/file"
	loamAdapter "github.com/aretw0/strata/pkg/adapters/loam"
	"github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/adapters/sqlite"
	"github.com/aretw0/strata/pkg/observability"
	"github.com/aretw0/strata/pkg/persistence/middleware"
)

// Stack is an engine together with the infrastructure it was wired to.
type Stack struct {
	Engine  *strata.Engine
	Config  *config.Config
	Metrics *observability.Metrics
	Ledger  *sqlite.Ledger

	closers []func(context.Context) error
}

// Close releases every backend, in reverse order of creation.
func (s *Stack) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	return errors.Join(errs...)
}

type stackOptions struct {
	debug bool
	// offline skips redis and tracing, for commands that never run a batch.
	offline bool
}

// createStack initializes a Strata engine with standard CLI conventions:
// rules through loam, artifacts on disk, redis and sqlite when configured.
func createStack(ctx context.Context, dir string, cfg *config.Config, logger *slog.Logger, so stackOptions) (*Stack, error) {
	st := &Stack{Config: cfg, Metrics: observability.NewMetrics()}
	ok := false
	defer func() {
		if !ok {
			_ = st.Close(ctx)
		}
	}()

	// 1. Tracing
	if !so.offline {
		shutdown, err := observability.SetupTracing(ctx, "strata", cfg.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, shutdown)
	}

	// 2. Rules and custom tokens
	loader, err := loamAdapter.Open(dir,
		loamAdapter.WithRulesID(cfg.Rules),
		loamAdapter.WithCustomID(cfg.Custom),
	)
	if err != nil {
		return nil, err
	}

	// 3. Artifacts
	var mws []middleware.Middleware
	if cfg.ImageRef == config.ImageRefDigest {
		mws = append(mws, middleware.NewContentAddressed())
	}
	if len(cfg.HideAttributes) > 0 {
		mws = append(mws, middleware.NewHideAttributes(cfg.HideAttributes))
	}
	store := middleware.Chain(
		file.New(config.Resolve(dir, cfg.Output), file.WithImageURI(cfg.ImageTemplate())),
		mws...,
	)

	hooks := st.Metrics.Hooks()
	if so.debug {
		hooks = hooks.Merge(createDebugHooks(logger))
	}

	engineOpts := []strata.Option{
		strata.WithLoader(loader),
		strata.WithLayersFS(os.DirFS(config.Resolve(dir, cfg.Layers))),
		strata.WithStore(store),
		strata.WithConcurrency(cfg.Concurrency),
		strata.WithBudgets(cfg.CategoryRetries, cfg.MaxRerolls),
		strata.WithCacheSize(cfg.CacheSize),
		strata.WithCanvas(cfg.Canvas()),
		strata.WithCollection(cfg.Collection, cfg.Description),
		strata.WithLifecycleHooks(hooks),
		strata.WithLogger(logger),
	}
	if len(cfg.LayerOrder) > 0 {
		engineOpts = append(engineOpts, strata.WithLayerOrder(cfg.LayerOrder...))
	}

	// 4. Shared seen-set and batch lock
	if cfg.RedisAddr != "" && !so.offline {
		seen := redis.New(cfg.RedisAddr, "", 0)
		st.closers = append(st.closers, func(context.Context) error { return seen.Close() })
		engineOpts = append(engineOpts,
			strata.WithSeenSet(seen),
			strata.WithLocker(redis.NewLocker(seen.Client(), "strata")),
		)
		logger.Debug("Using redis", "addr", cfg.RedisAddr)
	}

	// 5. Ledger
	if cfg.SQLitePath != "" {
		ledger, err := sqlite.Open(config.Resolve(dir, cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		st.Ledger = ledger
		st.closers = append(st.closers, func(context.Context) error { return ledger.Close() })
		engineOpts = append(engineOpts, strata.WithLedger(ledger))
	}

	engine, err := strata.New(dir, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	st.Engine = engine
	ok = true
	return st, nil
}
