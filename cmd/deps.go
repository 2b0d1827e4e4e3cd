package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodrick-mpofu/teachback-ai/internal/config"
	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
	"github.com/rodrick-mpofu/teachback-ai/internal/enrich"
	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
	"github.com/rodrick-mpofu/teachback-ai/internal/temporalx"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

const shutdownTimeout = 10 * time.Second

// base is what every command needs: configuration, a logger and the store.
type base struct {
	cfg   config.Config
	log   *logger.Logger
	store *store.Store
}

func openBase(cmd *cobra.Command) (*base, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file, cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.DBPath
	if dbPath != "" {
		err = store.EnsureDir(dbPath)
	} else {
		dbPath, err = store.DefaultDBPath()
	}
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log.Debug("configuration loaded", append(cfg.Summary(), "db", dbPath)...)
	return &base{cfg: cfg, log: log, store: st}, nil
}

func (b *base) close() {
	if err := b.store.Close(); err != nil {
		b.log.Warn("close database", "error", err)
	}
	b.log.Sync()
}

// sink fans events out to the log and, when configured, redis.
func (b *base) sink(ctx context.Context) (observability.Sink, func() error) {
	logSink := observability.NewLogSink(b.log)
	if b.cfg.Redis.Addr == "" {
		return logSink, func() error { return nil }
	}
	rs, err := observability.NewRedisSink(ctx, b.cfg.Redis.Addr, b.cfg.Redis.Channel, b.log)
	if err != nil {
		b.log.Warn("redis event sink unavailable", "addr", b.cfg.Redis.Addr, "error", err)
		return logSink, func() error { return nil }
	}
	return observability.Multi(logSink, rs), rs.Close
}

// model builds the tutor service over the configured provider.
func (b *base) model(ctx context.Context) (*tutor.Service, llm.Provider, error) {
	provider, err := llm.NewProvider(ctx, b.cfg.LLM, b.store.EventRepo(), b.log)
	if err != nil {
		return nil, nil, err
	}
	return tutor.NewService(provider), provider, nil
}

// app is a fully wired engine plus the resources it holds.
type app struct {
	*base
	engine  *engine.Engine
	closers []func(context.Context) error
}

func openApp(cmd *cobra.Command) (*app, error) {
	b, err := openBase(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	a := &app{base: b}

	shutdownTracing, err := observability.InitTracing(ctx, withVersion(b.cfg.Tracing), b.log)
	if err != nil {
		b.close()
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	sink, closeSink := b.sink(ctx)
	a.closers = append(a.closers, func(context.Context) error { return closeSink() })

	model, provider, err := b.model(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	b.log.Info("llm provider ready", "provider", b.cfg.LLM.Provider, "model", provider.ModelID())

	deps := engine.Deps{
		Model:    model,
		Enricher: enrich.NewLLMConcepts(provider),
		Repos:    engine.ReposFromStore(b.store),
		Sink:     sink,
		Log:      b.log,
	}

	if b.cfg.Temporal.Enabled() {
		tc, err := temporalx.Dial(ctx, b.cfg.Temporal, b.log)
		if err != nil {
			b.log.Warn("temporal unavailable, turns run locally", "address", b.cfg.Temporal.Address, "error", err)
		} else if tc != nil {
			deps.Remote = temporalx.NewPlatform(tc, b.cfg.Temporal, b.log)
			a.closers = append(a.closers, func(context.Context) error { tc.Close(); return nil })
		}
	}

	eng, err := engine.New(b.cfg.Engine, deps)
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = eng
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("shutdown", "error", err)
	}
	a.base.close()
}

func withVersion(c observability.TracingConfig) observability.TracingConfig {
	if c.Version == "" {
		c.Version = version
	}
	return c
}
