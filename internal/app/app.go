// Package app provides application initialization and dependency wiring.
//
// App is the core container that assembles the inference engine, the model
// dispatcher, the session and document stores and the streaming pipeline
// from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/koopa0/llamagate/internal/config"
	"github.com/koopa0/llamagate/internal/dispatch"
	"github.com/koopa0/llamagate/internal/engine"
	"github.com/koopa0/llamagate/internal/filecache"
	"github.com/koopa0/llamagate/internal/log"
	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/observability"
	"github.com/koopa0/llamagate/internal/parser"
	"github.com/koopa0/llamagate/internal/pipeline"
	"github.com/koopa0/llamagate/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Engine     engine.Engine
	Dispatcher *dispatch.Dispatcher
	Sessions   *session.Store
	Files      *filecache.Store
	Pipeline   *pipeline.Pipeline

	traceShutdown func(context.Context) error
}

// Setup builds the full component graph from configuration. The initial
// model is loaded eagerly so the service comes up either serving or not
// at all.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Otel.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Otel.Endpoint,
			Environment: cfg.Otel.Environment,
			ServiceName: cfg.Otel.ServiceName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.traceShutdown = shutdown
	}

	eng, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Engine = eng

	initial, err := model.Resolve(cfg.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("resolving default model: %w", err)
	}

	dispatcher, err := dispatch.New(ctx, eng, initial, logger)
	if err != nil {
		return nil, fmt.Errorf("loading initial model %s: %w", initial.Name(), err)
	}
	a.Dispatcher = dispatcher

	a.Sessions = session.NewStore(logger)
	a.Files = filecache.NewStore(parser.NewRegistry(), logger)
	a.Pipeline = pipeline.New(a.Sessions, a.Files, dispatcher, cfg.SessionConfig(), logger)

	logger.Info("application ready",
		"engine", cfg.Engine,
		"model", initial.Name(),
		"max_turns", cfg.MaxTurns,
	)
	return a, nil
}

// newEngine selects the inference backend from configuration.
func newEngine(ctx context.Context, cfg *config.Config, logger log.Logger) (engine.Engine, error) {
	switch cfg.Engine {
	case config.EngineOllama:
		eng, err := engine.NewOllama(ctx, engine.OllamaConfig{
			Host:   cfg.OllamaHost,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing ollama engine: %w", err)
		}
		return eng, nil
	case config.EngineSim:
		return &engine.Sim{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidEngine, cfg.Engine)
	}
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil {
			a.Logger.Warn("flushing traces", "error", err)
		}
	}
	return nil
}
