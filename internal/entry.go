// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/engine"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/persist"
	"github.com/starford/ansuz/internal/refresh"
	"github.com/starford/ansuz/internal/session"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

// stack is the wired set of components shared by every command.
type stack struct {
	logger    *slog.Logger
	svc       *noteservice.Service
	l2        io.Closer
	cache     *cache.Manager
	sessions  *session.Manager
	scheduler *refresh.Scheduler
	broker    *sse.Broker
	engine    *engine.Engine
}

func (a *application) init() error {
	if a.config == nil {
		return fmt.Errorf("config is required")
	}
	if a.logOutput == nil {
		a.logOutput = os.Stdout
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// build wires storage, caches, sessions, the scheduler and the engine.
// The returned stack must be closed.
func build(cfg *Config, logger *slog.Logger) (*stack, error) {
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	s := &stack{logger: logger, svc: noteservice.NewService(store, logger)}
	if _, err := s.svc.Sync(); err != nil {
		return nil, fmt.Errorf("initial sync: %w", err)
	}

	l2, err := openL2(cfg.Cache.L2)
	if err != nil {
		return nil, fmt.Errorf("init persistent cache: %w", err)
	}
	if c, ok := l2.(io.Closer); ok {
		s.l2 = c
	}

	s.cache, err = cache.NewManager(cache.Options{
		GlobalSize:   cfg.Cache.GlobalSize,
		PerNoteNotes: cfg.Cache.PerNoteNotes,
		PerNoteSize:  cfg.Cache.PerNoteSize,
		Policy:       cfg.Names.Policy,
		L2:           l2,
		L2Timeout:    cfg.Cache.L2.Timeout,
		Logger:       logger,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	s.broker = sse.NewBroker(0)
	s.sessions = session.NewManager(func(ctx context.Context, ids ...string) {
		s.cache.InvalidateForNotes(ctx, ids...)
		s.broker.PublishInvalidation(ids...)
	}, cfg.Session.Expiry, logger)

	s.scheduler = refresh.NewScheduler(cfg.Refresh.Interval, func(r refresh.Registration) {
		s.engine.InvalidateRefresh(r)
		if r.NoteID != "" {
			s.broker.PublishInvalidation(r.NoteID)
		}
	}, logger)

	s.engine, err = engine.New(s.svc, engine.Options{
		Cache:     s.cache,
		Sessions:  s.sessions,
		Scheduler: s.scheduler,
		Logger:    logger,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return s, nil
}

func openL2(cfg L2Config) (cache.Persistent, error) {
	switch {
	case !cfg.Enabled:
		return cache.NopPersistent{}, nil
	case cfg.Driver == L2DriverBolt:
		return persist.OpenBolt(cfg.BoltPath)
	default:
		return persist.Open(cfg.SQLitePath)
	}
}

// noteChanged invalidates directives that depend on a changed note and
// tells SSE clients about it.
func (s *stack) noteChanged(ctx context.Context, c noteservice.Change) {
	s.engine.NotesChanged(ctx, c.Kind == noteservice.Deleted, c.NoteID)
	s.broker.PublishNoteChanged(c.Kind, c.NoteID)
}

// Close stops background work and flushes pending persistent writes.
func (s *stack) Close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.broker != nil {
		s.broker.Close()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("cache close failed", slog.String("error", err.Error()))
		}
	}
	if s.l2 != nil {
		if err := s.l2.Close(); err != nil {
			s.logger.Error("persistent cache close failed", slog.String("error", err.Error()))
		}
	}
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if err := app.init(); err != nil {
		return err
	}

	cfg := app.config

	logger := newLogger(app.logOutput, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.Bool("l2_enabled", cfg.Cache.L2.Enabled),
		slog.String("l2_driver", cfg.Cache.L2.Driver),
		slog.String("names_policy", string(cfg.Names.Policy)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	s, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	h := api.NewHandler(s.svc, s.engine, s.sessions, s.cache, s.noteChanged, cfg.Cache.EvictionFraction)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, s.broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Foreign edits to the vault invalidate like API edits do.
	g.Go(func() error {
		if err := noteservice.Watch(gCtx, s.svc, logger, func(c noteservice.Change) {
			s.noteChanged(gCtx, c)
		}); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		return s.scheduler.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been shut down so the
// watcher and scheduler stop too.
var errShutdown = errors.New("shutdown")

// Evaluate runs one directive against the vault and writes its display
// text to w. A directive that fails to evaluate is reported as an error.
func Evaluate(ctx context.Context, w io.Writer, source, noteID string, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if err := app.init(); err != nil {
		return err
	}

	s, err := build(app.config, newLogger(app.logOutput, app.config.App.LogLevel))
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.engine.Execute(ctx, engine.Request{Source: source, NoteID: noteID})
	if err != nil {
		return err
	}
	if out.Err != nil {
		return out.Err
	}
	_, err = fmt.Fprintln(w, out.Display())
	return err
}

// ServeMCP serves the MCP tools on stdin/stdout until the client
// disconnects. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if err := app.init(); err != nil {
		return err
	}

	logger := newLogger(app.logOutput, app.config.App.LogLevel)
	s, err := build(app.config, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := noteservice.Watch(ctx, s.svc, logger, func(c noteservice.Change) {
			s.noteChanged(ctx, c)
		}); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()
	s.scheduler.Start()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(s.svc, s.engine, nil).ServeStdio()
}
