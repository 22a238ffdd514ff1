package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/backend"
	"github.com/starford/notelog/internal/filestore"
	"github.com/starford/notelog/internal/metrics"
	"github.com/starford/notelog/internal/noteservice"
	"github.com/starford/notelog/internal/plugins"
	"github.com/starford/notelog/internal/sse"
)

// wordsThrottle bounds how often words.updated is pushed to SSE clients.
const wordsThrottle = 2 * time.Second

// App holds the wired components shared by the server and the CLI commands.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Plugins  *plugins.Manager
	Backends *backend.Coordinator
	Broker   *sse.Broker // nil unless WithEvents
	Service  *noteservice.Service
}

// NewLogger returns the JSON logger used across the application.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Build opens the configured backends and wires the note service over them.
// The caller must Close the returned App.
func Build(ctx context.Context, opts ...Option) (*App, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required: %w", apperr.ErrConfig)
	}
	cfg := app.config
	logger := app.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := app.now
	if now == nil {
		now = time.Now
	}

	pm, err := plugins.Load(cfg.Plugins, now)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	bopts := cfg.BackendOptions()
	bopts.Builder = pm.Builder()
	bopts.Logger = logger
	bopts.Metrics = m

	coord, err := backend.Open(ctx, cfg.Backends, bopts)
	if err != nil {
		return nil, fmt.Errorf("init backends: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Plugins:  pm,
		Backends: coord,
	}

	svcOpts := []noteservice.Option{
		noteservice.WithClock(now),
		noteservice.WithLogger(logger),
	}
	if app.events {
		a.Broker = sse.NewBroker(wordsThrottle)
		svcOpts = append(svcOpts, noteservice.WithNotifier(a.Broker))
	}
	a.Service = noteservice.NewService(coord, pm, svcOpts...)

	logger.Debug("backends opened",
		slog.String("primary", coord.Primary().Name()),
		slog.Int("count", len(coord.Backends())))

	return a, nil
}

// Close releases the backends and stops the broker.
func (a *App) Close() error {
	if a.Broker != nil {
		a.Broker.Close()
	}
	return a.Backends.Close()
}

// openBackend returns the named backend, reusing a configured one. The
// returned release func closes backends opened only for this call.
func (a *App) openBackend(ctx context.Context, name string) (backend.Backend, func() error, error) {
	if b, ok := a.Backends.Lookup(name); ok {
		return b, func() error { return nil }, nil
	}
	bopts := a.Config.BackendOptions()
	bopts.Builder = a.Plugins.Builder()
	bopts.Logger = a.Logger
	bopts.Metrics = a.Metrics
	enabled := slices.Contains(a.Config.Backends, name)
	b, err := backend.OpenOne(ctx, name, bopts, enabled)
	if err != nil {
		return nil, nil, err
	}
	release := func() error {
		if c, ok := b.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	return b, release, nil
}

// Migrate copies every note of backend src into backend dst.
func (a *App) Migrate(ctx context.Context, src, dst string, progress backend.ProgressFunc) (n int, err error) {
	if src == dst {
		return 0, fmt.Errorf("migrate: source and destination are both %q: %w", src, apperr.ErrInvalid)
	}
	from, releaseFrom, err := a.openBackend(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("migrate: open %s: %w", src, err)
	}
	defer func() { err = errors.Join(err, releaseFrom()) }()

	to, releaseTo, err := a.openBackend(ctx, dst)
	if err != nil {
		return 0, fmt.Errorf("migrate: open %s: %w", dst, err)
	}
	defer func() { err = errors.Join(err, releaseTo()) }()

	n, err = backend.Migrate(ctx, from, to, progress)
	a.Logger.Info("migration finished",
		slog.String("src", src),
		slog.String("dst", dst),
		slog.Int("notes", n))
	return n, err
}

// Restore replaces the notes file with its backup copy.
func (a *App) Restore(ctx context.Context) (err error) {
	b, release, err := a.openBackend(ctx, filestore.Name)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	defer func() { err = errors.Join(err, release()) }()

	store, ok := b.(*filestore.Store)
	if !ok {
		return fmt.Errorf("restore: backend %q is not a notes file: %w", b.Name(), apperr.ErrConfig)
	}
	if err := store.Restore(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

// fileStore returns the configured file backend, if any.
func (a *App) fileStore() (*filestore.Store, bool) {
	b, ok := a.Backends.Lookup(filestore.Name)
	if !ok {
		return nil, false
	}
	store, ok := b.(*filestore.Store)
	return store, ok
}
