// Package app wires configuration, logging, metrics and the bus directory
// into a runnable process and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/stickybus/internal/config"
	"github.com/dshills/stickybus/internal/event"
	"github.com/dshills/stickybus/internal/event/directory"
	"github.com/dshills/stickybus/internal/logging"
)

// Application owns the buses of a process together with the ambient
// services around them.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	cfg      *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	buses    *directory.Directory

	// Metrics endpoint, nil when disabled
	server      *http.Server
	metricsAddr string

	// State
	running      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error

	// Options
	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty uses the
	// defaults and the environment only, and disables hot reload.
	ConfigPath string

	// LogLevel overrides the configured log level. A level set here is not
	// changed by a config reload.
	LogLevel string

	// Demo runs the built-in workload on the default and "jobs" buses.
	Demo bool

	// DemoInterval is the workload tick. Zero uses one second.
	DemoInterval time.Duration

	// ShutdownTimeout bounds how long Shutdown waits for queued deliveries
	// when the caller's context has no deadline. Zero uses five seconds.
	ShutdownTimeout time.Duration
}

// New creates and initializes a new application.
func New(opts Options) (*Application, error) {
	if opts.DemoInterval <= 0 {
		opts.DemoInterval = time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	app := &Application{opts: opts}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run runs the enabled components until ctx is cancelled or one of them
// fails. It does not shut the buses down; call Shutdown afterwards.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	app.logger.Infow("application started",
		"config", app.opts.ConfigPath,
		"metrics", app.server != nil,
		"demo", app.opts.Demo,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	if app.server != nil {
		g.Go(func() error { return app.serveMetrics(ctx) })
	}
	if app.opts.ConfigPath != "" {
		g.Go(func() error { return app.watchConfig(ctx) })
	}
	if app.opts.Demo {
		g.Go(func() error { return app.runWorkload(ctx) })
	}

	err := g.Wait()
	app.logger.Infow("application stopped", "uptime", app.metrics.Uptime().Round(time.Millisecond))
	return err
}

// IsRunning reports whether Run is in progress.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Shutdown drains and stops every bus. It is safe to call more than once;
// later calls return the first result.
func (app *Application) Shutdown(ctx context.Context) error {
	app.shutdownOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, app.opts.ShutdownTimeout)
			defer cancel()
		}

		err := app.buses.Shutdown(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(ErrShutdownTimeout, err)
		}
		if err != nil {
			app.logger.Errorw("bus shutdown failed", "error", err)
		}
		_ = app.logger.Sync()
		app.shutdownErr = err
	})
	return app.shutdownErr
}

// Buses returns the bus directory.
func (app *Application) Buses() *directory.Directory {
	return app.buses
}

// Bus returns the bus with the given tag, creating it on first use.
func (app *Application) Bus(tag string) (*event.Bus, error) {
	return app.buses.Obtain(tag)
}

// Config returns the current configuration. The result must not be modified.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Registry returns the registry that bus and process metrics are registered with.
func (app *Application) Registry() *prometheus.Registry {
	return app.registry
}

// Metrics returns the application counters.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// busFactory builds buses from the configuration current at creation time.
// Buses that already exist keep the settings they were created with.
func (app *Application) busFactory(tag string) *event.Bus {
	cfg := app.Config()
	name := tag
	if name == "" {
		name = directory.DefaultName
	}
	opts := BusOptions(cfg.BusFor(tag), app.logger.SugaredLogger, app.registry)
	opts = append(opts, event.WithName(name))
	return event.New(opts...)
}
