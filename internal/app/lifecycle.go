package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dshills/stickybus/internal/config"
)

// ConfigReloaded is posted as a sticky event on the default bus after the
// configuration file was reloaded successfully.
type ConfigReloaded struct {
	Config *config.Config
	At     time.Time
}

// shutdownContext returns a background context bounded by d.
func shutdownContext(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}

// MetricsAddr returns the address the metrics endpoint listens on, or ""
// when it is not serving.
func (app *Application) MetricsAddr() string {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.metricsAddr
}

// serveMetrics serves the metrics endpoint until ctx is cancelled.
func (app *Application) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return &ComponentError{Component: "metrics", Action: "listen", Err: err}
	}

	app.mu.Lock()
	app.metricsAddr = ln.Addr().String()
	app.mu.Unlock()
	defer func() {
		app.mu.Lock()
		app.metricsAddr = ""
		app.mu.Unlock()
	}()

	logger := app.logger.Named("metrics")
	logger.Infow("serving metrics", "addr", ln.Addr().String(), "path", app.Config().Metrics.Path)

	errc := make(chan error, 1)
	go func() {
		errc <- app.server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return &ComponentError{Component: "metrics", Action: "serve", Err: err}
	case <-ctx.Done():
		sctx, cancel := shutdownContext(time.Second)
		defer cancel()
		if err := app.server.Shutdown(sctx); err != nil {
			logger.Warnw("metrics server shutdown", "error", err)
		}
		return nil
	}
}

// watchConfig reloads the configuration file on change until ctx is cancelled.
func (app *Application) watchConfig(ctx context.Context) error {
	w, err := config.NewWatcher(app.opts.ConfigPath, app.applyReload,
		config.WithWatcherLogger(app.logger.SugaredLogger),
	)
	if err != nil {
		return &ComponentError{Component: "watcher", Action: "start", Err: err}
	}
	<-ctx.Done()
	return w.Close()
}

// applyReload installs a reloaded configuration. The log level follows the
// file unless it was fixed by Options.LogLevel. Bus settings only affect
// buses created after the reload.
func (app *Application) applyReload(cfg *config.Config, err error) {
	app.metrics.RecordReload(err)
	if err != nil {
		app.logger.Warnw("config reload failed, keeping previous configuration", "error", err)
		return
	}

	if app.opts.LogLevel == "" {
		if err := app.logger.SetLevel(cfg.Logging.Level); err != nil {
			app.logger.Warnw("ignoring reloaded log level", "level", cfg.Logging.Level, "error", err)
		}
	}

	app.mu.Lock()
	app.cfg = cfg
	app.mu.Unlock()

	app.logger.Infow("config reloaded", "path", app.opts.ConfigPath, "level", app.logger.Level().String())

	bus, err := app.buses.Default()
	if err != nil {
		return
	}
	if err := bus.PostSticky(context.Background(), ConfigReloaded{Config: cfg, At: time.Now()}); err != nil {
		app.logger.Warnw("post config reload", "error", err)
	}
}
