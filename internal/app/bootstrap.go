package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/stickybus/internal/config"
	"github.com/dshills/stickybus/internal/event/directory"
	"github.com/dshills/stickybus/internal/logging"
)

// bootstrapper handles application initialization in the correct order.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 5),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{"config", b.initConfig},
		{"logging", b.initLogging},
		{"metrics", b.initMetrics},
		{"buses", b.initBuses},
		{"metrics server", b.initServer},
	}

	for _, step := range steps {
		if err := step.init(); err != nil {
			b.cleanup()
			return err
		}
		b.initOrder = append(b.initOrder, step.name)
	}

	b.app.logger.Debugw("bootstrap complete", "components", b.initOrder)
	return nil
}

// initConfig loads the configuration file, environment and flag overrides.
func (b *bootstrapper) initConfig() error {
	cfg, err := config.Load(b.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if b.opts.LogLevel != "" {
		if _, err := logging.ParseLevel(b.opts.LogLevel); err != nil {
			return &InitError{Component: "config", Err: err}
		}
		cfg.Logging.Level = b.opts.LogLevel
	}
	b.app.cfg = cfg
	return nil
}

// initLogging builds the root logger.
func (b *bootstrapper) initLogging() error {
	logger, err := logging.New(b.app.cfg.Logging)
	if err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	b.app.logger = logger
	return nil
}

// initMetrics creates the registry and the application collectors.
func (b *bootstrapper) initMetrics() error {
	reg := prometheus.NewRegistry()
	m := NewMetrics()

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m,
	} {
		if err := reg.Register(c); err != nil {
			return &InitError{Component: "metrics", Err: err}
		}
	}

	b.app.registry = reg
	b.app.metrics = m
	return nil
}

// initBuses creates the bus directory and the default bus.
func (b *bootstrapper) initBuses() error {
	b.app.buses = directory.New(b.app.busFactory,
		directory.WithLogger(b.app.logger.SugaredLogger),
	)
	if _, err := b.app.buses.Default(); err != nil {
		return &InitError{Component: "buses", Err: err}
	}
	return nil
}

// initServer prepares the metrics endpoint. Run starts serving it.
func (b *bootstrapper) initServer() error {
	mc := b.app.cfg.Metrics
	if !mc.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(mc.Path, b.app.MetricsHandler())
	b.app.server = &http.Server{
		Addr:              mc.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// cleanup releases the components initialized so far.
func (b *bootstrapper) cleanup() {
	if b.app.buses != nil {
		ctx, cancel := shutdownContext(b.opts.ShutdownTimeout)
		defer cancel()
		_ = b.app.buses.Shutdown(ctx)
	}
	if b.app.logger != nil {
		_ = b.app.logger.Sync()
	}
}

// MetricsHandler serves the application registry in the Prometheus
// exposition format.
func (app *Application) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{
		ErrorLog:          zapErrorLog{app.logger},
		EnableOpenMetrics: true,
	})
}

// zapErrorLog adapts the logger to promhttp.Logger.
type zapErrorLog struct {
	logger *logging.Logger
}

func (l zapErrorLog) Println(v ...any) {
	l.logger.Named("metrics").Error(v...)
}
