package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/taskgroup"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/stickybus/internal/config"
	"github.com/dshills/stickybus/internal/event"
	"github.com/dshills/stickybus/internal/event/directory"
)

func newTestApp(t *testing.T, opts Options) *Application {
	t.Helper()
	if opts.LogLevel == "" {
		opts.LogLevel = "error"
	}
	app, err := New(opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	return app
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stickybus.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// runApp runs app in the background and returns a func that stops it and
// reports Run's result.
func runApp(t *testing.T, app *Application) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var g taskgroup.Group
	var runErr error
	g.Go(func() error {
		runErr = app.Run(ctx)
		return nil
	})
	eventually(t, "Run to start", app.IsRunning)
	return func() error {
		cancel()
		g.Wait()
		return runErr
	}
}

func TestNew(t *testing.T) {
	app := newTestApp(t, Options{})

	if app.Config() == nil {
		t.Fatal("expected config to be initialized")
	}
	if app.Registry() == nil || app.Metrics() == nil {
		t.Fatal("expected metrics to be initialized")
	}
	if app.server != nil {
		t.Error("metrics server created although metrics are disabled")
	}
	if app.Buses().Len() != 1 {
		t.Errorf("Buses().Len() = %d, want the default bus only", app.Buses().Len())
	}
	bus, err := app.Bus("")
	if err != nil {
		t.Fatalf("Bus() failed: %v", err)
	}
	if bus.Name() != directory.DefaultName {
		t.Errorf("default bus name = %q, want %q", bus.Name(), directory.DefaultName)
	}
	if app.Logger().Level() != zapcore.ErrorLevel {
		t.Errorf("log level = %v, want the -log-level override", app.Logger().Level())
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		component string
		is        error
	}{
		{
			name:      "invalid log level",
			opts:      Options{LogLevel: "loud"},
			component: "config",
		},
		{
			name:      "missing config file",
			opts:      Options{ConfigPath: filepath.Join(t.TempDir(), "missing.toml"), LogLevel: "error"},
			component: "config",
			is:        config.ErrFileNotFound,
		},
		{
			name:      "invalid config file",
			opts:      Options{ConfigPath: writeConfig(t, "[logging]\nformat = \"xml\"\n"), LogLevel: "error"},
			component: "config",
			is:        config.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := New(tt.opts)
			var ierr *InitError
			if app != nil || !errors.As(err, &ierr) || ierr.Component != tt.component {
				t.Fatalf("New() = %v, %v; want an init error for %s", app, err, tt.component)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("New() = %v, want %v", err, tt.is)
			}
		})
	}
}

type label string

func (l label) String() string { return string(l) }

func TestBusesFollowConfig(t *testing.T) {
	path := writeConfig(t, "[buses.ui]\nevent_inheritance = true\n")
	app := newTestApp(t, Options{ConfigPath: path})

	deliveries := func(tag string) int {
		bus, err := app.Bus(tag)
		if err != nil {
			t.Fatalf("Bus(%q) failed: %v", tag, err)
		}
		var got int
		if _, err := event.SubscribeFunc(bus, t, func(fmt.Stringer) { got++ }); err != nil {
			t.Fatalf("SubscribeFunc() failed: %v", err)
		}
		if err := bus.Post(context.Background(), label("x")); err != nil {
			t.Fatalf("Post() failed: %v", err)
		}
		return got
	}

	if n := deliveries("ui"); n != 1 {
		t.Errorf("ui bus delivered %d events to an interface subscriber, want 1", n)
	}
	if n := deliveries(""); n != 0 {
		t.Errorf("default bus delivered %d events to an interface subscriber, want 0", n)
	}

	bus, _ := app.Bus("ui")
	if bus.Name() != "ui" {
		t.Errorf("bus name = %q, want ui", bus.Name())
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	app := newTestApp(t, Options{})
	stop := runApp(t, app)

	if err := app.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
	if err := stop(); err != nil {
		t.Errorf("Run() = %v", err)
	}
	if app.IsRunning() {
		t.Error("IsRunning() after Run returned")
	}
}

func TestRun_ServesMetrics(t *testing.T) {
	path := writeConfig(t, "[metrics]\nenabled = true\naddr = \"127.0.0.1:0\"\n")
	app := newTestApp(t, Options{ConfigPath: path})
	stop := runApp(t, app)
	defer stop()

	eventually(t, "metrics endpoint", func() bool { return app.MetricsAddr() != "" })

	resp, err := http.Get("http://" + app.MetricsAddr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"stickybus_uptime_seconds", `bus="default"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output lacks %s", want)
		}
	}

	if err := stop(); err != nil {
		t.Errorf("Run() = %v", err)
	}
	if app.MetricsAddr() != "" {
		t.Error("MetricsAddr() still set after Run returned")
	}
}

func TestRun_MetricsListenFailure(t *testing.T) {
	path := writeConfig(t, "[metrics]\nenabled = true\naddr = \"127.0.0.1:99999\"\n")
	app := newTestApp(t, Options{ConfigPath: path})

	err := app.Run(context.Background())
	var cerr *ComponentError
	if !errors.As(err, &cerr) || cerr.Component != "metrics" {
		t.Errorf("Run() = %v, want a metrics component error", err)
	}
}

func TestMetricsHandler(t *testing.T) {
	app := newTestApp(t, Options{})
	app.Metrics().RecordReload(nil)

	rec := httptest.NewRecorder()
	app.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `stickybus_config_reloads_total{result="ok"} 1`) {
		t.Errorf("reload counter missing from:\n%s", rec.Body.String())
	}
}

func TestRun_ReloadsConfig(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	app, err := New(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	stop := runApp(t, app)
	defer stop()

	// The watcher starts inside Run; rewrite until a reload is observed.
	eventually(t, "config reload", func() bool {
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
		return app.Logger().Level() == zapcore.DebugLevel
	})

	if app.Config().Logging.Level != "debug" {
		t.Errorf("Config().Logging.Level = %q, want debug", app.Config().Logging.Level)
	}
	bus, _ := app.Bus("")
	v, ok := bus.GetStickyEvent(reflect.TypeFor[ConfigReloaded]())
	if !ok || v.(ConfigReloaded).Config.Logging.Level != "debug" {
		t.Errorf("sticky ConfigReloaded = %v, %v", v, ok)
	}
	if app.Metrics().Snapshot().Reloads == 0 {
		t.Error("reload not counted")
	}
}

func TestApplyReload(t *testing.T) {
	app := newTestApp(t, Options{LogLevel: "warn"})
	before := app.Config()

	app.applyReload(nil, errors.New("broken file"))
	if app.Config() != before {
		t.Error("failed reload replaced the configuration")
	}

	cfg := config.Default()
	cfg.Logging.Level = "debug"
	app.applyReload(cfg, nil)

	if app.Config() != cfg {
		t.Error("reload did not install the new configuration")
	}
	if app.Logger().Level() != zapcore.WarnLevel {
		t.Errorf("log level = %v, want the -log-level override to win", app.Logger().Level())
	}

	s := app.Metrics().Snapshot()
	if s.Reloads != 1 || s.ReloadFailures != 1 {
		t.Errorf("reloads = %d ok, %d failed; want 1, 1", s.Reloads, s.ReloadFailures)
	}
}

func TestShutdown(t *testing.T) {
	app := newTestApp(t, Options{})
	if _, err := app.Bus("extra"); err != nil {
		t.Fatal(err)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
	if _, err := app.Bus("later"); !errors.Is(err, directory.ErrClosed) {
		t.Errorf("Bus() after Shutdown = %v, want ErrClosed", err)
	}
}

func TestComponentError(t *testing.T) {
	inner := errors.New("address in use")
	err := &ComponentError{Component: "metrics", Action: "listen", Err: inner}
	if err.Error() != "metrics: listen: address in use" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("ComponentError does not unwrap")
	}

	ierr := &InitError{Component: "logging", Err: inner}
	if ierr.Error() != "init logging: address in use" || !errors.Is(ierr, inner) {
		t.Errorf("InitError = %q", ierr.Error())
	}
}
