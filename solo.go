package solo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	cfg "github.com/loykin/solo/internal/config"
	"github.com/loykin/solo/internal/history"
	"github.com/loykin/solo/internal/history/factory"
	"github.com/loykin/solo/internal/logger"
	"github.com/loykin/solo/internal/marker"
	"github.com/loykin/solo/internal/metrics"
	"github.com/loykin/solo/internal/process"
	"github.com/loykin/solo/internal/server"
	"github.com/loykin/solo/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Application = supervisor.Application

type ApplicationFunc = supervisor.ApplicationFunc

type Outcome = supervisor.Outcome

type OutcomeKind = supervisor.OutcomeKind

const (
	Completed   = supervisor.Completed
	Interrupted = supervisor.Interrupted
	Signaled    = supervisor.Signaled
	Failed      = supervisor.Failed
	Aborted     = supervisor.Aborted
)

// ErrInterrupted is returned by an Application that stopped on user request.
var ErrInterrupted = supervisor.ErrInterrupted

type Config = cfg.Config

type HistorySink = history.Sink

type HistoryEvent = history.Event

type ProcessTable = process.Table

type ProcessInfo = process.Info

func LoadConfig(path string) (*Config, error) { return cfg.LoadConfig(path) }

// DefaultConfig returns the built-in configuration with SOLO_* overrides applied.
func DefaultConfig() (*Config, error) { return cfg.Default() }

type options struct {
	out        io.Writer
	logOut     io.Writer
	signals    <-chan os.Signal
	table      process.Table
	history    history.Sink
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// Option customises New.
type Option func(*options)

// WithOutput sets where operator banners are printed (default stdout).
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithLogOutput sets the console log destination (default stderr).
func WithLogOutput(w io.Writer) Option { return func(o *options) { o.logOut = w } }

// WithSignals replaces the SIGINT/SIGTERM subscription.
func WithSignals(ch <-chan os.Signal) Option { return func(o *options) { o.signals = ch } }

// WithProcessTable replaces the gopsutil-backed process table.
func WithProcessTable(t ProcessTable) Option { return func(o *options) { o.table = t } }

// WithHistory uses s instead of the sink built from history.dsn.
func WithHistory(s HistorySink) Option { return func(o *options) { o.history = s } }

// WithRegistry registers launcher metrics on r instead of the default registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registerer, o.gatherer = r, r }
}

// Launcher is a configured single-instance launcher.
type Launcher struct {
	cfg       *Config
	sup       *supervisor.Supervisor
	log       *slog.Logger
	metrics   http.Handler
	startedAt time.Time
	closers   []io.Closer
}

// New wires a Launcher from c. A nil c uses DefaultConfig.
func New(c *Config, opts ...Option) (*Launcher, error) {
	if c == nil {
		var err error
		if c, err = DefaultConfig(); err != nil {
			return nil, err
		}
	}
	o := options{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	lg, logCloser, err := logger.New(c.LoggerConfig(), o.logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	l := &Launcher{cfg: c, log: lg, startedAt: time.Now(), closers: []io.Closer{logCloser}}

	path, err := marker.Resolve(c.Marker.Path)
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	sink := o.history
	if sink == nil && c.History.DSN != "" {
		if sink, err = factory.NewSinkFromDSN(c.History.DSN); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("failed to open history sink: %w", err)
		}
		l.closers = append(l.closers, closerFunc(func() error { return history.Close(sink) }))
	}

	if c.Metrics.Enabled {
		if err := metrics.Register(o.registerer); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		l.metrics = metrics.HandlerFor(o.gatherer)
	}

	table := o.table
	if table == nil {
		table = process.NewSystemTable()
	}
	l.sup, err = supervisor.New(supervisor.Options{
		Marker:           marker.New(path),
		Table:            table,
		Detectors:        c.Detectors(),
		Grace:            c.Termination.Grace,
		KillWait:         c.Termination.KillWait,
		RemoveMismatched: c.Identity.RemoveMismatched,
		Product:          c.Product,
		Logger:           lg,
		Out:              o.out,
		History:          sink,
		Signals:          o.signals,
	})
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// Run stops any prior instance, claims the marker and runs app.
func (l *Launcher) Run(ctx context.Context, app Application) Outcome {
	return l.sup.Run(ctx, app)
}

// Serve runs the bundled HTTP status server as the application.
func (l *Launcher) Serve(ctx context.Context) Outcome {
	return l.sup.Run(ctx, l.BundledApp())
}

// BundledApp returns the HTTP status server configured by [app].
func (l *Launcher) BundledApp() Application {
	r := server.NewRouter(server.Instance{
		PID:        l.sup.PID(),
		StartedAt:  l.startedAt,
		MarkerPath: l.sup.MarkerPath(),
		Product:    l.sup.Product(),
	}, "")
	if l.metrics != nil {
		r.WithMetrics(l.metrics)
	}
	return &server.App{Listen: l.cfg.App.Listen, Router: r, Logger: l.log}
}

// Status reports the running instance without touching it.
func (l *Launcher) Status() (ProcessInfo, bool) { return l.sup.Status() }

// Stop terminates the running instance, if any.
func (l *Launcher) Stop() bool { return l.sup.Stop() }

func (l *Launcher) MarkerPath() string { return l.sup.MarkerPath() }

func (l *Launcher) Logger() *slog.Logger { return l.log }

func (l *Launcher) Config() *Config { return l.cfg }

// Close releases the log file and history sink.
func (l *Launcher) Close() error {
	var errs []error
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
