package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/loykin/solo/internal/detector"
	"github.com/loykin/solo/internal/history"
	"github.com/loykin/solo/internal/marker"
	"github.com/loykin/solo/internal/metrics"
	"github.com/loykin/solo/internal/process"
)

const (
	DefaultGrace    = 5 * time.Second
	DefaultKillWait = 3 * time.Second
	DefaultStopWait = 5 * time.Second

	historyTimeout = 2 * time.Second
)

// State is a step of the launcher state machine:
// start -> probing -> (terminating_prior ->)? claiming -> delegating -> exited.
type State string

const (
	StateStart            State = "start"
	StateProbing          State = "probing"
	StateTerminatingPrior State = "terminating_prior"
	StateClaiming         State = "claiming"
	StateDelegating       State = "delegating"
	StateExited           State = "exited"
)

// Options configures a Supervisor. Marker and Table are required.
type Options struct {
	Marker    *marker.Marker
	Table     process.Table
	Detectors []detector.Detector

	Grace    time.Duration // wait after SIGTERM (default 5s)
	KillWait time.Duration // wait after SIGKILL (default 3s)
	// StopWait bounds how long Run waits for the application to return
	// after a signal cancelled it (default 5s).
	StopWait time.Duration

	// RemoveMismatched deletes a marker whose pid belongs to an unrelated
	// process. Off by default: the marker is left and a warning logged.
	RemoveMismatched bool

	Product string
	Logger  *slog.Logger
	Out     io.Writer    // operator output, default os.Stdout
	History history.Sink // optional

	// Signals delivers interrupts while delegating. When nil, Run subscribes
	// to SIGINT and SIGTERM itself.
	Signals <-chan os.Signal

	// PID recorded in the marker, default os.Getpid().
	PID int
}

// Supervisor keeps a single instance of the product running.
type Supervisor struct {
	marker           *marker.Marker
	table            process.Table
	detectors        []detector.Detector
	grace            time.Duration
	killWait         time.Duration
	stopWait         time.Duration
	removeMismatched bool
	product          string
	log              *slog.Logger
	out              io.Writer
	history          history.Sink
	signals          <-chan os.Signal
	pid              int

	state atomic.Value // State
}

func New(opts Options) (*Supervisor, error) {
	if opts.Marker == nil {
		return nil, errors.New("supervisor: marker is required")
	}
	if opts.Table == nil {
		return nil, errors.New("supervisor: process table is required")
	}
	s := &Supervisor{
		marker:           opts.Marker,
		table:            opts.Table,
		detectors:        opts.Detectors,
		grace:            opts.Grace,
		killWait:         opts.KillWait,
		stopWait:         opts.StopWait,
		removeMismatched: opts.RemoveMismatched,
		product:          opts.Product,
		log:              opts.Logger,
		out:              opts.Out,
		history:          opts.History,
		signals:          opts.Signals,
		pid:              opts.PID,
	}
	if s.grace <= 0 {
		s.grace = DefaultGrace
	}
	if s.killWait <= 0 {
		s.killWait = DefaultKillWait
	}
	if s.stopWait <= 0 {
		s.stopWait = DefaultStopWait
	}
	if s.product == "" {
		s.product = "solo"
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.pid <= 0 {
		s.pid = os.Getpid()
	}
	s.log = s.log.With("component", "supervisor")
	s.state.Store(StateStart)
	return s, nil
}

func (s *Supervisor) State() State { return s.state.Load().(State) }

func (s *Supervisor) MarkerPath() string { return s.marker.Path() }

func (s *Supervisor) PID() int { return s.pid }

func (s *Supervisor) Product() string { return s.product }

func (s *Supervisor) setState(to State) {
	from := s.state.Swap(to).(State)
	metrics.RecordStateTransition(string(from), string(to))
	s.log.Debug("state transition", "from", from, "to", to)
}

// Discover reads the marker and returns the prior instance it points to.
// Stale, corrupt, mismatched or unreadable markers yield (nil, false).
// OS errors are logged and never returned.
func (s *Supervisor) Discover() (process.Handle, bool) {
	path := s.marker.Path()
	pid, err := s.marker.Read()
	if err != nil {
		var inv *marker.InvalidError
		switch {
		case os.IsNotExist(err):
			metrics.IncDiscovery("none")
		case errors.As(err, &inv):
			s.log.Warn("removing corrupt marker", "path", path, "content", inv.Content)
			s.removeMarker()
			metrics.IncDiscovery("invalid")
			s.record(history.EventStale, 0, "invalid content")
		default:
			s.log.Warn("cannot read marker", "path", path, "error", err)
			metrics.IncDiscovery("error")
		}
		return nil, false
	}

	alive, err := s.table.Exists(pid)
	if err != nil {
		s.log.Warn("cannot check process", "pid", pid, "error", err)
		metrics.IncDiscovery("error")
		return nil, false
	}
	if !alive {
		s.log.Info("removing stale marker", "path", path, "pid", pid)
		s.removeMarker()
		metrics.IncDiscovery("stale")
		s.record(history.EventStale, pid, "process not running")
		return nil, false
	}
	// A killed instance left its marker and the pid was handed back to us.
	if pid == s.pid {
		s.log.Info("removing stale marker holding own pid", "path", path, "pid", pid)
		s.removeMarker()
		metrics.IncDiscovery("stale")
		s.record(history.EventStale, pid, "own pid")
		return nil, false
	}

	h, err := s.table.Get(pid)
	if err != nil {
		s.log.Warn("cannot inspect process", "pid", pid, "error", err)
		metrics.IncDiscovery("error")
		return nil, false
	}
	cmdline, err := h.CommandLine()
	if err != nil {
		s.log.Warn("cannot read command line", "pid", pid, "error", err)
		metrics.IncDiscovery("error")
		return nil, false
	}

	d := detector.First(s.detectors, cmdline)
	if d == nil {
		// The pid was most likely recycled by an unrelated process.
		s.log.Warn("marker pid belongs to another program", "path", path, "pid", pid, "cmdline", cmdline)
		if s.removeMismatched {
			s.removeMarker()
		}
		metrics.IncDiscovery("mismatch")
		s.record(history.EventMismatch, pid, cmdline)
		return nil, false
	}

	s.log.Info("found running instance", "pid", pid, "detector", d.Describe())
	metrics.IncDiscovery("found")
	s.record(history.EventDiscovered, pid, d.Describe())
	return h, true
}

// Terminate stops h with SIGTERM, escalating to SIGKILL after the grace
// period. A process that disappears on its own counts as stopped.
func (s *Supervisor) Terminate(h process.Handle) bool {
	pid := h.PID()
	start := time.Now()
	defer func() { metrics.ObserveTermination(time.Since(start).Seconds()) }()

	_, _ = fmt.Fprintf(s.out, "Terminating existing process (PID: %d)...\n", pid)
	if err := h.Terminate(); err != nil {
		return s.terminateErr(pid, "terminate", err)
	}
	exited, err := h.Wait(s.grace)
	if err != nil {
		return s.terminateErr(pid, "wait", err)
	}
	if exited {
		_, _ = fmt.Fprintln(s.out, "Process terminated successfully")
		s.terminated(pid, "graceful")
		return true
	}

	_, _ = fmt.Fprintf(s.out, "Process did not terminate within %s, forcing kill...\n", s.grace)
	s.log.Warn("graceful termination timed out", "pid", pid, "grace", s.grace)
	if err := h.Kill(); err != nil {
		return s.terminateErr(pid, "kill", err)
	}
	exited, err = h.Wait(s.killWait)
	if err != nil {
		return s.terminateErr(pid, "wait", err)
	}
	if exited {
		_, _ = fmt.Fprintln(s.out, "Process killed")
		s.terminated(pid, "forced")
		return true
	}

	_, _ = fmt.Fprintf(s.out, "Process %d still running after kill\n", pid)
	s.log.Error("process survived kill", "pid", pid, "kill_wait", s.killWait)
	metrics.IncTermination("failed")
	s.record(history.EventTerminateFailed, pid, "survived kill")
	return false
}

func (s *Supervisor) terminateErr(pid int, op string, err error) bool {
	if errors.Is(err, process.ErrNotFound) {
		_, _ = fmt.Fprintln(s.out, "Process already terminated")
		s.terminated(pid, "vanished")
		return true
	}
	_, _ = fmt.Fprintf(s.out, "Error stopping process: %v\n", err)
	s.log.Error("termination failed", "pid", pid, "op", op, "error", err)
	metrics.IncTermination("failed")
	s.record(history.EventTerminateFailed, pid, err.Error())
	return false
}

func (s *Supervisor) terminated(pid int, mode string) {
	s.log.Info("prior instance stopped", "pid", pid, "mode", mode)
	metrics.IncTermination(mode)
	s.record(history.EventTerminated, pid, mode)
}

// Claim writes this process's pid to the marker. The returned release
// removes it and is safe to call more than once.
func (s *Supervisor) Claim() (func(), error) {
	if err := s.marker.Write(s.pid); err != nil {
		return nil, err
	}
	s.log.Info("claimed instance marker", "path", s.marker.Path(), "pid", s.pid)
	metrics.IncClaim()
	s.record(history.EventClaimed, s.pid, s.marker.Path())

	var once sync.Once
	return func() {
		once.Do(func() {
			s.removeMarker()
			s.log.Debug("released instance marker", "path", s.marker.Path())
		})
	}, nil
}

// Delegate runs app to completion and classifies the result.
// A panic inside app is recovered and reported as Failed.
func (s *Supervisor) Delegate(ctx context.Context, app Application) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("application panic", "panic", r)
			out = Outcome{Kind: Failed, Err: fmt.Errorf("application panic: %v", r), PID: s.pid}
		}
	}()
	return outcomeOf(s.pid, app.Run(ctx))
}

// Run looks for a prior instance, stops it, claims the marker and hands
// control to app. The marker is removed on every path out of Run once it
// has been claimed.
func (s *Supervisor) Run(ctx context.Context, app Application) Outcome {
	s.setState(StateProbing)
	if h, found := s.Discover(); found {
		s.setState(StateTerminatingPrior)
		s.printExisting(h)
		if !s.Terminate(h) {
			s.printManualKill(h.PID())
			return s.finish(Outcome{
				Kind: Aborted,
				Err:  fmt.Errorf("failed to stop existing instance (pid %d)", h.PID()),
				PID:  s.pid,
			})
		}
		_, _ = fmt.Fprintf(s.out, "Ready to start new instance\n\n")
	}

	s.setState(StateClaiming)
	release, err := s.Claim()
	if err != nil {
		s.log.Error("cannot claim instance marker", "error", err)
		return s.finish(Outcome{Kind: Aborted, Err: err, PID: s.pid})
	}
	defer release()

	sigs := s.signals
	if sigs == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigs = ch
	}

	s.printStarted()
	s.setState(StateDelegating)

	appCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan Outcome, 1)
	go func() { done <- s.Delegate(appCtx, app) }()

	var out Outcome
	select {
	case out = <-done:
	case sig := <-sigs:
		_, _ = fmt.Fprintf(s.out, "\nReceived signal %s, shutting down...\n", sig)
		cancel()
		select {
		case <-done:
		case <-time.After(s.stopWait):
			s.log.Warn("application did not stop in time", "wait", s.stopWait)
		}
		out = Outcome{Kind: Signaled, Signal: sig, PID: s.pid}
	}
	return s.finish(out)
}

// Stop terminates a running instance without starting a new one.
// It returns true when no instance is left running.
func (s *Supervisor) Stop() bool {
	h, found := s.Discover()
	if !found {
		_, _ = fmt.Fprintf(s.out, "%s is not running\n", s.product)
		return true
	}
	s.printExisting(h)
	if !s.Terminate(h) {
		s.printManualKill(h.PID())
		return false
	}
	// A killed instance cannot clean up after itself.
	if pid, err := s.marker.Read(); err == nil && pid == h.PID() {
		s.removeMarker()
	}
	return true
}

// Status reports the running instance, if any.
func (s *Supervisor) Status() (process.Info, bool) {
	h, found := s.Discover()
	if !found {
		return process.Info{}, false
	}
	info, err := process.Describe(h)
	if err != nil {
		s.log.Debug("instance exited while describing", "pid", h.PID(), "error", err)
		return process.Info{}, false
	}
	return info, true
}

func (s *Supervisor) finish(out Outcome) Outcome {
	s.setState(StateExited)
	metrics.IncExit(out.Kind.String())
	s.record(history.EventExited, s.pid, out.String())

	switch out.Kind {
	case Failed:
		_, _ = fmt.Fprintf(s.out, "\nError: %v\n", out.Err)
		s.log.Error("application failed", "error", out.Err)
	case Aborted:
		s.log.Error("startup aborted", "error", out.Err)
	case Interrupted:
		_, _ = fmt.Fprintln(s.out, "\nInterrupted by user")
		s.log.Info("application interrupted")
	default:
		s.log.Info("launcher exiting", "outcome", out.Kind.String())
	}
	return out
}

func (s *Supervisor) removeMarker() {
	if err := s.marker.Remove(); err != nil {
		s.log.Warn("cannot remove marker", "path", s.marker.Path(), "error", err)
	}
}

// record exports an event; sink failures are logged and otherwise ignored.
func (s *Supervisor) record(t history.EventType, pid int, detail string) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	e := history.Event{Type: t, OccurredAt: time.Now().UTC(), PID: pid, Name: s.product, Detail: detail}
	if err := s.history.Send(ctx, e); err != nil {
		s.log.Debug("history send failed", "type", t, "error", err)
	}
}
