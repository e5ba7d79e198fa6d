package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loykin/solo"
)

// command implements the CLI actions. Fields are test hooks; the zero value
// uses stdout and the real process table.
type command struct {
	out  io.Writer
	opts []solo.Option
}

func (c command) output() io.Writer {
	if c.out == nil {
		return os.Stdout
	}
	return c.out
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(flags GlobalFlags) (*solo.Config, error) {
	cfg, err := solo.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.Marker != "" {
		cfg.Marker.Path = flags.Marker
	}
	if flags.Grace > 0 {
		cfg.Termination.Grace = flags.Grace
	}
	if flags.KillWait > 0 {
		cfg.Termination.KillWait = flags.KillWait
	}
	return cfg, nil
}

func (c command) launcher(cfg *solo.Config) (*solo.Launcher, error) {
	opts := append([]solo.Option{solo.WithOutput(c.output())}, c.opts...)
	return solo.New(cfg, opts...)
}

// Run replaces any running instance and serves the bundled application.
func (c command) Run(ctx context.Context, flags GlobalFlags, runFlags RunFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if runFlags.Listen != "" {
		cfg.App.Listen = runFlags.Listen
	}
	l, err := c.launcher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	out := l.Serve(ctx)
	if code := out.ExitCode(); code != 0 {
		return exitError{code: code}
	}
	return nil
}

// Status prints the running instance or reports that none is running.
func (c command) Status(flags GlobalFlags, statusFlags StatusFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	l, err := c.launcher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	w := c.output()
	info, running := l.Status()
	if statusFlags.JSON {
		return json.NewEncoder(w).Encode(statusView{
			Running:    running,
			Product:    cfg.Product,
			MarkerPath: l.MarkerPath(),
			Process:    infoPtr(info, running),
		})
	}
	if !running {
		_, _ = fmt.Fprintf(w, "%s is not running (marker: %s)\n", cfg.Product, l.MarkerPath())
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s is running\n", cfg.Product)
	_, _ = fmt.Fprintf(w, "  PID: %d\n", info.PID)
	if !info.StartedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "  Started: %s\n", info.StartedAt.Local().Format(time.DateTime))
	}
	if info.Status != "" {
		_, _ = fmt.Fprintf(w, "  Status: %s\n", info.Status)
	}
	if info.CommandLine != "" {
		_, _ = fmt.Fprintf(w, "  Command: %s\n", info.CommandLine)
	}
	_, _ = fmt.Fprintf(w, "  Marker: %s\n", l.MarkerPath())
	return nil
}

type statusView struct {
	Running    bool              `json:"running"`
	Product    string            `json:"product"`
	MarkerPath string            `json:"marker_path"`
	Process    *solo.ProcessInfo `json:"process,omitempty"`
}

func infoPtr(info solo.ProcessInfo, ok bool) *solo.ProcessInfo {
	if !ok {
		return nil
	}
	return &info
}

// Stop terminates the running instance without starting a new one.
func (c command) Stop(flags GlobalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	l, err := c.launcher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	if !l.Stop() {
		return exitError{code: 1}
	}
	return nil
}
