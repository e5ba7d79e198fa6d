package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/solo/internal/process"
)

var rule = strings.Repeat("=", 60)

func (s *Supervisor) printExisting(h process.Handle) {
	info, _ := process.Describe(h)
	started := "unknown"
	if !info.StartedAt.IsZero() {
		started = info.StartedAt.Local().Format(time.DateTime)
	}
	status := info.Status
	if status == "" {
		status = "unknown"
	}
	_, _ = fmt.Fprintf(s.out, "%s\nWARNING: %s is already running!\n%s\n", rule, s.product, rule)
	_, _ = fmt.Fprintf(s.out, "\nExisting process details:\n  PID: %d\n  Started: %s\n  Status: %s\n", info.PID, started, status)
	_, _ = fmt.Fprintln(s.out, "\nAutomatically stopping the existing process...")
}

func (s *Supervisor) printManualKill(pid int) {
	_, _ = fmt.Fprintf(s.out, "Failed to stop existing process. Please manually kill PID %d\n", pid)
	_, _ = fmt.Fprintf(s.out, "   Command: kill %d\n", pid)
}

func (s *Supervisor) printStarted() {
	_, _ = fmt.Fprintf(s.out, "%s\n%s - Starting...\n%s\n", rule, s.product, rule)
	_, _ = fmt.Fprintln(s.out, "Press Ctrl+C to stop")
	_, _ = fmt.Fprintf(s.out, "\nProcess ID: %d\nPID file: %s\n%s\n", s.pid, s.marker.Path(), rule)
}
