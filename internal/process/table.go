package process

import (
	"errors"
	"time"
)

// ErrNotFound reports that a process no longer exists. Callers treat it as
// "already gone" rather than as a failure.
var ErrNotFound = errors.New("process not found")

// Table answers questions about processes running on this host.
type Table interface {
	// Exists reports whether a process with pid is present.
	Exists(pid int) (bool, error)
	// Get returns a handle to pid or ErrNotFound.
	Get(pid int) (Handle, error)
}

// Handle is a process the launcher did not start. It can be inspected and
// signalled but not reaped.
type Handle interface {
	PID() int
	CommandLine() (string, error)
	CreateTime() (time.Time, error)
	Status() (string, error)
	// Terminate requests a graceful shutdown (SIGTERM).
	Terminate() error
	// Kill stops the process unconditionally (SIGKILL).
	Kill() error
	// Wait blocks until the process exits or timeout elapses.
	// It returns true when the process exited.
	Wait(timeout time.Duration) (bool, error)
}
