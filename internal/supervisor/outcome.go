package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrInterrupted is returned by an Application that stopped because the user
// asked it to. It is reported as a normal shutdown.
var ErrInterrupted = errors.New("interrupted")

// Application is the program the launcher hands control to. Run blocks until
// the application finishes or ctx is cancelled.
type Application interface {
	Run(ctx context.Context) error
}

// ApplicationFunc adapts a function to Application.
type ApplicationFunc func(ctx context.Context) error

func (f ApplicationFunc) Run(ctx context.Context) error { return f(ctx) }

// OutcomeKind classifies how a launcher invocation ended.
type OutcomeKind int

const (
	Completed   OutcomeKind = iota // application returned nil
	Interrupted                    // application stopped on user interrupt
	Signaled                       // SIGINT/SIGTERM received while delegating
	Failed                         // application returned an error or panicked
	Aborted                        // startup did not reach delegation
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	case Signaled:
		return "signaled"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of one launcher invocation.
type Outcome struct {
	Kind   OutcomeKind
	Err    error     // set for Failed and Aborted
	Signal os.Signal // set for Signaled
	PID    int       // pid of this launcher
}

// ExitCode maps the outcome onto the process exit status.
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case Failed, Aborted:
		return 1
	}
	return 0
}

func (o Outcome) String() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	case o.Signal != nil:
		return fmt.Sprintf("%s: %s", o.Kind, o.Signal)
	}
	return o.Kind.String()
}

// outcomeOf classifies the error returned by Application.Run.
func outcomeOf(pid int, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: Completed, PID: pid}
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return Outcome{Kind: Interrupted, PID: pid}
	}
	return Outcome{Kind: Failed, Err: err, PID: pid}
}
