package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loykin/solo/internal/history"
	"github.com/loykin/solo/internal/process"
)

// fakeProc is a process that reacts to signals according to its flags.
type fakeProc struct {
	pid     int
	cmdline string
	cmdErr  error
	started time.Time
	status  string

	ignoreTerm bool
	ignoreKill bool
	termErr    error
	killErr    error

	mu     sync.Mutex
	alive  bool
	terms  int
	kills  int
	termAt time.Time
	killAt time.Time
}

func (p *fakeProc) PID() int { return p.pid }

func (p *fakeProc) CommandLine() (string, error) { return p.cmdline, p.cmdErr }

func (p *fakeProc) CreateTime() (time.Time, error) { return p.started, nil }

func (p *fakeProc) Status() (string, error) { return p.status, nil }

func (p *fakeProc) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terms++
	p.termAt = time.Now()
	if p.termErr != nil {
		return p.termErr
	}
	if !p.ignoreTerm {
		p.alive = false
	}
	return nil
}

func (p *fakeProc) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills++
	p.killAt = time.Now()
	if p.killErr != nil {
		return p.killErr
	}
	if !p.ignoreKill {
		p.alive = false
	}
	return nil
}

func (p *fakeProc) Wait(timeout time.Duration) (bool, error) {
	if !p.isAlive() {
		return true, nil
	}
	time.Sleep(timeout)
	return !p.isAlive(), nil
}

func (p *fakeProc) isAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProc) counts() (terms, kills int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terms, p.kills
}

type fakeTable struct {
	mu        sync.Mutex
	procs     map[int]*fakeProc
	existsErr error
	getErr    error
	queries   int
}

func newFakeTable(procs ...*fakeProc) *fakeTable {
	t := &fakeTable{procs: make(map[int]*fakeProc)}
	for _, p := range procs {
		t.procs[p.pid] = p
	}
	return t
}

func (t *fakeTable) Exists(pid int) (bool, error) {
	t.mu.Lock()
	t.queries++
	p, ok := t.procs[pid]
	t.mu.Unlock()
	if t.existsErr != nil {
		return false, t.existsErr
	}
	return ok && p.isAlive(), nil
}

func (t *fakeTable) Get(pid int) (process.Handle, error) {
	t.mu.Lock()
	t.queries++
	p, ok := t.procs[pid]
	t.mu.Unlock()
	if t.getErr != nil {
		return nil, t.getErr
	}
	if !ok || !p.isAlive() {
		return nil, fmt.Errorf("pid %d: %w", pid, process.ErrNotFound)
	}
	return p, nil
}

func (t *fakeTable) queryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queries
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []history.Event
	err    error
}

func (r *recordingSink) Send(_ context.Context, e history.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) types() []history.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]history.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
