package process

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// DefaultPollInterval is how often Wait re-checks a foreign process.
const DefaultPollInterval = 50 * time.Millisecond

// SystemTable implements Table on top of gopsutil.
type SystemTable struct {
	PollInterval time.Duration
}

func NewSystemTable() *SystemTable { return &SystemTable{PollInterval: DefaultPollInterval} }

func (t *SystemTable) Exists(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	return pidAlive(pid)
}

func (t *SystemTable) Get(pid int) (Handle, error) {
	if pid <= 0 {
		return nil, ErrNotFound
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil, wrapErr(pid, err)
	}
	poll := t.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &sysHandle{p: p, poll: poll}, nil
}

type sysHandle struct {
	p    *gopsproc.Process
	poll time.Duration
}

func (h *sysHandle) PID() int { return int(h.p.Pid) }

func (h *sysHandle) CommandLine() (string, error) {
	s, err := h.p.Cmdline()
	if err != nil {
		return "", wrapErr(h.PID(), err)
	}
	return s, nil
}

func (h *sysHandle) CreateTime() (time.Time, error) {
	if sec := getProcStartUnix(h.PID()); sec > 0 {
		return time.Unix(sec, 0), nil
	}
	ms, err := h.p.CreateTime()
	if err != nil {
		return time.Time{}, wrapErr(h.PID(), err)
	}
	return time.UnixMilli(ms), nil
}

func (h *sysHandle) Status() (string, error) {
	st, err := h.p.Status()
	if err != nil {
		return "", wrapErr(h.PID(), err)
	}
	return strings.Join(st, ","), nil
}

func (h *sysHandle) Terminate() error { return wrapErr(h.PID(), h.p.Terminate()) }

func (h *sysHandle) Kill() error { return wrapErr(h.PID(), h.p.Kill()) }

func (h *sysHandle) Wait(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		exited, err := h.exited()
		if err != nil {
			return false, err
		}
		if exited {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		time.Sleep(h.poll)
	}
}

// exited treats a zombie as gone: the launcher is not its parent and cannot
// reap it, but it no longer holds any resources.
func (h *sysHandle) exited() (bool, error) {
	running, err := h.p.IsRunning()
	if err != nil {
		if errors.Is(wrapErr(h.PID(), err), ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	if !running {
		return true, nil
	}
	st, err := h.p.Status()
	if err != nil {
		return errors.Is(wrapErr(h.PID(), err), ErrNotFound), nil
	}
	for _, s := range st {
		if s == gopsproc.Zombie {
			return true, nil
		}
	}
	return false, nil
}

// wrapErr maps "no such process" conditions onto ErrNotFound.
func wrapErr(pid int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gopsproc.ErrorProcessNotRunning) || isNoSuchProcess(err) {
		return fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}
