//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// pidAlive sends signal 0 to pid. EPERM means the process exists but
// belongs to another user.
func pidAlive(pid int) (bool, error) {
	err := syscall.Kill(pid, 0)
	switch {
	case err == nil, errors.Is(err, syscall.EPERM):
		return true, nil
	case errors.Is(err, syscall.ESRCH):
		return false, nil
	default:
		return false, err
	}
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone)
}
