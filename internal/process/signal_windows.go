//go:build windows

package process

import (
	"errors"
	"os"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

func pidAlive(pid int) (bool, error) {
	return gopsproc.PidExists(int32(pid))
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
