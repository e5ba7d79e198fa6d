package process

import (
	"errors"
	"time"
)

// Info is a point-in-time description of a process used for operator output.
type Info struct {
	PID         int       `json:"pid"`
	CommandLine string    `json:"command_line"`
	StartedAt   time.Time `json:"started_at"`
	Status      string    `json:"status"`
}

// Describe collects Info from h. Attributes that cannot be read are left
// empty; only ErrNotFound is returned so callers can tell the process is gone.
func Describe(h Handle) (Info, error) {
	info := Info{PID: h.PID()}
	var err error
	if info.CommandLine, err = h.CommandLine(); errors.Is(err, ErrNotFound) {
		return info, err
	}
	if info.StartedAt, err = h.CreateTime(); errors.Is(err, ErrNotFound) {
		return info, err
	}
	if info.Status, err = h.Status(); errors.Is(err, ErrNotFound) {
		return info, err
	}
	return info, nil
}
