//go:build windows

package process

// getProcStartUnix has no native fast path on Windows; gopsutil is used.
func getProcStartUnix(pid int) int64 { return 0 }
