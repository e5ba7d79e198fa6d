//go:build !windows

package process

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	sysconf "github.com/tklauser/go-sysconf"
)

// getProcStartUnix returns the start time of pid in Unix seconds read
// straight from /proc on Linux. It returns 0 elsewhere or on any error so
// callers fall back to gopsutil.
func getProcStartUnix(pid int) int64 {
	if pid <= 0 || runtime.GOOS != "linux" {
		return 0
	}
	ticks := startTicks(pid)
	if ticks <= 0 {
		return 0
	}
	btime := bootTime()
	if btime == 0 {
		return 0
	}
	return btime + ticks/clockTicks()
}

// startTicks extracts field 22 (starttime) of /proc/<pid>/stat. The comm
// field may contain spaces, so parsing starts after the last ") ".
func startTicks(pid int) int64 {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}
	line := string(b)
	end := strings.LastIndex(line, ") ")
	if end == -1 {
		return 0
	}
	fields := strings.Fields(line[end+2:])
	if len(fields) < 20 {
		return 0
	}
	v, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func bootTime() int64 {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	for s.Scan() {
		if v, ok := strings.CutPrefix(s.Text(), "btime "); ok {
			bt, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return 0
			}
			return bt
		}
	}
	return 0
}

func clockTicks() int64 {
	clk, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || clk <= 0 {
		return 100
	}
	return clk
}
