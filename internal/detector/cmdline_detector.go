package detector

import (
	"path/filepath"
	"strings"
)

// CmdlineDetector matches when the command line contains any of Patterns.
// Empty patterns are ignored so that an unset name never matches everything.
type CmdlineDetector struct{ Patterns []string }

func (d CmdlineDetector) Match(cmdline string) bool {
	if cmdline == "" {
		return false
	}
	for _, p := range d.Patterns {
		if p = strings.TrimSpace(p); p != "" && strings.Contains(cmdline, p) {
			return true
		}
	}
	return false
}

func (d CmdlineDetector) Describe() string { return "cmdline:" + strings.Join(d.Patterns, "|") }

// ExecutableDetector matches on the base name of the launcher executable,
// which is how a prior instance started from the same binary shows up.
type ExecutableDetector struct{ Path string }

func (d ExecutableDetector) Match(cmdline string) bool {
	name := d.name()
	return name != "" && strings.Contains(cmdline, name)
}

func (d ExecutableDetector) Describe() string { return "exe:" + d.name() }

func (d ExecutableDetector) name() string {
	if d.Path == "" {
		return ""
	}
	base := filepath.Base(d.Path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, ".exe")
}
