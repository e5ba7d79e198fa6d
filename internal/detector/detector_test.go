package detector

import "testing"

func TestCmdlineDetector(t *testing.T) {
	d := CmdlineDetector{Patterns: []string{"solo", "", "  ", "playground"}}
	tests := []struct {
		cmdline string
		want    bool
	}{
		{"/usr/local/bin/solo run", true},
		{"python app.py --playground", true},
		{"/usr/bin/postgres -D /data", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := d.Match(tt.cmdline); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.cmdline, got, tt.want)
		}
	}
}

func TestCmdlineDetectorEmptyPatterns(t *testing.T) {
	if (CmdlineDetector{}).Match("anything") {
		t.Fatalf("detector without patterns must not match")
	}
}

func TestExecutableDetector(t *testing.T) {
	d := ExecutableDetector{Path: "/opt/tools/launcher"}
	if !d.Match("/opt/tools/launcher --config x.toml") {
		t.Fatalf("expected match on executable name")
	}
	if d.Match("/usr/bin/bash") {
		t.Fatalf("unexpected match")
	}
	if (ExecutableDetector{}).Match("launcher") {
		t.Fatalf("empty path must not match")
	}
	if got := d.Describe(); got != "exe:launcher" {
		t.Fatalf("unexpected describe %q", got)
	}
	win := ExecutableDetector{Path: "solo.exe"}
	if !win.Match(`C:\bin\solo.exe run`) {
		t.Fatalf("expected match without .exe suffix")
	}
}

func TestFirst(t *testing.T) {
	a := CmdlineDetector{Patterns: []string{"alpha"}}
	b := CmdlineDetector{Patterns: []string{"beta"}}
	if d := First([]Detector{a, nil, b}, "run beta"); d == nil || d.Describe() != "cmdline:beta" {
		t.Fatalf("expected beta detector, got %v", d)
	}
	if d := First([]Detector{a, b}, "gamma"); d != nil {
		t.Fatalf("expected no match, got %v", d.Describe())
	}
}
