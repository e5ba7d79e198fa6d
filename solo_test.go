package solo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/loykin/solo/internal/history"
	"github.com/loykin/solo/internal/history/sqlite"
	"github.com/loykin/solo/internal/process"
	"github.com/loykin/solo/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// emptyTable reports every pid as gone.
type emptyTable struct{}

func (emptyTable) Exists(int) (bool, error) { return false, nil }

func (emptyTable) Get(pid int) (process.Handle, error) { return nil, process.ErrNotFound }

func testConfig(t *testing.T) *Config {
	t.Helper()
	c, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	c.Marker.Path = filepath.Join(t.TempDir(), ".solo.pid")
	c.Log.Color = false
	return c
}

func TestLauncherRunWithHistoryAndMetrics(t *testing.T) {
	c := testConfig(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	c.History.DSN = "sqlite://" + dbPath
	c.Metrics.Enabled = true
	reg := prometheus.NewRegistry()

	var out bytes.Buffer
	l, err := New(c,
		WithOutput(&out),
		WithLogOutput(io.Discard),
		WithProcessTable(emptyTable{}),
		WithSignals(make(chan os.Signal)),
		WithRegistry(reg),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var during string
	res := l.Run(context.Background(), ApplicationFunc(func(context.Context) error {
		b, _ := os.ReadFile(l.MarkerPath())
		during = string(b)
		return nil
	}))
	if res.Kind != Completed || res.ExitCode() != 0 {
		t.Fatalf("outcome: %v", res)
	}
	if during != strconv.Itoa(os.Getpid()) {
		t.Fatalf("marker during run: %q", during)
	}
	if _, err := os.Stat(l.MarkerPath()); !os.IsNotExist(err) {
		t.Fatalf("marker should be removed, stat err=%v", err)
	}
	if !strings.Contains(out.String(), "Process ID: ") {
		t.Fatalf("missing startup banner:\n%s", out.String())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sink, err := sqlite.New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("reopen history: %v", err)
	}
	defer func() { _ = sink.Close() }()
	for _, et := range []history.EventType{history.EventClaimed, history.EventExited} {
		n, err := sink.Count(context.Background(), et)
		if err != nil || n != 1 {
			t.Fatalf("count %s: n=%d err=%v", et, n, err)
		}
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "solo_launcher_claims_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("claims counter not registered")
	}
}

func TestLauncherStatusAndStopWithoutInstance(t *testing.T) {
	var out bytes.Buffer
	l, err := New(testConfig(t), WithOutput(&out), WithLogOutput(io.Discard), WithProcessTable(emptyTable{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = l.Close() }()

	if _, ok := l.Status(); ok {
		t.Fatal("expected no running instance")
	}
	if !l.Stop() {
		t.Fatal("stop without instance should succeed")
	}
	if !strings.Contains(out.String(), "not running") {
		t.Fatalf("output: %s", out.String())
	}
}

func TestLauncherStaleMarkerRemoved(t *testing.T) {
	c := testConfig(t)
	if err := os.WriteFile(c.Marker.Path, []byte("123456\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	l, err := New(c, WithOutput(io.Discard), WithLogOutput(io.Discard), WithProcessTable(emptyTable{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = l.Close() }()
	if _, ok := l.Status(); ok {
		t.Fatal("expected no running instance")
	}
	if _, err := os.Stat(c.Marker.Path); !os.IsNotExist(err) {
		t.Fatal("stale marker should be removed")
	}
}

func TestLauncherBundledApp(t *testing.T) {
	c := testConfig(t)
	c.App.Listen = "127.0.0.1:0"
	c.Metrics.Enabled = true
	l, err := New(c, WithOutput(io.Discard), WithLogOutput(io.Discard), WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = l.Close() }()

	app, ok := l.BundledApp().(*server.App)
	if !ok {
		t.Fatalf("unexpected app type %T", l.BundledApp())
	}
	if app.Listen != "127.0.0.1:0" {
		t.Fatalf("listen: %q", app.Listen)
	}
	rec := httptest.NewRecorder()
	app.Router.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
}

func TestNewErrors(t *testing.T) {
	c := testConfig(t)
	c.Log.Level = "chatty"
	if _, err := New(c, WithLogOutput(io.Discard)); err == nil {
		t.Fatal("expected logging error")
	}

	c = testConfig(t)
	c.History.DSN = "opensearch:///index-without-host"
	if _, err := New(c, WithLogOutput(io.Discard)); err == nil {
		t.Fatal("expected history error")
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	l, err := New(nil, WithLogOutput(io.Discard), WithOutput(io.Discard))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = l.Close() }()
	if filepath.Base(l.MarkerPath()) != ".solo.pid" {
		t.Fatalf("marker path: %s", l.MarkerPath())
	}
	if l.Config().Termination.Grace != 5*time.Second {
		t.Fatalf("grace: %s", l.Config().Termination.Grace)
	}
}
