package marker

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultName is the marker file name placed next to the launcher executable.
const DefaultName = ".solo.pid"

// Marker is the on-disk record of the active instance: a single decimal PID.
type Marker struct {
	path string
}

func New(path string) *Marker { return &Marker{path: path} }

// DefaultPath returns DefaultName resolved against the directory of the
// running executable.
func DefaultPath() (string, error) {
	return Resolve(DefaultName)
}

// Resolve makes a relative marker path absolute against the executable's
// directory. Absolute paths are returned cleaned.
func Resolve(path string) (string, error) {
	if path == "" {
		path = DefaultName
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), path), nil
}

func (m *Marker) Path() string { return m.path }

// Exists reports whether the marker file is present.
func (m *Marker) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Read returns the PID stored in the marker. A missing file yields an error
// satisfying os.IsNotExist; malformed content yields *InvalidError.
func (m *Marker) Read() (int, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, &InvalidError{Path: m.path, Content: s}
	}
	return pid, nil
}

// Write replaces the marker with pid. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (m *Marker) Write(pid int) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create marker: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.WriteString(strconv.Itoa(pid))
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpName, 0o600)
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write marker: %w", werr)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace marker: %w", err)
	}
	return nil
}

// Remove deletes the marker. A missing file is not an error.
func (m *Marker) Remove() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	return nil
}

// InvalidError reports marker content that is not a positive decimal PID.
type InvalidError struct {
	Path    string
	Content string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid pid %q in marker %s", e.Content, e.Path)
}
