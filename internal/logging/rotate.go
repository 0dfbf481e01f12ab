package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RotatingFile is a log file writer whose current file can be rotated
// aside at the end of each nowcast day. Rotation renames the live file
// to <name>.<yyyy-mm-dd> and reopens a fresh file at the original path.
type RotatingFile struct {
	mu   sync.Mutex
	path string
	keep int
	f    *os.File
}

// OpenRotatingFile opens (appending) the log file at path. keep bounds
// how many rotated-aside files are retained; zero or negative keeps all.
func OpenRotatingFile(path string, keep int) (*RotatingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file %s: %w", path, err)
	}
	return &RotatingFile{path: path, keep: keep, f: f}, nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return 0, fmt.Errorf("logging: write to closed log file %s", r.path)
	}
	return r.f.Write(p)
}

// Rotate renames the live file aside with today's date suffix and
// reopens the original path. A same-day second rotation overwrites the
// earlier dated file.
func (r *RotatingFile) Rotate(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return fmt.Errorf("logging: rotate closed log file %s", r.path)
	}
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("logging: close for rotation %s: %w", r.path, err)
	}
	dated := fmt.Sprintf("%s.%s", r.path, now.Format("2006-01-02"))
	if err := os.Rename(r.path, dated); err != nil {
		return fmt.Errorf("logging: rotate %s: %w", r.path, err)
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logging: reopen after rotation %s: %w", r.path, err)
	}
	r.f = f
	r.prune()
	return nil
}

// Close closes the live file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *RotatingFile) prune() {
	if r.keep <= 0 {
		return
	}
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil || len(matches) <= r.keep {
		return
	}
	// Glob returns lexical order; dated suffixes sort oldest first.
	for _, old := range matches[:len(matches)-r.keep] {
		_ = os.Remove(old)
	}
}
