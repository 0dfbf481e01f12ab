package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Checklist is the manager's record of what today's nowcast run has
// accomplished. It is overwritten wholesale each day: every step
// report replaces the worker's entry, and "the end" persists and
// clears the whole thing.
type Checklist struct {
	mu      sync.RWMutex
	items   map[string]any
	updated time.Time
}

func NewChecklist() *Checklist {
	return &Checklist{items: make(map[string]any)}
}

// Update records the payload a worker reported for a step.
func (c *Checklist) Update(worker, msgType string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[worker] = map[string]any{
		"msg_type": msgType,
		"payload":  payload,
	}
	c.updated = time.Now()
}

// Snapshot returns a shallow copy of the checklist entries.
func (c *Checklist) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

// Len returns the number of recorded steps.
func (c *Checklist) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear discards all entries.
func (c *Checklist) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]any)
	c.updated = time.Now()
}

// Persist writes the checklist to a dated YAML file in dir. An empty
// checklist still produces a file; an empty day is a fact worth
// recording.
func (c *Checklist) Persist(dir string, day time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("manager: create checklist dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("checklist-%s.yaml", day.Format("2006-01-02")))
	data, err := yaml.Marshal(c.Snapshot())
	if err != nil {
		return "", fmt.Errorf("manager: marshal checklist: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("manager: write checklist %s: %w", path, err)
	}
	return path, nil
}
