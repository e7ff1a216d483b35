// Package testutil provides shared helpers for kernel tests: a temporary
// toggle database, event capture on a field, and manifest fixtures.
package testutil

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/manifest"
	"github.com/akasha-systems/akasha/internal/toggle"
)

// TempToggleDB opens a migrated toggle database in a temporary directory,
// closed automatically when the test ends.
func TempToggleDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := toggle.NewDB(filepath.Join(t.TempDir(), "toggles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// EventCapture records every event matching a pattern.
type EventCapture struct {
	mu     sync.Mutex
	events []field.Event
}

// Capture subscribes a recorder to the field for the test's duration.
func Capture(t *testing.T, f *field.Field, pattern string) *EventCapture {
	t.Helper()
	c := &EventCapture{}
	unsub := f.Subscribe(pattern, func(e field.Event) {
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
	})
	t.Cleanup(unsub)
	return c
}

// Events returns a snapshot of captured events.
func (c *EventCapture) Events() []field.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]field.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Types returns the captured event types in arrival order.
func (c *EventCapture) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// Len returns the number of captured events.
func (c *EventCapture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// NewManifest returns a coherent manifest fixture providing the given
// capabilities (default "insight").
func NewManifest(id string, capabilities ...string) *manifest.Manifest {
	if len(capabilities) == 0 {
		capabilities = []string{"insight"}
	}
	return &manifest.Manifest{
		ID:                  id,
		Name:                id,
		Version:             "1.0.0",
		Capabilities:        capabilities,
		TelosAlignment:      map[string]manifest.Weight{"awaken": manifest.PrimaryWeight},
		EssenceLabels:       []string{"state:active"},
		IntegrityScore:      manifest.IntegrityCeiling,
		ResourceFootprintMB: 10,
	}
}
