// Package telos holds the catalog of system-wide goals. Goals exist
// independently of modules; manifests declare weighted alignment to them,
// and the lifecycle manager consults goal priorities when breaking ties
// between capability candidates.
package telos

import (
	"fmt"
	"sync"

	"github.com/akasha-systems/akasha/internal/manifest"
)

// Catalog stores goals keyed by id. Thread-safe for concurrent readers.
type Catalog struct {
	mu    sync.RWMutex
	goals map[string]*manifest.Telos
}

// NewCatalog creates an empty goal catalog.
func NewCatalog() *Catalog {
	return &Catalog{goals: make(map[string]*manifest.Telos)}
}

// Register adds a goal. Re-registering an id replaces the previous goal.
func (c *Catalog) Register(goal *manifest.Telos) error {
	if goal == nil || goal.ID == "" {
		return fmt.Errorf("telos requires an id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goals[goal.ID] = goal
	return nil
}

// Get returns the goal with the given id.
func (c *Catalog) Get(id string) (*manifest.Telos, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	goal, ok := c.goals[id]
	return goal, ok
}

// All returns a copy of the registered goals.
func (c *Catalog) All() []*manifest.Telos {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*manifest.Telos, 0, len(c.goals))
	for _, g := range c.goals {
		out = append(out, g)
	}
	return out
}

// PriorityOf returns the priority of a goal, or 0 for unknown goals.
func (c *Catalog) PriorityOf(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if g, ok := c.goals[id]; ok {
		return g.Priority
	}
	return 0
}

// AlignmentPriority scores a manifest's strongest goal alignment: the
// highest priority among goals it aligns to, with primary alignments
// considered first. Manifests with no alignment to any known goal score 0.
func (c *Catalog) AlignmentPriority(m *manifest.Manifest) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := 0
	for goalID, weight := range m.TelosAlignment {
		g, ok := c.goals[goalID]
		if !ok {
			continue
		}
		p := g.Priority
		if weight.Primary {
			// Primary alignment outranks numeric weights to the same goal.
			p *= 2
		}
		if p > best {
			best = p
		}
	}
	return best
}
