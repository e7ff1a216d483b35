package lifecycle

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/manifest"
)

// Registry is the slice of the module registry the manager depends on.
// Implemented by internal/registry.
type Registry interface {
	// FindByCapability returns active manifests declaring the capability.
	FindByCapability(capability string) []*manifest.Manifest
	// NewInstance builds an instance for an active manifest with a bound
	// factory. Returns nil (logged) when either is absent or the factory
	// fails.
	NewInstance(moduleID string) Module
}

// TelosResolver breaks capability ties by goal priority.
// Implemented by internal/telos.
type TelosResolver interface {
	AlignmentPriority(m *manifest.Manifest) int
}

// DefaultLowIntegrityWater is the integrity score below which new
// instantiations are refused while the resource-constraint signal is set.
const DefaultLowIntegrityWater = 0.5

// Manager creates module instances through registry factories and drives
// them through their lifecycle. Instances are exclusively owned by the
// manager that created them.
type Manager struct {
	registry Registry
	telos    TelosResolver

	mu        sync.RWMutex
	instances map[string]Module

	// group coalesces concurrent builds of the same manifest id so a
	// capability resolved twice concurrently initializes exactly once.
	group singleflight.Group

	constrained atomic.Bool
	lowWater    float64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLowIntegrityWater overrides the low-integrity refusal threshold used
// while the resource-constraint signal is set.
func WithLowIntegrityWater(w float64) ManagerOption {
	return func(m *Manager) {
		if w > 0 {
			m.lowWater = w
		}
	}
}

// NewManager creates a Manager over the given registry. telosResolver may
// be nil, in which case ties fall through to id ordering.
func NewManager(registry Registry, telosResolver TelosResolver, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:  registry,
		telos:     telosResolver,
		instances: make(map[string]Module),
		lowWater:  DefaultLowIntegrityWater,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetResourceConstrained sets or clears the resource-constraint signal.
// While set, the manager refuses to instantiate manifests whose integrity
// score is below the low-integrity threshold.
func (m *Manager) SetResourceConstrained(constrained bool) {
	m.constrained.Store(constrained)
}

// Instance returns the resident instance for a module id, if any.
func (m *Manager) Instance(moduleID string) (Module, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[moduleID]
	return inst, ok
}

// Instances returns a snapshot of resident instances keyed by module id.
func (m *Manager) Instances() map[string]Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Module, len(m.instances))
	for id, inst := range m.instances {
		out[id] = inst
	}
	return out
}

// EnsureCapability returns a live instance providing the capability,
// creating one when none is resident. Every failure path (no candidate,
// refused by the constraint signal, factory or lifecycle error) returns
// nil so callers can render an "unavailable" state instead of crashing.
func (m *Manager) EnsureCapability(ctx context.Context, capability string) Module {
	if inst := m.residentWithCapability(capability); inst != nil {
		return inst
	}

	candidates := m.registry.FindByCapability(capability)
	if len(candidates) == 0 {
		log.Warn(log.CatLifecycle, "no module provides capability", "capability", capability)
		return nil
	}

	best := m.pickCandidate(candidates)

	if m.constrained.Load() && best.IntegrityScore < m.lowWater {
		log.Warn(log.CatLifecycle, "refusing low-integrity instantiation under resource constraint",
			"moduleId", best.ID, "integrityScore", best.IntegrityScore, "capability", capability)
		return nil
	}

	// Coalesce concurrent builds of the same module. Losers of the race
	// wait for the winner's instance instead of initializing a duplicate.
	result, err, _ := m.group.Do(best.ID, func() (any, error) {
		if inst, ok := m.Instance(best.ID); ok {
			return inst, nil
		}
		return m.build(ctx, best.ID), nil
	})
	if err != nil || result == nil {
		return nil
	}
	inst, _ := result.(Module)
	return inst
}

// residentWithCapability scans owned instances for one declaring the
// capability, preferring instances that answer Ping.
func (m *Manager) residentWithCapability(capability string) Module {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var dormant Module
	for _, inst := range m.instances {
		if !inst.Manifest().HasCapability(capability) {
			continue
		}
		if inst.Ping() {
			return inst
		}
		if dormant == nil {
			dormant = inst
		}
	}
	return dormant
}

// pickCandidate selects among manifests sharing a capability: highest
// integrity score, then highest telos alignment priority, then id. This is
// policy, not contract; callers must not rely on the tie-break.
func (m *Manager) pickCandidate(candidates []*manifest.Manifest) *manifest.Manifest {
	sorted := make([]*manifest.Manifest, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IntegrityScore != sorted[j].IntegrityScore {
			return sorted[i].IntegrityScore > sorted[j].IntegrityScore
		}
		if m.telos != nil {
			pi, pj := m.telos.AlignmentPriority(sorted[i]), m.telos.AlignmentPriority(sorted[j])
			if pi != pj {
				return pi > pj
			}
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

// build creates, initializes, and activates an instance, caching it on
// success. Lifecycle errors are converted to a nil result.
func (m *Manager) build(ctx context.Context, moduleID string) Module {
	inst := m.registry.NewInstance(moduleID)
	if inst == nil {
		return nil
	}

	if err := inst.Initialize(ctx); err != nil {
		log.ErrorErr(log.CatLifecycle, "initialize failed during capability resolution", err, "moduleId", moduleID)
		return nil
	}
	if err := inst.Activate(ctx); err != nil {
		log.ErrorErr(log.CatLifecycle, "activate failed during capability resolution", err, "moduleId", moduleID)
		_ = inst.Destroy(ctx)
		return nil
	}

	m.mu.Lock()
	m.instances[moduleID] = inst
	m.mu.Unlock()

	log.Info(log.CatLifecycle, "module instance created", "moduleId", moduleID)
	return inst
}

// Release destroys and forgets the instance for a module id. Used when a
// module is disabled at runtime.
func (m *Manager) Release(ctx context.Context, moduleID string) {
	m.mu.Lock()
	inst, ok := m.instances[moduleID]
	delete(m.instances, moduleID)
	m.mu.Unlock()

	if ok {
		if err := inst.Destroy(ctx); err != nil {
			log.ErrorErr(log.CatLifecycle, "destroy on release failed", err, "moduleId", moduleID)
		}
	}
}

// DestroyAll tears down every owned instance. Used at shutdown.
func (m *Manager) DestroyAll(ctx context.Context) {
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]Module)
	m.mu.Unlock()

	for id, inst := range instances {
		if err := inst.Destroy(ctx); err != nil {
			log.ErrorErr(log.CatLifecycle, "destroy on shutdown failed", err, "moduleId", id)
		}
	}
}
