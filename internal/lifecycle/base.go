package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/manifest"
)

// Publisher is the slice of the event field lifecycle emission needs.
type Publisher interface {
	Publish(field.Event)
}

// Hooks let a concrete module attach behavior to lifecycle transitions.
// Every hook is optional. A hook error aborts the transition and is
// returned to the caller; state is left unchanged.
type Hooks struct {
	OnInitialize func(ctx context.Context) error
	OnActivate   func(ctx context.Context) error
	OnDeactivate func(ctx context.Context) error
	OnDestroy    func(ctx context.Context) error
}

// BaseModule implements the Module state machine. Concrete modules embed it
// and supply hooks plus exposed items; pure-manifest modules can use it
// directly.
//
// transMu serializes whole transitions; stateMu guards the fields so that
// Ping and State stay safe to call from event handlers fired mid-transition.
type BaseModule struct {
	transMu  sync.Mutex
	stateMu  sync.RWMutex
	manifest *manifest.Manifest
	pub      Publisher
	hooks    Hooks
	exposed  map[string]any
	state    State
}

// NewBaseModule creates a module instance in the uninitialized state.
func NewBaseModule(m *manifest.Manifest, pub Publisher, hooks Hooks, exposed map[string]any) *BaseModule {
	if exposed == nil {
		exposed = make(map[string]any)
	}
	return &BaseModule{
		manifest: m,
		pub:      pub,
		hooks:    hooks,
		exposed:  exposed,
		state:    StateUninitialized,
	}
}

var _ Module = (*BaseModule)(nil)

// Manifest returns the module's static declaration.
func (b *BaseModule) Manifest() *manifest.Manifest {
	return b.manifest
}

// State returns the current coarse state.
func (b *BaseModule) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

func (b *BaseModule) setState(s State) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
}

// Initialize transitions uninitialized -> dormant. Idempotent once
// initialized; fails fast after Destroy.
func (b *BaseModule) Initialize(ctx context.Context) error {
	b.transMu.Lock()
	defer b.transMu.Unlock()

	switch b.State() {
	case StateDestroyed:
		return fmt.Errorf("initialize %s: %w", b.manifest.ID, ErrDestroyed)
	case StateDormant, StateActive:
		return nil
	}

	b.emit("initializing")
	if b.hooks.OnInitialize != nil {
		if err := b.hooks.OnInitialize(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", b.manifest.ID, err)
		}
	}
	b.setState(StateDormant)
	b.emit("initialized")
	log.Debug(log.CatLifecycle, "module initialized", "moduleId", b.manifest.ID)
	return nil
}

// Activate transitions dormant -> active. Calling it before Initialize
// completed is an illegal-state error.
func (b *BaseModule) Activate(ctx context.Context) error {
	b.transMu.Lock()
	defer b.transMu.Unlock()

	switch b.State() {
	case StateDestroyed:
		return fmt.Errorf("activate %s: %w", b.manifest.ID, ErrDestroyed)
	case StateUninitialized:
		return fmt.Errorf("activate %s: %w", b.manifest.ID, ErrNotInitialized)
	case StateActive:
		return nil
	}

	b.emit("activating")
	if b.hooks.OnActivate != nil {
		if err := b.hooks.OnActivate(ctx); err != nil {
			return fmt.Errorf("activate %s: %w", b.manifest.ID, err)
		}
	}
	b.setState(StateActive)
	b.emit("activated")
	log.Debug(log.CatLifecycle, "module activated", "moduleId", b.manifest.ID)
	return nil
}

// Deactivate transitions active -> dormant. The module stays
// re-activatable. Deactivating a dormant module is a no-op.
func (b *BaseModule) Deactivate(ctx context.Context) error {
	b.transMu.Lock()
	defer b.transMu.Unlock()

	switch b.State() {
	case StateDestroyed:
		return fmt.Errorf("deactivate %s: %w", b.manifest.ID, ErrDestroyed)
	case StateUninitialized, StateDormant:
		return nil
	}

	b.emit("deactivating")
	if b.hooks.OnDeactivate != nil {
		if err := b.hooks.OnDeactivate(ctx); err != nil {
			return fmt.Errorf("deactivate %s: %w", b.manifest.ID, err)
		}
	}
	b.setState(StateDormant)
	b.emit("deactivated")
	log.Debug(log.CatLifecycle, "module deactivated", "moduleId", b.manifest.ID)
	return nil
}

// Destroy forces the module down and releases resources. Terminal: any
// lifecycle call afterwards fails fast rather than re-running teardown.
func (b *BaseModule) Destroy(ctx context.Context) error {
	b.transMu.Lock()
	defer b.transMu.Unlock()

	if b.State() == StateDestroyed {
		return fmt.Errorf("destroy %s: %w", b.manifest.ID, ErrDestroyed)
	}

	if b.hooks.OnDestroy != nil {
		if err := b.hooks.OnDestroy(ctx); err != nil {
			// Teardown errors are logged, not fatal: the instance still
			// ends up destroyed.
			log.ErrorErr(log.CatLifecycle, "destroy hook failed", err, "moduleId", b.manifest.ID)
		}
	}
	b.stateMu.Lock()
	b.state = StateDestroyed
	b.exposed = nil
	b.stateMu.Unlock()
	b.emit("destroyed")
	log.Debug(log.CatLifecycle, "module destroyed", "moduleId", b.manifest.ID)
	return nil
}

// Ping reports whether the module is currently active.
func (b *BaseModule) Ping() bool {
	return b.State() == StateActive
}

// ExposedItems returns the module's external surface. Empty after Destroy.
func (b *BaseModule) ExposedItems() map[string]any {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	if b.exposed == nil {
		return map[string]any{}
	}
	return b.exposed
}

// emit publishes a lifecycle phase event.
func (b *BaseModule) emit(phase string) {
	if b.pub == nil {
		return
	}
	b.pub.Publish(field.Event{
		Type:          fmt.Sprintf("module:%s:%s", b.manifest.ID, phase),
		SourceID:      b.manifest.ID,
		Payload:       map[string]any{"moduleId": b.manifest.ID},
		EssenceLabels: []string{"lifecycle:" + phase},
	})
}
