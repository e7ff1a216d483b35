// Package lifecycle defines the module contract and drives instances
// through their state machine: uninitialized -> dormant -> active ->
// destroyed. Instances are exclusively owned by the Manager that created
// them and are never shared across managers.
package lifecycle

import (
	"context"
	"errors"

	"github.com/akasha-systems/akasha/internal/manifest"
)

// Lifecycle errors, thrown to the immediate caller. The Manager converts
// them into a failed capability resolution instead of propagating further.
var (
	// ErrNotInitialized is returned by Activate before Initialize completed.
	ErrNotInitialized = errors.New("module is not initialized")
	// ErrDestroyed is returned by any lifecycle call after Destroy.
	ErrDestroyed = errors.New("module is destroyed")
)

// State is the coarse observable instance state. The transient
// initializing/activating/deactivating phases exist only as events.
type State int

const (
	StateUninitialized State = iota
	StateDormant
	StateActive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDormant:
		return "dormant"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Module is the contract every module instance satisfies. Modules expose
// their external surface through ExposedItems and communicate with other
// modules only over the event bus.
type Module interface {
	// Manifest returns the module's static declaration.
	Manifest() *manifest.Manifest

	// Initialize prepares resources. Idempotent once initialized.
	Initialize(ctx context.Context) error

	// Activate marks the module live. Fails with ErrNotInitialized when
	// called before Initialize completed.
	Activate(ctx context.Context) error

	// Deactivate returns the module to dormant; it can be activated again.
	Deactivate(ctx context.Context) error

	// Destroy releases resources. Terminal: every later lifecycle call
	// fails fast with ErrDestroyed.
	Destroy(ctx context.Context) error

	// Ping is a cheap liveness probe reporting whether the module is active.
	Ping() bool

	// ExposedItems maps exposed surface names to capability objects.
	ExposedItems() map[string]any
}

// Factory builds a module instance from its manifest. Factories are bound
// by a loader outside this core; the kernel never fetches or executes
// remotely-hosted code itself.
type Factory func(m *manifest.Manifest) (Module, error)
