package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/manifest"
)

func testManifest(id string) *manifest.Manifest {
	return &manifest.Manifest{
		ID:             id,
		Name:           id,
		Version:        "1.0.0",
		Capabilities:   []string{"breath-sync"},
		EssenceLabels:  []string{"state:active"},
		IntegrityScore: 1.0,
	}
}

func TestBaseModule_HappyPath(t *testing.T) {
	f := field.New(100)
	defer f.Close()

	var phases []string
	f.Subscribe("module:breath:*", func(e field.Event) {
		phases = append(phases, e.Type)
	})

	ctx := context.Background()
	m := NewBaseModule(testManifest("breath"), f, Hooks{}, map[string]any{"BreathView": struct{}{}})

	require.Equal(t, StateUninitialized, m.State())
	require.False(t, m.Ping())

	require.NoError(t, m.Initialize(ctx))
	require.Equal(t, StateDormant, m.State())
	require.False(t, m.Ping())

	require.NoError(t, m.Activate(ctx))
	require.Equal(t, StateActive, m.State())
	require.True(t, m.Ping())
	require.Contains(t, m.ExposedItems(), "BreathView")

	require.NoError(t, m.Deactivate(ctx))
	require.Equal(t, StateDormant, m.State())

	// Dormant modules are re-activatable.
	require.NoError(t, m.Activate(ctx))

	require.NoError(t, m.Destroy(ctx))
	require.Equal(t, StateDestroyed, m.State())
	require.False(t, m.Ping())
	require.Empty(t, m.ExposedItems())

	require.Equal(t, []string{
		"module:breath:initializing",
		"module:breath:initialized",
		"module:breath:activating",
		"module:breath:activated",
		"module:breath:deactivating",
		"module:breath:deactivated",
		"module:breath:activating",
		"module:breath:activated",
		"module:breath:destroyed",
	}, phases)
}

func TestBaseModule_InitializeIdempotent(t *testing.T) {
	calls := 0
	m := NewBaseModule(testManifest("breath"), nil, Hooks{
		OnInitialize: func(context.Context) error { calls++; return nil },
	}, nil)

	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Initialize(ctx))
	require.Equal(t, 1, calls)
}

func TestBaseModule_ActivateBeforeInitialize(t *testing.T) {
	m := NewBaseModule(testManifest("breath"), nil, Hooks{}, nil)
	err := m.Activate(context.Background())
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestBaseModule_DestroyIsTerminal(t *testing.T) {
	ctx := context.Background()
	m := NewBaseModule(testManifest("breath"), nil, Hooks{}, nil)

	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Destroy(ctx))

	require.ErrorIs(t, m.Initialize(ctx), ErrDestroyed)
	require.ErrorIs(t, m.Activate(ctx), ErrDestroyed)
	require.ErrorIs(t, m.Deactivate(ctx), ErrDestroyed)
	require.ErrorIs(t, m.Destroy(ctx), ErrDestroyed)
}

func TestBaseModule_HookErrorAbortsTransition(t *testing.T) {
	ctx := context.Background()
	m := NewBaseModule(testManifest("breath"), nil, Hooks{
		OnActivate: func(context.Context) error { return errors.New("no signal") },
	}, nil)

	require.NoError(t, m.Initialize(ctx))
	err := m.Activate(ctx)
	require.Error(t, err)
	require.Equal(t, StateDormant, m.State())
	require.False(t, m.Ping())
}

func TestBaseModule_PingSafeFromEventHandler(t *testing.T) {
	f := field.New(100)
	defer f.Close()

	var m *BaseModule
	var seenActive bool
	f.Subscribe("module:breath:activated", func(field.Event) {
		seenActive = m.Ping()
	})

	m = NewBaseModule(testManifest("breath"), f, Hooks{}, nil)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Activate(ctx))
	require.True(t, seenActive)
}
