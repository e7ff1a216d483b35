package telos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasha-systems/akasha/internal/manifest"
)

func TestCatalog_RegisterAndGet(t *testing.T) {
	c := NewCatalog()

	require.Error(t, c.Register(nil))
	require.Error(t, c.Register(&manifest.Telos{}))

	require.NoError(t, c.Register(&manifest.Telos{ID: "presence", Priority: 3}))
	require.NoError(t, c.Register(&manifest.Telos{ID: "coherence", Priority: 5}))

	g, ok := c.Get("presence")
	require.True(t, ok)
	require.Equal(t, 3, g.Priority)

	require.Len(t, c.All(), 2)
	require.Equal(t, 5, c.PriorityOf("coherence"))
	require.Equal(t, 0, c.PriorityOf("unknown"))
}

func TestCatalog_AlignmentPriority(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(&manifest.Telos{ID: "presence", Priority: 3}))
	require.NoError(t, c.Register(&manifest.Telos{ID: "coherence", Priority: 5}))

	m := &manifest.Manifest{TelosAlignment: map[string]manifest.Weight{
		"presence":  manifest.PrimaryWeight, // 3*2 = 6
		"coherence": {Value: 0.9},           // 5
	}}
	require.Equal(t, 6, c.AlignmentPriority(m))

	// Alignment to unknown goals scores nothing.
	require.Equal(t, 0, c.AlignmentPriority(&manifest.Manifest{
		TelosAlignment: map[string]manifest.Weight{"void": {Value: 1}},
	}))
	require.Equal(t, 0, c.AlignmentPriority(&manifest.Manifest{}))
}
