package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPenalize_ClampsToFloor(t *testing.T) {
	m := &Manifest{IntegrityScore: 0.2}
	m.Penalize(0.5)
	require.Equal(t, IntegrityFloor, m.IntegrityScore)
}

func TestPenalize_NegativeDeltaCannotExceedCeiling(t *testing.T) {
	m := &Manifest{IntegrityScore: 0.9}
	m.Penalize(-0.5)
	require.Equal(t, IntegrityCeiling, m.IntegrityScore)
}

func TestLowerTo(t *testing.T) {
	m := &Manifest{IntegrityScore: 0.8}

	m.LowerTo(0.5)
	require.Equal(t, 0.5, m.IntegrityScore)

	// Raising is ignored: scores are write-once-down.
	m.LowerTo(0.9)
	require.Equal(t, 0.5, m.IntegrityScore)

	m.LowerTo(0.0)
	require.Equal(t, IntegrityFloor, m.IntegrityScore)
}

func TestHasCapability(t *testing.T) {
	m := &Manifest{Capabilities: []string{"timeline-navigation", "frequency-tuning"}}
	require.True(t, m.HasCapability("frequency-tuning"))
	require.False(t, m.HasCapability("archetype-mapping"))
}

func TestDefaultEnabled(t *testing.T) {
	require.True(t, DefaultEnabled("field.breath"))
	require.False(t, DefaultEnabled("field.example-breath"))
	require.False(t, DefaultEnabled("Demo.Timeline"))
}

func TestWeight_YAMLRoundTrip(t *testing.T) {
	var m Manifest
	doc := `
id: field.breath
name: Breath Field
version: 1.0.0
telos_alignment:
  presence: primary
  coherence: 0.6
`
	require.NoError(t, yaml.Unmarshal([]byte(doc), &m))
	require.True(t, m.TelosAlignment["presence"].Primary)
	require.Equal(t, 1.0, m.TelosAlignment["presence"].Numeric())
	require.Equal(t, 0.6, m.TelosAlignment["coherence"].Numeric())

	var w Weight
	err := yaml.Unmarshal([]byte(`"dominant"`), &w)
	require.Error(t, err)
}
