package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasha-systems/akasha/internal/manifest"
)

func validManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ID:           "field.breath",
		Name:         "Breath Field",
		Version:      "1.0.0",
		Capabilities: []string{"breath-sync"},
		TelosAlignment: map[string]manifest.Weight{
			"presence": manifest.PrimaryWeight,
		},
		EssenceLabels:       []string{"state:active", "access:public"},
		IntegrityScore:      1.0,
		ResourceFootprintMB: 12,
	}
}

func TestValidateManifest_Valid(t *testing.T) {
	res := ValidateManifest(validManifest())
	require.True(t, res.IsValid)
	require.Empty(t, res.Issues)
	require.Equal(t, 1.0, res.IntegrityScore)
}

func TestValidateManifest_Empty(t *testing.T) {
	res := ValidateManifest(&manifest.Manifest{})
	require.False(t, res.IsValid)
	// id, name, version, capabilities, labels, telos, footprint.
	require.GreaterOrEqual(t, len(res.Issues), 4)
	// Raw score goes negative and clamps to zero.
	require.Equal(t, 0.0, res.IntegrityScore)
}

func TestValidateManifest_Penalties(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*manifest.Manifest)
		score  float64
		issues int
	}{
		{
			name:   "missing id",
			mutate: func(m *manifest.Manifest) { m.ID = "" },
			score:  0.8,
			issues: 1,
		},
		{
			name:   "no capabilities",
			mutate: func(m *manifest.Manifest) { m.Capabilities = nil },
			score:  0.9,
			issues: 1,
		},
		{
			name: "dissonant labels",
			mutate: func(m *manifest.Manifest) {
				m.EssenceLabels = []string{"security:secure", "security:vulnerable"}
			},
			score:  0.95,
			issues: 1,
		},
		{
			name:   "footprint over cap",
			mutate: func(m *manifest.Manifest) { m.ResourceFootprintMB = 1024 },
			score:  0.95,
			issues: 1,
		},
		{
			name:   "footprint not positive",
			mutate: func(m *manifest.Manifest) { m.ResourceFootprintMB = 0 },
			score:  0.8,
			issues: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(m)
			res := ValidateManifest(m)
			require.False(t, res.IsValid)
			require.Len(t, res.Issues, tt.issues)
			require.InDelta(t, tt.score, res.IntegrityScore, 1e-9)
		})
	}
}

func TestValidateManifest_EmptyLabelsSkipsDissonanceScan(t *testing.T) {
	m := validManifest()
	m.EssenceLabels = nil
	res := ValidateManifest(m)
	require.Len(t, res.Issues, 1)
	require.Equal(t, KindMissingDeclaration, res.Issues[0].Kind)
}
