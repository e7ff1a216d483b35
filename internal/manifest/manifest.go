// Package manifest defines the static declaration of a module: its identity,
// capabilities, semantic labels, and alignment to system goals. A manifest is
// created at registration time and is the unit the registry, lifecycle
// manager, and integrity service all reason about.
package manifest

import (
	"fmt"
	"strings"
)

// Integrity score bounds. A penalty can never push a manifest below the
// floor; nothing can push it above the ceiling.
const (
	IntegrityFloor   = 0.1
	IntegrityCeiling = 1.0
)

// Manifest describes a module. The zero value is invalid; build manifests
// from catalog declarations or literals and pass them through the coherence
// validator at registration. YAML decoding happens at the catalog-loader
// boundary, not here.
type Manifest struct {
	// ID is the globally unique module identifier, e.g. "field.breath".
	ID string

	// Name is the human-readable module name.
	Name string

	// Version is the module's semantic version, e.g. "1.2.0".
	Version string

	// Capabilities lists what the module can do, e.g. "timeline-navigation".
	Capabilities []string

	// ExposedItems maps an exposed surface name to an opaque reference the
	// loader resolves, e.g. "TimelineView" -> "render/timeline".
	ExposedItems map[string]string

	// TelosAlignment maps goal ids to alignment weights.
	TelosAlignment map[string]Weight

	// EssenceLabels carries the module's semantic tags.
	EssenceLabels []string

	// IntegrityScore is the 0.1..1.0 health metric. Penalties lower it,
	// nothing silently raises it.
	IntegrityScore float64

	// ResourceFootprintMB is the module's declared memory budget. Must be
	// positive; the validator caps it at 500.
	ResourceFootprintMB float64

	// Location optionally references remotely-hosted code. The kernel only
	// records it; fetching and binding a factory is a loader concern.
	Location string
}

// Penalize lowers the integrity score by delta, clamping to the floor.
// It is the only sanctioned mutator: scores go down, never up.
func (m *Manifest) Penalize(delta float64) {
	s := m.IntegrityScore - delta
	if s < IntegrityFloor {
		s = IntegrityFloor
	}
	if s > IntegrityCeiling {
		s = IntegrityCeiling
	}
	m.IntegrityScore = s
}

// LowerTo reduces the integrity score to target when target is lower than
// the current score. Raising is silently ignored.
func (m *Manifest) LowerTo(target float64) {
	if target < m.IntegrityScore {
		if target < IntegrityFloor {
			target = IntegrityFloor
		}
		m.IntegrityScore = target
	}
}

// HasCapability reports whether the manifest declares the capability.
func (m *Manifest) HasCapability(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// DefaultEnabled derives the initial toggle state for a module id:
// enabled unless the id hints it is an example or demo.
func DefaultEnabled(id string) bool {
	lower := strings.ToLower(id)
	return !strings.Contains(lower, "example") && !strings.Contains(lower, "demo")
}

// Weight is a telos alignment weight: either a numeric strength or the
// literal "primary", which marks the module's dominant goal.
type Weight struct {
	Primary bool
	Value   float64
}

// PrimaryWeight is the alignment weight for a module's dominant goal.
var PrimaryWeight = Weight{Primary: true}

// Numeric returns the weight as a float, treating "primary" as 1.0.
func (w Weight) Numeric() float64 {
	if w.Primary {
		return 1.0
	}
	return w.Value
}

// UnmarshalYAML accepts either a float or the string "primary".
func (w *Weight) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		if s != "primary" {
			return fmt.Errorf("invalid telos weight %q: want a number or \"primary\"", s)
		}
		w.Primary = true
		w.Value = 0
		return nil
	}

	var f float64
	if err := unmarshal(&f); err != nil {
		return fmt.Errorf("invalid telos weight: %w", err)
	}
	w.Primary = false
	w.Value = f
	return nil
}

// MarshalYAML renders "primary" or the numeric value.
func (w Weight) MarshalYAML() (any, error) {
	if w.Primary {
		return "primary", nil
	}
	return w.Value, nil
}

// Telos is a named system-wide goal. Modules never reference each other;
// they declare weighted alignment to goals instead.
type Telos struct {
	ID            string
	Description   string
	Priority      int
	EssenceLabels []string
}
