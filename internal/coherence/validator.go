// Package coherence validates module manifests against structural and
// semantic rules, producing an integrity score. Validation never rejects a
// manifest outright; the registry records degraded scores instead of
// blocking registration.
package coherence

import (
	"fmt"

	"github.com/akasha-systems/akasha/internal/labels"
	"github.com/akasha-systems/akasha/internal/manifest"
)

// IssueKind classifies a validation issue and fixes its score penalty.
type IssueKind int

const (
	// KindMissingField marks a required scalar field that is absent.
	KindMissingField IssueKind = iota
	// KindMissingDeclaration marks a "must declare at least one" rule.
	KindMissingDeclaration
	// KindOther covers semantic findings such as label dissonance.
	KindOther
)

// Penalty returns the score deduction for the issue kind.
func (k IssueKind) Penalty() float64 {
	switch k {
	case KindMissingField:
		return 0.2
	case KindMissingDeclaration:
		return 0.1
	default:
		return 0.05
	}
}

// Issue is a single validation finding.
type Issue struct {
	Kind    IssueKind
	Message string
}

// Result reports the outcome of validating a manifest. IntegrityScore
// starts at 1.0, loses each issue's penalty, and clamps to [0, 1].
type Result struct {
	IsValid        bool
	Issues         []Issue
	IntegrityScore float64
}

// MaxResourceFootprintMB caps the declared memory budget of a module.
const MaxResourceFootprintMB = 500

// ValidateManifest checks a manifest's structural and semantic coherence.
func ValidateManifest(m *manifest.Manifest) Result {
	var issues []Issue

	add := func(kind IssueKind, format string, args ...any) {
		issues = append(issues, Issue{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	if m.ID == "" {
		add(KindMissingField, "manifest is missing required field %q", "id")
	}
	if m.Name == "" {
		add(KindMissingField, "manifest is missing required field %q", "name")
	}
	if m.Version == "" {
		add(KindMissingField, "manifest is missing required field %q", "version")
	}

	if len(m.Capabilities) == 0 {
		add(KindMissingDeclaration, "manifest must declare at least one capability")
	}
	if len(m.EssenceLabels) == 0 {
		add(KindMissingDeclaration, "manifest must declare at least one essence label")
	} else {
		for _, conflict := range labels.DetectDissonance(m.EssenceLabels) {
			add(KindOther, "%s", conflict)
		}
	}
	if len(m.TelosAlignment) == 0 {
		add(KindMissingDeclaration, "manifest must declare at least one telos alignment")
	}

	switch {
	case m.ResourceFootprintMB <= 0:
		add(KindMissingField, "manifest resourceFootprintMB must be positive, got %v", m.ResourceFootprintMB)
	case m.ResourceFootprintMB > MaxResourceFootprintMB:
		add(KindOther, "manifest resourceFootprintMB %v exceeds the %dMB cap", m.ResourceFootprintMB, MaxResourceFootprintMB)
	}

	score := 1.0
	for _, issue := range issues {
		score -= issue.Kind.Penalty()
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return Result{
		IsValid:        len(issues) == 0,
		Issues:         issues,
		IntegrityScore: score,
	}
}
