package integrity

import (
	"context"
	"time"

	"github.com/akasha-systems/akasha/internal/labels"
)

// Check weights. Coherence counts double: a registry full of degraded
// manifests is the strongest signal the system is unwell.
const (
	weightCoherence  = 2.0
	weightDissonance = 1.0
	weightField      = 1.0
	weightTelos      = 1.0
	weightResources  = 1.0
	weightSelfCheck  = 1.0
)

func (s *Service) checks() []namedCheck {
	return []namedCheck{
		{"module-coherence", weightCoherence, s.checkCoherence},
		{"label-dissonance", weightDissonance, s.checkDissonance},
		{"field-activity", weightField, s.checkFieldActivity},
		{"telos-alignment", weightTelos, s.checkTelosAlignment},
		{"resource-distribution", weightResources, s.checkResources},
		{"self-check", weightSelfCheck, s.checkSelf},
	}
}

// checkCoherence scores the mean integrity of active manifests. An empty
// registry is vacuously healthy.
func (s *Service) checkCoherence(context.Context) CheckResult {
	manifests := s.source.Manifests()
	score := 1.0
	if len(manifests) > 0 {
		var sum float64
		for _, m := range manifests {
			sum += m.IntegrityScore
		}
		score = sum / float64(len(manifests))
	}
	return CheckResult{
		Name:   "module-coherence",
		Passed: score >= s.threshold,
		Score:  score,
		Weight: weightCoherence,
		Details: map[string]any{
			"moduleCount": len(manifests),
			"meanScore":   score,
		},
	}
}

// checkDissonance scans every active manifest's labels for conflicting
// pairs. Each conflict costs 0.1.
func (s *Service) checkDissonance(context.Context) CheckResult {
	var conflicts []string
	for _, m := range s.source.Manifests() {
		for _, c := range labels.DetectDissonance(m.EssenceLabels) {
			conflicts = append(conflicts, m.ID+": "+c)
		}
	}
	score := clamp01(1.0 - 0.1*float64(len(conflicts)))
	return CheckResult{
		Name:   "label-dissonance",
		Passed: len(conflicts) == 0,
		Score:  score,
		Weight: weightDissonance,
		Details: map[string]any{
			"conflicts": conflicts,
		},
	}
}

// checkFieldActivity reads field statistics for two opposite failure
// shapes: congestion (the history ring turned over completely within the
// congestion window, so publish volume outruns what the buffer can hold)
// and stagnation (nothing published for too long on a field that has seen
// traffic). A full ring alone is not congestion: the ring never shrinks,
// so any long-running kernel eventually fills it.
func (s *Service) checkFieldActivity(context.Context) CheckResult {
	stats := s.f.Stats()
	score := 1.0
	details := map[string]any{
		"totalPublished":  stats.TotalPublished,
		"recentCount":     stats.RecentCount,
		"historyCapacity": stats.HistoryCapacity,
		"subscriberCount": stats.SubscriberCount,
	}

	if stats.HistoryCapacity > 0 && stats.RecentCount >= stats.HistoryCapacity {
		history := s.f.History()
		if len(history) > 0 && time.Since(history[0].Timestamp) < s.congestionWindow {
			score -= 0.5
			details["congested"] = true
		}
	}
	if stats.TotalPublished > 0 && time.Since(stats.LastPublishedAt) > s.stagnantAfter {
		score -= 0.5
		details["stagnant"] = true
	}
	score = clamp01(score)
	return CheckResult{
		Name:    "field-activity",
		Passed:  score == 1.0,
		Score:   score,
		Weight:  weightField,
		Details: details,
	}
}

// checkTelosAlignment scores the share of active manifests aligned to at
// least one known goal.
func (s *Service) checkTelosAlignment(context.Context) CheckResult {
	manifests := s.source.Manifests()
	known := make(map[string]struct{})
	for _, g := range s.goals.All() {
		known[g.ID] = struct{}{}
	}

	aligned := 0
	for _, m := range manifests {
		for goalID := range m.TelosAlignment {
			if _, ok := known[goalID]; ok {
				aligned++
				break
			}
		}
	}

	score := 1.0
	if len(manifests) > 0 {
		score = float64(aligned) / float64(len(manifests))
	}
	return CheckResult{
		Name:   "telos-alignment",
		Passed: aligned == len(manifests),
		Score:  score,
		Weight: weightTelos,
		Details: map[string]any{
			"alignedModules": aligned,
			"totalModules":   len(manifests),
			"knownGoals":     len(known),
		},
	}
}

// checkResources compares the aggregate declared footprint of active
// manifests against the budget. Over budget, the score decays as the
// budget's share of the total.
func (s *Service) checkResources(context.Context) CheckResult {
	var total float64
	for _, m := range s.source.Manifests() {
		total += m.ResourceFootprintMB
	}

	score := 1.0
	if total > s.budgetMB {
		score = s.budgetMB / total
	}
	return CheckResult{
		Name:   "resource-distribution",
		Passed: total <= s.budgetMB,
		Score:  score,
		Weight: weightResources,
		Details: map[string]any{
			"totalFootprintMB": total,
			"budgetMB":         s.budgetMB,
		},
	}
}

// checkSelf proves the request/response path end to end with a bus
// round-trip to the service's own responder.
func (s *Service) checkSelf(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:    "self-check",
		Weight:  weightSelfCheck,
		Details: map[string]any{},
	}
	if s.b == nil {
		result.Details["skipped"] = "no bus attached"
		result.Passed = true
		result.Score = 1.0
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := s.b.Request(ctx, SelfCheckRequest, map[string]any{"probe": true})
	if err != nil {
		result.Details["error"] = err.Error()
		return result
	}

	result.Passed = resp.Payload["pong"] == true
	if result.Passed {
		result.Score = 1.0
	}
	result.Details["roundTrip"] = true
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
