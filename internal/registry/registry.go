// Package registry keeps the catalog of known module manifests and the
// active, toggle-gated view the rest of the kernel resolves capabilities
// against. Registration validates coherence and scans for label dissonance
// but never rejects a manifest outright: degraded manifests are tracked
// with a lowered integrity score, not blocked.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/akasha-systems/akasha/internal/cachemanager"
	"github.com/akasha-systems/akasha/internal/coherence"
	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/labels"
	"github.com/akasha-systems/akasha/internal/lifecycle"
	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/manifest"
	"github.com/akasha-systems/akasha/internal/toggle"
)

// Events emitted by the registry.
const (
	EventRegistered          = "module:registered"
	EventUnregistered        = "module:unregistered"
	EventRegistrationSkipped = "module:registration:skipped"
	EventRegistrationWarning = "module:registration:warning"
)

// DissonancePenalty is subtracted from a manifest's integrity score for
// each label conflict found at registration.
const DissonancePenalty = 0.05

// Field is the slice of the event field the registry needs.
type Field interface {
	Publish(field.Event)
	Subscribe(pattern string, handler field.Handler) func()
}

// Service holds the complete and active catalogs. Catalogs are
// single-writer: only registration and the toggle reaction mutate them.
type Service struct {
	field   Field
	toggles *toggle.Store

	mu        sync.RWMutex
	complete  map[string]*manifest.Manifest
	active    map[string]*manifest.Manifest
	factories map[string]lifecycle.Factory

	// capCache is a read-through index over the active catalog, flushed
	// on every catalog mutation.
	capCache *cachemanager.InMemoryCacheManager[string, []*manifest.Manifest]

	defaultFactory lifecycle.Factory
	unsubToggle    func()
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultFactory sets the factory RegisterAllKnown binds to manifests
// that have no dedicated one.
func WithDefaultFactory(f lifecycle.Factory) ServiceOption {
	return func(s *Service) { s.defaultFactory = f }
}

// NewService creates a registry over the event field and toggle store and
// subscribes to toggle changes so the active view tracks toggle state.
func NewService(f Field, toggles *toggle.Store, opts ...ServiceOption) *Service {
	s := &Service{
		field:     f,
		toggles:   toggles,
		complete:  make(map[string]*manifest.Manifest),
		active:    make(map[string]*manifest.Manifest),
		factories: make(map[string]lifecycle.Factory),
		capCache: cachemanager.NewInMemoryCacheManager[string, []*manifest.Manifest](
			"capability-index", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
	}
	s.defaultFactory = func(m *manifest.Manifest) (lifecycle.Module, error) {
		return lifecycle.NewBaseModule(m, f, lifecycle.Hooks{}, nil), nil
	}
	for _, opt := range opts {
		opt(s)
	}
	if f != nil {
		s.unsubToggle = f.Subscribe(toggle.EventToggleChanged, s.onToggleChanged)
	}
	return s
}

var _ lifecycle.Registry = (*Service)(nil)

// RegisterAllKnown seeds the complete catalog with every manifest, ensures
// each has a persisted toggle state, then registers the enabled ones.
func (s *Service) RegisterAllKnown(manifests []*manifest.Manifest) {
	for _, m := range manifests {
		enabled := s.toggles.EnsureDefault(m.ID)
		if !enabled {
			s.recordSkipped(m, nil)
			continue
		}
		s.Register(m, nil)
	}
	log.Info(log.CatRegistry, "known modules registered", "total", len(manifests))
}

// Register validates and stores a manifest and binds its factory. A nil
// factory binds the service default. A disabled manifest lands in the
// complete catalog only, with a skip event; it is never rejected. An
// invalid manifest is registered anyway with its integrity score lowered.
func (s *Service) Register(m *manifest.Manifest, factory lifecycle.Factory) {
	if !s.toggles.IsEnabled(m.ID) {
		s.recordSkipped(m, factory)
		return
	}

	if res := coherence.ValidateManifest(m); !res.IsValid {
		m.LowerTo(res.IntegrityScore)
		issues := make([]string, len(res.Issues))
		for i, iss := range res.Issues {
			issues[i] = iss.Message
		}
		log.Warn(log.CatRegistry, "manifest failed coherence validation",
			"moduleId", m.ID, "integrityScore", m.IntegrityScore, "issues", issues)
		s.publish(field.Event{
			Type:     EventRegistrationWarning,
			SourceID: "registry",
			Payload: map[string]any{
				"moduleId":       m.ID,
				"integrityScore": m.IntegrityScore,
				"issues":         issues,
			},
			EssenceLabels: []string{"coherence:degraded"},
		})
	}

	if conflicts := labels.DetectDissonance(m.EssenceLabels); len(conflicts) > 0 {
		m.Penalize(DissonancePenalty * float64(len(conflicts)))
		log.Warn(log.CatRegistry, "dissonant essence labels",
			"moduleId", m.ID, "conflicts", conflicts, "integrityScore", m.IntegrityScore)
	}

	if factory == nil {
		factory = s.defaultFactory
	}

	s.mu.Lock()
	s.complete[m.ID] = m
	s.active[m.ID] = m
	s.factories[m.ID] = factory
	s.mu.Unlock()
	s.flushCapabilityIndex()

	log.Info(log.CatRegistry, "module registered",
		"moduleId", m.ID, "capabilities", m.Capabilities, "integrityScore", m.IntegrityScore)
	s.publish(field.Event{
		Type:     EventRegistered,
		SourceID: "registry",
		Payload: map[string]any{
			"moduleId":     m.ID,
			"capabilities": m.Capabilities,
		},
		EssenceLabels: []string{"registry:registered"},
	})
}

// Unregister removes a manifest from the active view. The complete catalog
// keeps it so a later enable can restore it without re-supplying the
// manifest.
func (s *Service) Unregister(moduleID string) {
	s.mu.Lock()
	_, wasActive := s.active[moduleID]
	delete(s.active, moduleID)
	s.mu.Unlock()

	if !wasActive {
		return
	}
	s.flushCapabilityIndex()
	log.Info(log.CatRegistry, "module unregistered", "moduleId", moduleID)
	s.publish(field.Event{
		Type:          EventUnregistered,
		SourceID:      "registry",
		Payload:       map[string]any{"moduleId": moduleID},
		EssenceLabels: []string{"registry:unregistered"},
	})
}

// Manifests returns the active catalog ordered by module id.
func (s *Service) Manifests() []*manifest.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedManifests(s.active)
}

// KnownManifests returns the complete catalog ordered by module id,
// including disabled manifests.
func (s *Service) KnownManifests() []*manifest.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedManifests(s.complete)
}

// Manifest returns an active manifest by id.
func (s *Service) Manifest(moduleID string) (*manifest.Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.active[moduleID]
	return m, ok
}

// FindByCapability returns active manifests declaring the capability,
// ordered by module id. Results are served from the capability cache when
// warm.
func (s *Service) FindByCapability(capability string) []*manifest.Manifest {
	ctx := context.Background()
	if cached, ok := s.capCache.Get(ctx, capability); ok {
		return cached
	}

	s.mu.RLock()
	var out []*manifest.Manifest
	for _, m := range s.active {
		if m.HasCapability(capability) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	s.capCache.Set(ctx, capability, out, cachemanager.DefaultExpiration)
	return out
}

// NewInstance builds an instance for an active manifest through its bound
// factory. Every failure (unknown or disabled id, missing factory,
// factory error or panic) returns nil with a log line rather than an
// error, so capability resolution degrades instead of crashing.
func (s *Service) NewInstance(moduleID string) (inst lifecycle.Module) {
	s.mu.RLock()
	m, ok := s.active[moduleID]
	factory := s.factories[moduleID]
	s.mu.RUnlock()

	if !ok {
		log.Warn(log.CatRegistry, "instance requested for inactive module", "moduleId", moduleID)
		return nil
	}
	if factory == nil {
		log.Warn(log.CatRegistry, "no factory bound", "moduleId", moduleID)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatRegistry, "factory panicked", "moduleId", moduleID, "panic", fmt.Sprint(r))
			inst = nil
		}
	}()
	built, err := factory(m)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "factory failed", err, "moduleId", moduleID)
		return nil
	}
	return built
}

// Close detaches the registry from the event field.
func (s *Service) Close() {
	if s.unsubToggle != nil {
		s.unsubToggle()
		s.unsubToggle = nil
	}
}

// onToggleChanged keeps the active view consistent with toggle state:
// enable restores the manifest from the complete catalog, disable removes
// it from the active one.
func (s *Service) onToggleChanged(evt field.Event) {
	moduleID, _ := evt.Payload["moduleId"].(string)
	enabled, _ := evt.Payload["enabled"].(bool)
	if moduleID == "" {
		return
	}

	if !enabled {
		s.Unregister(moduleID)
		return
	}

	s.mu.Lock()
	m, known := s.complete[moduleID]
	_, alreadyActive := s.active[moduleID]
	if known && !alreadyActive {
		s.active[moduleID] = m
	}
	s.mu.Unlock()

	if !known || alreadyActive {
		return
	}
	s.flushCapabilityIndex()
	log.Info(log.CatRegistry, "module re-enabled from catalog", "moduleId", moduleID)
	s.publish(field.Event{
		Type:     EventRegistered,
		SourceID: "registry",
		Payload: map[string]any{
			"moduleId":     moduleID,
			"capabilities": m.Capabilities,
		},
		EssenceLabels: []string{"registry:registered"},
	})
}

// recordSkipped stores a disabled manifest in the complete catalog and
// binds its factory, so a later enable restores an instantiable module.
func (s *Service) recordSkipped(m *manifest.Manifest, factory lifecycle.Factory) {
	if factory == nil {
		factory = s.defaultFactory
	}
	s.mu.Lock()
	s.complete[m.ID] = m
	s.factories[m.ID] = factory
	s.mu.Unlock()

	log.Info(log.CatRegistry, "registration skipped, module disabled", "moduleId", m.ID)
	s.publish(field.Event{
		Type:          EventRegistrationSkipped,
		SourceID:      "registry",
		Payload:       map[string]any{"moduleId": m.ID},
		EssenceLabels: []string{"registry:skipped"},
	})
}

func (s *Service) flushCapabilityIndex() {
	if err := s.capCache.Flush(context.Background()); err != nil {
		log.ErrorErr(log.CatRegistry, "flushing capability index failed", err)
	}
}

func (s *Service) publish(evt field.Event) {
	if s.field != nil {
		s.field.Publish(evt)
	}
}

func sortedManifests(catalog map[string]*manifest.Manifest) []*manifest.Manifest {
	out := make([]*manifest.Manifest, 0, len(catalog))
	for _, m := range catalog {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
