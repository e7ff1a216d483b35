// Package toggle persists per-module enabled/disabled state. State is
// local-first: an in-memory view loaded from a sqlite repository, with an
// optional remote mirror whose values win on conflict. Every change is
// announced on the event field so the registry can keep its active catalog
// consistent without a reload.
package toggle

import (
	"fmt"
	"sync"

	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/manifest"
)

// EventToggleChanged is published whenever a module's toggle flips.
// Payload: moduleId (string), enabled (bool), source (string).
const EventToggleChanged = "module:toggle:changed"

// Change sources recorded in toggle-change events.
const (
	SourceLocal  = "local"
	SourceMirror = "mirror"
)

// Repository persists the flat moduleId -> enabled map.
type Repository interface {
	LoadAll() (map[string]bool, error)
	Save(moduleID string, enabled bool) error
	Close() error
}

// Publisher is the slice of the event field the store needs.
type Publisher interface {
	Publish(field.Event)
}

// Store holds toggle state. All reads are served from memory; writes go to
// the repository and are announced on the field.
type Store struct {
	mu    sync.RWMutex
	state map[string]bool
	repo  Repository
	pub   Publisher
}

// NewStore loads toggle state from repo. A nil repo keeps the store
// memory-only, which tests and embedded callers use.
func NewStore(repo Repository, pub Publisher) (*Store, error) {
	state := make(map[string]bool)
	if repo != nil {
		loaded, err := repo.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load toggle state: %w", err)
		}
		state = loaded
	}
	return &Store{state: state, repo: repo, pub: pub}, nil
}

// IsEnabled reports the module's toggle. Unknown modules report their
// derived default without persisting it.
func (s *Store) IsEnabled(moduleID string) bool {
	s.mu.RLock()
	enabled, known := s.state[moduleID]
	s.mu.RUnlock()
	if !known {
		return manifest.DefaultEnabled(moduleID)
	}
	return enabled
}

// EnsureDefault records the derived default state for a module seen for the
// first time and returns the effective state. Already-known modules keep
// their stored state.
func (s *Store) EnsureDefault(moduleID string) bool {
	s.mu.Lock()
	if enabled, known := s.state[moduleID]; known {
		s.mu.Unlock()
		return enabled
	}
	enabled := manifest.DefaultEnabled(moduleID)
	s.state[moduleID] = enabled
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(moduleID, enabled); err != nil {
			log.ErrorErr(log.CatToggle, "persisting default toggle failed", err, "moduleId", moduleID)
		}
	}
	return enabled
}

// SetEnabled flips a module's toggle, persists it, and publishes a change
// event. Setting the current value is a no-op.
func (s *Store) SetEnabled(moduleID string, enabled bool) error {
	return s.set(moduleID, enabled, SourceLocal)
}

func (s *Store) set(moduleID string, enabled bool, source string) error {
	s.mu.Lock()
	current, known := s.state[moduleID]
	if known && current == enabled {
		s.mu.Unlock()
		return nil
	}
	s.state[moduleID] = enabled
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(moduleID, enabled); err != nil {
			return fmt.Errorf("persist toggle %s: %w", moduleID, err)
		}
	}

	log.Info(log.CatToggle, "toggle changed", "moduleId", moduleID, "enabled", enabled, "source", source)
	if s.pub != nil {
		s.pub.Publish(field.Event{
			Type:     EventToggleChanged,
			SourceID: "toggle:store",
			Payload: map[string]any{
				"moduleId": moduleID,
				"enabled":  enabled,
				"source":   source,
			},
			EssenceLabels: []string{"toggle:" + stateLabel(enabled)},
		})
	}
	return nil
}

// ApplyMirror merges a remote toggle map into the store. Remote values win
// on conflict; each difference flows through the normal change path.
func (s *Store) ApplyMirror(remote map[string]bool) {
	for id, enabled := range remote {
		if err := s.set(id, enabled, SourceMirror); err != nil {
			log.ErrorErr(log.CatToggle, "applying mirrored toggle failed", err, "moduleId", id)
		}
	}
}

// All returns a copy of the known toggle states.
func (s *Store) All() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.state))
	for id, enabled := range s.state {
		out[id] = enabled
	}
	return out
}

// Close releases the underlying repository.
func (s *Store) Close() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}

func stateLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
