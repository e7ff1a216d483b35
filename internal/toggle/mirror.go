package toggle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/akasha-systems/akasha/internal/log"
)

// mirrorFile is the on-disk remote mirror format: a flat moduleId -> bool map.
type mirrorFile struct {
	Toggles map[string]bool `yaml:"toggles"`
}

// Mirror watches a remotely-synced toggle file and merges it into a Store.
// The mirror is optional; when its file is absent the store stays purely
// local. On every change the file's values win over local state.
type Mirror struct {
	store     *Store
	path      string
	debounce  time.Duration
	fsWatcher *fsnotify.Watcher
	done      chan struct{}
}

// MirrorConfig holds mirror options.
type MirrorConfig struct {
	// Path is the mirrored toggle file, typically synced by an external
	// agent outside this core's responsibility.
	Path string
	// DebounceDur coalesces rapid successive writes. Defaults to 1s.
	DebounceDur time.Duration
}

// NewMirror creates a mirror for the given store.
func NewMirror(store *Store, cfg MirrorConfig) (*Mirror, error) {
	if cfg.Path == "" {
		return nil, errors.New("mirror path is required")
	}
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = time.Second
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Mirror{
		store:     store,
		path:      cfg.Path,
		debounce:  cfg.DebounceDur,
		fsWatcher: fsw,
		done:      make(chan struct{}),
	}, nil
}

// Start performs an initial merge and begins watching the mirror file's
// directory for changes. A missing file at startup is not an error.
func (m *Mirror) Start() error {
	if err := m.merge(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	dir := filepath.Dir(m.path)
	if err := m.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go m.loop()
	return nil
}

// Stop terminates the watcher and releases resources.
func (m *Mirror) Stop() error {
	close(m.done)
	return m.fsWatcher.Close()
}

func (m *Mirror) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-m.done:
			return

		case event, ok := <-m.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Reset the debounce window on every burst of writes.
			if timer == nil {
				timer = time.NewTimer(m.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(m.debounce)
			}

		case err, ok := <-m.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatToggle, "mirror watcher error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			if err := m.merge(); err != nil {
				log.ErrorErr(log.CatToggle, "mirror merge failed", err, "path", m.path)
			}
		}
	}
}

// merge reads the mirror file and applies it, remote values winning.
func (m *Mirror) merge() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read mirror file: %w", err)
	}

	var file mirrorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse mirror file %s: %w", m.path, err)
	}

	log.Debug(log.CatToggle, "merging mirrored toggles", "path", m.path, "count", len(file.Toggles))
	m.store.ApplyMirror(file.Toggles)
	return nil
}
