// Package kernel is the composition root: it wires the event field, bus,
// toggle store, registry, telos catalog, lifecycle manager, and integrity
// service together from a config.Config. Nothing here is a singleton; a
// process can run several kernels side by side (tests do).
package kernel

import (
	"context"
	"fmt"
	"os"

	"github.com/akasha-systems/akasha/internal/bus"
	"github.com/akasha-systems/akasha/internal/config"
	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/integrity"
	"github.com/akasha-systems/akasha/internal/lifecycle"
	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/registry"
	"github.com/akasha-systems/akasha/internal/telos"
	"github.com/akasha-systems/akasha/internal/toggle"
)

// Kernel owns the wired subsystems and their shutdown order.
type Kernel struct {
	cfg config.Config

	Field     *field.Field
	Bus       *bus.Bus
	Toggles   *toggle.Store
	Registry  *registry.Service
	Telos     *telos.Catalog
	Manager   *lifecycle.Manager
	Integrity *integrity.Service

	mirror *toggle.Mirror
	cancel context.CancelFunc
}

// New builds a kernel from cfg. The toggle database is optional: an empty
// DBPath keeps toggle state memory-only.
func New(cfg config.Config) (*Kernel, error) {
	k := &Kernel{cfg: cfg}

	capacity := cfg.Field.HistoryCapacity
	if capacity <= 0 {
		capacity = field.DefaultHistoryCapacity
	}
	k.Field = field.New(capacity)

	var busOpts []bus.Option
	if cfg.Bus.RequestTimeout > 0 {
		busOpts = append(busOpts, bus.WithRequestTimeout(cfg.Bus.RequestTimeout))
	}
	k.Bus = bus.New(k.Field, busOpts...)

	var repo toggle.Repository
	if cfg.Toggle.DBPath != "" {
		db, err := toggle.NewDB(cfg.Toggle.DBPath)
		if err != nil {
			k.Field.Close()
			return nil, fmt.Errorf("open toggle database: %w", err)
		}
		repo = toggle.NewSQLiteRepository(db)
	}
	toggles, err := toggle.NewStore(repo, k.Field)
	if err != nil {
		k.close()
		return nil, err
	}
	k.Toggles = toggles

	if cfg.Toggle.MirrorPath != "" {
		mirror, err := toggle.NewMirror(toggles, toggle.MirrorConfig{Path: cfg.Toggle.MirrorPath})
		if err != nil {
			k.close()
			return nil, fmt.Errorf("create toggle mirror: %w", err)
		}
		k.mirror = mirror
	}

	k.Telos = telos.NewCatalog()
	k.Registry = registry.NewService(k.Field, toggles)
	k.Manager = lifecycle.NewManager(k.Registry, k.Telos)
	k.Integrity = integrity.NewService(
		k.Registry, k.Telos, k.Field, k.Bus, k.Manager,
		integrity.WithInterval(cfg.Integrity.Interval),
		integrity.WithThreshold(cfg.Integrity.Threshold),
		integrity.WithResourceBudgetMB(cfg.Integrity.ResourceBudgetMB),
	)
	return k, nil
}

// LoadCatalog reads catalog.yaml declarations from the configured manifest
// directory and registers every known module. A missing directory is not
// an error; the kernel just starts empty.
func (k *Kernel) LoadCatalog() error {
	if k.cfg.ManifestDir == "" {
		return nil
	}
	if _, err := os.Stat(k.cfg.ManifestDir); os.IsNotExist(err) {
		log.Warn(log.CatKernel, "manifest directory missing, starting empty", "dir", k.cfg.ManifestDir)
		return nil
	}

	cat, err := registry.LoadCatalog(os.DirFS(k.cfg.ManifestDir))
	if err != nil {
		return fmt.Errorf("load module catalog: %w", err)
	}
	for _, goal := range cat.Goals {
		if err := k.Telos.Register(goal); err != nil {
			log.Warn(log.CatKernel, "skipping telos goal", "goalId", goal.ID, "error", err.Error())
		}
	}
	k.Registry.RegisterAllKnown(cat.Manifests)
	return nil
}

// Start begins the toggle mirror watch and the integrity loop. It returns
// immediately; background work stops when Shutdown runs or ctx is
// cancelled.
func (k *Kernel) Start(ctx context.Context) error {
	ctx, k.cancel = context.WithCancel(ctx)
	if k.mirror != nil {
		if err := k.mirror.Start(); err != nil {
			return fmt.Errorf("start toggle mirror: %w", err)
		}
	}
	k.Integrity.Start(ctx)
	log.Info(log.CatKernel, "kernel started")
	return nil
}

// Shutdown tears everything down in reverse dependency order: lifecycle
// instances first, transport last.
func (k *Kernel) Shutdown(ctx context.Context) {
	if k.cancel != nil {
		k.cancel()
	}
	k.Manager.DestroyAll(ctx)
	k.close()
	log.Info(log.CatKernel, "kernel stopped")
}

func (k *Kernel) close() {
	if k.Integrity != nil {
		k.Integrity.Close()
	}
	if k.Registry != nil {
		k.Registry.Close()
	}
	if k.mirror != nil {
		if err := k.mirror.Stop(); err != nil {
			log.ErrorErr(log.CatKernel, "stopping toggle mirror failed", err)
		}
	}
	if k.Toggles != nil {
		if err := k.Toggles.Close(); err != nil {
			log.ErrorErr(log.CatKernel, "closing toggle store failed", err)
		}
	}
	if k.Field != nil {
		k.Field.Close()
	}
}
