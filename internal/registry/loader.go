package registry

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/akasha-systems/akasha/internal/manifest"
)

// CatalogFile is the root structure for catalog.yaml
type CatalogFile struct {
	Goals   []GoalDef     `yaml:"telos"`   // optional shared goals
	Modules []ManifestDef `yaml:"modules"` // module declarations
}

// GoalDef declares a telos goal modules can align to.
type GoalDef struct {
	ID            string   `yaml:"id"`
	Description   string   `yaml:"description"`
	Priority      int      `yaml:"priority"`
	EssenceLabels []string `yaml:"essenceLabels"`
}

// ManifestDef declares a single module in YAML.
type ManifestDef struct {
	ID                  string                     `yaml:"id"`
	Name                string                     `yaml:"name"`
	Version             string                     `yaml:"version"`
	Capabilities        []string                   `yaml:"capabilities"`
	ExposedItems        map[string]string          `yaml:"exposedItems"`
	TelosAlignment      map[string]manifest.Weight `yaml:"telosAlignment"`
	EssenceLabels       []string                   `yaml:"essenceLabels"`
	ResourceFootprintMB float64                    `yaml:"resourceFootprintMB"`
	Location            string                     `yaml:"location"`
}

// Catalog is the merged result of every catalog.yaml found.
type Catalog struct {
	Goals     []*manifest.Telos
	Manifests []*manifest.Manifest
}

// LoadCatalog scans fsys for catalog.yaml files, parses them, and merges
// their declarations. Duplicate module ids across files are an error.
// Manifests start at full integrity; registration is where validation
// lowers it.
func LoadCatalog(fsys fs.FS) (*Catalog, error) {
	out := &Catalog{}
	seen := make(map[string]string)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "catalog.yaml" {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var file CatalogFile
		if err := yaml.Unmarshal(content, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, g := range file.Goals {
			if g.ID == "" {
				return fmt.Errorf("telos goal without id in %s", path)
			}
			out.Goals = append(out.Goals, &manifest.Telos{
				ID:            g.ID,
				Description:   g.Description,
				Priority:      g.Priority,
				EssenceLabels: g.EssenceLabels,
			})
		}

		for _, def := range file.Modules {
			if def.ID == "" {
				return fmt.Errorf("module without id in %s", path)
			}
			if prev, dup := seen[def.ID]; dup {
				return fmt.Errorf("module %s declared in both %s and %s", def.ID, prev, path)
			}
			seen[def.ID] = path
			out.Manifests = append(out.Manifests, buildManifestFromDef(def))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan module catalogs: %w", err)
	}

	if len(out.Manifests) == 0 {
		return nil, fmt.Errorf("no module declarations found in catalog.yaml files")
	}
	return out, nil
}

func buildManifestFromDef(def ManifestDef) *manifest.Manifest {
	return &manifest.Manifest{
		ID:                  def.ID,
		Name:                def.Name,
		Version:             def.Version,
		Capabilities:        def.Capabilities,
		ExposedItems:        def.ExposedItems,
		TelosAlignment:      def.TelosAlignment,
		EssenceLabels:       def.EssenceLabels,
		IntegrityScore:      manifest.IntegrityCeiling,
		ResourceFootprintMB: def.ResourceFootprintMB,
		Location:            def.Location,
	}
}
