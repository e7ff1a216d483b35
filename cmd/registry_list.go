package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akasha-systems/akasha/internal/kernel"
	"github.com/akasha-systems/akasha/internal/manifest"
)

var listCapability string

var registryListCmd = &cobra.Command{
	Use:   "registry:list",
	Short: "List known modules as JSON",
	Long: `List every module declared in the catalog, including disabled ones,
with toggle state and integrity score after registration-time validation.

Examples:
  # List all modules
  akasha registry:list

  # Only modules providing a capability (active view)
  akasha registry:list --capability insight

  # Parse with jq
  akasha registry:list | jq '.[].id'`,
	RunE: runRegistryList,
}

func init() {
	registryListCmd.Flags().StringVarP(&listCapability, "capability", "C", "",
		"filter to active modules providing this capability")
	rootCmd.AddCommand(registryListCmd)
}

type moduleListing struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Capabilities   []string `json:"capabilities"`
	EssenceLabels  []string `json:"essenceLabels,omitempty"`
	Enabled        bool     `json:"enabled"`
	IntegrityScore float64  `json:"integrityScore"`
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	k, err := kernel.New(cfg)
	if err != nil {
		return err
	}
	defer k.Shutdown(cmd.Context())

	if err := k.LoadCatalog(); err != nil {
		return err
	}

	var manifests []*manifest.Manifest
	if listCapability != "" {
		manifests = k.Registry.FindByCapability(listCapability)
	} else {
		manifests = k.Registry.KnownManifests()
	}

	listings := make([]moduleListing, 0, len(manifests))
	for _, m := range manifests {
		listings = append(listings, moduleListing{
			ID:             m.ID,
			Name:           m.Name,
			Version:        m.Version,
			Capabilities:   m.Capabilities,
			EssenceLabels:  m.EssenceLabels,
			Enabled:        k.Toggles.IsEnabled(m.ID),
			IntegrityScore: m.IntegrityScore,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(listings); err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	return nil
}
