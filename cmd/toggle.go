package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akasha-systems/akasha/internal/toggle"
)

var toggleSetCmd = &cobra.Command{
	Use:   "toggle:set <moduleId> <on|off>",
	Short: "Enable or disable a module",
	Long: `Persist a module toggle in the local store. A running daemon picks the
change up on its next start; live daemons follow the mirror file instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runToggleSet,
}

var toggleListCmd = &cobra.Command{
	Use:   "toggle:list",
	Short: "Print persisted toggle states as JSON",
	RunE:  runToggleList,
}

func init() {
	rootCmd.AddCommand(toggleSetCmd)
	rootCmd.AddCommand(toggleListCmd)
}

func openToggleStore() (*toggle.Store, error) {
	if cfg.Toggle.DBPath == "" {
		return nil, fmt.Errorf("no toggle database configured (toggle.db_path)")
	}
	db, err := toggle.NewDB(cfg.Toggle.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open toggle database: %w", err)
	}
	return toggle.NewStore(toggle.NewSQLiteRepository(db), nil)
}

func runToggleSet(cmd *cobra.Command, args []string) error {
	moduleID := args[0]
	var enabled bool
	switch args[1] {
	case "on", "true", "enable":
		enabled = true
	case "off", "false", "disable":
		enabled = false
	default:
		return fmt.Errorf("expected on or off, got %q", args[1])
	}

	store, err := openToggleStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SetEnabled(moduleID, enabled); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", moduleID, args[1])
	return nil
}

func runToggleList(cmd *cobra.Command, args []string) error {
	store, err := openToggleStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(store.All())
}
