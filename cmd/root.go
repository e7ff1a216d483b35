// Package cmd holds the akasha CLI commands.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/akasha-systems/akasha/internal/config"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "akasha",
	Short:   "Decoupling kernel for capability-addressed modules",
	Long: `Akasha hosts independently-declared modules behind a pattern-matched
event field, a toggle-gated registry, and a capability-resolving lifecycle
manager. Modules never reference each other directly; they publish, subscribe,
and request over the field.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.akasha/config.yaml)")
	rootCmd.PersistentFlags().String("manifest-dir", "",
		"directory scanned for catalog.yaml module declarations")
	_ = viper.BindPFlag("manifest_dir", rootCmd.PersistentFlags().Lookup("manifest-dir"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("manifest_dir", defaults.ManifestDir)
	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("field.history_capacity", defaults.Field.HistoryCapacity)
	viper.SetDefault("bus.request_timeout", defaults.Bus.RequestTimeout)
	viper.SetDefault("toggle.db_path", defaults.Toggle.DBPath)
	viper.SetDefault("toggle.mirror_path", defaults.Toggle.MirrorPath)
	viper.SetDefault("integrity.interval", defaults.Integrity.Interval)
	viper.SetDefault("integrity.threshold", defaults.Integrity.Threshold)
	viper.SetDefault("integrity.resource_budget_mb", defaults.Integrity.ResourceBudgetMB)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".akasha"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// A missing config file is fine; defaults carry the kernel.
	_ = viper.ReadInConfig()
	_ = viper.Unmarshal(&cfg)
}

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
