package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akasha-systems/akasha/internal/kernel"
	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/tracing"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the kernel until interrupted",
	Long: `Load the module catalog, start the integrity loop and toggle mirror,
and serve capability resolution until SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if cfg.LogPath != "" {
		closeLog, err := log.Init(cfg.LogPath)
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		defer closeLog()
	}

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	k, err := kernel.New(cfg)
	if err != nil {
		return err
	}
	if err := k.LoadCatalog(); err != nil {
		k.Shutdown(cmd.Context())
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := k.Start(ctx); err != nil {
		k.Shutdown(ctx)
		return err
	}

	active := len(k.Registry.Manifests())
	known := len(k.Registry.KnownManifests())
	fmt.Fprintf(cmd.OutOrStdout(), "akasha kernel running: %d active / %d known modules\n", active, known)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	k.Shutdown(shutdownCtx)
	return nil
}
