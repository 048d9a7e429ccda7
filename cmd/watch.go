package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlleexMartinsT/Botana/internal/config"
	"github.com/AlleexMartinsT/Botana/internal/logger"
	"github.com/AlleexMartinsT/Botana/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the polling loop until interrupted",
	Long: `Start the background polling loop: one reconciliation cycle at a fixed
interval, forever. Cycle failures are logged and the loop keeps running.

SIGINT or SIGTERM stop the loop; a cycle in progress finishes first.`,
	Example: `  # Poll with the configured interval (INTERVALO seconds, default 600)
  botana watch

  # Poll every 5 minutes
  botana watch --interval 5m`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 0, "Time between cycles (default from INTERVALO)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("watch")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	interval := cfg.Interval
	if flagInterval, _ := cmd.Flags().GetDuration("interval"); flagInterval > 0 {
		interval = flagInterval
	}

	ctx := context.Background()
	orch, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}

	controller := pipeline.NewController(orch, interval)

	log.Info().Dur("interval", interval).Msg("Starting Botana watch loop")
	controller.Start(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs

	log.Info().Str("signal", sig.String()).Msg("Shutdown requested, waiting for current cycle")
	stopped := make(chan struct{})
	go func() {
		controller.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Minute):
		log.Warn().Msg("Cycle did not finish in time, exiting anyway")
	}
	return nil
}
