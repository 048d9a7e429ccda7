package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlleexMartinsT/Botana/internal/config"
	"github.com/AlleexMartinsT/Botana/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation cycle and exit",
	Long: `Run a single polling cycle: fetch candidate sent messages, extract
invoice data from their XML attachments and register the installments in the
configured spreadsheets.

Required environment variables:
  GOOGLE_CREDENTIALS_GMAIL  - Path to Gmail service account JSON file
  GOOGLE_CREDENTIALS_SHEETS - Path to Sheets service account JSON file
  CNPJ_MVA, CNPJ_EH         - Company CNPJs
  SHEET_MVA_2025, ...       - Spreadsheet ids per issuer and year`,
	Example: `  # Single pass over the sent box
  botana run

  # Limit the number of candidate messages
  botana run --max-messages 20`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("max-messages", 0, "Maximum candidate messages per cycle (default from MAX_MESSAGES)")
}

func runOnce(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("run")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if max, _ := cmd.Flags().GetInt("max-messages"); max > 0 {
		cfg.MaxMessages = max
	}

	ctx := context.Background()
	orch, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}

	processed, err := orch.RunCycle(ctx)
	if err != nil {
		return err
	}

	log.Info().Int("processed", processed).Msg("Cycle completed")
	return nil
}
