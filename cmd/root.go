package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AlleexMartinsT/Botana/internal/config"
	"github.com/AlleexMartinsT/Botana/internal/ledger"
	"github.com/AlleexMartinsT/Botana/internal/logger"
	"github.com/AlleexMartinsT/Botana/internal/mailbox"
	"github.com/AlleexMartinsT/Botana/internal/pipeline"
	"github.com/AlleexMartinsT/Botana/internal/report"
	"github.com/AlleexMartinsT/Botana/internal/sheets"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "botana",
	Short: "Botana - NFe invoice reconciliation agent",
	Long: `Botana watches a Gmail sent box for NFe XML invoices and boleto PDFs,
extracts installment data and registers each installment as a row in the
company's Google Sheets ledgers, one spreadsheet per issuer and due year.

Use "botana run" for a single pass or "botana watch" for the polling loop.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Botana - NFe invoice reconciliation agent")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// buildOrchestrator wires the collaborators configured in the environment
// into a ready-to-run orchestrator.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*pipeline.Orchestrator, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	mail, err := mailbox.NewService(ctx, cfg.GmailCredentials)
	if err != nil {
		return nil, fmt.Errorf("initializing Gmail service: %w", err)
	}

	sheetSvc, err := sheets.NewService(ctx, cfg.SheetsCredentials)
	if err != nil {
		return nil, fmt.Errorf("initializing Sheets service: %w", err)
	}

	reporter, err := report.New(cfg.ReportsDir)
	if err != nil {
		return nil, err
	}
	reporter.PurgeOld()

	openBook := func(ctx context.Context, id string) (ledger.Book, error) {
		return sheetSvc.Open(ctx, id)
	}

	return pipeline.NewOrchestrator(cfg, mail, openBook, reporter), nil
}
