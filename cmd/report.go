package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AlleexMartinsT/Botana/internal/config"
	"github.com/AlleexMartinsT/Botana/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print today's session log",
	Long: `Print the path and contents of today's session log. Reports older than
seven days are purged on the way.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	reporter, err := report.New(cfg.ReportsDir)
	if err != nil {
		return err
	}
	reporter.PurgeOld()

	path := reporter.Path()
	fmt.Println(path)

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("(no events recorded today)")
			return nil
		}
		return err
	}
	fmt.Print(string(content))
	return nil
}
