package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/deadstream/internal/report"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a collection summary report",
	Long: `Generate a Markdown summary of the cataloged collection.

The report covers totals, shows per year, the most-recorded venues,
the highest-rated recordings, source-type distribution and the rating
histogram.

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	RunE: runReportCmd,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "output directory (default: artifacts/reports/<timestamp>)")
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("db")

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	util.InfoLog("=== Generating Collection Report ===")
	util.InfoLog("Database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	util.InfoLog("Analyzing catalog...")
	summary, err := report.GenerateSummary(db)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	summary.DatabasePath = dbPath
	summary.EventLogPath = logger.Path()
	summary.RunID = logger.RunID()

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join("artifacts", "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated")
	util.InfoLog("")
	util.InfoLog("Collection at a glance:")
	util.InfoLog("  Recordings: %d", summary.TotalShows)
	if summary.FirstDate != "" {
		util.InfoLog("  Span: %s to %s", summary.FirstDate, summary.LastDate)
	}
	if len(summary.TopVenues) > 0 {
		v := summary.TopVenues[0]
		util.InfoLog("  Most recorded venue: %s (%d recordings)", v.Venue, v.Count)
	}
	for source, count := range summary.Sources {
		util.InfoLog("  %s: %d", source, count)
	}
	util.InfoLog("")
	util.InfoLog("Full report: %s", outputPath)

	return nil
}
