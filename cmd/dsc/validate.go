package main

import (
	"fmt"

	"github.com/franz/deadstream/internal/report"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/franz/deadstream/internal/validate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the catalog for bad rows and structural problems",
	Long: `Run consistency checks over the shows database.

--quick (the default) checks row counts, date formats, rating ranges,
review counts, future dates, expected indexes and SQLite integrity.

--duplicates lists dates with several recordings, broken down by
source type. Multiple recordings of one show are normal; the listing
helps spot dates worth a 'dsc best' comparison.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().Bool("quick", false, "run the quick consistency checks (default)")
	validateCmd.Flags().Bool("duplicates", false, "list dates with multiple recordings")
}

func runValidate(cmd *cobra.Command, args []string) error {
	quick, _ := cmd.Flags().GetBool("quick")
	duplicates, _ := cmd.Flags().GetBool("duplicates")
	if !quick && !duplicates {
		quick = true
	}

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	var findings []validate.Finding

	if quick {
		util.InfoLog("=== Catalog Validation ===")
		util.InfoLog("Database: %s", dbPath)
		util.InfoLog("")

		quickFindings, err := validate.Quick(db)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		findings = append(findings, quickFindings...)
	}

	if duplicates {
		dupFindings, err := validate.Duplicates(db)
		if err != nil {
			return fmt.Errorf("duplicate listing failed: %w", err)
		}
		findings = append(findings, dupFindings...)
	}

	for _, f := range findings {
		logger.LogValidate(f.Check, eventLevel(f.Severity), f.Message)
		printFinding(f)
	}

	util.InfoLog("")
	switch validate.Worst(findings) {
	case validate.SeverityError:
		util.ErrorLog("Validation found problems that need attention")
		return fmt.Errorf("validation failed")
	case validate.SeverityWarning:
		util.WarnLog("Validation passed with warnings")
	default:
		util.SuccessLog("Catalog looks healthy")
	}

	return nil
}

func printFinding(f validate.Finding) {
	switch f.Severity {
	case validate.SeverityError:
		util.ErrorLog("[✗] %s: %s", f.Check, f.Message)
	case validate.SeverityWarning:
		util.WarnLog("[⚠] %s: %s", f.Check, f.Message)
	case validate.SeverityInfo:
		util.InfoLog("[·] %s: %s", f.Check, f.Message)
	default:
		util.SuccessLog("[✓] %s: %s", f.Check, f.Message)
	}
}

func eventLevel(s validate.Severity) report.EventLevel {
	switch s {
	case validate.SeverityError:
		return report.LevelError
	case validate.SeverityWarning:
		return report.LevelWarning
	default:
		return report.LevelInfo
	}
}
