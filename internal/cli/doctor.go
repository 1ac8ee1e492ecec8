package cli

import (
	"fmt"

	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/health"
	"github.com/spf13/cobra"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that storage, repositories and extractors are usable",
	Long: `Check the setup without building anything:
  - the storage backend can be opened
  - the IR cache location is writable
  - each package's repository opens and has tags matching its pattern
  - each package's extractor program is on PATH, or its IR directory exists
  - the published changelog of each package can be read`,
	Example: `  symlog doctor
  symlog doctor --format json`,
	Args: exactArgs(0),
	RunE: runDoctor,
}

func init() {
	doctorCmd.GroupID = groupBuild
	doctorCmd.Flags().StringVarP(&doctorFormat, "format", "f", formatTerminal, "Output format: terminal, json")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if err := checkFormat(doctorFormat, formatTerminal, formatJSON); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report := health.RunHealthChecks(cmd.Context(), cfg)
	if doctorFormat == formatJSON {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), health.FormatReport(report))
	}

	if !report.Passed {
		return clierrors.NewRuntimeError("one or more checks failed", "Fix the items marked ✗ above and run 'symlog doctor' again")
	}
	return nil
}
