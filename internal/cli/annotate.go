package cli

import (
	"io"

	"github.com/ariel-frischer/symlog/internal/annotate"
	"github.com/ariel-frischer/symlog/internal/changelog"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/spf13/cobra"
)

var annotateOutput string

var annotateCmd = &cobra.Command{
	Use:   "annotate <ir.json> <changelog.json>",
	Short: "Attach version history to the symbols of an IR document",
	Long: `Annotate every symbol of an IR document with the version it was
introduced in, the versions that modified it and its first deprecation,
according to a published changelog.

The output is the symbols array with a versionInfo object on each record.`,
	Example: `  # Print annotated symbols
  symlog annotate ir-2.0.0.json .symlog/published/core/changelog.json

  # Write them to a file
  symlog annotate ir-2.0.0.json changelog.json -o symbols.json`,
	Args: exactArgs(2),
	RunE: runAnnotate,
}

func init() {
	annotateCmd.GroupID = groupInspect
	annotateCmd.Flags().StringVarP(&annotateOutput, "output", "o", "", "Write to this file instead of stdout")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	m, err := loadIR(args[0])
	if err != nil {
		return err
	}

	cl, err := changelog.LoadChangelog(args[1])
	if err != nil {
		if changelog.IsValidationError(err) {
			return clierrors.InvalidDocument(err)
		}
		return clierrors.NewArgumentError("reading "+args[1]+": "+err.Error(), "Pass the path of a published changelog.json")
	}

	symbols := annotate.AnnotateLatestIR(m.Symbols, cl)
	return writeOutputFile(cmd.OutOrStdout(), annotateOutput, func(w io.Writer) error {
		return writeJSON(w, symbols)
	})
}
