package cli

import (
	"io"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/diff"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/spf13/cobra"
)

var (
	diffFormat string
	diffPlain  bool
	diffOutput string
)

var diffCmd = &cobra.Command{
	Use:   "diff <older.json> <newer.json>",
	Short: "Diff two extracted IR documents",
	Long: `Compute the symbol-level delta between two IR documents.

Symbols are matched by qualified name. Each one that appears, disappears,
changes its signature or becomes deprecated lands in exactly one of added,
removed, modified or deprecated. Malformed symbols are skipped on both sides
and reported as warnings.`,
	Example: `  # Colored summary in the terminal
  symlog diff ir-1.0.0.json ir-1.1.0.json

  # The delta document as JSON
  symlog diff ir-1.0.0.json ir-1.1.0.json --format json

  # A markdown section with before/after diffs
  symlog diff ir-1.0.0.json ir-1.1.0.json --format markdown -o delta.md`,
	Args: exactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.GroupID = groupInspect
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", formatTerminal, "Output format: terminal, json, markdown")
	diffCmd.Flags().BoolVar(&diffPlain, "plain", false, "Disable colors and icons in terminal output")
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "", "Write to this file instead of stdout")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	if err := checkFormat(diffFormat, formatTerminal, formatJSON, formatMarkdown); err != nil {
		return err
	}

	older, err := loadIR(args[0])
	if err != nil {
		return err
	}
	newer, err := loadIR(args[1])
	if err != nil {
		return err
	}

	delta, err := diff.ComputeVersionDelta(older, newer)
	if err != nil {
		return clierrors.InvalidDocument(err)
	}

	return writeOutputFile(cmd.OutOrStdout(), diffOutput, func(w io.Writer) error {
		return writeDelta(w, delta, diffFormat, diffPlain)
	})
}

func writeDelta(w io.Writer, d *changelog.VersionDelta, format string, plain bool) error {
	switch format {
	case formatJSON:
		return writeJSON(w, d)
	case formatMarkdown:
		cl := &changelog.PackageChangelog{PackageName: "this package", History: []changelog.VersionDelta{*d}}
		return changelog.RenderMarkdown(cl, w, changelog.RenderOptions{Diffs: true})
	default:
		return changelog.FormatTerminal([]changelog.VersionDelta{*d}, w, changelog.FormatOptions{
			Plain:          plain,
			SignatureDiffs: true,
		})
	}
}

// loadIR reads an IR document. Malformed symbols are kept on the result
// and surface as delta warnings.
func loadIR(path string) (*ir.MinimalIR, error) {
	m, _, err := ir.Load(path)
	if err != nil {
		if ir.IsValidationError(err) {
			return nil, clierrors.InvalidDocument(err)
		}
		return nil, clierrors.NewArgumentError("reading "+path+": "+err.Error(), "Pass the path of an IR JSON document")
	}
	return m, nil
}
