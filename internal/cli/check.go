package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ariel-frischer/symlog/internal/changelog"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Validate IR documents and published changelogs",
	Long: `Validate documents against their contracts.

A directory is read as a publication (changelog.json and versions.json) and
checked for schema errors and for agreement between the two documents. A
JSON file is read as an IR document when it has a "symbols" array and as a
changelog otherwise. Malformed IR symbols are reported but do not fail the
check, matching how a build treats them.`,
	Example: `  # Validate a published package
  symlog check .symlog/published/core

  # Validate extractor output
  symlog check ir/0f3a9c1.json ir/8d21b47.json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return clierrors.NewArgumentErrorWithUsage("at least one path is required", cmd.UseLine())
		}
		return nil
	},
	RunE: runCheck,
}

func init() {
	checkCmd.GroupID = groupInspect
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var firstErr error
	for _, path := range args {
		notes, err := checkPath(path)
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", path)
		for _, n := range notes {
			fmt.Fprintf(out, "  warning: %s\n", n)
		}
	}

	if firstErr != nil {
		return clierrors.InvalidDocument(firstErr)
	}
	return nil
}

// checkPath validates one document and returns non-fatal notes.
func checkPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		_, err := changelog.Load(path)
		return nil, err
	}

	isIR, err := looksLikeIR(path)
	if err != nil {
		return nil, err
	}
	if !isIR {
		_, err := changelog.LoadChangelog(path)
		return nil, err
	}

	_, warnings, err := ir.Load(path)
	if err != nil {
		return nil, err
	}
	notes := make([]string, len(warnings))
	for i, w := range warnings {
		notes[i] = w.String()
	}
	return notes, nil
}

func looksLikeIR(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false, fmt.Errorf("parsing JSON: %w", err)
	}
	_, ok := probe["symbols"]
	return ok, nil
}
