package cli

import (
	"fmt"
	"io"
	"strings"

	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyPackage string
	historyLimit   int
	historyClear   bool
	historyFormat  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View the log of past builds",
	Long: `View the log of package builds run by 'symlog build' and 'symlog watch'
with their timestamp, mode, newly published versions, exit code and duration.

The log lives at 'history.path' and keeps the newest 'history.max_entries'
entries.`,
	Example: `  # Last 10 builds of one package
  symlog history --package @acme/sdk -n 10

  # Forget every recorded build
  symlog history --clear`,
	Args: exactArgs(0),
	RunE: runHistory,
}

func init() {
	historyCmd.GroupID = groupInspect
	historyCmd.Flags().StringVarP(&historyPackage, "package", "p", "", "Only show builds of this package")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the N most recent entries")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the history log")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", formatTerminal, "Output format: terminal, json, yaml")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return clierrors.NewArgumentError(fmt.Sprintf("limit must not be negative, got %d", historyLimit))
	}
	if err := checkFormat(historyFormat, formatTerminal, formatJSON, formatYAML); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return clierrors.NewConfigError("build history is disabled", "Set 'history.path' to record builds")
	}

	out := cmd.OutOrStdout()
	if historyClear {
		if err := history.ClearHistory(cfg.History.Path); err != nil {
			return clierrors.WrapWithMessage(err, clierrors.Runtime, "clearing history")
		}
		fmt.Fprintln(out, "History cleared.")
		return nil
	}

	h, err := history.LoadHistory(cfg.History.Path)
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "loading history", "Run 'symlog history --clear' to start a new log")
	}
	entries := history.Filter(h.Entries, historyPackage, historyLimit)

	switch historyFormat {
	case formatJSON:
		return writeJSON(out, nonNil(entries))
	case formatYAML:
		return writeYAML(out, nonNil(entries))
	}

	if len(entries) == 0 {
		if historyPackage != "" {
			fmt.Fprintf(out, "No builds recorded for %s.\n", historyPackage)
		} else {
			fmt.Fprintln(out, "No history available.")
		}
		return nil
	}
	writeHistoryEntries(out, entries)
	return nil
}

func nonNil(entries []history.HistoryEntry) []history.HistoryEntry {
	if entries == nil {
		return []history.HistoryEntry{}
	}
	return entries
}

func writeHistoryEntries(out io.Writer, entries []history.HistoryEntry) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, e := range entries {
		exit := fmt.Sprintf("exit=%d", e.ExitCode)
		if e.ExitCode == 0 {
			exit = green(exit)
		} else {
			exit = red(exit)
		}

		outcome := e.Error
		switch {
		case outcome != "":
		case e.Mode == "up-to-date":
			outcome = "up to date"
		case len(e.NewVersions) > 0:
			outcome = e.Mode + " " + strings.Join(e.NewVersions, ", ")
			if e.DryRun {
				outcome += " (dry run)"
			}
		default:
			outcome = e.Mode
		}

		fmt.Fprintf(out, "%s  %-6s %-20s %s  %-8s %s\n",
			cyan(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			e.Command,
			e.Package,
			exit,
			e.Duration,
			outcome,
		)
	}
}
