package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/ariel-frischer/symlog/internal/changelog"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/store"
	"github.com/spf13/cobra"
)

var (
	showSymbol   string
	showVersion  string
	showLast     int
	showBreaking bool
	showFormat   string
	showPlain    bool
	showDiffs    bool
)

var showCmd = &cobra.Command{
	Use:   "show <package-id>",
	Short: "Show the published changelog of a package",
	Long: `Read the published changelog of a package from the configured storage
backend and print it.

Without a query the whole history is printed. --symbol, --version, --last
and --breaking narrow the output to the history of one symbol, one release,
the most recent entries or the breaking changes.`,
	Example: `  # Whole history, colored
  symlog show @acme/sdk

  # Everything that happened to one symbol
  symlog show @acme/sdk --symbol Client.connect

  # One release as markdown with before/after diffs
  symlog show @acme/sdk --version 2.0.0 --format markdown --diffs

  # Breaking changes as YAML
  symlog show @acme/sdk --breaking --format yaml`,
	Args: exactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.GroupID = groupInspect
	showCmd.Flags().StringVarP(&showSymbol, "symbol", "s", "", "Only the history of this qualified name")
	showCmd.Flags().StringVar(&showVersion, "version", "", "Only this released version")
	showCmd.Flags().IntVarP(&showLast, "last", "n", 0, "Only the N most recent entries")
	showCmd.Flags().BoolVar(&showBreaking, "breaking", false, "Only breaking changes")
	showCmd.Flags().StringVarP(&showFormat, "format", "f", formatTerminal, "Output format: terminal, markdown, json, yaml")
	showCmd.Flags().BoolVar(&showPlain, "plain", false, "Disable colors and icons in terminal output")
	showCmd.Flags().BoolVar(&showDiffs, "diffs", false, "Include signature diffs for modified symbols")
	showCmd.MarkFlagsMutuallyExclusive("symbol", "version", "last", "breaking")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := checkFormat(showFormat, formatTerminal, formatMarkdown, formatJSON, formatYAML); err != nil {
		return err
	}
	if showLast < 0 {
		return clierrors.NewArgumentError("--last must not be negative")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pkgs, err := selectPackages(cfg, args)
	if err != nil {
		return err
	}
	id := pkgs[0].ID

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	published, err := store.FetchExistingChangelog(ctx, st, id, cfg.RetryOptions())
	if err != nil {
		return err
	}
	if published == nil {
		return clierrors.Wrap(fmt.Errorf("%w for %q", store.ErrNotFound, id), clierrors.Storage,
			"Run 'symlog build "+id+"' to publish it",
		)
	}

	w := cmd.OutOrStdout()
	cl := published.Changelog

	switch {
	case showVersion != "":
		d, err := cl.GetVersion(showVersion)
		if err != nil {
			var nf *changelog.VersionNotFoundError
			if errors.As(err, &nf) {
				return clierrors.NewArgumentError(err.Error(), "Run 'symlog show "+id+"' to list published versions")
			}
			return err
		}
		sub := &changelog.PackageChangelog{PackageID: cl.PackageID, PackageName: cl.PackageName, History: []changelog.VersionDelta{*d}}
		return writeHistory(w, sub, d, showFormat)
	case showSymbol != "":
		return writeEntries(w, cl.SymbolHistory(showSymbol), showFormat)
	case showLast > 0:
		return writeEntries(w, cl.GetLastN(showLast), showFormat)
	case showBreaking:
		return writeEntries(w, cl.BreakingEntries(), showFormat)
	default:
		return writeHistory(w, cl, published, showFormat)
	}
}

// writeHistory prints whole versions. doc is what json and yaml encode.
func writeHistory(w io.Writer, cl *changelog.PackageChangelog, doc any, format string) error {
	switch format {
	case formatMarkdown:
		return changelog.RenderMarkdown(cl, w, changelog.RenderOptions{Diffs: showDiffs})
	case formatJSON:
		return writeJSON(w, doc)
	case formatYAML:
		return writeYAML(w, doc)
	default:
		return changelog.FormatTerminal(cl.History, w, showFormatOptions())
	}
}

func writeEntries(w io.Writer, entries []changelog.Entry, format string) error {
	if entries == nil {
		entries = []changelog.Entry{}
	}
	switch format {
	case formatMarkdown:
		return clierrors.InvalidFormat(format, formatTerminal, formatJSON, formatYAML)
	case formatJSON:
		return writeJSON(w, entries)
	case formatYAML:
		return writeYAML(w, entries)
	default:
		if len(entries) == 0 {
			_, err := fmt.Fprintln(w, "No matching changes.")
			return err
		}
		return changelog.FormatEntries(entries, w, showFormatOptions())
	}
}

func showFormatOptions() changelog.FormatOptions {
	return changelog.FormatOptions{Plain: showPlain, SignatureDiffs: showDiffs}
}
