package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ariel-frischer/symlog/internal/discovery"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/git"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/spf13/cobra"
)

var (
	versionsFormat string
	versionsFetch  bool
)

var versionsCmd = &cobra.Command{
	Use:   "versions <package-id>",
	Short: "List the released versions a build would process",
	Long: `Discover the released versions of a package without extracting anything.

Tags are matched against the package's tag_pattern, ordered newest first by
semantic version precedence, and bounded by min_version, max_versions and
always_include exactly as a build would.`,
	Example: `  # Table of versions with commits and release dates
  symlog versions @acme/sdk

  # JSON for scripts
  symlog versions @acme/sdk --format json`,
	Args: exactArgs(1),
	RunE: runVersions,
}

func init() {
	versionsCmd.GroupID = groupInspect
	versionsCmd.Flags().StringVarP(&versionsFormat, "format", "f", formatTable, "Output format: table, json")
	versionsCmd.Flags().BoolVar(&versionsFetch, "fetch", false, "Fetch tags from remotes of local repositories first")
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	if err := checkFormat(versionsFormat, formatTable, formatJSON); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pkgs, err := selectPackages(cfg, args)
	if err != nil {
		return err
	}
	pkg := pkgs[0]

	opts := pkg.DiscoveryOptions()
	opts.Logger = logger.Component("discovery").With("package", pkg.ID)

	src := git.NewTagSource(pkg.Repo, git.WithFetch(versionsFetch))
	versions, err := discovery.Discover(cmd.Context(), src, pkg.TagPattern, opts)
	if err != nil {
		if errors.Is(err, discovery.ErrNoVersions) {
			return clierrors.NoVersionsFound(pkg.ID, pkg.TagPattern, err)
		}
		return err
	}

	if versionsFormat == formatJSON {
		return writeJSON(cmd.OutOrStdout(), versions)
	}
	return writeVersionsTable(cmd.OutOrStdout(), versions)
}

func writeVersionsTable(w io.Writer, versions []discovery.Version) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tTAG\tCOMMIT\tRELEASED")
	for _, v := range versions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Version, v.Tag, shortCommit(v.SHA), v.ReleaseDate)
	}
	return tw.Flush()
}

func shortCommit(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
