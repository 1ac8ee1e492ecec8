package cli

import (
	"context"
	"time"

	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/git"
	"github.com/ariel-frischer/symlog/internal/history"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/ariel-frischer/symlog/internal/progress"
	"github.com/ariel-frischer/symlog/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchDebounce time.Duration
	watchDryRun   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <package-id>",
	Short: "Rebuild a package's changelog whenever a release is tagged",
	Long: `Watch the tag refs of a local repository and run an incremental build
each time tags change.

One build runs at startup. Bursts of ref updates (a push of several tags,
git pack-refs) are collapsed into one build after the debounce interval.
Build failures are reported and the watch continues. Stop with Ctrl+C.`,
	Example: `  # Watch the repository configured for @acme/sdk
  symlog watch @acme/sdk

  # Wait longer for tag pushes to settle
  symlog watch @acme/sdk --debounce 10s`,
	Args: exactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.GroupID = groupBuild
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period after the last ref change before building")
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "Build without publishing")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pkgs, err := selectPackages(cfg, args)
	if err != nil {
		return err
	}
	pkg := pkgs[0]

	if git.IsRemote(pkg.Repo) {
		return clierrors.NewArgumentError(
			"watch needs a local repository, "+pkg.ID+" uses "+pkg.Repo,
			"Clone the repository and point 'packages[].repo' at the clone",
			"Or run 'symlog build' on a schedule instead",
		)
	}
	gitDir, err := git.GitDir(pkg.Repo)
	if err != nil {
		return clierrors.Wrap(err, clierrors.Discovery, "Check 'packages[].repo' points inside a git repository")
	}

	ctx := cmd.Context()
	defer startObservability(ctx, cfg)()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cache := openCache(cfg)
	if cache != nil {
		defer cache.Close()
	}

	lg := logger.NewStyledLogger("watch")
	b := &packageBuilder{
		cfg:     cfg,
		store:   st,
		cache:   cache,
		out:     cmd.OutOrStdout(),
		display: progress.NewDisplayWith(cmd.OutOrStdout(), progress.DetectTerminalCapabilities()),
		history: history.NewWriter(cfg.History.Path, cfg.History.MaxEntries),
		command: "watch",
		dryRun:  watchDryRun,
	}

	// Watch before the first build so tags created during it are not missed.
	w, err := watch.New(gitDir, watch.WithDebounce(watchDebounce), watch.WithLogger(lg))
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "watching "+gitDir)
	}
	defer w.Close()

	if _, err := b.build(ctx, pkg); err != nil && ctx.Err() == nil {
		clierrors.FprintError(cmd.ErrOrStderr(), classifyError(err))
	}

	lg.Info("watching tags", "package", pkg.ID, "git_dir", gitDir, "debounce", watchDebounce)
	return w.Run(ctx, func(ctx context.Context, paths []string) {
		lg.Info("tags changed", "package", pkg.ID, "refs", len(paths))
		if _, err := b.build(ctx, pkg); err != nil && ctx.Err() == nil {
			clierrors.FprintError(cmd.ErrOrStderr(), classifyError(err))
		}
	})
}
