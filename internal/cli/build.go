package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariel-frischer/symlog/internal/builder"
	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/config"
	"github.com/ariel-frischer/symlog/internal/discovery"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/extract"
	"github.com/ariel-frischer/symlog/internal/git"
	"github.com/ariel-frischer/symlog/internal/history"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/ariel-frischer/symlog/internal/progress"
	"github.com/ariel-frischer/symlog/internal/store"
	"github.com/spf13/cobra"
)

var (
	buildFull   bool
	buildDryRun bool
	buildFetch  bool
)

var buildCmd = &cobra.Command{
	Use:   "build [package-id...]",
	Short: "Build and publish changelogs for configured packages",
	Long: `Build the symbol-level changelog of one or more configured packages.

By default the build is incremental: the published changelog is fetched and
only versions tagged since its newest entry are extracted, diffed and
prepended. When nothing was published yet a full build runs. If the storage
backend cannot confirm whether a changelog exists the build stops rather
than overwrite history.

With no arguments every configured package is built. A failing package does
not stop the others; the command exits with the first failure.`,
	Example: `  # Incremental build of every package
  symlog build

  # Rebuild one package from scratch
  symlog build @acme/sdk --full

  # See what would be published without writing anything
  symlog build --dry-run

  # Fetch tags from the remote before discovering versions
  symlog build --fetch`,
	RunE: runBuild,
}

func init() {
	buildCmd.GroupID = groupBuild
	buildCmd.Flags().BoolVar(&buildFull, "full", false, "Rebuild the whole history instead of prepending new versions")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "Build without publishing")
	buildCmd.Flags().BoolVar(&buildFetch, "fetch", false, "Fetch tags from remotes of local repositories first")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pkgs, err := selectPackages(cfg, args)
	if err != nil {
		return err
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

	b := &packageBuilder{
		cfg:     cfg,
		store:   st,
		cache:   cache,
		out:     cmd.OutOrStdout(),
		display: progress.NewDisplayWith(cmd.OutOrStdout(), progress.DetectTerminalCapabilities()),
		history: history.NewWriter(cfg.History.Path, cfg.History.MaxEntries),
		command: "build",
		full:    buildFull,
		dryRun:  buildDryRun,
		fetch:   buildFetch,
	}

	var firstErr error
	for _, pkg := range pkgs {
		if _, err := b.build(ctx, pkg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
		}
	}
	return firstErr
}

// packageBuilder runs the pipeline for one package at a time and reports
// progress. The watch command reuses it for every tag change.
type packageBuilder struct {
	cfg     *config.Configuration
	store   store.Store
	cache   *extract.Cache
	out     io.Writer
	display *progress.Display
	history *history.Writer
	command string
	full    bool
	dryRun  bool
	fetch   bool
}

// build runs one package build and records it in the history log.
func (b *packageBuilder) build(ctx context.Context, pkg config.PackageConfig) (*builder.Report, error) {
	start := time.Now()
	rep, err := b.run(ctx, pkg)
	b.history.LogEntry(historyEntry(b.command, pkg.ID, start, rep, b.dryRun, err))
	return rep, err
}

func (b *packageBuilder) run(ctx context.Context, pkg config.PackageConfig) (*builder.Report, error) {
	lg := logger.Component("build").With("package", pkg.ID)

	ex, err := newExtractor(b.cfg, pkg, b.cache, lg)
	if err != nil {
		return nil, err
	}
	p := newPipeline(b.cfg, pkg, b.store, ex, b.fetch, lg)

	b.display.Start("building " + pkg.ID)
	rep, err := p.Run(ctx, newRequest(pkg, b.full, b.dryRun))
	if err != nil {
		b.display.Fail(pkg.ID + ": build failed")
		lg.Error("build failed", "err", err)
		if errors.Is(err, discovery.ErrNoVersions) {
			return rep, clierrors.NoVersionsFound(pkg.ID, pkg.TagPattern, err)
		}
		return rep, err
	}

	for _, w := range rep.Result.Warnings {
		lg.Warn(w)
	}
	b.display.Succeed(buildSummary(pkg.ID, rep, b.dryRun))

	if rep.Published && b.cfg.OutputDir != "" {
		path, err := writeChangelogMarkdown(b.cfg.OutputDir, pkg, rep.Result.Changelog)
		if err != nil {
			return rep, clierrors.WrapWithMessage(err, clierrors.Runtime, "rendering markdown changelog")
		}
		fmt.Fprintf(b.out, "  wrote %s\n", path)
	}
	return rep, nil
}

func historyEntry(command, id string, start time.Time, rep *builder.Report, dryRun bool, err error) history.HistoryEntry {
	e := history.HistoryEntry{
		Timestamp: start,
		Command:   command,
		Package:   id,
		DryRun:    dryRun,
		ExitCode:  ExitCodeFor(err),
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		e.Error = classifyError(err).Message
	}
	if rep == nil {
		return e
	}
	e.RunID = rep.RunID
	if res := rep.Result; res != nil {
		e.Mode = res.Mode
		if res.Unchanged {
			e.Mode = "up-to-date"
		}
		e.NewVersions = res.NewVersions
		if res.Changelog != nil {
			if newest := res.Changelog.Newest(); newest != nil {
				e.Latest = newest.Version
			}
		}
	}
	return e
}

func buildSummary(id string, rep *builder.Report, dryRun bool) string {
	res := rep.Result
	latest := ""
	if newest := res.Changelog.Newest(); newest != nil {
		latest = newest.Version
	}

	switch {
	case res.Unchanged:
		return fmt.Sprintf("%s is up to date (latest %s)", id, latest)
	case dryRun:
		return fmt.Sprintf("%s: %d new version(s) %s, dry run, nothing published",
			id, len(res.NewVersions), strings.Join(res.NewVersions, ", "))
	default:
		return fmt.Sprintf("%s: published %d new version(s), %s build, latest %s",
			id, len(res.NewVersions), res.Mode, latest)
	}
}

// writeChangelogMarkdown renders <dir>/<package-id>/CHANGELOG.md.
func writeChangelogMarkdown(dir string, pkg config.PackageConfig, cl *changelog.PackageChangelog) (string, error) {
	path := filepath.Join(dir, url.PathEscape(pkg.ID), "CHANGELOG.md")
	opts := changelog.RenderOptions{
		RepoURL:   compareBaseURL(pkg.Repo),
		TagPrefix: tagPrefix(pkg.TagPattern),
	}
	err := writeOutputFile(nil, path, func(w io.Writer) error {
		return changelog.RenderMarkdown(cl, w, opts)
	})
	return path, err
}

// compareBaseURL returns a browsable URL for remote http(s) repositories.
func compareBaseURL(repo string) string {
	if !git.IsRemote(repo) || !strings.HasPrefix(repo, "http") {
		return ""
	}
	return strings.TrimSuffix(repo, ".git")
}

// tagPrefix is the literal part of a tag pattern before its wildcard.
func tagPrefix(pattern string) string {
	prefix, _, _ := strings.Cut(pattern, "*")
	return prefix
}
