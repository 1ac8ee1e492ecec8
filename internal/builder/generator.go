// Package builder assembles per-version deltas into a published changelog
// and version index, either from scratch or by prepending only the versions
// released since the last publication.
package builder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/diff"
	"github.com/ariel-frischer/symlog/internal/discovery"
	"github.com/ariel-frischer/symlog/internal/extract"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/ariel-frischer/symlog/internal/observability"
	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Build modes reported in Result.Mode.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Package identifies the package being built.
type Package struct {
	ID   string
	Name string
}

// Result is the outcome of a build.
type Result struct {
	Changelog *changelog.PackageChangelog
	Index     *changelog.PackageVersionIndex
	// Latest is the IR of the newest version. It is nil when nothing was
	// extracted (an unchanged incremental build).
	Latest *ir.MinimalIR
	// NewVersions lists the versions diffed by this build, newest first.
	NewVersions []string
	// Unchanged is set when an incremental build found nothing new; the
	// changelog and index are then the existing values.
	Unchanged bool
	Mode      string
	Warnings  []string
}

// Published returns the changelog and index as a storable pair.
func (r *Result) Published() *changelog.Published {
	return &changelog.Published{Changelog: r.Changelog, VersionIndex: r.Index}
}

// IncrementalOptions control IncrementalBuild.
type IncrementalOptions struct {
	ForceFullRebuild bool
}

// Generator builds changelogs from extracted IR.
type Generator struct {
	extractor   extract.Extractor
	concurrency int
	clock       func() time.Time
	logger      *log.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithConcurrency sets the extraction batch size.
func WithConcurrency(n int) Option {
	return func(g *Generator) { g.concurrency = n }
}

// WithClock replaces time.Now for generatedAt and extractedAt stamps.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) { g.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a Generator around an extractor.
func NewGenerator(ex extract.Extractor, opts ...Option) *Generator {
	g := &Generator{
		extractor:   ex,
		concurrency: extract.DefaultConcurrency,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logger.OrDiscard(g.logger)
	return g
}

// FullBuild extracts every version and diffs them oldest to newest.
// versions are newest first, as returned by discovery.
func (g *Generator) FullBuild(ctx context.Context, pkg Package, versions []discovery.Version) (*Result, error) {
	if len(versions) == 0 {
		return nil, discovery.ErrNoVersions
	}

	ctx, span := observability.Tracer.Start(ctx, "builder.FullBuild", trace.WithAttributes(
		attribute.String("package", pkg.ID),
		attribute.Int("versions", len(versions)),
	))
	defer span.End()

	oldestFirst := slices.Clone(versions)
	slices.Reverse(oldestFirst)

	g.logger.Info("full build", "package", pkg.ID, "versions", len(versions))
	irs, err := extract.ExtractVersionsParallel(ctx, oldestFirst, g.extractor, g.concurrency, extract.WithLogger(g.logger))
	if err != nil {
		return nil, err
	}

	deltas, summaries, err := g.fold(pkg, nil, oldestFirst, irs)
	if err != nil {
		return nil, err
	}

	now := g.now()
	latest := summaries[0]
	res := &Result{
		Changelog: &changelog.PackageChangelog{
			PackageID:   pkg.ID,
			PackageName: pkg.Name,
			GeneratedAt: now,
			History:     deltas,
		},
		Index: &changelog.PackageVersionIndex{
			PackageID:   pkg.ID,
			PackageName: pkg.Name,
			Latest:      &latest,
			Versions:    summaries,
		},
		Latest:      irs[versions[0].Version],
		NewVersions: discovery.Versions(versions),
		Mode:        ModeFull,
	}
	return res, nil
}

// IncrementalBuild prepends deltas for versions discovered since the
// newest published one. Without a usable existing publication, or when
// forced, it falls back to FullBuild. Existing entries are never modified.
func (g *Generator) IncrementalBuild(ctx context.Context, pkg Package, versions []discovery.Version, existing *changelog.Published, opts IncrementalOptions) (*Result, error) {
	switch {
	case opts.ForceFullRebuild:
		g.logger.Info("full rebuild forced", "package", pkg.ID)
		return g.FullBuild(ctx, pkg, versions)
	case existing == nil || existing.Changelog == nil || len(existing.Changelog.History) == 0:
		g.logger.Info("no published changelog, building from scratch", "package", pkg.ID)
		return g.FullBuild(ctx, pkg, versions)
	}

	if existing.Changelog.PackageID != pkg.ID {
		return nil, fmt.Errorf("existing changelog belongs to package %q, not %q", existing.Changelog.PackageID, pkg.ID)
	}

	ctx, span := observability.Tracer.Start(ctx, "builder.IncrementalBuild", trace.WithAttributes(
		attribute.String("package", pkg.ID),
	))
	defer span.End()

	newest := existing.Changelog.History[0]
	newestSV, err := semver.NewVersion(newest.Version)
	if err != nil {
		return nil, fmt.Errorf("parsing newest published version %q: %w", newest.Version, err)
	}

	published := make(map[string]bool, len(existing.Changelog.History))
	for _, d := range existing.Changelog.History {
		published[changelog.NormalizeVersion(d.Version)] = true
	}

	var (
		fresh    []discovery.Version
		warnings []string
	)
	for _, v := range versions {
		if published[changelog.NormalizeVersion(v.Version)] {
			continue
		}
		sv, err := semver.NewVersion(v.Version)
		if err != nil {
			return nil, fmt.Errorf("parsing discovered version %q: %w", v.Version, err)
		}
		if !sv.GreaterThan(newestSV) {
			msg := fmt.Sprintf("version %s is older than the newest published version %s and was skipped; run a full rebuild to include it", v.Version, newest.Version)
			g.logger.Warn(msg, "package", pkg.ID)
			warnings = append(warnings, msg)
			continue
		}
		fresh = append(fresh, v)
	}

	if len(fresh) == 0 {
		g.logger.Info("changelog is up to date", "package", pkg.ID, "latest", newest.Version)
		return &Result{
			Changelog: existing.Changelog,
			Index:     existing.VersionIndex,
			Unchanged: true,
			Mode:      ModeIncremental,
			Warnings:  warnings,
		}, nil
	}

	base := g.baseVersion(existing)
	oldestFirst := slices.Clone(fresh)
	slices.Reverse(oldestFirst)

	g.logger.Info("incremental build", "package", pkg.ID, "base", base.Version, "new", len(fresh))
	toExtract := append([]discovery.Version{base}, oldestFirst...)
	irs, err := extract.ExtractVersionsParallel(ctx, toExtract, g.extractor, g.concurrency, extract.WithLogger(g.logger))
	if err != nil {
		return nil, err
	}

	deltas, summaries, err := g.fold(pkg, irs[base.Version], oldestFirst, irs)
	if err != nil {
		return nil, err
	}

	history := make([]changelog.VersionDelta, 0, len(deltas)+len(existing.Changelog.History))
	history = append(history, deltas...)
	history = append(history, existing.Changelog.History...)

	var prior []changelog.VersionSummary
	if existing.VersionIndex != nil {
		prior = existing.VersionIndex.Versions
	}
	index := make([]changelog.VersionSummary, 0, len(summaries)+len(prior))
	index = append(index, summaries...)
	index = append(index, prior...)

	latest := summaries[0]
	return &Result{
		Changelog: &changelog.PackageChangelog{
			PackageID:   pkg.ID,
			PackageName: pkg.Name,
			GeneratedAt: g.now(),
			History:     history,
		},
		Index: &changelog.PackageVersionIndex{
			PackageID:   pkg.ID,
			PackageName: pkg.Name,
			Latest:      &latest,
			Versions:    index,
		},
		Latest:      irs[fresh[0].Version],
		NewVersions: discovery.Versions(fresh),
		Mode:        ModeIncremental,
		Warnings:    warnings,
	}, nil
}

// baseVersion describes the newest published version so it can be
// re-extracted by SHA.
func (g *Generator) baseVersion(existing *changelog.Published) discovery.Version {
	newest := existing.Changelog.History[0]
	base := discovery.Version{Version: newest.Version, SHA: newest.SHA, ReleaseDate: newest.ReleaseDate}
	if existing.VersionIndex != nil {
		if s, err := existing.VersionIndex.GetSummary(newest.Version); err == nil {
			base.Tag = s.Tag
			if base.SHA == "" {
				base.SHA = s.SHA
			}
		}
	}
	return base
}

// fold diffs oldestFirst pairwise starting from prev (nil for a bootstrap)
// and returns deltas and summaries newest first.
func (g *Generator) fold(pkg Package, prev *ir.MinimalIR, oldestFirst []discovery.Version, irs map[string]*ir.MinimalIR) ([]changelog.VersionDelta, []changelog.VersionSummary, error) {
	extractedAt := g.now()
	deltas := make([]changelog.VersionDelta, 0, len(oldestFirst))
	summaries := make([]changelog.VersionSummary, 0, len(oldestFirst))

	for _, v := range oldestFirst {
		cur, ok := irs[v.Version]
		if !ok {
			return nil, nil, errors.New("missing extracted IR for " + v.Version)
		}

		delta, err := diff.ComputeVersionDelta(prev, cur)
		if err != nil {
			return nil, nil, fmt.Errorf("diffing %s: %w", v.Version, err)
		}
		for _, w := range delta.Warnings {
			g.logger.Warn("skipped malformed symbol", "package", pkg.ID, "detail", w)
		}
		recordDelta(pkg, delta)

		deltas = append(deltas, *delta)
		summaries = append(summaries, changelog.VersionSummary{
			Version:     v.Version,
			SHA:         v.SHA,
			Tag:         v.Tag,
			ReleaseDate: v.ReleaseDate,
			ExtractedAt: extractedAt,
			Stats: changelog.Stats{
				Added:        len(delta.Added),
				Removed:      len(delta.Removed),
				Modified:     len(delta.Modified),
				Breaking:     delta.BreakingCount(),
				TotalSymbols: diff.CountSymbols(cur),
			},
		})
		prev = cur
	}

	slices.Reverse(deltas)
	slices.Reverse(summaries)
	return deltas, summaries, nil
}

func recordDelta(pkg Package, d *changelog.VersionDelta) {
	observability.VersionsProcessedTotal.WithLabelValues(pkg.ID).Inc()
	observability.DeltaEntriesTotal.WithLabelValues("added").Add(float64(len(d.Added)))
	observability.DeltaEntriesTotal.WithLabelValues("removed").Add(float64(len(d.Removed)))
	observability.DeltaEntriesTotal.WithLabelValues("modified").Add(float64(len(d.Modified)))
	observability.DeltaEntriesTotal.WithLabelValues("deprecated").Add(float64(len(d.Deprecated)))
}

func (g *Generator) now() time.Time {
	return g.clock().UTC()
}
