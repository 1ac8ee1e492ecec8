package builder

import (
	"context"
	"fmt"

	"github.com/ariel-frischer/symlog/internal/annotate"
	"github.com/ariel-frischer/symlog/internal/discovery"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/ariel-frischer/symlog/internal/observability"
	"github.com/ariel-frischer/symlog/internal/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Request describes one pipeline run for a package.
type Request struct {
	Package    Package
	TagPattern string
	Discovery  discovery.Options
	Force      bool
	DryRun     bool
}

// Report is the outcome of a pipeline run.
type Report struct {
	RunID     string
	Versions  []discovery.Version
	Result    *Result
	Symbols   []ir.SymbolRecord
	Published bool
}

// Pipeline coordinates discovery, fetching the existing publication,
// building, annotation and a single publish at the end.
type Pipeline struct {
	Lister    discovery.TagLister
	Generator *Generator
	Store     store.Store
	Retry     store.RetryOptions
	Logger    *log.Logger
}

// Run executes the pipeline. Any failure before the publish step leaves
// the store untouched. Nothing is written when the build is a no-op or the
// request is a dry run.
func (p *Pipeline) Run(ctx context.Context, req Request) (rep *Report, err error) {
	lg := logger.OrDiscard(p.Logger)
	rep = &Report{RunID: uuid.NewString()}
	lg = lg.With("run", rep.RunID, "package", req.Package.ID)

	ctx, span := observability.Tracer.Start(ctx, "builder.Pipeline.Run", trace.WithAttributes(
		attribute.String("package", req.Package.ID),
		attribute.String("run_id", rep.RunID),
	))
	defer span.End()

	mode := ModeIncremental
	if req.Force {
		mode = ModeFull
	}
	defer func() {
		outcome := "success"
		switch {
		case err != nil:
			outcome = "failure"
			span.RecordError(err)
		case rep.Result != nil && rep.Result.Unchanged:
			outcome = "unchanged"
		}
		if rep.Result != nil {
			mode = rep.Result.Mode
		}
		observability.BuildsTotal.WithLabelValues(mode, outcome).Inc()
	}()

	discoverCtx, dspan := observability.Tracer.Start(ctx, "discovery.Discover")
	opts := req.Discovery
	if opts.Logger == nil {
		opts.Logger = lg
	}
	versions, err := discovery.Discover(discoverCtx, p.Lister, req.TagPattern, opts)
	dspan.End()
	if err != nil {
		return rep, err
	}
	rep.Versions = versions
	lg.Debug("discovered versions", "count", len(versions), "newest", versions[0].Version)

	retry := p.Retry
	if retry.Logger == nil {
		retry.Logger = lg
	}
	published, err := store.FetchExistingChangelog(ctx, p.Store, req.Package.ID, retry)
	if err != nil {
		return rep, err
	}

	res, err := p.Generator.IncrementalBuild(ctx, req.Package, versions, published, IncrementalOptions{ForceFullRebuild: req.Force})
	if err != nil {
		return rep, err
	}
	rep.Result = res

	if res.Unchanged {
		lg.Info("nothing to publish")
		return rep, nil
	}

	rep.Symbols = annotate.AnnotateLatestIR(res.Latest.Symbols, res.Changelog)

	if req.DryRun {
		lg.Info("dry run, skipping publish", "new_versions", len(res.NewVersions))
		return rep, nil
	}

	pubCtx, pspan := observability.Tracer.Start(ctx, "store.Publish")
	defer pspan.End()
	if err := p.Store.Publish(pubCtx, res.Published()); err != nil {
		return rep, fmt.Errorf("publishing changelog: %w", err)
	}
	rep.Published = true

	if sw, ok := p.Store.(store.SymbolsWriter); ok {
		if err := sw.PublishSymbols(pubCtx, req.Package.ID, rep.Symbols); err != nil {
			return rep, fmt.Errorf("publishing annotated symbols: %w", err)
		}
	}

	lg.Info("published changelog", "versions", len(res.Changelog.History), "new", res.NewVersions)
	return rep, nil
}
