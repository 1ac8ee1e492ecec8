// Package extract schedules IR extraction for discovered versions and
// provides adapters around external extractors.
//
// Extraction runs in sequential batches of at most Concurrency versions.
// Batch N+1 starts only after every extraction in batch N has finished, and
// the first failure aborts the whole run without a partial result.
package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariel-frischer/symlog/internal/discovery"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/ariel-frischer/symlog/internal/observability"
	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the batch size used when none is configured.
const DefaultConcurrency = 4

// Extractor produces the IR of the tree at a commit.
type Extractor interface {
	ExtractIR(ctx context.Context, sha string) (*ir.MinimalIR, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, sha string) (*ir.MinimalIR, error)

// ExtractIR calls f.
func (f ExtractorFunc) ExtractIR(ctx context.Context, sha string) (*ir.MinimalIR, error) {
	return f(ctx, sha)
}

// Error reports the version whose extraction failed.
type Error struct {
	Version string
	SHA     string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extracting %s (%s): %v", e.Version, shortSHA(e.SHA), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Option configures ExtractVersionsParallel.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger sets the logger used for batch progress.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ExtractVersionsParallel extracts every version and returns the IRs keyed
// by version string. Each returned IR carries the version, sha and release
// date of its discovered version. A concurrency below 1 uses
// DefaultConcurrency.
func ExtractVersionsParallel(ctx context.Context, versions []discovery.Version, ex Extractor, concurrency int, opts ...Option) (map[string]*ir.MinimalIR, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	lg := logger.OrDiscard(o.logger)

	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	results := make(map[string]*ir.MinimalIR, len(versions))
	var mu sync.Mutex

	for start := 0; start < len(versions); start += concurrency {
		end := min(start+concurrency, len(versions))
		batch := versions[start:end]
		lg.Debug("extracting batch", "from", batch[0].Version, "to", batch[len(batch)-1].Version, "size", len(batch))

		batchCtx, span := observability.Tracer.Start(ctx, "extract.batch",
			trace.WithAttributes(attribute.Int("batch.size", len(batch))))

		g, gctx := errgroup.WithContext(batchCtx)
		for _, v := range batch {
			g.Go(func() error {
				m, err := extractOne(gctx, ex, v)
				if err != nil {
					return err
				}
				mu.Lock()
				results[v.Version] = m
				mu.Unlock()
				return nil
			})
		}
		err := g.Wait()
		span.End()
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func extractOne(ctx context.Context, ex Extractor, v discovery.Version) (*ir.MinimalIR, error) {
	start := time.Now()
	m, err := ex.ExtractIR(ctx, v.SHA)
	observability.ExtractionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &Error{Version: v.Version, SHA: v.SHA, Err: err}
	}
	if m == nil {
		return nil, &Error{Version: v.Version, SHA: v.SHA, Err: fmt.Errorf("extractor returned no IR")}
	}

	stamped := *m
	stamped.Version = v.Version
	stamped.SHA = v.SHA
	stamped.ReleaseDate = v.ReleaseDate
	return &stamped, nil
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
