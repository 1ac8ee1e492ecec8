package cli

import (
	"context"
	"errors"

	"github.com/ariel-frischer/symlog/internal/build"
	"github.com/ariel-frischer/symlog/internal/builder"
	"github.com/ariel-frischer/symlog/internal/config"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/extract"
	"github.com/ariel-frischer/symlog/internal/git"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/ariel-frischer/symlog/internal/observability"
	"github.com/ariel-frischer/symlog/internal/store"
	"github.com/charmbracelet/log"
)

// loadConfig loads configuration for a command and applies its logging
// settings.
func loadConfig() (*config.Configuration, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		var vErr *config.ValidationError
		if errors.As(err, &vErr) {
			return nil, clierrors.Wrap(err, clierrors.Configuration, "Fix the reported key and run the command again")
		}
		return nil, clierrors.Wrap(err, clierrors.Configuration,
			"Check that the config file exists and is valid YAML",
			"Run 'symlog config init' to write a commented template",
		)
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectPackages resolves package ids against the configuration. No ids
// selects every configured package.
func selectPackages(cfg *config.Configuration, ids []string) ([]config.PackageConfig, error) {
	if len(cfg.Packages) == 0 {
		return nil, clierrors.NoPackagesConfigured()
	}
	if len(ids) == 0 {
		return cfg.Packages, nil
	}

	pkgs := make([]config.PackageConfig, 0, len(ids))
	for _, id := range ids {
		p, err := cfg.Package(id)
		if err != nil {
			return nil, clierrors.UnknownPackage(id, cfg.PackageIDs())
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

// startObservability installs tracing for the command and returns a
// function that flushes spans and writes the metrics textfile.
func startObservability(ctx context.Context, cfg *config.Configuration) func() {
	shutdown, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, build.Version)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
		shutdown = func(context.Context) error { return nil }
	}

	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces", "err", err)
		}
		if err := observability.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("writing metrics", "path", cfg.MetricsFile, "err", err)
		}
	}
}

// openCache opens the IR cache. Open failures are logged and the command
// runs uncached.
func openCache(cfg *config.Configuration) *extract.Cache {
	if cfg.Cache.Path == "" {
		return nil
	}
	c, err := extract.OpenCache(cfg.Cache.Path)
	if err != nil {
		logger.Warn("IR cache unavailable", "path", cfg.Cache.Path, "err", err)
		return nil
	}
	return c
}

// newExtractor picks the package's extractor: a command template, else a
// directory of pre-extracted IR. The result is wrapped by the cache when
// one is open.
func newExtractor(cfg *config.Configuration, pkg config.PackageConfig, cache *extract.Cache, lg *log.Logger) (extract.Extractor, error) {
	var inner extract.Extractor

	switch tpl := cfg.ExtractorCommand(pkg); {
	case tpl != "":
		opts := []extract.CommandOption{
			extract.WithRepo(pkg.Repo),
			extract.WithTimeout(cfg.Extractor.Timeout),
			extract.WithCommandLogger(lg),
		}
		if pkg.Repo != "" && !git.IsRemote(pkg.Repo) {
			opts = append(opts, extract.WithWorkDir(pkg.Repo))
		}
		ce, err := extract.NewCommandExtractor(tpl, opts...)
		if err != nil {
			return nil, clierrors.Wrap(err, clierrors.Configuration, "Fix 'extractor.command' or the package's 'extractor_command'")
		}
		inner = ce
	case cfg.Extractor.Dir != "":
		inner = extract.DirExtractor{Dir: cfg.Extractor.Dir, Logger: lg}
	default:
		return nil, clierrors.NoExtractorConfigured(pkg.ID)
	}

	if cache == nil {
		return inner, nil
	}
	return &extract.CachedExtractor{Cache: cache, Namespace: pkg.ID, Inner: inner, Logger: lg}, nil
}

// newPipeline wires discovery, the generator and the store for one package.
func newPipeline(cfg *config.Configuration, pkg config.PackageConfig, st store.Store, ex extract.Extractor, fetch bool, lg *log.Logger) *builder.Pipeline {
	return &builder.Pipeline{
		Lister: git.NewTagSource(pkg.Repo, git.WithFetch(fetch)),
		Generator: builder.NewGenerator(ex,
			builder.WithConcurrency(cfg.Concurrency),
			builder.WithLogger(lg),
		),
		Store:  st,
		Retry:  cfg.RetryOptions(),
		Logger: lg,
	}
}

func newRequest(pkg config.PackageConfig, full, dryRun bool) builder.Request {
	return builder.Request{
		Package:    builder.Package{ID: pkg.ID, Name: pkg.DisplayName()},
		TagPattern: pkg.TagPattern,
		Discovery:  pkg.DiscoveryOptions(),
		Force:      full,
		DryRun:     dryRun,
	}
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg *config.Configuration) (store.Store, error) {
	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, clierrors.WrapWithMessage(err, clierrors.Storage, "opening "+backendName(cfg)+" store",
			"Check the 'storage' section of your config",
		)
	}
	return st, nil
}

func backendName(cfg *config.Configuration) string {
	if cfg.Storage.Backend == "" {
		return "file"
	}
	return cfg.Storage.Backend
}
