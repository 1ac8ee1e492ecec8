package cli

import (
	"context"
	"errors"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/config"
	"github.com/ariel-frischer/symlog/internal/diff"
	"github.com/ariel-frischer/symlog/internal/discovery"
	clierrors "github.com/ariel-frischer/symlog/internal/errors"
	"github.com/ariel-frischer/symlog/internal/extract"
	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/store"
)

// Exit codes for the symlog CLI. Scripts and CI jobs can tell a missing
// release (discovery) from a broken extractor or an unreachable store.
const (
	// ExitSuccess indicates successful command execution
	ExitSuccess = 0

	// ExitFailure indicates an unclassified runtime failure
	ExitFailure = 1

	// ExitValidationFailed indicates IR or a published document violated its contract
	ExitValidationFailed = 2

	// ExitInvalidArguments indicates invalid command arguments
	ExitInvalidArguments = 3

	// ExitConfiguration indicates invalid or incomplete configuration
	ExitConfiguration = 4

	// ExitDiscovery indicates no releases could be discovered
	ExitDiscovery = 5

	// ExitExtraction indicates an extractor failed for some version
	ExitExtraction = 6

	// ExitStorage indicates the published state could not be read or written
	ExitStorage = 7

	// ExitTimeout indicates a deadline expired before the command finished
	ExitTimeout = 8

	// ExitInterrupted indicates the run was cancelled by a signal
	ExitInterrupted = 130
)

// ExitCodeFor maps an error returned by a command to an exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeout
	}

	switch classifyError(err).Category {
	case clierrors.Argument:
		return ExitInvalidArguments
	case clierrors.Configuration:
		return ExitConfiguration
	case clierrors.Discovery:
		return ExitDiscovery
	case clierrors.Extraction:
		return ExitExtraction
	case clierrors.Storage:
		return ExitStorage
	case clierrors.Validation:
		return ExitValidationFailed
	default:
		return ExitFailure
	}
}

// classifyError turns any error into a CLIError with remediation. Errors
// that already are CLIErrors pass through unchanged.
func classifyError(err error) *clierrors.CLIError {
	if cliErr := clierrors.AsCLIError(err); cliErr != nil {
		return cliErr
	}

	var (
		discoveryErr *discovery.Error
		extractErr   *extract.Error
		fetchErr     *store.FetchError
		invalidErr   *store.InvalidError
		configErr    *config.ValidationError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "interrupted")
	case errors.Is(err, context.DeadlineExceeded):
		return clierrors.Wrap(err, clierrors.Runtime, "Raise 'extractor.timeout' or check the storage backend latency")
	case errors.As(err, &configErr), errors.Is(err, config.ErrUnknownPackage):
		return clierrors.Wrap(err, clierrors.Configuration, "Check .symlog/config.yml and SYMLOG_* environment variables")
	case errors.Is(err, discovery.ErrNoVersions), errors.As(err, &discoveryErr):
		return clierrors.Wrap(err, clierrors.Discovery,
			"Check the repository location and the package 'tag_pattern'",
			"For remote repositories set GITHUB_TOKEN or start an SSH agent",
		)
	case errors.As(err, &extractErr):
		return clierrors.ExtractionFailed(err)
	case errors.As(err, &fetchErr):
		return clierrors.PublishedStateUnknown(fetchErr.PackageID, fetchErr.Err)
	case errors.As(err, &invalidErr), ir.IsValidationError(err), diff.IsContractError(err), changelog.IsValidationError(err):
		return clierrors.InvalidDocument(err)
	case errors.Is(err, store.ErrNotFound):
		return clierrors.Wrap(err, clierrors.Storage, "Run 'symlog build' to publish a changelog first")
	default:
		return clierrors.Wrap(err, clierrors.Runtime)
	}
}
