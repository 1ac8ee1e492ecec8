package store

import (
	"context"
	"errors"
	"time"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/ariel-frischer/symlog/internal/observability"
	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
)

// RetryOptions bound the retries of FetchExistingChangelog.
type RetryOptions struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *log.Logger
}

// DefaultRetryOptions returns the retry budget used by the CLI.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxTries:        4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// FetchExistingChangelog fetches the published pair of a package.
// Confirmed absence returns (nil, nil). Invalid stored documents are
// returned at once. Any other failure is retried with exponential backoff
// and, once the budget is spent, returned as a *FetchError; it never turns
// into (nil, nil).
func FetchExistingChangelog(ctx context.Context, s Store, packageID string, opts RetryOptions) (*changelog.Published, error) {
	lg := logger.OrDiscard(opts.Logger)
	defaults := DefaultRetryOptions()
	if opts.MaxTries == 0 {
		opts.MaxTries = defaults.MaxTries
	}

	b := backoff.NewExponentialBackOff()
	if opts.InitialInterval > 0 {
		b.InitialInterval = opts.InitialInterval
	}
	if opts.MaxInterval > 0 {
		b.MaxInterval = opts.MaxInterval
	}

	attempts := 0
	op := func() (*changelog.Published, error) {
		attempts++
		p, err := s.Fetch(ctx, packageID)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, ErrNotFound):
			return nil, nil
		case isPermanent(err):
			return nil, backoff.Permanent(err)
		default:
			return nil, err
		}
	}

	p, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(opts.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			observability.FetchRetriesTotal.Inc()
			lg.Warn("fetching published changelog failed, retrying", "package", packageID, "in", next, "err", err)
		}),
	)
	if err != nil {
		if isPermanent(err) {
			return nil, err
		}
		return nil, &FetchError{PackageID: packageID, Attempts: attempts, Err: err}
	}
	return p, nil
}

func isPermanent(err error) bool {
	var inv *InvalidError
	return errors.As(err, &inv) || changelog.IsValidationError(err)
}
