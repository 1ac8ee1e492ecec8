// Package store reads and writes published changelogs.
//
// A Store distinguishes confirmed absence (ErrNotFound) from every other
// failure, which is indeterminate: the caller must not treat an unreachable
// store as "nothing published yet", or it would overwrite history with a
// full rebuild.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
)

// ErrNotFound reports that nothing has been published for a package.
var ErrNotFound = errors.New("published changelog not found")

// Store persists the changelog and version index of packages.
type Store interface {
	// Fetch returns the published pair. It returns ErrNotFound only for
	// confirmed absence.
	Fetch(ctx context.Context, packageID string) (*changelog.Published, error)
	// Publish writes both documents.
	Publish(ctx context.Context, p *changelog.Published) error
	Close() error
}

// SymbolsWriter is implemented by stores that also keep the annotated
// symbols of the latest version.
type SymbolsWriter interface {
	PublishSymbols(ctx context.Context, packageID string, symbols []ir.SymbolRecord) error
}

// InvalidError reports a stored document that exists but cannot be decoded
// or fails validation. Retrying cannot fix it.
type InvalidError struct {
	PackageID string
	Err       error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("stored changelog for %s is invalid: %v", e.PackageID, e.Err)
}

func (e *InvalidError) Unwrap() error { return e.Err }

// FetchError reports a fetch whose outcome stayed indeterminate after every
// retry.
type FetchError struct {
	PackageID string
	Attempts  int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching published changelog for %s failed after %d attempt(s): %v", e.PackageID, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	HTTPBaseURL   string
	HTTPToken     string
	HTTPRate      float64
}

// Open creates the backend named by cfg.Backend. An empty backend is the
// file store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(ctx, RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "http":
		return NewHTTPStore(cfg.HTTPBaseURL, WithToken(cfg.HTTPToken), WithRate(cfg.HTTPRate))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// encodeDoc renders one published document as indented JSON.
func encodeDoc(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return buf.Bytes(), nil
}

// encodePair renders both documents of p after validating them.
func encodePair(p *changelog.Published) (cl, idx []byte, err error) {
	if err := changelog.ValidatePublished(p); err != nil {
		return nil, nil, fmt.Errorf("refusing to publish: %w", err)
	}
	if cl, err = encodeDoc(p.Changelog); err != nil {
		return nil, nil, err
	}
	if idx, err = encodeDoc(p.VersionIndex); err != nil {
		return nil, nil, err
	}
	return cl, idx, nil
}

// decodePair decodes and validates stored documents, wrapping any failure
// in an InvalidError.
func decodePair(packageID string, cl, idx io.Reader) (*changelog.Published, error) {
	p, err := changelog.LoadPair(cl, idx)
	if err != nil {
		return nil, &InvalidError{PackageID: packageID, Err: err}
	}
	if p.Changelog.PackageID != packageID {
		return nil, &InvalidError{
			PackageID: packageID,
			Err:       fmt.Errorf("document belongs to package %q", p.Changelog.PackageID),
		}
	}
	return p, nil
}

// pathKey turns a package id such as "@acme/sdk" into a single path segment.
func pathKey(packageID string) string {
	return url.PathEscape(packageID)
}
