package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
	"golang.org/x/time/rate"
)

// DefaultHTTPTimeout bounds a single request.
const DefaultHTTPTimeout = 10 * time.Second

// maxDocumentSize limits how much of a response body is read.
const maxDocumentSize = 64 << 20

// HTTPStore reads and writes documents at <base>/<packageId>/<file>.
// A 404 on the changelog is absence; any other failure is indeterminate.
type HTTPStore struct {
	base    string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithToken sends a bearer token with every request.
func WithToken(token string) HTTPOption {
	return func(s *HTTPStore) { s.token = token }
}

// WithRate paces requests to r per second. Zero or less disables pacing.
func WithRate(r float64) HTTPOption {
	return func(s *HTTPStore) {
		if r > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(r), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// NewHTTPStore creates a store for base.
func NewHTTPStore(base string, opts ...HTTPOption) (*HTTPStore, error) {
	if base == "" {
		return nil, errors.New("http store base URL is required")
	}
	s := &HTTPStore{
		base:   strings.TrimSuffix(base, "/"),
		client: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPStore) url(packageID, file string) string {
	return s.base + "/" + pathKey(packageID) + "/" + file
}

// Fetch downloads both documents. Absence is only confirmed when both are
// missing.
func (s *HTTPStore) Fetch(ctx context.Context, packageID string) (*changelog.Published, error) {
	cl, cerr := s.get(ctx, s.url(packageID, changelog.ChangelogFile))
	if cerr != nil && !errors.Is(cerr, ErrNotFound) {
		return nil, cerr
	}
	idx, verr := s.get(ctx, s.url(packageID, changelog.IndexFile))
	if verr != nil && !errors.Is(verr, ErrNotFound) {
		return nil, verr
	}

	cMissing, vMissing := cerr != nil, verr != nil
	switch {
	case cMissing && vMissing:
		return nil, ErrNotFound
	case cMissing || vMissing:
		return nil, &InvalidError{PackageID: packageID, Err: errors.New("only one of changelog.json and versions.json exists")}
	}
	return decodePair(packageID, bytes.NewReader(cl), bytes.NewReader(idx))
}

// Publish uploads the version index, then the changelog.
func (s *HTTPStore) Publish(ctx context.Context, p *changelog.Published) error {
	cl, idx, err := encodePair(p)
	if err != nil {
		return err
	}
	id := p.Changelog.PackageID
	if err := s.put(ctx, s.url(id, changelog.IndexFile), idx); err != nil {
		return err
	}
	return s.put(ctx, s.url(id, changelog.ChangelogFile), cl)
}

// PublishSymbols uploads the annotated symbols.
func (s *HTTPStore) PublishSymbols(ctx context.Context, packageID string, symbols []ir.SymbolRecord) error {
	data, err := encodeDoc(symbols)
	if err != nil {
		return err
	}
	return s.put(ctx, s.url(packageID, changelog.SymbolsFile), data)
}

// Close releases idle connections.
func (s *HTTPStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPStore) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

func (s *HTTPStore) put(ctx context.Context, url string, data []byte) error {
	resp, err := s.do(ctx, http.MethodPut, url, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("PUT %s: HTTP %d", url, resp.StatusCode)
	}
	return nil
}

func (s *HTTPStore) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}
