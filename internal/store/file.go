package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
)

// FileStore keeps each package under <dir>/<packageId>/ as changelog.json,
// versions.json and symbols.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// PackageDir returns the directory holding a package's documents.
func (s *FileStore) PackageDir(packageID string) string {
	return filepath.Join(s.dir, pathKey(packageID))
}

// Fetch reads both documents. Both files missing means not found; one
// missing is an invalid publication.
func (s *FileStore) Fetch(ctx context.Context, packageID string) (*changelog.Published, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := s.PackageDir(packageID)

	cf, cerr := os.Open(filepath.Join(dir, changelog.ChangelogFile))
	if cerr == nil {
		defer cf.Close()
	}
	vf, verr := os.Open(filepath.Join(dir, changelog.IndexFile))
	if verr == nil {
		defer vf.Close()
	}

	cMissing, vMissing := errors.Is(cerr, fs.ErrNotExist), errors.Is(verr, fs.ErrNotExist)
	switch {
	case cMissing && vMissing:
		return nil, ErrNotFound
	case cMissing || vMissing:
		return nil, &InvalidError{PackageID: packageID, Err: errors.New("only one of changelog.json and versions.json exists")}
	case cerr != nil:
		return nil, fmt.Errorf("opening changelog file: %w", cerr)
	case verr != nil:
		return nil, fmt.Errorf("opening version index file: %w", verr)
	}

	return decodePair(packageID, cf, vf)
}

// Publish writes both documents, each through a temp file and rename.
func (s *FileStore) Publish(ctx context.Context, p *changelog.Published) error {
	cl, idx, err := encodePair(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.PackageDir(p.Changelog.PackageID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating package directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, changelog.IndexFile), idx); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, changelog.ChangelogFile), cl)
}

// PublishSymbols writes the annotated symbols of the latest version.
func (s *FileStore) PublishSymbols(ctx context.Context, packageID string, symbols []ir.SymbolRecord) error {
	data, err := encodeDoc(symbols)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.PackageDir(packageID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating package directory: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, changelog.SymbolsFile), data)
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
