package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS published (
  package_id TEXT PRIMARY KEY,
  changelog  TEXT NOT NULL,
  versions   TEXT NOT NULL,
  symbols    TEXT,
  updated_at TEXT NOT NULL
)`

// SQLiteStore keeps one row per package.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New("sqlite path must not be empty")
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Fetch reads the row of a package.
func (s *SQLiteStore) Fetch(ctx context.Context, packageID string) (*changelog.Published, error) {
	var cl, idx string
	err := s.db.QueryRowContext(ctx,
		`SELECT changelog, versions FROM published WHERE package_id = ?`, packageID,
	).Scan(&cl, &idx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying sqlite store: %w", err)
	}
	return decodePair(packageID, strings.NewReader(cl), strings.NewReader(idx))
}

// Publish upserts both documents in one statement.
func (s *SQLiteStore) Publish(ctx context.Context, p *changelog.Published) error {
	cl, idx, err := encodePair(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO published (package_id, changelog, versions, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(package_id) DO UPDATE SET
  changelog=excluded.changelog,
  versions=excluded.versions,
  updated_at=excluded.updated_at
`, p.Changelog.PackageID, string(cl), string(idx), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing sqlite store: %w", err)
	}
	return nil
}

// PublishSymbols updates the symbols column of an already published row.
func (s *SQLiteStore) PublishSymbols(ctx context.Context, packageID string, symbols []ir.SymbolRecord) error {
	data, err := encodeDoc(symbols)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE published SET symbols = ? WHERE package_id = ?`, string(data), packageID)
	if err != nil {
		return fmt.Errorf("writing symbols to sqlite store: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("writing symbols for %s: %w", packageID, ErrNotFound)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
