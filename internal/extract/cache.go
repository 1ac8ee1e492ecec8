package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ariel-frischer/symlog/internal/ir"
	"github.com/ariel-frischer/symlog/internal/logger"
	"github.com/charmbracelet/log"
	bolt "go.etcd.io/bbolt"
)

const cacheRootBucket = "ir"

// cacheLockTimeout bounds the wait for another process holding the cache.
const cacheLockTimeout = time.Second

// errCacheMiss is returned by Cache.Get when nothing is stored for a key.
var errCacheMiss = errors.New("cache miss")

// cacheEntry keeps the symbols dropped while decoding next to the IR so a
// cached version diffs exactly like a freshly extracted one.
type cacheEntry struct {
	IR      json.RawMessage `json:"ir"`
	Skipped []ir.Warning    `json:"skipped,omitempty"`
}

// Cache stores extracted IR documents in a BoltDB file, one bucket per
// namespace, keyed by commit SHA.
type Cache struct {
	db   *bolt.DB
	once sync.Once
}

// OpenCache opens (or creates) the cache file at path.
func OpenCache(path string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("cache path is required")
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := bolt.Open(cleaned, 0o600, &bolt.Options{Timeout: cacheLockTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening IR cache: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheRootBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing IR cache: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get returns the cached IR for namespace/sha.
func (c *Cache) Get(ctx context.Context, namespace, sha string) (*ir.MinimalIR, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ns := tx.Bucket([]byte(cacheRootBucket)).Bucket([]byte(namespace))
		if ns == nil {
			return errCacheMiss
		}
		v := ns.Get([]byte(sha))
		if v == nil {
			return errCacheMiss
		}
		data = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cached IR for %s: %w", shortSHA(sha), err)
	}
	m, _, err := ir.Decode(bytes.NewReader(entry.IR))
	if err != nil {
		return nil, fmt.Errorf("decoding cached IR for %s: %w", shortSHA(sha), err)
	}
	m.Skipped = entry.Skipped
	return m, nil
}

// Put stores m under namespace/sha.
func (c *Cache) Put(ctx context.Context, namespace, sha string, m *ir.MinimalIR) error {
	stored := *m
	if stored.Symbols == nil {
		stored.Symbols = []ir.SymbolRecord{}
	}
	var buf bytes.Buffer
	if err := ir.Encode(&buf, &stored); err != nil {
		return err
	}
	data, err := json.Marshal(cacheEntry{IR: buf.Bytes(), Skipped: m.Skipped})
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ns, err := tx.Bucket([]byte(cacheRootBucket)).CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return ns.Put([]byte(sha), data)
	})
}

// Close shuts down the cache.
func (c *Cache) Close() error {
	var err error
	c.once.Do(func() {
		err = c.db.Close()
	})
	return err
}

// CachedExtractor consults the cache before delegating to Inner and stores
// every successful extraction.
type CachedExtractor struct {
	Cache     *Cache
	Namespace string
	Inner     Extractor
	Logger    *log.Logger
}

// ExtractIR returns the cached IR for sha or extracts and caches it.
// Cache read and write failures are logged and never fail the extraction.
func (c *CachedExtractor) ExtractIR(ctx context.Context, sha string) (*ir.MinimalIR, error) {
	lg := logger.OrDiscard(c.Logger)

	m, err := c.Cache.Get(ctx, c.Namespace, sha)
	switch {
	case err == nil:
		lg.Debug("IR cache hit", "sha", shortSHA(sha))
		return m, nil
	case errors.Is(err, errCacheMiss):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		lg.Warn("reading IR cache", "sha", shortSHA(sha), "err", err)
	}

	m, err = c.Inner.ExtractIR(ctx, sha)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Put(ctx, c.Namespace, sha, m); err != nil {
		lg.Warn("writing IR cache", "sha", shortSHA(sha), "err", err)
	}
	return m, nil
}
