package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariel-frischer/symlog/internal/changelog"
	"github.com/ariel-frischer/symlog/internal/ir"
	redis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "symlog"

// RedisConfig defines redis connection settings.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps both documents of a package under two keys written in
// one MULTI/EXEC transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(packageID, doc string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, packageID, doc)
}

// Fetch reads both documents with one MGET.
func (s *RedisStore) Fetch(ctx context.Context, packageID string) (*changelog.Published, error) {
	vals, err := s.client.MGet(ctx, s.key(packageID, "changelog"), s.key(packageID, "versions")).Result()
	if err != nil {
		return nil, fmt.Errorf("reading from redis: %w", err)
	}

	cl, cok := vals[0].(string)
	idx, vok := vals[1].(string)
	switch {
	case !cok && !vok:
		return nil, ErrNotFound
	case !cok || !vok:
		return nil, &InvalidError{PackageID: packageID, Err: errors.New("only one of changelog and versions keys exists")}
	}

	return decodePair(packageID, bytes.NewReader([]byte(cl)), bytes.NewReader([]byte(idx)))
}

// Publish writes both documents atomically.
func (s *RedisStore) Publish(ctx context.Context, p *changelog.Published) error {
	cl, idx, err := encodePair(p)
	if err != nil {
		return err
	}
	id := p.Changelog.PackageID

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(id, "changelog"), cl, 0)
		pipe.Set(ctx, s.key(id, "versions"), idx, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing to redis: %w", err)
	}
	return nil
}

// PublishSymbols stores the annotated symbols of the latest version.
func (s *RedisStore) PublishSymbols(ctx context.Context, packageID string, symbols []ir.SymbolRecord) error {
	data, err := encodeDoc(symbols)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(packageID, "symbols"), data, 0).Err(); err != nil {
		return fmt.Errorf("writing symbols to redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
