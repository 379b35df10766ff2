// Package cache persists the fetched table of a form so later exports can
// fetch only newer results and merge them with the stored rows.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates no table is stored for the form.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored payload is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists a serialized table and its metadata document per form.
type Store interface {
	Put(ctx context.Context, formID string, data, meta []byte) error
	Get(ctx context.Context, formID string) (data, meta []byte, err error)
}

// FileStore keeps one data and one metadata JSON file per form in a
// directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) dataPath(formID string) string {
	return filepath.Join(s.dir, formID+"_data.json")
}

func (s *FileStore) metaPath(formID string) string {
	return filepath.Join(s.dir, formID+"_metadata.json")
}

// Put writes both documents; the data file lands first so a torn write
// never leaves metadata pointing at nothing.
func (s *FileStore) Put(_ context.Context, formID string, data, meta []byte) error {
	if err := os.WriteFile(s.dataPath(formID), data, 0o644); err != nil {
		return fmt.Errorf("write cache data: %w", err)
	}
	if err := os.WriteFile(s.metaPath(formID), meta, 0o644); err != nil {
		return fmt.Errorf("write cache metadata: %w", err)
	}
	return nil
}

// Get reads both documents, reporting ErrCacheMiss if either is absent.
func (s *FileStore) Get(_ context.Context, formID string) ([]byte, []byte, error) {
	data, err := os.ReadFile(s.dataPath(formID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrCacheMiss
		}
		return nil, nil, fmt.Errorf("read cache data: %w", err)
	}
	meta, err := os.ReadFile(s.metaPath(formID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrCacheMiss
		}
		return nil, nil, fmt.Errorf("read cache metadata: %w", err)
	}
	return data, meta, nil
}

// Redis key layout for cached tables.
const (
	redisKeyData = "formsite:cache:%s:data"
	redisKeyMeta = "formsite:cache:%s:metadata"
)

// RedisStore keeps cached tables in Redis, shared across export runners.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Put stores both documents atomically via a pipeline.
func (s *RedisStore) Put(ctx context.Context, formID string, data, meta []byte) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(redisKeyData, formID), data, 0)
	pipe.Set(ctx, fmt.Sprintf(redisKeyMeta, formID), meta, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get reads both documents, reporting ErrCacheMiss if either is absent.
func (s *RedisStore) Get(ctx context.Context, formID string) ([]byte, []byte, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf(redisKeyData, formID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil, ErrCacheMiss
		}
		return nil, nil, fmt.Errorf("redis get: %w", err)
	}
	meta, err := s.redis.Get(ctx, fmt.Sprintf(redisKeyMeta, formID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil, ErrCacheMiss
		}
		return nil, nil, fmt.Errorf("redis get: %w", err)
	}
	return data, meta, nil
}
