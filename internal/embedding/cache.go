package embedding

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/sortai/sortai/internal/store"
)

// SQLiteCache persists the content-addressed embedding cache in the
// shared store's embedding_cache table, the same "content-addressed
// cache keyed by (text hash, model id)" §4.2 requires persisted
// between runs.
type SQLiteCache struct {
	db *store.DB
}

// NewSQLiteCache builds a Cache backed by db.
func NewSQLiteCache(db *store.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	err := c.db.Conn.QueryRowContext(ctx, `SELECT vector FROM embedding_cache WHERE cache_key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal(blob, &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, key string, vec []float32) error {
	blob, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	_, err = c.db.Conn.ExecContext(ctx,
		`INSERT INTO embedding_cache(cache_key, vector) VALUES (?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET vector=excluded.vector`, key, blob)
	return err
}

// MemoryCache is a process-local cache, useful for tests or ephemeral
// runs that don't want SQLite involved.
type MemoryCache struct {
	data map[string][]float32
}

// NewMemoryCache builds an in-memory Cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]float32)}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryCache) Put(ctx context.Context, key string, vec []float32) error {
	m.data[key] = vec
	return nil
}
