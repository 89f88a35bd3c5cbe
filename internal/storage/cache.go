package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CacheEntry is a cached upstream response body.
type CacheEntry struct {
	Body        []byte
	ContentType string
	FetchedAt   time.Time
}

// Cache stores public workout content responses for a fixed TTL.
type Cache struct {
	db  *DB
	ttl time.Duration
	now func() time.Time
}

// NewCache returns a cache whose entries expire after ttl.
func NewCache(db *DB, ttl time.Duration) *Cache {
	return &Cache{db: db, ttl: ttl, now: time.Now}
}

// Get returns the entry for key if it is younger than the TTL.
func (c *Cache) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	var (
		e       CacheEntry
		fetched int64
	)
	err := c.db.SQL.QueryRowContext(ctx,
		`SELECT body, content_type, fetched_at FROM content_cache WHERE cache_key = ?`,
		key).Scan(&e.Body, &e.ContentType, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("reading cache entry: %w", err)
	}
	e.FetchedAt = time.UnixMilli(fetched)
	if c.now().Sub(e.FetchedAt) > c.ttl {
		return CacheEntry{}, false, nil
	}
	return e, true, nil
}

// Put stores or replaces the entry for key, stamping it with the current time.
func (c *Cache) Put(ctx context.Context, key string, e CacheEntry) error {
	_, err := c.db.SQL.ExecContext(ctx,
		`INSERT INTO content_cache (cache_key, body, content_type, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE
			SET body = excluded.body, content_type = excluded.content_type, fetched_at = excluded.fetched_at`,
		key, e.Body, e.ContentType, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Purge deletes entries fetched before cutoff. Returns the number removed.
func (c *Cache) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.SQL.ExecContext(ctx,
		`DELETE FROM content_cache WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return res.RowsAffected()
}

// PurgeExpired removes every entry older than the TTL.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	return c.Purge(ctx, c.now().Add(-c.ttl))
}
