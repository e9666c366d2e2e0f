package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/tourkit/address-resolver/internal/domain"
)

// GeoCache is the persistent mapping from canonical address key to resolved
// coordinates with provenance. One entry per key; writes are single
// statements, so readers never observe a torn entry.
type GeoCache struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewGeoCache creates a GeoCache over an opened database.
func NewGeoCache(db *sql.DB, clock clockwork.Clock) *GeoCache {
	return &GeoCache{db: db, clock: clock}
}

// Get returns the entry for key, or domain.ErrNotFound.
func (c *GeoCache) Get(ctx context.Context, key string) (domain.CacheEntry, error) {
	var e domain.CacheEntry
	var source string
	err := c.db.QueryRowContext(ctx,
		`SELECT key, lat, lon, source, first_seen, last_seen FROM geo_cache WHERE key = ?`, key,
	).Scan(&e.Key, &e.Coord.Lat, &e.Coord.Lon, &source, &e.FirstSeen, &e.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("geo cache get %q: %w", key, err)
	}
	e.Source = domain.Source(source)
	return e, nil
}

// Put validates and upserts the coordinate for key. Existing entries are
// overwritten in place (last write wins); first_seen survives, last_seen is
// refreshed. Invalid coordinates are rejected and nothing is stored.
func (c *GeoCache) Put(ctx context.Context, key string, coord domain.Coordinate, source domain.Source) error {
	if err := coord.Validate(); err != nil {
		return err
	}
	now := c.clock.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geo_cache (key, lat, lon, source, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			source = excluded.source,
			last_seen = excluded.last_seen`,
		key, coord.Lat, coord.Lon, string(source), now, now)
	if err != nil {
		return fmt.Errorf("geo cache put %q: %w", key, err)
	}
	return nil
}

// Delete removes an entry. Administrative use only — the resolution pipeline
// never deletes cache entries.
func (c *GeoCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM geo_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("geo cache delete %q: %w", key, err)
	}
	return nil
}
