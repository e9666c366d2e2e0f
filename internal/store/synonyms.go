package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/tourkit/address-resolver/internal/domain"
	"github.com/tourkit/address-resolver/internal/normalize"
)

// SynonymStore maps operator-curated aliases to canonical addresses and
// optional pinned coordinates. All mutations are persisted immediately;
// there is no write buffering.
type SynonymStore struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewSynonymStore creates a SynonymStore over an opened database.
func NewSynonymStore(db *sql.DB, clock clockwork.Clock, logger *slog.Logger) *SynonymStore {
	return &SynonymStore{db: db, clock: clock, logger: logger}
}

// Upsert inserts or replaces the synonym for its alias. Idempotent.
func (s *SynonymStore) Upsert(ctx context.Context, syn domain.Synonym) error {
	if syn.Alias == "" {
		return errors.New("synonym alias must not be empty")
	}
	if syn.Coord != nil {
		if err := syn.Coord.Validate(); err != nil {
			return err
		}
	}

	var lat, lon any
	if syn.Coord != nil {
		lat, lon = syn.Coord.Lat, syn.Coord.Lon
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO synonyms (alias_key, alias, customer_id, customer_name, street, postal_code, city, lat, lon, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alias_key) DO UPDATE SET
			alias = excluded.alias,
			customer_id = excluded.customer_id,
			customer_name = excluded.customer_name,
			street = excluded.street,
			postal_code = excluded.postal_code,
			city = excluded.city,
			lat = excluded.lat,
			lon = excluded.lon,
			updated_at = excluded.updated_at`,
		normalize.FoldAlias(syn.Alias), syn.Alias, syn.CustomerID, syn.CustomerName,
		syn.Street, syn.PostalCode, syn.City, lat, lon, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("synonym upsert %q: %w", syn.Alias, err)
	}
	return nil
}

// Lookup returns the synonym registered for alias, matching case- and
// whitespace-insensitively. Returns domain.ErrNotFound on miss.
func (s *SynonymStore) Lookup(ctx context.Context, alias string) (domain.Synonym, error) {
	var syn domain.Synonym
	var lat, lon sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT alias, customer_id, customer_name, street, postal_code, city, lat, lon
		FROM synonyms WHERE alias_key = ?`, normalize.FoldAlias(alias),
	).Scan(&syn.Alias, &syn.CustomerID, &syn.CustomerName, &syn.Street, &syn.PostalCode, &syn.City, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Synonym{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Synonym{}, fmt.Errorf("synonym lookup %q: %w", alias, err)
	}

	// Both-or-neither: a half-populated pair in the table is operator error
	// and is treated as no coordinates.
	if lat.Valid && lon.Valid {
		syn.Coord = &domain.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	return syn, nil
}

// ImportBulk upserts a batch of synonyms. A record that fails does not abort
// the batch; the count of successful imports is returned.
func (s *SynonymStore) ImportBulk(ctx context.Context, records []domain.Synonym) (int, error) {
	imported := 0
	for _, rec := range records {
		if err := s.Upsert(ctx, rec); err != nil {
			s.logger.Warn("synonym import skipped record", "alias", rec.Alias, "error", err)
			continue
		}
		imported++
	}
	return imported, nil
}

// All returns every synonym ordered by alias, for export.
func (s *SynonymStore) All(ctx context.Context) ([]domain.Synonym, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias, customer_id, customer_name, street, postal_code, city, lat, lon
		FROM synonyms ORDER BY alias_key`)
	if err != nil {
		return nil, fmt.Errorf("synonym list: %w", err)
	}
	defer rows.Close()

	var out []domain.Synonym
	for rows.Next() {
		var syn domain.Synonym
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&syn.Alias, &syn.CustomerID, &syn.CustomerName,
			&syn.Street, &syn.PostalCode, &syn.City, &lat, &lon); err != nil {
			return nil, fmt.Errorf("synonym scan: %w", err)
		}
		if lat.Valid && lon.Valid {
			syn.Coord = &domain.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		}
		out = append(out, syn)
	}
	return out, rows.Err()
}
