package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/tourkit/address-resolver/internal/domain"
)

// ManualQueue holds addresses that exhausted automatic retries, awaiting
// operator correction.
type ManualQueue struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewManualQueue creates a ManualQueue over an opened database.
func NewManualQueue(db *sql.DB, clock clockwork.Clock) *ManualQueue {
	return &ManualQueue{db: db, clock: clock}
}

// Enqueue adds the entry unless the key is already queued. Idempotent per
// key: a second escalation never duplicates the entry.
func (q *ManualQueue) Enqueue(ctx context.Context, e domain.ManualQueueEntry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO manual_queue (key, raw_address, display_name, reason, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		e.Key, e.RawAddress, e.DisplayName, e.Reason, q.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("manual queue enqueue %q: %w", e.Key, err)
	}
	return nil
}

// IsOpen reports whether the key is currently queued.
func (q *ManualQueue) IsOpen(ctx context.Context, key string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		`SELECT 1 FROM manual_queue WHERE key = ? LIMIT 1`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("manual queue check %q: %w", key, err)
	}
	return true, nil
}

// ListOpen returns up to limit entries, newest first.
func (q *ManualQueue) ListOpen(ctx context.Context, limit int) ([]domain.ManualQueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT key, raw_address, display_name, reason, enqueued_at
		FROM manual_queue ORDER BY enqueued_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("manual queue list: %w", err)
	}
	defer rows.Close()

	var out []domain.ManualQueueEntry
	for rows.Next() {
		var e domain.ManualQueueEntry
		if err := rows.Scan(&e.Key, &e.RawAddress, &e.DisplayName, &e.Reason, &e.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("manual queue scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close removes the entry for key, called when an operator has supplied a
// correction. Reports whether an entry was removed.
func (q *ManualQueue) Close(ctx context.Context, key string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM manual_queue WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("manual queue close %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("manual queue close %q: %w", key, err)
	}
	return n > 0, nil
}
