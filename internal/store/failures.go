package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tourkit/address-resolver/internal/domain"
)

// FailureLedger records canonical keys that failed geocoding, together with
// the attempt count and the time of the next eligible retry. The backoff
// schedule is injected so the policy lives with the resolver configuration.
//
// RecordFailure is a read-modify-write; the resolver serializes calls per key
// through its singleflight group, so attempts are never lost to races.
type FailureLedger struct {
	db      *sql.DB
	clock   clockwork.Clock
	backoff func(attempt int) time.Duration
}

// NewFailureLedger creates a FailureLedger over an opened database.
func NewFailureLedger(db *sql.DB, clock clockwork.Clock, backoff func(attempt int) time.Duration) *FailureLedger {
	return &FailureLedger{db: db, clock: clock, backoff: backoff}
}

// Get returns the record for key, or domain.ErrNotFound.
func (l *FailureLedger) Get(ctx context.Context, key string) (domain.FailureRecord, error) {
	var r domain.FailureRecord
	var next sql.NullTime
	var escalated int
	err := l.db.QueryRowContext(ctx, `
		SELECT key, attempt_count, reason, first_seen, last_seen, next_attempt, escalated
		FROM geo_failures WHERE key = ?`, key,
	).Scan(&r.Key, &r.AttemptCount, &r.Reason, &r.FirstSeen, &r.LastSeen, &next, &escalated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FailureRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.FailureRecord{}, fmt.Errorf("failure ledger get %q: %w", key, err)
	}
	if next.Valid {
		t := next.Time
		r.NextAttempt = &t
	}
	r.Escalated = escalated != 0
	return r, nil
}

// RecordFailure moves the key one step through the state machine:
// absent → pending with attempt 1, pending → pending with the attempt count
// incremented and next_attempt pushed out by the backoff schedule. The
// updated record is returned so the caller can check the escalation
// threshold.
func (l *FailureLedger) RecordFailure(ctx context.Context, key, reason string) (domain.FailureRecord, error) {
	now := l.clock.Now().UTC()

	rec, err := l.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec = domain.FailureRecord{Key: key, FirstSeen: now}
	case err != nil:
		return domain.FailureRecord{}, err
	}

	rec.AttemptCount++
	rec.Reason = reason
	rec.LastSeen = now
	next := now.Add(l.backoff(rec.AttemptCount))
	rec.NextAttempt = &next

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO geo_failures (key, attempt_count, reason, first_seen, last_seen, next_attempt, escalated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			attempt_count = excluded.attempt_count,
			reason = excluded.reason,
			last_seen = excluded.last_seen,
			next_attempt = excluded.next_attempt`,
		rec.Key, rec.AttemptCount, rec.Reason, rec.FirstSeen, rec.LastSeen, *rec.NextAttempt, boolToInt(rec.Escalated))
	if err != nil {
		return domain.FailureRecord{}, fmt.Errorf("failure ledger record %q: %w", key, err)
	}
	return rec, nil
}

// MarkEscalated flags the key as handed to manual review. The record is
// retained so repeat escalation is suppressed, but it is no longer eligible
// for automatic retries.
func (l *FailureLedger) MarkEscalated(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx,
		`UPDATE geo_failures SET escalated = 1 WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failure ledger escalate %q: %w", key, err)
	}
	return nil
}

// Delete removes the record, called when the key finally resolves.
func (l *FailureLedger) Delete(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM geo_failures WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failure ledger delete %q: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
