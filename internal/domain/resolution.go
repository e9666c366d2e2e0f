package domain

import "time"

// Source tags which tier produced a coordinate.
type Source string

const (
	SourceSynonym  Source = "synonym"
	SourceCache    Source = "cache"
	SourceGeocoder Source = "geocoder"
	SourceManual   Source = "manual_correction"
)

// Status describes the outcome of a resolution attempt. Only StatusResolved
// carries coordinates; the remaining statuses let callers distinguish a
// transient miss from one that needs human attention.
type Status string

const (
	StatusResolved       Status = "resolved"
	StatusBackoffActive  Status = "backoff_active"
	StatusGeocoderFailed Status = "geocoder_failed"
	StatusManualReview   Status = "manual_review"
	StatusUnresolved     Status = "unresolved"
)

// ResolutionResult is what the resolver hands back to callers. Valid is true
// only when Coord is present; all failure conditions below the resolver are
// absorbed into Valid=false plus a Status, never raised as hard errors.
type ResolutionResult struct {
	Coord  *Coordinate
	Source Source
	Status Status
	Valid  bool
}

// CacheEntry is one row of the geo cache: at most one per canonical key.
// Updates overwrite in place and refresh LastSeen; FirstSeen survives
// overwrites.
type CacheEntry struct {
	Key       string
	Coord     Coordinate
	Source    Source
	FirstSeen time.Time
	LastSeen  time.Time
}

// FailureRecord tracks a canonical key that failed geocoding. NextAttempt nil
// means eligible now. Escalated records are retained so repeat escalation is
// suppressed, but are no longer retried automatically.
type FailureRecord struct {
	Key          string
	AttemptCount int
	Reason       string
	FirstSeen    time.Time
	LastSeen     time.Time
	NextAttempt  *time.Time
	Escalated    bool
}

// Eligible reports whether the key may be retried at now. Absent records are
// handled by the caller (absent means eligible); escalated records are never
// eligible. The boundary is inclusive: a record becomes eligible exactly at
// NextAttempt.
func (r FailureRecord) Eligible(now time.Time) bool {
	if r.Escalated {
		return false
	}
	return r.NextAttempt == nil || !now.Before(*r.NextAttempt)
}

// ManualQueueEntry holds an address that exhausted automatic retries and
// awaits operator correction.
type ManualQueueEntry struct {
	Key         string
	RawAddress  string
	DisplayName string
	Reason      string
	EnqueuedAt  time.Time
}
