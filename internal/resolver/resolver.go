// Package resolver orchestrates the address resolution pipeline: normalize,
// consult the synonym store, the geo cache, and the failure ledger, and only
// then call the rate-limited external geocoder. Failed keys back off
// exponentially and escalate to the manual queue at the configured threshold.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/tourkit/address-resolver/internal/domain"
	"github.com/tourkit/address-resolver/internal/normalize"
	"github.com/tourkit/address-resolver/internal/observability"
)

// GeoCache is the persistent coordinate cache consulted before the provider.
type GeoCache interface {
	Get(ctx context.Context, key string) (domain.CacheEntry, error)
	Put(ctx context.Context, key string, coord domain.Coordinate, source domain.Source) error
}

// SynonymSource answers alias lookups.
type SynonymSource interface {
	Lookup(ctx context.Context, alias string) (domain.Synonym, error)
}

// FailureLedger tracks failed keys and their retry schedule.
type FailureLedger interface {
	Get(ctx context.Context, key string) (domain.FailureRecord, error)
	RecordFailure(ctx context.Context, key, reason string) (domain.FailureRecord, error)
	MarkEscalated(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}

// ManualQueue receives keys that exhausted automatic retries.
type ManualQueue interface {
	Enqueue(ctx context.Context, e domain.ManualQueueEntry) error
}

// Options carries the resolver's collaborators. Every store is passed
// explicitly; there is no ambient state, so independently-configured
// resolvers can coexist (and tests build throwaway instances).
type Options struct {
	Normalizer *normalize.Normalizer
	Synonyms   SynonymSource
	Cache      GeoCache
	Ledger     FailureLedger
	Queue      ManualQueue

	// Geocoder may be nil when the provider is disabled; resolution then
	// stops after the cache tier.
	Geocoder       domain.Geocoder
	GeocodeTimeout time.Duration

	Policy  RetryPolicy
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Resolver coordinates the tiered lookup. It holds no address state of its
// own.
type Resolver struct {
	opts  Options
	group singleflight.Group
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Resolver{opts: opts}
}

// Resolve turns a raw address (and optional display name for synonym
// matching) into coordinates. Provider failures, active backoff, and
// escalation are absorbed into Valid=false with a status; only store-level
// failures return a non-nil error.
func (r *Resolver) Resolve(ctx context.Context, rawAddress, displayName string) (domain.ResolutionResult, error) {
	addr := r.opts.Normalizer.Normalize(rawAddress)

	// Synonyms are authoritative: a pinned coordinate bypasses the cache,
	// a synonym without one rewrites the address and continues the tiers.
	syn, found, err := r.lookupSynonym(ctx, displayName, rawAddress)
	if err != nil {
		return domain.ResolutionResult{}, err
	}
	if found {
		if syn.Coord != nil {
			r.opts.Metrics.SynonymHits.Inc()
			return r.observe(domain.ResolutionResult{
				Coord:  syn.Coord,
				Source: domain.SourceSynonym,
				Status: domain.StatusResolved,
				Valid:  true,
			}), nil
		}
		addr = r.opts.Normalizer.FromParts(syn.Street, syn.PostalCode, syn.City)
	}

	entry, err := r.opts.Cache.Get(ctx, addr.CanonicalKey)
	switch {
	case err == nil:
		r.opts.Metrics.CacheLookups.WithLabelValues("hit").Inc()
		return r.observe(domain.ResolutionResult{
			Coord:  &entry.Coord,
			Source: domain.SourceCache,
			Status: domain.StatusResolved,
			Valid:  true,
		}), nil
	case errors.Is(err, domain.ErrNotFound):
		r.opts.Metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		return domain.ResolutionResult{}, err
	}

	rec, err := r.opts.Ledger.Get(ctx, addr.CanonicalKey)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.ResolutionResult{}, err
	}
	if err == nil && !rec.Eligible(r.opts.Clock.Now()) {
		r.opts.Metrics.RetriesSkipped.Inc()
		status := domain.StatusBackoffActive
		if rec.Escalated {
			status = domain.StatusManualReview
		}
		return r.observe(domain.ResolutionResult{Status: status}), nil
	}

	if r.opts.Geocoder == nil {
		return r.observe(domain.ResolutionResult{Status: domain.StatusUnresolved}), nil
	}

	return r.geocodeOnce(ctx, addr, displayName)
}

// geocodeOnce issues at most one provider call per canonical key at a time.
// Concurrent callers for the same key wait on the first call's result
// instead of issuing parallel provider requests.
func (r *Resolver) geocodeOnce(ctx context.Context, addr domain.NormalizedAddress, displayName string) (domain.ResolutionResult, error) {
	v, err, shared := r.group.Do(addr.CanonicalKey, func() (any, error) {
		return r.callProvider(ctx, addr, displayName)
	})
	if shared {
		r.opts.Metrics.SingleflightShared.Inc()
	}
	if err != nil {
		return domain.ResolutionResult{}, err
	}
	return v.(domain.ResolutionResult), nil
}

func (r *Resolver) callProvider(ctx context.Context, addr domain.NormalizedAddress, displayName string) (domain.ResolutionResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.GeocodeTimeout)
	defer cancel()

	coord, err := r.opts.Geocoder.Geocode(callCtx, addr.Raw)
	if err != nil {
		return r.handleFailure(ctx, addr, displayName, err)
	}
	if err := coord.Validate(); err != nil {
		return r.handleFailure(ctx, addr, displayName, err)
	}

	if err := r.opts.Cache.Put(ctx, addr.CanonicalKey, coord, domain.SourceGeocoder); err != nil {
		return domain.ResolutionResult{}, err
	}
	// A failed delete here is tolerable: the next resolution finds the
	// cache hit first and never consults the ledger for this key.
	if err := r.opts.Ledger.Delete(ctx, addr.CanonicalKey); err != nil {
		r.opts.Logger.Warn("failure ledger cleanup failed", "key", addr.CanonicalKey, "error", err)
	}

	r.opts.Metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return r.observe(domain.ResolutionResult{
		Coord:  &coord,
		Source: domain.SourceGeocoder,
		Status: domain.StatusResolved,
		Valid:  true,
	}), nil
}

// handleFailure advances the failure state machine and escalates at the
// threshold. The caller always receives Valid=false, never a hard error,
// unless a store write itself fails.
func (r *Resolver) handleFailure(ctx context.Context, addr domain.NormalizedAddress, displayName string, cause error) (domain.ResolutionResult, error) {
	reason := classifyFailure(cause)
	r.opts.Metrics.GeocodeRequests.WithLabelValues(reason).Inc()
	r.opts.Logger.Warn("geocoding failed",
		"address", addr.Raw,
		"key", addr.CanonicalKey,
		"reason", reason,
		"error", cause,
	)

	rec, err := r.opts.Ledger.RecordFailure(ctx, addr.CanonicalKey, reason)
	if err != nil {
		return domain.ResolutionResult{}, err
	}

	if rec.AttemptCount >= r.opts.Policy.Threshold && !rec.Escalated {
		if err := r.opts.Queue.Enqueue(ctx, domain.ManualQueueEntry{
			Key:         addr.CanonicalKey,
			RawAddress:  addr.Raw,
			DisplayName: displayName,
			Reason:      reason,
		}); err != nil {
			return domain.ResolutionResult{}, err
		}
		if err := r.opts.Ledger.MarkEscalated(ctx, addr.CanonicalKey); err != nil {
			return domain.ResolutionResult{}, err
		}
		r.opts.Metrics.Escalations.Inc()
		r.opts.Logger.Info("address escalated to manual review",
			"key", addr.CanonicalKey, "attempts", rec.AttemptCount)
		return r.observe(domain.ResolutionResult{Status: domain.StatusManualReview}), nil
	}

	return r.observe(domain.ResolutionResult{Status: domain.StatusGeocoderFailed}), nil
}

// ResolveStop resolves one tour-plan record into the boundary DTO published
// to the sink topic. Stops that cannot be resolved are still returned (with
// Valid=false) so planners can see the gap.
func (r *Resolver) ResolveStop(ctx context.Context, rec domain.RawStopRecord) (domain.Stop, error) {
	addr := r.opts.Normalizer.FromParts(rec.Street, rec.PostalCode, rec.City)

	res, err := r.Resolve(ctx, addr.Raw, rec.Name)
	if err != nil {
		return domain.Stop{}, err
	}

	extra := map[string]any{}
	if rec.CustomerID != "" {
		extra["customer_id"] = rec.CustomerID
	}
	if rec.Tour != "" {
		extra["tour"] = rec.Tour
	}
	if rec.Note != "" {
		extra["note"] = rec.Note
	}

	return domain.Stop{
		ID:              stopID(rec, addr.CanonicalKey),
		DisplayName:     rec.Name,
		ResolvedAddress: addr.Raw,
		Coord:           res.Coord,
		GeoSource:       res.Source,
		Status:          res.Status,
		Valid:           res.Valid,
		Extra:           extra,
	}, nil
}

func (r *Resolver) lookupSynonym(ctx context.Context, displayName, rawAddress string) (domain.Synonym, bool, error) {
	for _, alias := range []string{displayName, rawAddress} {
		if alias == "" {
			continue
		}
		syn, err := r.opts.Synonyms.Lookup(ctx, alias)
		if err == nil {
			return syn, true, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Synonym{}, false, err
		}
	}
	return domain.Synonym{}, false, nil
}

func (r *Resolver) observe(res domain.ResolutionResult) domain.ResolutionResult {
	r.opts.Metrics.Resolutions.WithLabelValues(string(res.Source), string(res.Status)).Inc()
	return res
}

// classifyFailure maps provider errors onto the ledger's reason vocabulary.
func classifyFailure(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, domain.ErrNoResult):
		return "no_result"
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return "invalid_response"
	default:
		return "provider_error"
	}
}

// stopID is deterministic so reprocessing the same record produces the same
// stop, enabling idempotent upserts downstream.
func stopID(rec domain.RawStopRecord, key string) string {
	if rec.CustomerID != "" {
		return "stop-" + rec.CustomerID
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", rec.Name, key)))
	return "stop-" + hex.EncodeToString(sum[:8])
}
