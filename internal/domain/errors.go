package domain

import "errors"

var (
	// ErrInvalidCoordinate rejects cache writes with out-of-range or
	// non-numeric lat/lon. The offending entry is not stored.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrNotFound is returned by store lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrNoResult means the provider answered but found no match for the
	// address. Distinct from transport failures so the failure ledger can
	// record the reason.
	ErrNoResult = errors.New("geocoder returned no result")

	// ErrGeocoderUnavailable marks provider-side outages (5xx responses),
	// as opposed to a definitive no-match answer.
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")
)
