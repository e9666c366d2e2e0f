package domain

import "context"

// Geocoder resolves a free-text address against the external provider.
// Implementations are expected to be rate-limited and to honor the context
// deadline. An empty result set is reported as ErrNoResult.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
}
