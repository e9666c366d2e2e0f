package domain

import (
	"fmt"
	"math"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the coordinate is a real point on the globe.
// NaN, infinities, and out-of-range values are rejected with
// ErrInvalidCoordinate.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("non-numeric lat/lon: %w", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("lat %v out of range [-90,90]: %w", c.Lat, ErrInvalidCoordinate)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("lon %v out of range [-180,180]: %w", c.Lon, ErrInvalidCoordinate)
	}
	return nil
}

// NormalizedAddress is the output of the text normalizer. CanonicalKey is a
// pure function of the normalized street/postal/city fields; Raw preserves
// the input after encoding repair but before case folding, for display.
type NormalizedAddress struct {
	Raw          string
	CanonicalKey string
	Street       string
	PostalCode   string
	City         string
}

// Synonym maps a human-facing alias (customer nickname, branch shorthand) to
// a canonical address and optionally directly to coordinates. Synonyms are
// curated by operators or bulk import, never created by the resolver.
type Synonym struct {
	Alias        string
	CustomerID   string
	CustomerName string
	Street       string
	PostalCode   string
	City         string

	// Coord is set when the operator pinned exact coordinates. Both
	// components are present or the whole field is nil.
	Coord *Coordinate
}

// Address renders the synonym's canonical address as a single line.
func (s Synonym) Address() string {
	return fmt.Sprintf("%s, %s %s", s.Street, s.PostalCode, s.City)
}
