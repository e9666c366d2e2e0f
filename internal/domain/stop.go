package domain

import (
	"context"
	"time"
)

// RawStopRecord is the flat JSON published per tour-plan row by the ingest
// service. Field values arrive exactly as exported, including encoding
// corruption; repair happens in the normalizer, not here.
type RawStopRecord struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Tour       string `json:"tour,omitempty"`
	Note       string `json:"note,omitempty"`
}

// RawMessage represents an unprocessed message from the source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Stop is the boundary DTO handed to the UI/API layer and the sink topic.
// Valid is true only when Coord carries both coordinates; consumers must
// route only valid stops into map rendering or routing.
type Stop struct {
	ID              string
	DisplayName     string
	ResolvedAddress string
	Coord           *Coordinate
	GeoSource       Source
	Status          Status
	Valid           bool

	// Extra carries caller-supplied fields merged into the wire payload.
	// Reserved keys are never overwritten by Extra.
	Extra map[string]any
}

// reservedStopKeys are owned by the resolver and protected from Extra.
var reservedStopKeys = map[string]struct{}{
	"id": {}, "display_name": {}, "resolved_address": {},
	"lat": {}, "lon": {}, "geo_source": {}, "status": {}, "valid": {},
}

// Payload flattens the stop into its wire form. Lat and lon appear only when
// the stop is valid, so consumers never see a half-populated pair.
func (s Stop) Payload() map[string]any {
	p := map[string]any{
		"id":               s.ID,
		"display_name":     s.DisplayName,
		"resolved_address": s.ResolvedAddress,
		"status":           string(s.Status),
		"valid":            s.Valid,
	}
	if s.Coord != nil {
		p["lat"] = s.Coord.Lat
		p["lon"] = s.Coord.Lon
		p["geo_source"] = string(s.GeoSource)
	}
	for k, v := range s.Extra {
		if _, reserved := reservedStopKeys[k]; reserved {
			continue
		}
		p[k] = v
	}
	return p
}
