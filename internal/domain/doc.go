// Package domain models delivery addresses and their resolution into
// geographic coordinates.
//
// # Address Data
//
// Raw addresses arrive from tour-plan CSV exports published to the source
// Kafka topic by the ingest service. The exports are produced by a legacy ERP
// that writes CP850; a decade of re-imports has left classic double-encoding
// artifacts in street and city names ("StraÃŸe" for "Straße", "Ã¶" for "ö").
// The normalizer repairs these deterministically so that every spelling of an
// address maps to one canonical key.
//
// # Canonical Keys
//
// A canonical key is the lowercased, NFC-normalized concatenation of street,
// postal code, and city with "|" as delimiter. Two inputs that differ only in
// whitespace, case, known encoding corruption, or district qualifiers
// ("(OT Boxdorf)") produce the same key. Keys identify entries in the geo
// cache, the failure ledger, and the manual queue.
//
// # Provenance
//
// Every resolved coordinate carries a Source tag recording which tier
// produced it:
//
//	synonym           operator-curated alias, authoritative, bypasses the cache
//	cache             previously geocoded, served from the geo cache
//	geocoder          fresh result from the external provider
//	manual_correction entered by an operator via the manual queue
//
// Downstream consumers must only route stops whose Valid flag is set; a stop
// without coordinates is still published so tour planners can see the gap.
package domain
