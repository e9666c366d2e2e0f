package store

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/tourkit/address-resolver/internal/domain"
)

// csvHeader is the fixed column layout for synonym bulk import/export.
var csvHeader = []string{"alias", "street", "postal_code", "city", "lat", "lon"}

// ImportCSV reads synonym records in the bulk layout and upserts them.
// Malformed rows are skipped, not fatal; the count of imported records is
// returned. A header row is detected and ignored.
func (s *SynonymStore) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	imported := 0
	for line := 0; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("synonym csv: unreadable row skipped", "line", line+1, "error", err)
			continue
		}
		if line == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) < 4 {
			s.logger.Warn("synonym csv: short row skipped", "line", line+1, "fields", len(row))
			continue
		}

		syn := domain.Synonym{
			Alias:      row[0],
			Street:     row[1],
			PostalCode: row[2],
			City:       row[3],
		}
		if len(row) >= 6 && row[4] != "" && row[5] != "" {
			lat, errLat := strconv.ParseFloat(row[4], 64)
			lon, errLon := strconv.ParseFloat(row[5], 64)
			if errLat != nil || errLon != nil {
				s.logger.Warn("synonym csv: bad coordinates skipped", "line", line+1, "alias", row[0])
				continue
			}
			syn.Coord = &domain.Coordinate{Lat: lat, Lon: lon}
		}

		if err := s.Upsert(ctx, syn); err != nil {
			s.logger.Warn("synonym csv: upsert failed", "line", line+1, "alias", syn.Alias, "error", err)
			continue
		}
		imported++
	}
	return imported, nil
}

// ExportCSV writes all synonyms in the bulk layout and returns the record
// count together with the SHA-256 of the written bytes, used by operational
// tooling for change detection.
func (s *SynonymStore) ExportCSV(ctx context.Context, w io.Writer) (int, string, error) {
	records, err := s.All(ctx)
	if err != nil {
		return 0, "", err
	}

	h := sha256.New()
	cw := csv.NewWriter(io.MultiWriter(w, h))

	if err := cw.Write(csvHeader); err != nil {
		return 0, "", fmt.Errorf("synonym export: %w", err)
	}
	for _, syn := range records {
		var lat, lon string
		if syn.Coord != nil {
			lat = strconv.FormatFloat(syn.Coord.Lat, 'f', -1, 64)
			lon = strconv.FormatFloat(syn.Coord.Lon, 'f', -1, 64)
		}
		row := []string{syn.Alias, syn.Street, syn.PostalCode, syn.City, lat, lon}
		if err := cw.Write(row); err != nil {
			return 0, "", fmt.Errorf("synonym export: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, "", fmt.Errorf("synonym export: %w", err)
	}

	return len(records), hex.EncodeToString(h.Sum(nil)), nil
}
