package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourkit/address-resolver/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "resolver.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGeoCache(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	cache := NewGeoCache(testDB(t), clock)

	t.Run("miss returns ErrNotFound", func(t *testing.T) {
		_, err := cache.Get(ctx, "nope|00000|nowhere")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("put then get round-trips", func(t *testing.T) {
		key := "schulstraße 25|01468|moritzburg"
		coord := domain.Coordinate{Lat: 51.1585, Lon: 13.6089}
		require.NoError(t, cache.Put(ctx, key, coord, domain.SourceGeocoder))

		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, coord, got.Coord)
		assert.Equal(t, domain.SourceGeocoder, got.Source)
		assert.Equal(t, clock.Now().UTC(), got.FirstSeen.UTC())
	})

	t.Run("overwrite keeps first_seen and refreshes last_seen", func(t *testing.T) {
		key := "hauptstraße 1|01809|heidenau"
		require.NoError(t, cache.Put(ctx, key, domain.Coordinate{Lat: 50.98, Lon: 13.86}, domain.SourceGeocoder))
		first, err := cache.Get(ctx, key)
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)
		require.NoError(t, cache.Put(ctx, key, domain.Coordinate{Lat: 50.99, Lon: 13.87}, domain.SourceManual))

		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 50.99, got.Coord.Lat)
		assert.Equal(t, domain.SourceManual, got.Source)
		assert.Equal(t, first.FirstSeen.UTC(), got.FirstSeen.UTC())
		assert.True(t, got.LastSeen.After(got.FirstSeen))
	})

	t.Run("rejects out-of-range coordinates and stores nothing", func(t *testing.T) {
		key := "bad|11111|pair"
		err := cache.Put(ctx, key, domain.Coordinate{Lat: 91, Lon: 0}, domain.SourceGeocoder)
		assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
		err = cache.Put(ctx, key, domain.Coordinate{Lat: 0, Lon: 200}, domain.SourceGeocoder)
		assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

		_, err = cache.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		key := "gone|22222|soon"
		require.NoError(t, cache.Put(ctx, key, domain.Coordinate{Lat: 1, Lon: 2}, domain.SourceManual))
		require.NoError(t, cache.Delete(ctx, key))
		_, err := cache.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSynonymStore(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	syns := NewSynonymStore(testDB(t), clock, testLogger())

	t.Run("upsert and lookup", func(t *testing.T) {
		coord := &domain.Coordinate{Lat: 51.006, Lon: 13.8196}
		require.NoError(t, syns.Upsert(ctx, domain.Synonym{
			Alias:        "Sven - PF",
			CustomerName: "Sven Teichmann",
			Street:       "An der Triebe 25",
			PostalCode:   "01468",
			City:         "Moritzburg",
			Coord:        coord,
		}))

		got, err := syns.Lookup(ctx, "Sven - PF")
		require.NoError(t, err)
		assert.Equal(t, "Sven Teichmann", got.CustomerName)
		require.NotNil(t, got.Coord)
		assert.Equal(t, *coord, *got.Coord)
	})

	t.Run("lookup is case and whitespace insensitive", func(t *testing.T) {
		got, err := syns.Lookup(ctx, "  sven  -  pf ")
		require.NoError(t, err)
		assert.Equal(t, "Sven - PF", got.Alias)
	})

	t.Run("upsert replaces existing alias", func(t *testing.T) {
		require.NoError(t, syns.Upsert(ctx, domain.Synonym{
			Alias: "Sven - PF", Street: "Neue Straße 1", PostalCode: "01468", City: "Moritzburg",
		}))
		got, err := syns.Lookup(ctx, "Sven - PF")
		require.NoError(t, err)
		assert.Equal(t, "Neue Straße 1", got.Street)
		assert.Nil(t, got.Coord, "replacing without coordinates clears the pair")
	})

	t.Run("miss returns ErrNotFound", func(t *testing.T) {
		_, err := syns.Lookup(ctx, "unknown alias")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("bulk import counts successes and skips bad records", func(t *testing.T) {
		n, err := syns.ImportBulk(ctx, []domain.Synonym{
			{Alias: "Depot Nord", Street: "Lagerweg 1", PostalCode: "01067", City: "Dresden"},
			{Alias: "", Street: "kaputt"}, // empty alias fails, batch continues
			{Alias: "Depot Süd", Street: "Lagerweg 9", PostalCode: "01069", City: "Dresden"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestSynonymCSV(t *testing.T) {
	ctx := context.Background()
	syns := NewSynonymStore(testDB(t), clockwork.NewFakeClock(), testLogger())

	csvIn := strings.Join([]string{
		"alias,street,postal_code,city,lat,lon",
		`Sven - PF,An der Triebe 25,01468,Moritzburg,51.006,13.8196`,
		`Depot Nord,Lagerweg 1,01067,Dresden,,`,
		`broken row`,
		`Bad Coords,Weg 1,01067,Dresden,abc,def`,
	}, "\n")

	n, err := syns.ImportCSV(ctx, strings.NewReader(csvIn))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := syns.Lookup(ctx, "Sven - PF")
	require.NoError(t, err)
	require.NotNil(t, got.Coord)
	assert.Equal(t, 51.006, got.Coord.Lat)

	t.Run("export round-trips and hashes content", func(t *testing.T) {
		var out strings.Builder
		count, hash1, err := syns.ExportCSV(ctx, &out)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Len(t, hash1, 64)
		assert.Contains(t, out.String(), "Sven - PF")

		// Unchanged data produces the same hash; a mutation changes it.
		var again strings.Builder
		_, hash2, err := syns.ExportCSV(ctx, &again)
		require.NoError(t, err)
		assert.Equal(t, hash1, hash2)

		require.NoError(t, syns.Upsert(ctx, domain.Synonym{Alias: "Depot Ost", Street: "Am Gleis 2", PostalCode: "01097", City: "Dresden"}))
		var third strings.Builder
		_, hash3, err := syns.ExportCSV(ctx, &third)
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash3)
	})
}

func TestFailureLedger(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC))
	backoff := func(attempt int) time.Duration { return time.Duration(attempt) * time.Minute }
	ledger := NewFailureLedger(testDB(t), clock, backoff)

	const key = "unknown weg 1|99999|nirgendwo"

	t.Run("absent returns ErrNotFound", func(t *testing.T) {
		_, err := ledger.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("first failure creates pending record", func(t *testing.T) {
		rec, err := ledger.RecordFailure(ctx, key, "no_result")
		require.NoError(t, err)
		assert.Equal(t, 1, rec.AttemptCount)
		require.NotNil(t, rec.NextAttempt)
		assert.Equal(t, clock.Now().UTC().Add(time.Minute), rec.NextAttempt.UTC())
		assert.False(t, rec.Escalated)
	})

	t.Run("subsequent failure increments and pushes next attempt", func(t *testing.T) {
		clock.Advance(5 * time.Minute)
		rec, err := ledger.RecordFailure(ctx, key, "timeout")
		require.NoError(t, err)
		assert.Equal(t, 2, rec.AttemptCount)
		assert.Equal(t, "timeout", rec.Reason)
		assert.Equal(t, clock.Now().UTC().Add(2*time.Minute), rec.NextAttempt.UTC())

		stored, err := ledger.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.AttemptCount)
		assert.True(t, stored.FirstSeen.Before(stored.LastSeen))
	})

	t.Run("eligibility boundary is inclusive", func(t *testing.T) {
		rec, err := ledger.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, rec.Eligible(rec.NextAttempt.Add(-time.Second)))
		assert.True(t, rec.Eligible(*rec.NextAttempt))
		assert.True(t, rec.Eligible(rec.NextAttempt.Add(time.Second)))
	})

	t.Run("escalated records are never eligible", func(t *testing.T) {
		require.NoError(t, ledger.MarkEscalated(ctx, key))
		rec, err := ledger.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, rec.Escalated)
		assert.False(t, rec.Eligible(rec.NextAttempt.Add(24*time.Hour)))
	})

	t.Run("delete on success", func(t *testing.T) {
		require.NoError(t, ledger.Delete(ctx, key))
		_, err := ledger.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestManualQueue(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	queue := NewManualQueue(testDB(t), clock)

	entry := domain.ManualQueueEntry{
		Key:         "unknown weg 1|99999|nirgendwo",
		RawAddress:  "Unknown Weg 1, 99999 Nirgendwo",
		DisplayName: "Mystery GmbH",
		Reason:      "no_result",
	}

	t.Run("enqueue is idempotent per key", func(t *testing.T) {
		require.NoError(t, queue.Enqueue(ctx, entry))
		require.NoError(t, queue.Enqueue(ctx, entry))

		open, err := queue.ListOpen(ctx, 10)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "Mystery GmbH", open[0].DisplayName)
	})

	t.Run("is open", func(t *testing.T) {
		ok, err := queue.IsOpen(ctx, entry.Key)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = queue.IsOpen(ctx, "other|key|entirely")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("close removes and reports", func(t *testing.T) {
		removed, err := queue.Close(ctx, entry.Key)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = queue.Close(ctx, entry.Key)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}
