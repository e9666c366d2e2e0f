package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateValidate(t *testing.T) {
	t.Run("valid pair", func(t *testing.T) {
		assert.NoError(t, Coordinate{Lat: 51.006, Lon: 13.8196}.Validate())
	})

	t.Run("boundary values", func(t *testing.T) {
		assert.NoError(t, Coordinate{Lat: 90, Lon: 180}.Validate())
		assert.NoError(t, Coordinate{Lat: -90, Lon: -180}.Validate())
	})

	t.Run("lat out of range", func(t *testing.T) {
		err := Coordinate{Lat: 91, Lon: 0}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	})

	t.Run("lon out of range", func(t *testing.T) {
		err := Coordinate{Lat: 0, Lon: 200}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	})

	t.Run("NaN and Inf rejected", func(t *testing.T) {
		assert.ErrorIs(t, Coordinate{Lat: math.NaN(), Lon: 0}.Validate(), ErrInvalidCoordinate)
		assert.ErrorIs(t, Coordinate{Lat: 0, Lon: math.Inf(1)}.Validate(), ErrInvalidCoordinate)
	})
}

func TestStopPayload(t *testing.T) {
	t.Run("valid stop carries both coordinates", func(t *testing.T) {
		s := Stop{
			ID:              "stop-1",
			DisplayName:     "Sven Teichmann",
			ResolvedAddress: "An der Triebe 25, 01468 Moritzburg",
			Coord:           &Coordinate{Lat: 51.104, Lon: 13.6136},
			GeoSource:       SourceCache,
			Status:          StatusResolved,
			Valid:           true,
		}
		p := s.Payload()

		assert.Equal(t, 51.104, p["lat"])
		assert.Equal(t, 13.6136, p["lon"])
		assert.Equal(t, "cache", p["geo_source"])
		assert.Equal(t, true, p["valid"])
	})

	t.Run("invalid stop has neither coordinate", func(t *testing.T) {
		p := Stop{ID: "stop-2", Status: StatusBackoffActive}.Payload()

		assert.NotContains(t, p, "lat")
		assert.NotContains(t, p, "lon")
		assert.Equal(t, false, p["valid"])
	})

	t.Run("extra fields merge without overwriting reserved keys", func(t *testing.T) {
		s := Stop{
			ID:     "stop-3",
			Status: StatusResolved,
			Valid:  true,
			Coord:  &Coordinate{Lat: 1, Lon: 2},
			Extra: map[string]any{
				"tour": "Tour 7",
				"lat":  999.0, // must not clobber the resolved value
				"id":   "spoofed",
			},
		}
		p := s.Payload()

		assert.Equal(t, "Tour 7", p["tour"])
		assert.Equal(t, 1.0, p["lat"])
		assert.Equal(t, "stop-3", p["id"])
	})
}
