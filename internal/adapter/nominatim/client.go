// Package nominatim implements domain.Geocoder against the OSM Nominatim
// search API. The public instance allows at most one request per second and
// requires an identifying User-Agent with a contact address; both are
// enforced here so no caller can violate the usage policy.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tourkit/address-resolver/internal/domain"
	"github.com/tourkit/address-resolver/internal/observability"
)

// Client queries a Nominatim endpoint, rate-limited client-side.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Nominatim client. rps caps outgoing requests per
// second; contact goes into the User-Agent per the Nominatim usage policy.
func NewClient(baseURL, contact string, rps float64, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  fmt.Sprintf("address-resolver/1.0 (%s)", contact),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		metrics:    metrics,
	}
}

// Geocode resolves a free-form address to coordinates. Returns
// domain.ErrNoResult when the provider finds nothing.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Coordinate{}, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{
		"q":      {address},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.GeocodeDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return domain.Coordinate{}, fmt.Errorf("%w: status %d: %s", domain.ErrGeocoderUnavailable, resp.StatusCode, body)
		}
		return domain.Coordinate{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.Coordinate{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return domain.Coordinate{}, domain.ErrNoResult
	}

	coord, err := places[0].coordinate()
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("parse coordinates: %w", err)
	}

	c.logger.Debug("geocoded address",
		"address", address,
		"lat", coord.Lat,
		"lon", coord.Lon,
		"display_name", places[0].DisplayName,
	)
	return coord, nil
}

// Nominatim API response types. Coordinates arrive as decimal strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p place) coordinate() (domain.Coordinate, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("lon %q: %w", p.Lon, err)
	}
	coord := domain.Coordinate{Lat: lat, Lon: lon}
	if err := coord.Validate(); err != nil {
		return domain.Coordinate{}, err
	}
	return coord, nil
}
