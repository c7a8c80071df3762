package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "revgeo:"

type Config struct {
	BaseURL   string
	UserAgent string
	Language  string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// Client reverse-geocodes coordinates against a Nominatim-compatible provider.
// Results are cached in redis when a client is supplied; concurrent lookups for the
// same coordinate share one provider call.
type Client struct {
	cfg   Config
	http  *http.Client
	cache *redis.Client
	group singleflight.Group
}

type reverseResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// NewClient builds a client. cache may be nil.
func NewClient(cfg Config, cache *redis.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
	}
}

// ReverseGeocode returns the display name for c. Any failure is reported as
// location.ErrGeocodeUnavailable.
func (c *Client) ReverseGeocode(ctx context.Context, coord geo.Coordinate) (string, error) {
	metrics.GeocodeRequestsTotal.Inc()
	key := cacheKey(coord)

	if addr, ok := c.cached(ctx, key); ok {
		metrics.GeocodeCacheHitsTotal.Inc()
		return addr, nil
	}

	// the shared lookup outlives any single caller; each caller only stops waiting
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()

		addr, err := c.fetch(fctx, coord)
		if err != nil {
			return "", err
		}
		c.store(fctx, key, addr)
		return addr, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.GeocodeFailTotal.Inc()
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		metrics.GeocodeFailTotal.Inc()
		return "", fmt.Errorf("%w: %v", location.ErrGeocodeUnavailable, ctx.Err())
	}
}

// Resolve returns the address for c, falling back to the formatted coordinate.
func (c *Client) Resolve(ctx context.Context, coord geo.Coordinate) string {
	addr, err := c.ReverseGeocode(ctx, coord)
	if err != nil {
		slog.Warn("Reverse geocode failed, using coordinates", "coordinate", coord.String(), "error", err)
		return coord.String()
	}
	return addr
}

func (c *Client) fetch(ctx context.Context, coord geo.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", location.ErrGeocodeUnavailable, err)
	}
	// Nominatim's usage policy rejects requests without an identifying agent.
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Language != "" {
		req.Header.Set("Accept-Language", c.cfg.Language)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.GeocodeDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", location.ErrGeocodeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: provider returned status %d", location.ErrGeocodeUnavailable, resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", location.ErrGeocodeUnavailable, err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("%w: %s", location.ErrGeocodeUnavailable, body.Error)
	}

	addr := strings.TrimSpace(body.DisplayName)
	if addr == "" {
		return "", fmt.Errorf("%w: empty display_name", location.ErrGeocodeUnavailable)
	}
	return addr, nil
}

func (c *Client) cached(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	s, err := c.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Geocode cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return s, s != ""
}

func (c *Client) store(ctx context.Context, key, addr string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, addr, c.cfg.CacheTTL).Err(); err != nil {
		slog.Warn("Geocode cache write failed", "key", key, "error", err)
	}
}

// cacheKey quantises to six decimals (~0.1 m), the same precision the pipeline debounces at.
func cacheKey(c geo.Coordinate) string {
	return fmt.Sprintf("%s%.6f:%.6f", cacheKeyPrefix, c.Latitude, c.Longitude)
}
