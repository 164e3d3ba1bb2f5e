// Package geocode proxies place-name lookups to a Nominatim-style
// resolver. The resolvers are free public services, so the client carries a
// fallback endpoint and treats both as unreliable.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnavailable is returned when every resolver attempt failed.
var ErrUnavailable = errors.New("geocoding service unavailable")

// Place is one name→coordinate resolution.
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type Client struct {
	// Endpoints is the fallback chain of search URLs.
	Endpoints  []string
	MaxResults int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search resolves a free-form place name. Endpoints are tried in order;
// each failure is logged and the next endpoint attempted.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	if query == "" {
		return nil, errors.New("query required")
	}
	limit := c.MaxResults
	if limit <= 0 {
		limit = 5
	}
	var attemptErrs []error
	for _, endpoint := range c.Endpoints {
		places, err := c.search(ctx, endpoint, query, limit)
		if err == nil {
			return places, nil
		}
		c.logger().Warn("geocode endpoint failed, trying fallback", "endpoint", endpoint, "error", err)
		attemptErrs = append(attemptErrs, err)
	}
	c.logger().Error("all geocode endpoints failed", "query", query, "error", errors.Join(attemptErrs...))
	return nil, ErrUnavailable
}

func (c *Client) search(ctx context.Context, endpoint, query string, limit int) ([]Place, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tripline/1.0")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("geocode: status %d", resp.StatusCode)
	}
	var raw []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}
	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}
		places = append(places, Place{Name: r.DisplayName, Lat: lat, Lon: lon})
	}
	return places, nil
}
