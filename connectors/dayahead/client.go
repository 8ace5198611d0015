// Package dayahead fetches day-ahead market prices from an OAuth2-protected
// wholesale market API.
package dayahead

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/auth"
	"github.com/FlexMeasures/flexmeasures-sub003/connectors"
)

// Client queries a wholesale market price endpoint.
type Client struct {
	baseURL string
	auth    *auth.ClientCred
	http    *http.Client
}

// Option adjusts the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a price client for the given endpoint. The auth client may be
// nil for endpoints without authentication.
func New(baseURL string, authClient *auth.ClientCred, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		auth:    authClient,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response is the wire format of the market API.
type response struct {
	DayAheadPrices []struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Values    []struct {
			StartDate string  `json:"start_date"`
			EndDate   string  `json:"end_date"`
			Price     float64 `json:"price"`
		} `json:"values"`
	} `json:"day_ahead_prices"`
}

// Prices fetches day-ahead prices for [start, end).
func (c *Client) Prices(ctx context.Context, start, end time.Time) ([]connectors.PricePoint, error) {
	q := url.Values{}
	q.Set("start_date", start.Format(time.RFC3339))
	q.Set("end_date", end.Format(time.RFC3339))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var market response
	if err := json.Unmarshal(body, &market); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var points []connectors.PricePoint
	for _, window := range market.DayAheadPrices {
		for _, v := range window.Values {
			ts, err := time.Parse(time.RFC3339, v.StartDate)
			if err != nil {
				return nil, fmt.Errorf("invalid start date %q: %w", v.StartDate, err)
			}
			points = append(points, connectors.PricePoint{Start: ts, Price: v.Price})
		}
	}
	return points, nil
}
