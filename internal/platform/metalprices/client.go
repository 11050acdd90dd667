// Package metalprices is the REST client for the upstream precious metals
// spot price feed.
package metalprices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// Metals served by the feed. Symbols are lowercase metal names.
var Metals = []string{"gold", "silver", "platinum", "palladium"}

// Client is the REST client for the spot price API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new spot price API client.
//
// baseURL is the API root, e.g. "https://api.metals.dev".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SpotQuote is a single metal's spot price per troy ounce in USD.
type SpotQuote struct {
	Metal     string
	Price     float64
	Timestamp time.Time
}

type apiSpotResponse struct {
	Prices    map[string]float64 `json:"prices"`
	Timestamp int64              `json:"timestamp"`
}

// GetSpotPrices returns the current spot price for each requested metal.
// Metals the feed does not quote are omitted from the result.
func (c *Client) GetSpotPrices(ctx context.Context, metals []string) ([]SpotQuote, error) {
	params := url.Values{}
	params.Set("metals", strings.Join(metals, ","))
	params.Set("currency", "USD")

	path := "/v1/spot?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("metalprices: get spot prices: %w", err)
	}

	var resp apiSpotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("metalprices: decode spot prices: %w", err)
	}

	ts := time.Unix(resp.Timestamp, 0).UTC()
	if resp.Timestamp == 0 {
		ts = time.Now().UTC()
	}

	quotes := make([]SpotQuote, 0, len(metals))
	for _, m := range metals {
		price, ok := resp.Prices[m]
		if !ok {
			continue
		}
		quotes = append(quotes, SpotQuote{Metal: m, Price: price, Timestamp: ts})
	}

	return quotes, nil
}

// GetSpotPrice returns the current spot price for a single metal.
// It returns domain.ErrNotFound when the feed does not quote the metal.
func (c *Client) GetSpotPrice(ctx context.Context, metal string) (SpotQuote, error) {
	quotes, err := c.GetSpotPrices(ctx, []string{metal})
	if err != nil {
		return SpotQuote{}, err
	}
	if len(quotes) == 0 {
		return SpotQuote{}, fmt.Errorf("metalprices: %w: metal=%s", domain.ErrNotFound, metal)
	}
	return quotes[0], nil
}

// doGet sends an authenticated GET request to the spot price API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
