// Package marketplace provides a client for the search gateway, the sidecar
// service that talks to the marketplaces themselves and returns normalized
// listings. The agent never parses marketplace responses directly.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aliskhannn/market-alerts/internal/model"
)

// Client represents a search gateway client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new gateway client for the given base URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type searchResponse struct {
	Listings []model.Listing `json:"listings"`
}

// Search runs a marketplace query through the gateway and returns the
// normalized listings.
func (c *Client) Search(ctx context.Context, source string, terms []string, filters model.SearchFilters) ([]model.Listing, error) {
	q := url.Values{}
	q.Set("source", source)
	q.Set("q", strings.Join(terms, " "))

	if filters.PriceMin > 0 {
		q.Set("price_min", strconv.FormatFloat(filters.PriceMin, 'f', 2, 64))
	}
	if filters.PriceMax > 0 {
		q.Set("price_max", strconv.FormatFloat(filters.PriceMax, 'f', 2, 64))
	}
	if filters.Condition != "" {
		q.Set("condition", filters.Condition)
	}
	if filters.ListingType != "" {
		q.Set("listing_type", filters.ListingType)
	}
	if filters.Location != "" {
		q.Set("location", filters.Location)
	}

	var res searchResponse
	if err := c.get(ctx, "/search?"+q.Encode(), &res); err != nil {
		return nil, err
	}

	return res.Listings, nil
}

// FetchPrice returns the current price quote for a single item.
func (c *Client) FetchPrice(ctx context.Context, itemID string) (model.PriceQuote, error) {
	var quote model.PriceQuote
	if err := c.get(ctx, "/items/"+url.PathEscape(itemID)+"/price", &quote); err != nil {
		return model.PriceQuote{}, err
	}

	return quote, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway error: %s: %s", resp.Status, detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
