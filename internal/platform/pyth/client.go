// Package pyth is a REST client for the Pyth Hermes price service. It
// exposes the single call the resolver needs: the latest parsed price for a
// feed id, as a (mantissa, exponent) pair, plus the fixed-point scaling used
// to produce on-chain settlement values.
package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/swivlabs/swivd/internal/domain"
)

// DefaultBaseURL is the public Hermes endpoint.
const DefaultBaseURL = "https://hermes.pyth.network"

// Price is the latest oracle price for one feed. The real value is
// Mantissa * 10^Exponent.
type Price struct {
	FeedID   string
	Mantissa int64
	Exponent int32
	Publish  time.Time
}

// Client fetches prices from a Hermes instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Hermes client. An empty baseURL selects the public
// endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// apiPrice mirrors the price member of a parsed Hermes update. The mantissa
// arrives as a decimal string.
type apiPrice struct {
	Price       string `json:"price"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type apiParsedUpdate struct {
	ID    string    `json:"id"`
	Price *apiPrice `json:"price"`
}

type latestPriceResponse struct {
	Parsed []apiParsedUpdate `json:"parsed"`
}

// GetPrice returns the latest parsed price for the feed. It fails with
// domain.ErrMissingFeedID when feedID is empty and domain.ErrOracleUnavailable
// when Hermes has no parsed result for the feed.
func (c *Client) GetPrice(ctx context.Context, feedID string) (Price, error) {
	if feedID == "" {
		return Price{}, domain.ErrMissingFeedID
	}

	params := url.Values{}
	params.Add("ids[]", feedID)
	params.Set("parsed", "true")

	reqURL := c.baseURL + "/v2/updates/price/latest?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Price{}, fmt.Errorf("pyth: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Price{}, fmt.Errorf("pyth: get price %s: %w", feedID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Price{}, fmt.Errorf("pyth: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Price{}, fmt.Errorf("pyth: get price %s: unexpected status %d", feedID, resp.StatusCode)
	}

	var parsed latestPriceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Price{}, fmt.Errorf("pyth: decode response: %w", err)
	}
	if len(parsed.Parsed) == 0 || parsed.Parsed[0].Price == nil {
		return Price{}, fmt.Errorf("pyth: feed %s: %w", feedID, domain.ErrOracleUnavailable)
	}

	first := parsed.Parsed[0]
	var mantissa int64
	if _, err := fmt.Sscan(first.Price.Price, &mantissa); err != nil {
		return Price{}, fmt.Errorf("pyth: feed %s: parse mantissa %q: %w", feedID, first.Price.Price, err)
	}

	return Price{
		FeedID:   first.ID,
		Mantissa: mantissa,
		Exponent: first.Price.Expo,
		Publish:  time.Unix(first.Price.PublishTime, 0).UTC(),
	}, nil
}
