// Package weather is a thin, best-effort client for the weather oracle the
// forecast engine consults for its volume adjustment. Call failures are
// always returned as errors, never swallowed here; the forecaster is
// responsible for treating them as best-effort.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches current weather descriptions by city.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        zerolog.Logger
}

// NewClient builds a weather oracle Client.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		log:        log.With().Str("client", "weather").Logger(),
	}
}

type currentWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Describe returns the current weather's free-text description for a city.
func (c *Client) Describe(ctx context.Context, city string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("weather oracle not configured")
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)

	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call weather oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather oracle returned status %d", resp.StatusCode)
	}

	var parsed currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode weather response: %w", err)
	}
	if len(parsed.Weather) == 0 {
		return "", fmt.Errorf("weather oracle returned no conditions for %q", city)
	}

	return parsed.Weather[0].Description, nil
}
