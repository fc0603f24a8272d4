package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrShareNotFound = errors.New("share link not found")
	ErrShareExpired  = errors.New("share link expired")
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve fetches the series and episode list behind a share token.
func (c *Client) Resolve(ctx context.Context, shareToken string) (*WatchBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/watch/"+shareToken, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrShareNotFound
	case http.StatusGone:
		return nil, ErrShareExpired
	default:
		return nil, fmt.Errorf("unexpected catalog status: %d", resp.StatusCode)
	}

	var bundle WatchBundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode watch bundle: %w", err)
	}

	return &bundle, nil
}
