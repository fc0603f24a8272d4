package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/selfcinema/server/internal/domain"
)

// APIClient talks to the relay/synchronizer polling endpoints. Every call is
// a plain request/response; idempotency lives in the payloads (message ids,
// versions), so a dropped or repeated request is harmless.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type PostMessageResult struct {
	Timestamp int64 `json:"timestamp"`
	Duplicate bool  `json:"duplicate"`
}

type PlaybackResult struct {
	URL        string `json:"url"`
	Version    int64  `json:"version"`
	SameSource bool   `json:"same_source"`
}

type SetPlaybackResult struct {
	Version   int64  `json:"version"`
	HostToken string `json:"host_token"`
}

func (c *APIClient) PostMessage(ctx context.Context, roomID string, msg domain.ChatMessage) (PostMessageResult, error) {
	var result PostMessageResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/messages", roomID), "", msg, &result); err != nil {
		return PostMessageResult{}, err
	}

	return result, nil
}

func (c *APIClient) GetMessages(ctx context.Context, roomID string, since int64) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	path := fmt.Sprintf("/rooms/%s/messages?since=%s", roomID, strconv.FormatInt(since, 10))
	if err := c.do(ctx, http.MethodGet, path, "", nil, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetPlayback returns nil when the room reports no change.
func (c *APIClient) GetPlayback(ctx context.Context, roomID string, version int64, currentURL string) (*PlaybackResult, error) {
	query := url.Values{}
	query.Set("version", strconv.FormatInt(version, 10))
	query.Set("currentUrl", currentURL)
	path := fmt.Sprintf("/rooms/%s/playback?%s", roomID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get playback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var envelope struct {
		Data PlaybackResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode playback: %w", err)
	}

	return &envelope.Data, nil
}

func (c *APIClient) SetPlayback(ctx context.Context, roomID, url, hostToken string) (SetPlaybackResult, error) {
	var result SetPlaybackResult
	body := map[string]string{"url": url}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/playback", roomID), hostToken, body, &result); err != nil {
		return SetPlaybackResult{}, err
	}

	return result, nil
}

func (c *APIClient) OnlineMembers(ctx context.Context, roomID string) ([]string, error) {
	var members []string
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%s/members", roomID), "", nil, &members); err != nil {
		return nil, err
	}

	return members, nil
}

func (c *APIClient) do(ctx context.Context, method, path, hostToken string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if hostToken != "" {
		req.Header.Set("X-Host-Token", hostToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: out}

	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
