package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VisitRecord mirrors the daemon's visit history entry.
type VisitRecord struct {
	VisitID    string    `json:"visit_id"`
	URL        string    `json:"url"`
	Reason     string    `json:"reason"`
	Duration   int       `json:"duration"`
	Timestamp  time.Time `json:"timestamp"`
	Reflection *string   `json:"reflection,omitempty"`
}

// Verdict values returned by Decide.
const (
	VerdictAllow                = "allow"
	VerdictRequireJustification = "require_justification"
	VerdictTemporaryBlocked     = "temporary_blocked"
)

// Client talks to a running waypoint daemon over its HTTP message API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new daemon API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Decide asks for the verdict on one navigation.
func (c *Client) Decide(ctx context.Context, tabID int, url string) (verdict, redirectURL string, err error) {
	var out struct {
		Verdict     string `json:"verdict"`
		RedirectURL string `json:"redirect_url"`
	}
	body := map[string]any{"tab_id": tabID, "url": url}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/gate/decide", body, &out); err != nil {
		return "", "", fmt.Errorf("client.Decide: %w", err)
	}
	return out.Verdict, out.RedirectURL, nil
}

// Allow grants a timed session for a tab.
func (c *Client) Allow(ctx context.Context, tabID int, targetURL, reason string, duration int) (string, error) {
	var out struct {
		VisitID string `json:"visit_id"`
	}
	body := map[string]any{
		"tab_id":     tabID,
		"target_url": targetURL,
		"reason":     reason,
		"duration":   duration,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/gate/allow", body, &out); err != nil {
		return "", fmt.Errorf("client.Allow: %w", err)
	}
	return out.VisitID, nil
}

// Block puts the site a URL belongs to into cool-down.
func (c *Client) Block(ctx context.Context, targetURL string, duration int) error {
	body := map[string]any{"target_url": targetURL, "duration": duration}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/gate/block", body, nil); err != nil {
		return fmt.Errorf("client.Block: %w", err)
	}
	return nil
}

// History fetches the full visit history.
func (c *Client) History(ctx context.Context) ([]VisitRecord, error) {
	var out struct {
		History []VisitRecord `json:"history"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/visits", nil, &out); err != nil {
		return nil, fmt.Errorf("client.History: %w", err)
	}
	return out.History, nil
}

// StoreReflection attaches a reflection to a visit. found reports whether the
// visit exists.
func (c *Client) StoreReflection(ctx context.Context, visitID, reflection string) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	body := map[string]any{"reflection": reflection}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/visits/"+visitID+"/reflection", body, &out); err != nil {
		return false, fmt.Errorf("client.StoreReflection: %w", err)
	}
	return out.Success, nil
}

// Sites fetches the watched-site list.
func (c *Client) Sites(ctx context.Context) ([]string, error) {
	var out struct {
		Sites []string `json:"sites"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sites", nil, &out); err != nil {
		return nil, fmt.Errorf("client.Sites: %w", err)
	}
	return out.Sites, nil
}

// UpdateSites replaces the watched-site list and returns the normalized set.
func (c *Client) UpdateSites(ctx context.Context, sites []string) ([]string, error) {
	var out struct {
		Sites []string `json:"sites"`
	}
	body := map[string]any{"sites": sites}
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/sites", body, &out); err != nil {
		return nil, fmt.Errorf("client.UpdateSites: %w", err)
	}
	return out.Sites, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
