package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/reporting"
)

const apiPrefix = "/api/v1"

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Ensure Client can drive a reporting guard
var _ reporting.Reporter = (*Client)(nil)

// NewClient creates a new API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken updates the client's token
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// APIError represents an error response from the API
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Do performs an HTTP request against an API path
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			errResp.Error.StatusCode = resp.StatusCode
			return &errResp.Error
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       http.StatusText(resp.StatusCode),
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	// Parse successful response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Register creates an account
func (c *Client) Register(ctx context.Context, name, email, secret string) (AuthResult, error) {
	req := map[string]string{"name": name, "email": email, "secret": secret}
	var result AuthResult
	err := c.Post(ctx, "/accounts", req, &result)
	return result, err
}

// Login opens a session by name or email
func (c *Client) Login(ctx context.Context, name, email, secret string) (AuthResult, error) {
	req := map[string]string{"name": name, "email": email, "secret": secret}
	var result AuthResult
	err := c.Post(ctx, "/sessions", req, &result)
	return result, err
}

// Me returns the authenticated player
func (c *Client) Me(ctx context.Context) (Player, error) {
	var result PlayerResult
	err := c.Get(ctx, "/me", &result)
	return result.Player, err
}

// GetPlayer returns a player by id
func (c *Client) GetPlayer(ctx context.Context, id string) (Player, error) {
	var result PlayerResult
	err := c.Get(ctx, "/players/"+url.PathEscape(id), &result)
	return result.Player, err
}

// ReportOutcome records an outcome for the authenticated player
func (c *Client) ReportOutcome(ctx context.Context, outcome model.Outcome) (*model.Player, error) {
	var result PlayerResult
	req := map[string]string{"result": string(outcome)}
	if err := c.Post(ctx, "/players/me/stats", req, &result); err != nil {
		return nil, err
	}
	return result.Player.toModel(), nil
}

// Leaderboard returns the ranked players. A limit of 0 uses the server default.
func (c *Client) Leaderboard(ctx context.Context, limit int) (Leaderboard, error) {
	path := "/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result Leaderboard
	err := c.Get(ctx, path, &result)
	return result, err
}

// Health checks the server
func (c *Client) Health(ctx context.Context) (HealthResult, error) {
	var result HealthResult
	err := c.Get(ctx, "/health", &result)
	return result, err
}
