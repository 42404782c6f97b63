// Package client is the thin request/response wrapper around the remote
// node store's REST API. One Client is scoped to a single drive owner and
// carries a static bearer credential. The client maps store responses onto
// a typed error taxonomy and paces outbound calls against the store's rate
// limiter; it never retries on its own.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arborlabs/arbor/models"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	Endpoint   string // base URL of the store, e.g. "https://drive.api.example.org/v1"
	Owner      string // drive owner; all node paths are scoped under it
	APIKey     string
	SkipVerify bool
	Timeout    time.Duration
	Logger     *slog.Logger

	// RateLimit paces outbound requests (requests per second) so a chatty
	// caller does not trip the store's limiter. Zero disables pacing.
	RateLimit float64
	Burst     int
}

// Client is the API client for the node store.
type Client struct {
	baseURL    *url.URL
	owner      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(cfg *Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("owner cannot be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("apiKey cannot be empty")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint %q: %w", cfg.Endpoint, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		owner:   cfg.Owner,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SkipVerify},
			},
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithGroup("store_client"),
	}, nil
}

// Owner returns the drive owner this client is scoped to.
func (c *Client) Owner() string { return c.owner }

func (c *Client) doRequest(ctx context.Context, method, path string, queryParams url.Values, body any, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(queryParams) > 0 {
		reqURL.RawQuery = queryParams.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body for %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.translateStatus(method, path, resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response body for %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) translateStatus(method, path string, resp *http.Response) error {
	var errResp errorResponse
	raw, readErr := io.ReadAll(resp.Body)
	if readErr == nil {
		_ = json.Unmarshal(raw, &errResp)
	}

	c.logger.Warn("Received non-2xx status code",
		"method", method, "path", path,
		"status_code", resp.StatusCode, "store_error", errResp.Error)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ErrRateLimited{
			RetryAfter: time.Duration(errResp.RetryAfter) * time.Millisecond,
			Message:    errResp.Error,
		}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return ErrTooLarge
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrStoreUnavailable, resp.StatusCode)
	}
	if errResp.Error != "" {
		return fmt.Errorf("%w: %s (status %d)", ErrBadRequest, errResp.Error, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d", ErrBadRequest, resp.StatusCode)
}

func (c *Client) nodePath(ids ...string) string {
	if len(ids) == 0 {
		return "filesystem/" + c.owner
	}
	return "filesystem/" + c.owner + "/" + strings.Join(ids, "/")
}

type nodesResponse struct {
	Nodes []models.Node `json:"nodes"`
}

type createResponse struct {
	Node models.Node `json:"node"`
}

// GetNodes fetches nodes by id. The result preserves request order; ids the
// store does not know are simply absent, callers must detect missing nodes
// themselves.
func (c *Client) GetNodes(ctx context.Context, ids ...string) ([]models.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("node id cannot be empty")
		}
	}
	var resp nodesResponse
	if err := c.doRequest(ctx, http.MethodGet, c.nodePath(ids...), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

// CreateNode creates a standalone node. Linking it under a directory is a
// separate store write; until then the node is reachable only by id.
func (c *Client) CreateNode(ctx context.Context, draft *models.NodeDraft) (*models.Node, error) {
	if draft == nil {
		return nil, fmt.Errorf("draft cannot be nil")
	}
	var resp createResponse
	if err := c.doRequest(ctx, http.MethodPost, c.nodePath(), nil, draft, &resp); err != nil {
		return nil, err
	}
	return &resp.Node, nil
}

// UpdateNode applies a partial update. Every update touches the node's
// modifiedAt on the server side.
func (c *Client) UpdateNode(ctx context.Context, id string, patch *models.NodePatch) error {
	if id == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if patch == nil || patch.Empty() {
		return nil
	}
	return c.doRequest(ctx, http.MethodPut, c.nodePath(id), nil, patch.Fields(), nil)
}

// DeleteNodes removes node records by id.
func (c *Client) DeleteNodes(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("node id cannot be empty")
		}
	}
	return c.doRequest(ctx, http.MethodDelete, c.nodePath(ids...), nil, nil, nil)
}

// Ping checks the store is reachable with the configured credential.
func (c *Client) Ping(ctx context.Context) error {
	var resp nodesResponse
	return c.doRequest(ctx, http.MethodGet, c.nodePath()+"/search", nil, nil, &resp)
}
