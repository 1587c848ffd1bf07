// Package api implements the REST collaborators of the chat session: the
// non-streaming fallback call and the file upload endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/agentchat/internal/errors"
	"github.com/diogo/agentchat/internal/models"
)

// Generation can be slow; the fallback call returns only once the full
// response is ready.
const defaultTimeout = 300 * time.Second

// Client talks to the Agent Chat REST endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient swaps the underlying HTTP client (tests)
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a client for the given base endpoint
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base endpoint
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat performs the non-streaming request/response call. Given the same
// payload shape as the streaming path it returns one complete response, or
// fails with a transport or HTTP error.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage, model string) (*models.ChatResponse, error) {
	endpoint := c.baseURL + models.PathChat

	body, err := json.Marshal(models.ChatRequest{Messages: messages, Model: model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkError("chat", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apierrors.NewNetworkError("chat", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apierrors.NewAPIError(resp.StatusCode, endpoint, errorDetail(raw))
	}

	var out models.ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apierrors.NewAPIError(resp.StatusCode, endpoint, "malformed response body")
	}
	return &out, nil
}

// Health checks the backend liveness endpoint
func (c *Client) Health(ctx context.Context) error {
	endpoint := c.baseURL + models.PathHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierrors.NewNetworkError("health", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apierrors.NewAPIError(resp.StatusCode, endpoint, "backend unhealthy")
	}
	return nil
}

// errorDetail extracts FastAPI's {"detail": ...} message from an error
// body, falling back to the raw text
func errorDetail(raw []byte) string {
	if detail := gjson.GetBytes(raw, "detail"); detail.Exists() {
		return detail.String()
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "request failed"
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
