package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// Client wraps the marketplace backend endpoints this process calls. Today
// that is only push-token registration.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend base URL is required")
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// RegisterTokenRequest carries one (user, device, token) registration.
type RegisterTokenRequest struct {
	UserID   string
	DeviceID string
	Token    string
}

// RegisterToken registers the device's push token for the signed-in user.
// The endpoint is a PUT and idempotent server-side; re-sending an already
// acknowledged pair is a no-op.
func (c *Client) RegisterToken(ctx context.Context, req RegisterTokenRequest) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user ID is required")
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "device ID is required")
	}
	if strings.TrimSpace(req.Token) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "push token is required")
	}

	endpoint := fmt.Sprintf("%s/v1/devices/%s/push-token", c.baseURL, url.PathEscape(req.DeviceID))
	payload, err := json.Marshal(map[string]string{
		"userId": req.UserID,
		"token":  req.Token,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamSync, err, "marshal token registration")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamSync, err, "build token registration request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamSync, err, "execute token registration request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(
			pkgerrors.CodeUpstreamSync,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"token registration failed",
		)
	}
	return nil
}
