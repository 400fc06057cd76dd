// Package client is a Go client for the tasker API. It keeps the session in
// a TokenStore and refreshes an expired access token transparently.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxResponseBytes = 4 << 20

// Client calls the tasker API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenStore

	// refreshMu serializes refreshes so concurrent 401s rotate once.
	refreshMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore sets where the session is kept. The default is in memory.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  NewMemoryTokenStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call describes one API request.
type call struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	authed bool
}

// do sends the call. Authenticated calls that get a 401 refresh the session
// once and retry once.
func (c *Client) do(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	if !cl.authed {
		status, body, err := c.send(ctx, cl, payload, "")
		if err != nil {
			return err
		}
		return decodeResponse(status, body, cl.out)
	}

	tokens, err := c.tokens.Load()
	if err != nil {
		return err
	}
	if tokens == nil || tokens.AccessToken == "" {
		return ErrUnauthorized
	}

	status, body, err := c.send(ctx, cl, payload, tokens.AccessToken)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		access, err := c.refresh(ctx, tokens.AccessToken)
		if err != nil {
			return err
		}
		if status, body, err = c.send(ctx, cl, payload, access); err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			_ = c.tokens.Clear()
			return ErrUnauthorized
		}
	}
	return decodeResponse(status, body, cl.out)
}

func (c *Client) send(ctx context.Context, cl call, payload []byte, access string) (int, []byte, error) {
	u := *c.baseURL
	u.Path += cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, ErrTransport
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, ErrTransport
	}
	return resp.StatusCode, data, nil
}

// refresh rotates the token pair. stale is the access token that was
// rejected; if another goroutine already rotated it, the new one is reused.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tokens, err := c.tokens.Load()
	if err != nil {
		return "", err
	}
	if tokens == nil || tokens.RefreshToken == "" {
		return "", ErrUnauthorized
	}
	if tokens.AccessToken != stale {
		return tokens.AccessToken, nil
	}

	var resp Tokens
	err = c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/refresh",
		body:   map[string]string{"refresh_token": tokens.RefreshToken},
		out:    &resp,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			_ = c.tokens.Clear()
			return "", ErrUnauthorized
		}
		return "", err
	}
	if err := c.tokens.Save(&resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func decodeResponse(status int, body []byte, out any) error {
	if status < 200 || status > 299 {
		return newAPIError(status, body)
	}
	if out == nil || status == http.StatusNoContent || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}
