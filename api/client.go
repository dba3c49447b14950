// Package api wraps the EDA-bank REST backend behind a small JSON-over-HTTP
// client that injects the session bearer token into every request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds how much of a response body is buffered.
const maxBodyBytes = 8 << 20

// TokenSource yields the bearer token attached to outgoing requests.
// An empty token means the request is sent anonymously.
type TokenSource interface {
	Token() string
}

// ErrNoBaseURL is returned when the client is built without a backend address.
var ErrNoBaseURL = errors.New("api base URL is required")

// Client issues requests against the backend rooted at BaseURL.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets a client-side deadline for every request.
// Zero keeps the platform default (no deadline).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Transport: c.http.Transport, Timeout: d}
		}
	}
}

// New builds a client for baseURL that reads its bearer token from tokens.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base: %s", baseURL)
	}
	c := &Client{base: u, http: &http.Client{}, tokens: tokens}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Token returns the bearer token currently attached to requests.
func (c *Client) Token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// AuthHeaders returns the Authorization header for the current token, or an
// empty map when the session is anonymous.
func (c *Client) AuthHeaders() map[string]string {
	if tok := c.Token(); tok != "" {
		return map[string]string{"Authorization": "Bearer " + tok}
	}
	return map[string]string{}
}

// RequestOption adjusts a single request.
type RequestOption func(*http.Request)

// WithHeader sets a request header. Caller headers override the default
// content type but never the bearer token.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Set(key, value)
		r.URL.RawQuery = q.Encode()
	}
}

// Do sends method+path with body JSON-encoded (nil sends no body).
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	target := c.base.ResolveReference(ref)

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	for k, v := range c.AuthHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, ref.Path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	log.Debug().Str("method", method).Str("path", req.URL.RequestURI()).Int("status", resp.StatusCode).Msg("[api] response")
	if resp.StatusCode/100 != 2 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}
	return &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: raw}, nil
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post is Do with POST.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put is Do with PUT.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

// Delete is Do with DELETE.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any, opts ...RequestOption) error {
	resp, err := c.Get(ctx, path, opts...)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
