// Package transport is the single HTTP client behind every civicsync store.
//
// It owns two cross-cutting behaviors: attaching the bearer credential to
// outgoing requests, and the global reaction to authorization failures. A 401
// from any endpoint triggers the injected session-expired handler before the
// error is returned to the caller; a 400 forwards the server's message to the
// injected notifier. Both side effects fire in addition to, never instead of,
// the caller's own error handling.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// CredentialSource supplies the bearer credential attached to outgoing
// requests. Returning ok=false sends the request unauthenticated; that is
// not an error at this layer.
type CredentialSource interface {
	Credential() (token string, ok bool)
}

// Notifier receives server-provided messages from 400 responses, typically
// to surface them as a user-visible notification.
type Notifier func(message string)

// Client is the HTTP client shared by all stores.
type Client struct {
	base      *url.URL
	http      *http.Client
	creds     CredentialSource
	onExpired func()
	notify    Notifier
	log       *slog.Logger
	userAgent string
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client. Timeout policy is
// owned here; stores implement no per-operation timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger. If not set, a discard-equivalent
// default writing nothing is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// WithNotifier sets the handler for server messages on 400 responses.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notify = n }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:      base,
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: "civicsync/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// SetCredentialSource wires the credential supplier. Called once at assembly
// time; the session store cannot exist before the client it talks through.
func (c *Client) SetCredentialSource(src CredentialSource) {
	c.creds = src
}

// SetSessionExpiredHandler wires the global 401 reaction. The handler runs
// for every 401, regardless of which operation triggered it.
func (c *Client) SetSessionExpiredHandler(fn func()) {
	c.onExpired = fn
}

// GetJSON issues a GET and decodes a JSON response into out (when non-nil).
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

// PostJSON issues a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	buf, contentType, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, buf, contentType, out)
}

// PostForm issues a POST with a multipart/form-data body.
func (c *Client) PostForm(ctx context.Context, path string, form *Form, out any) error {
	buf, contentType, err := form.encode()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, buf, contentType, out)
}

// PutForm issues a PUT with a multipart/form-data body.
func (c *Client) PutForm(ctx context.Context, path string, form *Form, out any) error {
	buf, contentType, err := form.encode()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, nil, buf, contentType, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, "", out)
}

func encodeJSON(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, "", err
	}
	return &buf, "application/json", nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.creds != nil {
		if token, ok := c.creds.Credential(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "error", err)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	raw, _ := io.ReadAll(resp.Body)
	httpErr := &HTTPError{
		Status:  resp.StatusCode,
		Body:    raw,
		Message: serverMessage(raw),
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		c.log.Info("session expired", "method", method, "path", path)
		if c.onExpired != nil {
			c.onExpired()
		}
	case http.StatusBadRequest:
		msg := httpErr.Message
		if msg == "" {
			msg = "Bad Request"
		}
		if c.notify != nil {
			c.notify(msg)
		}
	}

	return httpErr
}
