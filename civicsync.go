// Package civicsync is a Go client for the civic-issue reporting service.
//
// A Client bundles one transport with the four stores that own all
// server-derived state: session, issues, votes, and analytics. Stores are
// singletons with a single writer path; every mutation happens inside a
// store operation at a response-handling point. New wires the global 401
// policy: any unauthorized response evicts the durable credential, resets the
// session to anonymous, and invokes the optional session-expired hook, in
// addition to the failing operation's own error.
package civicsync

import (
	"log/slog"
	"net/http"

	"github.com/mkline/civicsync/analytics"
	"github.com/mkline/civicsync/credstore"
	"github.com/mkline/civicsync/issues"
	"github.com/mkline/civicsync/session"
	"github.com/mkline/civicsync/transport"
	"github.com/mkline/civicsync/votes"
)

// Client is the assembled SDK.
type Client struct {
	Transport *transport.Client
	Session   *session.Store
	Issues    *issues.Store
	Votes     *votes.Store
	Analytics *analytics.Store
}

type config struct {
	httpClient *http.Client
	logger     *slog.Logger
	notify     transport.Notifier
	onExpired  func()
}

// Option configures the Client.
type Option func(*config)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithLogger sets the structured logger shared by transport and stores.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithNotifier sets the handler for server messages on 400 responses.
func WithNotifier(n transport.Notifier) Option {
	return func(c *config) { c.notify = n }
}

// WithSessionExpiredHook adds a callback run after a 401 has reset the
// session, typically to steer the user back to a login surface.
func WithSessionExpiredHook(fn func()) Option {
	return func(c *config) { c.onExpired = fn }
}

// New assembles a Client for the service at baseURL, persisting the
// credential in creds.
func New(baseURL string, creds credstore.Store, opts ...Option) (*Client, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	topts := []transport.Option{transport.WithLogger(cfg.logger)}
	if cfg.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(cfg.httpClient))
	}
	if cfg.notify != nil {
		topts = append(topts, transport.WithNotifier(cfg.notify))
	}
	tc, err := transport.New(baseURL, topts...)
	if err != nil {
		return nil, err
	}

	sess := session.New(tc, creds, session.WithLogger(cfg.logger))
	tc.SetCredentialSource(sess)
	tc.SetSessionExpiredHandler(func() {
		sess.Expire()
		if cfg.onExpired != nil {
			cfg.onExpired()
		}
	})

	return &Client{
		Transport: tc,
		Session:   sess,
		Issues:    issues.New(tc, issues.WithLogger(cfg.logger)),
		Votes:     votes.New(tc, votes.WithLogger(cfg.logger)),
		Analytics: analytics.New(tc, analytics.WithLogger(cfg.logger)),
	}, nil
}
