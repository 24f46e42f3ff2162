// ABOUTME: Session to a Weaviate Cloud cluster authenticated with an API key
// ABOUTME: Attaches the provider key header to every request and is released with Close

package weaviate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	wv "github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"

	"github.com/2389/query-assistant/internal/credentials"
)

// ProviderKeyHeader carries the OpenAI key so the cluster can call the provider on our behalf.
const ProviderKeyHeader = "X-OpenAI-Api-Key"

var (
	// ErrClosed is returned when a request is made on a closed client.
	ErrClosed = errors.New("weaviate: client is closed")

	// ErrUnauthorized is wrapped when the cluster rejects the API key.
	ErrUnauthorized = errors.New("weaviate: unauthorized")

	errNotReady = errors.New("cluster is not ready")
)

// Error describes a failed request to the cluster.
type Error struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("weaviate %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("weaviate %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Meta is the subset of /v1/meta reported by the cluster.
type Meta struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	logger     *slog.Logger
}

// Option configures Connect.
type Option func(*options)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped, not replaced.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each of the ready and meta checks made by Connect.
// Requests sent later through Do are not affected.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHeader adds an extra header sent on every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Client is an open session to one cluster. It is not pooled: callers open one
// per interaction and must Close it on every exit path.
type Client struct {
	baseURL *url.URL
	apiKey  string
	headers map[string]string
	http    *http.Client
	sdk     *wv.Client
	timeout time.Duration
	meta    Meta
	closed  atomic.Bool
	logger  *slog.Logger
}

// Connect validates the credentials, opens a session to the cluster and checks
// that it is ready. No retry is attempted.
func Connect(ctx context.Context, creds credentials.Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	base, err := ClusterURL(creds.URL)
	if err != nil {
		return nil, &Error{Op: "connect", URL: creds.URL, Err: err}
	}

	headers := map[string]string{ProviderKeyHeader: creds.ProviderKey}
	for k, v := range o.headers {
		headers[k] = v
	}

	c := &Client{
		baseURL: base,
		apiKey:  creds.APIKey,
		headers: headers,
		http:    newHTTPClient(o.httpClient, creds.APIKey, headers),
		timeout: o.timeout,
		logger:  o.logger.With("component", "weaviate", "cluster", base.Host),
	}

	// The client library adds its auth header to the map it is given.
	sdkHeaders := c.Headers()
	c.sdk, err = wv.NewClient(wv.Config{
		Host:             base.Host,
		Scheme:           base.Scheme,
		AuthConfig:       auth.ApiKey{Value: creds.APIKey},
		Headers:          sdkHeaders,
		ConnectionClient: c.http,
	})
	if err != nil {
		c.Close()
		return nil, &Error{Op: "connect", URL: c.URL(), Err: err}
	}

	start := time.Now()
	if err := c.checkReady(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.loadMeta(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.logger.Info("connected to weaviate",
		"version", c.meta.Version,
		"duration", time.Since(start),
	)
	return c, nil
}

// ClusterURL normalizes a cluster address. Weaviate Cloud hands out bare
// hostnames, so https is assumed when no scheme is present.
func ClusterURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("cluster URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing cluster URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cluster URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("cluster URL has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

// URL returns the normalized cluster URL.
func (c *Client) URL() string {
	return c.baseURL.String()
}

// APIKey returns the key the session authenticates with.
func (c *Client) APIKey() string {
	return c.apiKey
}

// Headers returns a copy of the extra headers attached to every request.
func (c *Client) Headers() map[string]string {
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// Meta returns what the cluster reported at connect time.
func (c *Client) Meta() Meta {
	return c.meta
}

// Do sends a request with the session's authentication and headers attached.
// It fails with ErrClosed once the client is closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.http.Do(req)
}

// Close releases the session. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	c.logger.Debug("weaviate connection closed")
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// probeContext applies the configured timeout to a single connect-time check.
func (c *Client) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) checkReady(ctx context.Context) error {
	ctx, cancel := c.probeContext(ctx)
	defer cancel()

	ready, err := c.sdk.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return c.sdkError("ready", err)
	}
	if !ready {
		return &Error{Op: "ready", URL: c.URL(), Err: errNotReady}
	}
	return nil
}

func (c *Client) loadMeta(ctx context.Context) error {
	ctx, cancel := c.probeContext(ctx)
	defer cancel()

	m, err := c.sdk.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return c.sdkError("meta", err)
	}
	if m != nil {
		c.meta = Meta{Hostname: m.Hostname, Version: m.Version}
	}
	return nil
}

// sdkError wraps a client library failure, lifting the HTTP status when the
// cluster answered. 401 and 403 wrap ErrUnauthorized.
func (c *Client) sdkError(op string, err error) error {
	e := &Error{Op: op, URL: c.URL(), Err: err}

	var ce *fault.WeaviateClientError
	if !errors.As(err, &ce) || ce.StatusCode <= 0 {
		return e
	}
	e.StatusCode = ce.StatusCode
	if ce.StatusCode == http.StatusUnauthorized || ce.StatusCode == http.StatusForbidden {
		e.Err = fmt.Errorf("%w: %s", ErrUnauthorized, strings.TrimSpace(ce.Msg))
	}
	return e
}
