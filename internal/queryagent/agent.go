// ABOUTME: Client for the hosted Weaviate query agent scoped to fixed collections
// ABOUTME: Run submits the raw question over an open cluster connection and decodes the result

package queryagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultHost is the hosted query agent service.
const DefaultHost = "https://api.agents.weaviate.io"

// RunPath is the run operation relative to the host.
const RunPath = "/v1/query/run"

// Headers sent alongside the connection's own headers.
const (
	ClusterURLHeader    = "X-Weaviate-Cluster-Url"
	RequestOriginHeader = "X-Agent-Request-Origin"
	RequestIDHeader     = "X-Request-Id"
)

const requestOrigin = "query-assistant"

// Connection is the open cluster session the agent runs over.
// *weaviate.Client satisfies it.
type Connection interface {
	Do(req *http.Request) (*http.Response, error)
	URL() string
	Headers() map[string]string
}

// Error describes a failed run.
type Error struct {
	StatusCode int
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("query agent returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("query agent: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type runRequest struct {
	Headers       map[string]string `json:"headers"`
	OriginalQuery string            `json:"original_query"`
	Collections   []string          `json:"collections"`
	Limit         int               `json:"limit,omitempty"`
}

// Option configures an Agent.
type Option func(*Agent)

// WithHost overrides DefaultHost.
func WithHost(host string) Option {
	return func(a *Agent) {
		if host != "" {
			a.host = strings.TrimRight(host, "/")
		}
	}
}

// WithLimit caps the number of objects the agent retrieves per search.
func WithLimit(n int) Option {
	return func(a *Agent) { a.limit = n }
}

// WithTimeout bounds a single Run. Zero waits for completion or failure.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// Agent runs questions against a fixed set of collections.
type Agent struct {
	conn        Connection
	collections []string
	host        string
	limit       int
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates an Agent over an open connection.
func New(conn Connection, collections []string, opts ...Option) *Agent {
	a := &Agent{
		conn:        conn,
		collections: append([]string(nil), collections...),
		host:        DefaultHost,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "query-agent")
	return a
}

// Collections returns the collections the agent searches.
func (a *Agent) Collections() []string {
	return append([]string(nil), a.collections...)
}

// Run passes query verbatim to the agent and blocks until it answers or fails.
func (a *Agent) Run(ctx context.Context, query string) (*Response, error) {
	requestID := uuid.New().String()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	body, err := json.Marshal(runRequest{
		Headers:       a.conn.Headers(),
		OriginalQuery: query,
		Collections:   a.collections,
		Limit:         a.limit,
	})
	if err != nil {
		return nil, &Error{RequestID: requestID, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+RunPath, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{RequestID: requestID, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClusterURLHeader, a.conn.URL())
	req.Header.Set(RequestOriginHeader, requestOrigin)
	req.Header.Set(RequestIDHeader, requestID)

	a.logger.Debug("running query", "request_id", requestID, "collections", a.collections, "query_len", len(query))
	start := time.Now()

	resp, err := a.conn.Do(req)
	if err != nil {
		return nil, &Error{RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, RequestID: requestID, Err: errors.New(errorMessage(resp))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, RequestID: requestID, Err: fmt.Errorf("decoding response: %w", err)}
	}

	a.logger.Info("query answered",
		"request_id", requestID,
		"duration", time.Since(start),
		"sources", len(out.Sources),
		"has_answer", out.FinalAnswer != nil,
	)
	return &out, nil
}

// errorMessage extracts a readable message from an error response body.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Detail != nil:
			return stringify(body.Detail)
		case body.Error != nil:
			return stringify(body.Error)
		}
	}

	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
