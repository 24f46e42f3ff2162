// ABOUTME: Orchestrates one question: resolve, validate, connect, dispatch, render, close
// ABOUTME: Every step is injectable so the flow can be tested without a cluster

package assistant

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/query-assistant/internal/config"
	"github.com/2389/query-assistant/internal/credentials"
	"github.com/2389/query-assistant/internal/queryagent"
	"github.com/2389/query-assistant/internal/render"
	"github.com/2389/query-assistant/internal/weaviate"
)

// CredentialResolver supplies credentials. *credentials.Resolver satisfies it.
type CredentialResolver interface {
	Resolve() (credentials.Credentials, error)
}

// Session is an open cluster connection that must be closed.
type Session interface {
	queryagent.Connection
	Close() error
}

// Dispatcher runs one question. *queryagent.Agent satisfies it.
type Dispatcher interface {
	Run(ctx context.Context, query string) (*queryagent.Response, error)
}

// ConnectFunc opens a session for validated credentials.
type ConnectFunc func(ctx context.Context, creds credentials.Credentials) (Session, error)

// AgentFunc builds a dispatcher over an open session.
type AgentFunc func(conn queryagent.Connection) Dispatcher

// Result is a successful answer.
type Result struct {
	Response *queryagent.Response
	View     render.View
	Source   credentials.Source
	Duration time.Duration
}

// Option customizes an Assistant.
type Option func(*Assistant)

// WithResolver replaces the file-backed resolver.
func WithResolver(r CredentialResolver) Option {
	return func(a *Assistant) { a.resolver = r }
}

// WithConnector replaces weaviate.Connect.
func WithConnector(fn ConnectFunc) Option {
	return func(a *Assistant) { a.connect = fn }
}

// WithAgent replaces the query agent constructor.
func WithAgent(fn AgentFunc) Option {
	return func(a *Assistant) { a.newAgent = fn }
}

// Assistant answers questions. It holds no per-request state and is safe for
// concurrent use.
type Assistant struct {
	resolver CredentialResolver
	connect  ConnectFunc
	newAgent AgentFunc
	logger   *slog.Logger
}

// New builds an Assistant from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Assistant{
		resolver: credentials.NewResolver(cfg.Credentials.SecretsFile, cfg.Credentials.EnvFile, logger),
		connect: func(ctx context.Context, creds credentials.Credentials) (Session, error) {
			client, err := weaviate.Connect(ctx, creds,
				weaviate.WithTimeout(cfg.Weaviate.Timeout),
				weaviate.WithLogger(logger),
			)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		newAgent: func(conn queryagent.Connection) Dispatcher {
			return queryagent.New(conn, []string{cfg.Agent.Collection},
				queryagent.WithHost(cfg.Agent.Host),
				queryagent.WithLimit(cfg.Agent.Limit),
				queryagent.WithTimeout(cfg.Agent.Timeout),
				queryagent.WithLogger(logger),
			)
		},
		logger: logger.With("component", "assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check resolves and validates credentials without touching the network.
func (a *Assistant) Check() (credentials.Credentials, error) {
	creds, err := a.resolver.Resolve()
	if err != nil {
		return creds, &ConfigError{Err: err}
	}
	if err := creds.Validate(); err != nil {
		return creds, &ConfigError{Err: err}
	}
	return creds, nil
}

// Ask answers query. The query is passed through untouched. Errors are
// *ConfigError, *ConnectError or *DispatchError. The session is closed on
// every path once it has been opened.
func (a *Assistant) Ask(ctx context.Context, query string) (*Result, error) {
	creds, err := a.Check()
	if err != nil {
		a.logger.Warn("credentials unavailable", "error", err)
		return nil, err
	}

	start := time.Now()
	sess, err := a.connect(ctx, creds)
	if err != nil {
		a.logger.Error("connect failed", "error", err, "source", creds.Source)
		return nil, &ConnectError{Err: err}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			a.logger.Warn("closing connection", "error", err)
		}
	}()

	resp, err := a.newAgent(sess).Run(ctx, query)
	if err != nil {
		a.logger.Error("query failed", "error", err)
		return nil, &DispatchError{Err: err}
	}

	return &Result{
		Response: resp,
		View:     render.Render(resp),
		Source:   creds.Source,
		Duration: time.Since(start),
	}, nil
}
