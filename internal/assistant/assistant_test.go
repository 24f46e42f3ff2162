// ABOUTME: Tests for the question flow with fake resolver, connector and agent
// ABOUTME: Checks the gate short-circuits and that connections are always closed

package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/query-assistant/internal/config"
	"github.com/2389/query-assistant/internal/credentials"
	"github.com/2389/query-assistant/internal/queryagent"
	"github.com/2389/query-assistant/internal/render"
	"github.com/2389/query-assistant/internal/weaviate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResolver struct {
	creds credentials.Credentials
	err   error
}

func (f fakeResolver) Resolve() (credentials.Credentials, error) { return f.creds, f.err }

type fakeSession struct {
	closed int
}

func (s *fakeSession) Do(*http.Request) (*http.Response, error) { return nil, errors.New("unused") }
func (s *fakeSession) URL() string                              { return "https://cluster.example" }
func (s *fakeSession) Headers() map[string]string               { return nil }
func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeAgent struct {
	resp    *queryagent.Response
	err     error
	queries []string
}

func (f *fakeAgent) Run(_ context.Context, query string) (*queryagent.Response, error) {
	f.queries = append(f.queries, query)
	return f.resp, f.err
}

type harness struct {
	connects int
	session  *fakeSession
	agent    *fakeAgent
}

func newHarness(t *testing.T, creds credentials.Credentials, connectErr error) (*Assistant, *harness) {
	t.Helper()
	h := &harness{session: &fakeSession{}, agent: &fakeAgent{}}
	a := New(config.Default(), testLogger(),
		WithResolver(fakeResolver{creds: creds}),
		WithConnector(func(context.Context, credentials.Credentials) (Session, error) {
			h.connects++
			if connectErr != nil {
				return nil, connectErr
			}
			return h.session, nil
		}),
		WithAgent(func(queryagent.Connection) Dispatcher { return h.agent }),
	)
	return a, h
}

func validCreds() credentials.Credentials {
	return credentials.Credentials{URL: "cluster.example", APIKey: "wv-key", ProviderKey: "sk-key", Source: credentials.SourceEnv}
}

func strPtr(s string) *string { return &s }

func TestAsk_Success(t *testing.T) {
	a, h := newHarness(t, validCreds(), nil)
	h.agent.resp = &queryagent.Response{FinalAnswer: strPtr("Paris is the capital of France.")}

	res, err := a.Ask(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, 1, h.connects)
	assert.Equal(t, 1, h.session.closed)
	assert.Equal(t, []string{"What is the capital of France?"}, h.agent.queries)
	assert.Equal(t, "Paris is the capital of France.", res.View.Answer)
	assert.Equal(t, credentials.SourceEnv, res.Source)
}

func TestAsk_MissingCredentialsNeverConnects(t *testing.T) {
	cases := map[string]credentials.Credentials{
		"no url":          {APIKey: "k", ProviderKey: "p"},
		"no api key":      {URL: "u", ProviderKey: "p"},
		"no provider key": {URL: "u", APIKey: "k"},
		"nothing":         {},
	}

	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			a, h := newHarness(t, creds, nil)

			_, err := a.Ask(context.Background(), "q")
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.ErrorIs(t, err, credentials.ErrMissingCredentials)
			assert.NotEmpty(t, cfgErr.Missing())
			assert.Equal(t, 0, h.connects)
			assert.Empty(t, h.agent.queries)
			assert.Equal(t, credentials.MissingMessage, UserMessage(err))
		})
	}
}

func TestAsk_ResolverErrorIsConfigError(t *testing.T) {
	connects := 0
	a := New(config.Default(), testLogger(),
		WithResolver(fakeResolver{err: errors.New("parsing secrets file: bad toml")}),
		WithConnector(func(context.Context, credentials.Credentials) (Session, error) {
			connects++
			return &fakeSession{}, nil
		}),
	)

	_, err := a.Ask(context.Background(), "q")

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Nil(t, cfgErr.Missing())
	assert.Equal(t, 0, connects)
	assert.Equal(t, "Configuration error: parsing secrets file: bad toml", UserMessage(err))
}

func TestAsk_ConnectFailure(t *testing.T) {
	a, h := newHarness(t, validCreds(), &weaviate.Error{Op: "ready", Err: weaviate.ErrUnauthorized})

	_, err := a.Ask(context.Background(), "q")

	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, weaviate.ErrUnauthorized)
	assert.Equal(t, 1, h.connects)
	assert.Equal(t, 0, h.session.closed)
	assert.Empty(t, h.agent.queries)
	assert.Contains(t, UserMessage(err), "Something went wrong: ")
}

func TestAsk_DispatchFailureStillCloses(t *testing.T) {
	a, h := newHarness(t, validCreds(), nil)
	h.agent.err = &queryagent.Error{StatusCode: 500, Err: errors.New("boom")}

	_, err := a.Ask(context.Background(), "q")

	var dispErr *DispatchError
	require.ErrorAs(t, err, &dispErr)
	assert.Equal(t, 1, h.session.closed)
	assert.Equal(t, "Something went wrong: query agent returned status 500: boom", UserMessage(err))
}

func TestAsk_EmptyQueryIsDispatched(t *testing.T) {
	a, h := newHarness(t, validCreds(), nil)
	h.agent.resp = &queryagent.Response{}

	res, err := a.Ask(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, h.agent.queries)
	assert.Equal(t, render.NoAnswer, res.View.Answer)
}

func TestCheck(t *testing.T) {
	a, _ := newHarness(t, validCreds(), nil)
	creds, err := a.Check()
	require.NoError(t, err)
	assert.Equal(t, "wv-key", creds.APIKey)

	a, _ = newHarness(t, credentials.Credentials{URL: "u"}, nil)
	_, err = a.Check()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{credentials.KeyAPIKey, credentials.KeyProviderKey}, cfgErr.Missing())
}

// End to end through the real connector and agent against fake services.
func TestAsk_WithDefaultWiring(t *testing.T) {
	cluster := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/.well-known/ready":
			w.WriteHeader(http.StatusOK)
		case "/v1/meta":
			w.Write([]byte(`{"hostname": "h", "version": "1.30.0"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer cluster.Close()

	var gotKey, gotProvider string
	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Authorization")
		gotProvider = r.Header.Get(weaviate.ProviderKeyHeader)
		w.Write([]byte(`{"final_answer": "42", "sources": [{"object_id": "id1"}]}`))
	}))
	defer agentSrv.Close()

	dir := t.TempDir()
	secrets := filepath.Join(dir, "secrets.toml")
	content := "WEAVIATE_URL = \"" + cluster.URL + "\"\nWEAVIATE_API_KEY = \"wv-key\"\nOPENAI_API_KEY = \"sk-key\"\n"
	require.NoError(t, os.WriteFile(secrets, []byte(content), 0o600))

	cfg := config.Default()
	cfg.Credentials.SecretsFile = secrets
	cfg.Credentials.EnvFile = filepath.Join(dir, "missing.env")
	cfg.Agent.Host = agentSrv.URL

	res, err := New(cfg, testLogger()).Ask(context.Background(), "meaning?")
	require.NoError(t, err)

	assert.Equal(t, "42", res.View.Answer)
	assert.Equal(t, "Sources: id1", res.View.Sources.String())
	assert.Equal(t, credentials.SourceSecrets, res.Source)
	assert.Equal(t, "Bearer wv-key", gotKey)
	assert.Equal(t, "sk-key", gotProvider)
}

// A short cluster timeout must not cut off a query that takes longer.
func TestAsk_ClusterTimeoutDoesNotBoundAgentRun(t *testing.T) {
	cluster := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/.well-known/ready":
			w.WriteHeader(http.StatusOK)
		case "/v1/meta":
			w.Write([]byte(`{"hostname": "h", "version": "1.30.0"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer cluster.Close()

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"final_answer": "slow but fine"}`))
	}))
	defer agentSrv.Close()

	dir := t.TempDir()
	secrets := filepath.Join(dir, "secrets.toml")
	content := "WEAVIATE_URL = \"" + cluster.URL + "\"\nWEAVIATE_API_KEY = \"wv-key\"\nOPENAI_API_KEY = \"sk-key\"\n"
	require.NoError(t, os.WriteFile(secrets, []byte(content), 0o600))

	cfg := config.Default()
	cfg.Credentials.SecretsFile = secrets
	cfg.Credentials.EnvFile = filepath.Join(dir, "missing.env")
	cfg.Weaviate.Timeout = 100 * time.Millisecond
	cfg.Agent.Timeout = 0
	cfg.Agent.Host = agentSrv.URL

	res, err := New(cfg, testLogger()).Ask(context.Background(), "slow?")
	require.NoError(t, err)
	assert.Equal(t, "slow but fine", res.View.Answer)
}
