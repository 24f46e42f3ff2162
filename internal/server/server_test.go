// ABOUTME: Tests for the HTTP server wiring, health endpoints and lifecycle
// ABOUTME: Uses a fake asker so no cluster is contacted

package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2389/query-assistant/internal/assistant"
	"github.com/2389/query-assistant/internal/config"
	"github.com/2389/query-assistant/internal/credentials"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns defaults bound to a free local port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.Default()
	cfg.Server.HTTPAddr = addr
	return cfg
}

type fakeAsker struct {
	creds credentials.Credentials
	err   error
}

func (f fakeAsker) Check() (credentials.Credentials, error) { return f.creds, f.err }

func (f fakeAsker) Ask(context.Context, string) (*assistant.Result, error) {
	return nil, errors.New("not used")
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(nil, testLogger()); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestHealth(t *testing.T) {
	srv, err := New(testConfig(t), testLogger(), WithAsker(fakeAsker{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		asker    fakeAsker
		wantCode int
		wantBody string
	}{
		{
			name:     "valid credentials",
			asker:    fakeAsker{creds: credentials.Credentials{Source: credentials.SourceSecrets}},
			wantCode: http.StatusOK,
			wantBody: "ready (credentials from secrets)",
		},
		{
			name: "missing credentials",
			asker: fakeAsker{err: &assistant.ConfigError{Err: &credentials.MissingError{
				Keys: []string{credentials.KeyURL, credentials.KeyProviderKey},
			}}},
			wantCode: http.StatusServiceUnavailable,
			wantBody: "credentials incomplete: WEAVIATE_URL, OPENAI_API_KEY",
		},
		{
			name:     "unreadable secrets",
			asker:    fakeAsker{err: &assistant.ConfigError{Err: errors.New("parsing secrets file: bad")}},
			wantCode: http.StatusServiceUnavailable,
			wantBody: "configuration: parsing secrets file: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := New(testConfig(t), testLogger(), WithAsker(tt.asker))
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestIndexIsServed(t *testing.T) {
	srv, err := New(testConfig(t), testLogger(), WithAsker(fakeAsker{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(cfg, testLogger(), WithAsker(fakeAsker{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	url := "http://" + cfg.Server.HTTPAddr + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.Server.HTTPAddr = ln.Addr().String()
	srv, err := New(cfg, testLogger(), WithAsker(fakeAsker{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error when address is in use")
	}
}

func TestStaticAssetsAreServed(t *testing.T) {
	srv, err := New(testConfig(t), testLogger(), WithAsker(fakeAsker{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
