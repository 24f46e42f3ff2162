// ABOUTME: Single-page web UI for asking the query assistant a question
// ABOUTME: Serves the form, handles submissions as htmx partials or full pages

package webui

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/2389/query-assistant/internal/assistant"
	"github.com/2389/query-assistant/internal/credentials"
	"github.com/2389/query-assistant/internal/render"
)

// CSRFCookieName is the cookie holding the form token.
const CSRFCookieName = "qa_csrf"

// Asker answers questions. *assistant.Assistant satisfies it.
type Asker interface {
	Check() (credentials.Credentials, error)
	Ask(ctx context.Context, query string) (*assistant.Result, error)
}

// Config holds the page text.
type Config struct {
	Title       string
	Description string
}

type pageData struct {
	Title       string
	Description string
	CSRFToken   string
	Query       string

	// ConfigError is set when credentials fail the gate; submission is disabled.
	ConfigError string
	Missing     []string
	Disabled    bool

	Error string
	View  *render.View
}

// UI serves the query page.
type UI struct {
	asker  Asker
	cfg    Config
	tmpl   *template.Template
	logger *slog.Logger
}

// New creates the UI. Templates are parsed once and panic if malformed.
func New(asker Asker, cfg Config, logger *slog.Logger) *UI {
	if logger == nil {
		logger = slog.Default()
	}
	return &UI{
		asker:  asker,
		cfg:    cfg,
		tmpl:   template.Must(template.ParseFS(templateFS, "templates/*.html", "templates/partials/*.html")),
		logger: logger.With("component", "webui"),
	}
}

// RegisterRoutes adds the page routes to mux.
func (u *UI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", u.handleIndex)
	mux.HandleFunc("POST /query", u.handleQuery)
}

// handleIndex renders the form. Credentials are checked on every load so the
// banner reflects the current secrets and env files. Nothing is dispatched.
func (u *UI) handleIndex(w http.ResponseWriter, r *http.Request) {
	token := u.ensureCSRFToken(w, r)

	data := u.newPage(token)
	u.applyGate(&data)

	u.render(w, "base", data)
}

func (u *UI) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !u.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}

	token := u.ensureCSRFToken(w, r)
	query := r.FormValue("query")

	data := u.newPage(token)
	data.Query = query

	result, err := u.asker.Ask(r.Context(), query)
	if err != nil {
		data.Error = assistant.UserMessage(err)
	} else {
		data.View = &result.View
		u.logger.Info("query served", "source", result.Source, "duration", result.Duration)
	}

	if r.Header.Get("HX-Request") == "true" {
		u.render(w, "result", data)
		return
	}

	if err != nil {
		u.applyGate(&data)
	}
	u.render(w, "base", data)
}

func (u *UI) newPage(token string) pageData {
	return pageData{
		Title:       u.cfg.Title,
		Description: u.cfg.Description,
		CSRFToken:   token,
	}
}

// applyGate fills the configuration banner when credentials are incomplete.
func (u *UI) applyGate(data *pageData) {
	_, err := u.asker.Check()
	if err == nil {
		return
	}
	data.ConfigError = assistant.UserMessage(err)
	data.Disabled = true
	var cfgErr *assistant.ConfigError
	if errors.As(err, &cfgErr) {
		data.Missing = cfgErr.Missing()
	}
	// The banner already says it; avoid showing the same message twice.
	if data.Error == data.ConfigError {
		data.Error = ""
	}
}

// render buffers the output so a template failure yields a clean 500.
func (u *UI) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := u.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		u.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// ensureCSRFToken reuses the cookie token or issues a new one.
func (u *UI) ensureCSRFToken(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		u.logger.Error("failed to generate CSRF token", "error", err)
		token = ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	return token
}

// validateCSRF checks the form (or htmx header) token against the cookie.
func (u *UI) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}
	return formToken != "" && formToken == cookie.Value
}

func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
