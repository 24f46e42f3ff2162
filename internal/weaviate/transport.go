// ABOUTME: RoundTripper that stamps the API key and extra headers onto requests
// ABOUTME: Keeps credentials out of every call site that builds a request

package weaviate

import (
	"net/http"
)

type headerTransport struct {
	base    http.RoundTripper
	apiKey  string
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	if r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the base transport.
func (t *headerTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// newHTTPClient builds the session's client. The given client's transport is
// reused underneath the header transport; a fresh transport is cloned otherwise
// so Close only affects this session's idle connections. No client-wide
// timeout is set: query deadlines come from the request context.
func newHTTPClient(base *http.Client, apiKey string, headers map[string]string) *http.Client {
	var rt http.RoundTripper
	if base != nil && base.Transport != nil {
		rt = base.Transport
	} else {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	c := &http.Client{
		Transport: &headerTransport{base: rt, apiKey: apiKey, headers: headers},
	}
	if base != nil {
		c.CheckRedirect = base.CheckRedirect
		c.Jar = base.Jar
		c.Timeout = base.Timeout
	}
	return c
}
