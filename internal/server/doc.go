// Package server hosts the web UI, the static assets and the health endpoints
// on a single HTTP listener with graceful shutdown.
package server
