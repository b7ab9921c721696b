// Package httpserver provides the HTTP/HTTPS server for notehub.
//
// It uses net/http with the Go 1.22 pattern router. The middleware chain
// assigns request IDs, recovers panics, records Prometheus metrics, writes
// an audit log line per request and applies the admin access gate before
// requests reach package handler.
package httpserver
