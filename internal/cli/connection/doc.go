// Package connection is notehub-cli's client for the notehub HTTP API.
//
// HTTPClient carries the admin session cookie, asks for JSON so the access
// gate answers 401 instead of redirecting, and turns error bodies into
// *APIError values that keep the server's error code.
package connection
