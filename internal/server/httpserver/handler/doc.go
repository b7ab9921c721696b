// Package handler provides HTTP request handlers for notehub.
//
// It implements the JSON API for admin login, catalog reads and artifact
// uploads. Access control happens in front of these handlers (see the
// AdminGate middleware in package httpserver); handlers that need the
// session read it with ClaimsFromContext.
package handler
