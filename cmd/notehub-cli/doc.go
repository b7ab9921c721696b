// Package main provides the entry point for notehub-cli.
//
// The CLI talks to a notehub server over its HTTP API:
//
//   - Admin session (login, logout, whoami)
//   - Catalog browsing (chapters list, chapters get)
//   - Chapter uploads
//   - Offline credential helpers (hash-password, gen-secret)
//
// Usage:
//
//	notehub-cli --server http://localhost:3000 login -u admin
//	notehub-cli chapters list --class 6 -o json
//	notehub-cli upload --title Light --class 8 --subject Science --chapter 5 --notes light.pdf
package main
