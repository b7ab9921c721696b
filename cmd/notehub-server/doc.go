// Package main provides the entry point for notehub-server.
//
// The server hosts the chapter catalog API, the admin login and upload
// endpoints behind the session gate, the locally stored PDFs and the
// Prometheus metrics endpoint.
//
// Usage:
//
//	notehub-server [flags]
//	notehub-server --config /etc/notehub/server.yaml
//
// Every config key can be set through NOTEHUB_<SECTION>_<KEY> environment
// variables. ADMIN_USERNAME, ADMIN_PASSWORD, AUTH_SECRET, GITHUB_OWNER,
// GITHUB_REPO, GITHUB_BRANCH, GITHUB_TOKEN and NODE_ENV are accepted as
// aliases for existing deployments.
package main
