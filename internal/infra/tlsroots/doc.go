// Package tlsroots manages notehub's TLS material.
//
//   - watcher.go: CertReloader, the HTTPS pair reloaded when its files change
//   - roots.go: extra CA roots for outbound API calls (GitHub Enterprise)
package tlsroots
