// Package metric provides Prometheus metrics for notehub.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, typed recorders and HTTP handler
//   - collector.go: catalog size collector sampled at scrape time
//
// Metrics include:
//
//   - HTTP request counters and latency histograms
//   - Login and session-verification outcomes
//   - Ingest submission outcomes and artifact backend latency
//   - Catalog and Badger storage statistics
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
