package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notehub"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Auth metrics
	LoginAttempts      *prometheus.CounterVec
	TokenValidateCalls *prometheus.CounterVec
	GateDecisions      *prometheus.CounterVec

	// Ingest metrics
	Submissions       *prometheus.CounterVec
	ArtifactStoreTime *prometheus.HistogramVec
	ArtifactBytes     *prometheus.CounterVec
	RemoteRetries     *prometheus.CounterVec
}

// NewRegistry creates a registry with Go runtime and process collectors and
// all notehub metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Admin login attempts by result",
		}, []string{"result"}),
		TokenValidateCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_verify_total",
			Help:      "Session token verifications by result",
		}, []string{"result"}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Access gate decisions on protected paths",
		}, []string{"decision"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_submissions_total",
			Help:      "Upload submissions by final state",
		}, []string{"outcome"}),
		ArtifactStoreTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_store_seconds",
			Help:      "Time spent storing one artifact",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"backend", "result"}),
		ArtifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Bytes of artifacts stored successfully",
		}, []string{"backend"}),
		RemoteRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_remote_retries_total",
			Help:      "Retried remote backend calls",
		}, []string{"backend"}),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.LoginAttempts,
		r.TokenValidateCalls,
		r.GateDecisions,
		r.Submissions,
		r.ArtifactStoreTime,
		r.ArtifactBytes,
		r.RemoteRetries,
	)
	return r
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registerer exposes the underlying registry for components that own their
// collectors (the Badger engine, the catalog collector).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// RecordRequest counts one HTTP request.
func (r *Registry) RecordRequest(method, route, status string) {
	r.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// ObserveRequestDuration records request latency in seconds.
func (r *Registry) ObserveRequestDuration(method, route string, seconds float64) {
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordLogin counts a login attempt: success, invalid, rate_limited or
// misconfigured.
func (r *Registry) RecordLogin(result string) {
	r.LoginAttempts.WithLabelValues(result).Inc()
}

// RecordTokenValidation counts a session verification: valid, invalid or
// expired.
func (r *Registry) RecordTokenValidation(result string) {
	r.TokenValidateCalls.WithLabelValues(result).Inc()
}

// RecordGateDecision counts allow/deny decisions on protected paths.
func (r *Registry) RecordGateDecision(decision string) {
	r.GateDecisions.WithLabelValues(decision).Inc()
}

// RecordSubmission counts an ingest submission by outcome.
func (r *Registry) RecordSubmission(outcome string) {
	r.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveArtifactStore records one backend store call.
func (r *Registry) ObserveArtifactStore(backend, result string, seconds float64, bytes int) {
	r.ArtifactStoreTime.WithLabelValues(backend, result).Observe(seconds)
	if result == "ok" {
		r.ArtifactBytes.WithLabelValues(backend).Add(float64(bytes))
	}
}

// IncRemoteRetry counts a retried remote call.
func (r *Registry) IncRemoteRetry(backend string) {
	r.RemoteRetries.WithLabelValues(backend).Inc()
}
