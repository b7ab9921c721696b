package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/internal/core/service"
	"github.com/notehub-dev/notehub/internal/server/httpserver/handler"
	"github.com/notehub-dev/notehub/internal/telemetry/logger"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is the
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// requestInfo is filled in by inner layers and read by outer ones after
// the request completes.
type requestInfo struct {
	start   time.Time
	route   string
	subject string
}

type requestInfoKey struct{}

func infoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// maxRequestIDLen bounds client supplied request IDs.
const maxRequestIDLen = 64

// RequestID adds a unique request ID to each request. A well-formed
// X-Request-ID from the client is kept; otherwise a ULID is generated.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if !validRequestID(requestID) {
				requestID = ulid.Make().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = context.WithValue(ctx, requestInfoKey{}, &requestInfo{start: time.Now()})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"error", rec,
						"path", r.URL.Path,
					)
					handler.WriteError(w, r, domain.ErrInternalServer)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// HTTPMetrics receives per-request measurements.
type HTTPMetrics interface {
	RecordRequest(method, route, status string)
	ObserveRequestDuration(method, route string, seconds float64)
}

// Metrics records request counts and latency labelled by route pattern.
// Unmatched requests are labelled "unmatched" to bound cardinality.
func Metrics(m HTTPMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if info := infoFromContext(r.Context()); info != nil && info.route != "" {
				route = info.route
			}
			m.RecordRequest(r.Method, route, strconv.Itoa(wrapped.statusCode))
			m.ObserveRequestDuration(r.Method, route, time.Since(start).Seconds())
		})
	}
}

// Audit logs one line per request.
func Audit(log *slog.Logger, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"client_ip", handler.ClientIP(r, trustProxy),
			}
			if info := infoFromContext(r.Context()); info != nil {
				start = info.start
				if info.subject != "" {
					attrs = append(attrs, "subject", info.subject)
				}
			}
			attrs = append(attrs, "duration_ms", time.Since(start).Milliseconds())

			switch {
			case wrapped.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// Authorizer decides whether a path may be served for a session token.
type Authorizer interface {
	Authorize(requestPath, sessionToken string) service.Decision
}

// AdminGate enforces the access gate. Denied API or JSON requests get 401
// with a Location hint; browsers are sent to the login page with 303.
func AdminGate(gate Authorizer, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}

			d := gate.Authorize(r.URL.Path, token)
			if d.Allow {
				if d.Claims != nil {
					if info := infoFromContext(r.Context()); info != nil {
						info.subject = d.Claims.Subject
					}
					r = r.WithContext(handler.WithClaims(r.Context(), d.Claims))
				}
				next.ServeHTTP(w, r)
				return
			}

			logger.L(r.Context()).Debug("admin gate denied request", "path", r.URL.Path, "reason", d.Err)
			if wantsJSON(r) {
				w.Header().Set("Location", d.RedirectTo)
				err := d.Err
				if err == nil {
					err = domain.ErrUnauthenticated
				}
				handler.WriteError(w, r, err)
				return
			}
			http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// captureRoute records the matched ServeMux pattern for outer middleware.
// ServeMux sets Request.Pattern on the request it is handed.
func captureRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if info := infoFromContext(r.Context()); info != nil && r.Pattern != "" {
			info.route = r.Pattern
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
