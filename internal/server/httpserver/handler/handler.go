package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/internal/core/service"
	"github.com/notehub-dev/notehub/internal/telemetry/logger"
)

// Authenticator issues admin sessions.
type Authenticator interface {
	CheckLoginRate(clientKey string) error
	Issue(ctx context.Context, username, password string) (string, *domain.SessionClaims, error)
	SessionTTL() time.Duration
}

// CatalogReader serves the merged catalog.
type CatalogReader interface {
	Get(ctx context.Context) map[string]*domain.CatalogEntry
	Lookup(ctx context.Context, id string) (*domain.CatalogEntry, error)
}

// Ingester accepts upload submissions.
type Ingester interface {
	Ingest(ctx context.Context, sub *service.Submission) (*service.IngestResult, error)
	MaxAttachmentSize() int
}

// BackupFunc streams a full overlay backup to w.
type BackupFunc func(ctx context.Context, w io.Writer) error

// ReadinessFunc reports whether dependencies can serve traffic.
type ReadinessFunc func(ctx context.Context) error

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Config wires a Handler.
type Config struct {
	Auth    Authenticator
	Catalog CatalogReader
	Ingest  Ingester
	Cookie  CookieConfig

	// LoginPath is the page unauthenticated admin requests are sent to.
	LoginPath string

	// TrustProxy makes client IP detection honour X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool

	// Backup enables GET /admin/backup when set.
	Backup BackupFunc

	Ready  ReadinessFunc
	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	auth       Authenticator
	catalog    CatalogReader
	ingest     Ingester
	cookie     CookieConfig
	loginPath  string
	trustProxy bool
	backup     BackupFunc
	ready      ReadinessFunc
	logger     *slog.Logger
	mux        *http.ServeMux
}

// New creates a new Handler with the given services.
func New(cfg Config) *Handler {
	h := &Handler{
		auth:       cfg.Auth,
		catalog:    cfg.Catalog,
		ingest:     cfg.Ingest,
		cookie:     cfg.Cookie,
		loginPath:  cfg.LoginPath,
		trustProxy: cfg.TrustProxy,
		backup:     cfg.Backup,
		ready:      cfg.Ready,
		logger:     cfg.Logger,
		mux:        http.NewServeMux(),
	}
	if h.cookie.Name == "" {
		h.cookie.Name = DefaultCookieName
	}
	if h.loginPath == "" {
		h.loginPath = service.DefaultLoginPath
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	h.registerRoutes()
	return h
}

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "admin_session"

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Handle registers an extra route on the handler's mux, e.g. /metrics or a
// static file tree.
func (h *Handler) Handle(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, handler)
}

// CookieName returns the session cookie name.
func (h *Handler) CookieName() string {
	return h.cookie.Name
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	h.mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	h.mux.HandleFunc("GET "+h.loginPath, h.handleLoginPage)
	h.mux.HandleFunc("GET /admin/session", h.handleSession)

	h.mux.HandleFunc("GET /api/chapters", h.handleListChapters)
	h.mux.HandleFunc("GET /api/chapters/{id}", h.handleGetChapter)

	h.mux.HandleFunc("POST /api/upload", h.handleUpload)

	if h.backup != nil {
		h.mux.HandleFunc("GET /admin/backup", h.handleBackup)
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L(r.Context()).Error("failed to encode response", "error", err)
	}
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsDomainError(err, "") {
		logger.L(r.Context()).Error("internal error", "path", r.URL.Path, "error", err)
	}
	WriteError(w, r, err)
}

// WriteError writes the error body for err. Errors that are not domain
// errors are reported as a generic internal error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrInternalServer
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", de.Code)
	if de.Code == domain.ErrLoginRateLimited.Code {
		w.Header().Set("Retry-After", "60")
	}
	w.WriteHeader(StatusForCode(de.Code))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success:   false,
		Code:      de.Code,
		Kind:      de.Kind,
		Error:     de.Message,
		Details:   de.Details,
		RequestID: logger.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UnixMilli(),
	})
}

// StatusForCode maps an NH-<AREA>-<NNNN> code to its HTTP status: the first
// three digits of NNNN are the status.
func StatusForCode(code string) int {
	i := strings.LastIndexByte(code, '-')
	if i < 0 || len(code)-i-1 != 4 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(code[i+1 : i+4])
	if err != nil || n < 400 || n > 599 {
		return http.StatusInternalServerError
	}
	return n
}

// ClientIP extracts the client IP from the request. Forwarding headers are
// only consulted when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	// net.SplitHostPort handles IPv6 addresses like [::1]:8080.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type claimsKey struct{}

// WithClaims returns ctx carrying the authenticated session claims.
func WithClaims(ctx context.Context, c *domain.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the session claims placed by the admin gate.
func ClaimsFromContext(ctx context.Context) *domain.SessionClaims {
	c, _ := ctx.Value(claimsKey{}).(*domain.SessionClaims)
	return c
}
