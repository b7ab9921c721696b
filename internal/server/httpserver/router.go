package httpserver

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/notehub-dev/notehub/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler carries the services behind the API routes.
	Handler handler.Config

	// Gate protects admin paths. Nil denies nothing, which is only
	// appropriate in tests.
	Gate Authorizer

	// Metrics records request metrics when non-nil.
	Metrics HTTPMetrics

	// MetricsHandler is served at MetricsPath when non-nil.
	MetricsHandler http.Handler
	MetricsPath    string

	// StaticDir is served read-only under StaticPrefix when both are set.
	StaticDir    string
	StaticPrefix string

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	hcfg := cfg.Handler
	if hcfg.Logger == nil {
		hcfg.Logger = log
	}
	h := handler.New(hcfg)

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		h.Handle("GET "+path, cfg.MetricsHandler)
	}

	if cfg.StaticDir != "" && cfg.StaticPrefix != "" {
		prefix := "/" + strings.Trim(cfg.StaticPrefix, "/")
		h.Handle("GET "+prefix+"/", http.StripPrefix(prefix, http.FileServer(noListingFS{http.Dir(cfg.StaticDir)})))
	}

	// Order: RequestID -> Recover -> Metrics -> Audit -> AdminGate -> mux
	middlewares := []Middleware{RequestID(), Recover(log)}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, Metrics(cfg.Metrics))
	}
	middlewares = append(middlewares, Audit(log, hcfg.TrustProxy))
	if cfg.Gate != nil {
		middlewares = append(middlewares, AdminGate(cfg.Gate, h.CookieName()))
	}

	return Chain(captureRoute(h), middlewares...)
}

// noListingFS hides directory listings: directories without an index.html
// are reported as missing.
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		index, err := n.fs.Open(strings.TrimSuffix(name, "/") + "/index.html")
		if err != nil {
			f.Close()
			return nil, os.ErrNotExist
		}
		index.Close()
	}
	return f, nil
}
