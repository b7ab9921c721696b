package service

import (
	"net/url"
	"path"
	"strings"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// Default gate settings.
const (
	DefaultLoginPath = "/admin/login"
)

// DefaultProtectedPrefixes are the path prefixes that require a session.
var DefaultProtectedPrefixes = []string{"/admin", "/api/upload"}

// SessionInspector verifies a session token.
type SessionInspector interface {
	Inspect(token string) (*domain.SessionClaims, error)
}

// GateMetrics receives gate decisions on protected paths.
type GateMetrics interface {
	RecordGateDecision(decision string)
}

// Decision is the outcome of AccessGate.Authorize.
type Decision struct {
	// Allow is true when the request may proceed.
	Allow bool

	// Protected is true when the path required a session.
	Protected bool

	// RedirectTo is the login URL carrying the original path when Allow is false.
	RedirectTo string

	// Claims is set for allowed requests on protected paths.
	Claims *domain.SessionClaims

	// Err explains a denial.
	Err error
}

// AccessGate decides whether a request path may be served.
//
// It fails closed: missing configuration, a missing cookie or a token that
// does not verify all deny.
type AccessGate struct {
	sessions  SessionInspector
	loginPath string
	prefixes  []string
	metrics   GateMetrics
}

// AccessGateConfig configures an AccessGate.
type AccessGateConfig struct {
	LoginPath         string
	ProtectedPrefixes []string
	Metrics           GateMetrics
}

// NewAccessGate creates a gate backed by sessions.
func NewAccessGate(sessions SessionInspector, cfg AccessGateConfig) *AccessGate {
	g := &AccessGate{
		sessions:  sessions,
		loginPath: cfg.LoginPath,
		prefixes:  cfg.ProtectedPrefixes,
		metrics:   cfg.Metrics,
	}
	if g.loginPath == "" {
		g.loginPath = DefaultLoginPath
	}
	if len(g.prefixes) == 0 {
		g.prefixes = DefaultProtectedPrefixes
	}
	if g.metrics == nil {
		g.metrics = nopGateMetrics{}
	}
	return g
}

// LoginPath returns the unauthenticated login page path.
func (g *AccessGate) LoginPath() string {
	return g.loginPath
}

// IsProtected reports whether p requires a session.
func (g *AccessGate) IsProtected(p string) bool {
	p = cleanPath(p)
	if p == g.loginPath || strings.HasPrefix(p, g.loginPath+"/") {
		return false
	}
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Authorize decides on a request for requestPath carrying the session cookie
// value sessionToken (empty when absent).
func (g *AccessGate) Authorize(requestPath, sessionToken string) Decision {
	if !g.IsProtected(requestPath) {
		return Decision{Allow: true}
	}

	if sessionToken == "" {
		g.metrics.RecordGateDecision("deny")
		return g.deny(requestPath, domain.ErrUnauthenticated.WithDetails("no session"))
	}
	if g.sessions == nil {
		g.metrics.RecordGateDecision("deny")
		return g.deny(requestPath, domain.ErrUnauthenticated.WithDetails("auth not configured"))
	}

	claims, err := g.sessions.Inspect(sessionToken)
	if err != nil {
		g.metrics.RecordGateDecision("deny")
		return g.deny(requestPath, err)
	}

	g.metrics.RecordGateDecision("allow")
	return Decision{Allow: true, Protected: true, Claims: claims}
}

func (g *AccessGate) deny(requestPath string, err error) Decision {
	return Decision{
		Protected:  true,
		RedirectTo: g.loginPath + "?next=" + url.QueryEscape(cleanPath(requestPath)),
		Err:        err,
	}
}

// cleanPath normalizes p so "/api//upload" or "/x/../admin" cannot slip past
// prefix matching.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

type nopGateMetrics struct{}

func (nopGateMetrics) RecordGateDecision(string) {}
