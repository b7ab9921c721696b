package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/pkg/passhash"
	"github.com/notehub-dev/notehub/pkg/token"
)

// DefaultSessionTTL matches the admin_session cookie Max-Age.
const DefaultSessionTTL = 4 * time.Hour

// AuthMetrics receives login and verification outcomes.
type AuthMetrics interface {
	RecordLogin(result string)
	RecordTokenValidation(result string)
}

// AuthService issues and verifies admin session tokens.
//
// It holds no per-session state; a token is valid on any instance that shares
// the secret and admin identity.
type AuthService struct {
	username string
	password string // plaintext or argon2id PHC string
	secret   []byte
	ttl      time.Duration

	rateLimiters *RateLimiterRegistry
	metrics      AuthMetrics
	now          func() time.Time
}

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	Username string
	Password string
	Secret   string

	// SessionTTL is embedded in every token as its expiry (default: 4h).
	SessionTTL time.Duration

	// LoginRatePerMinute bounds login attempts per client (0 disables).
	LoginRatePerMinute int

	// LoginBurst is the limiter burst (default: LoginRatePerMinute).
	LoginBurst int

	Metrics AuthMetrics
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	s := &AuthService{
		username: cfg.Username,
		password: cfg.Password,
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
	if s.metrics == nil {
		s.metrics = nopAuthMetrics{}
	}
	if cfg.LoginRatePerMinute > 0 {
		burst := cfg.LoginBurst
		if burst <= 0 {
			burst = cfg.LoginRatePerMinute
		}
		s.rateLimiters = NewRateLimiterRegistry(rate.Every(time.Minute/time.Duration(cfg.LoginRatePerMinute)), burst)
	}
	return s
}

// Configured reports whether identity and secret are all set.
func (s *AuthService) Configured() bool {
	return s.username != "" && s.password != "" && len(s.secret) > 0
}

// SessionTTL returns the lifetime of issued tokens.
func (s *AuthService) SessionTTL() time.Duration {
	return s.ttl
}

// CheckLoginRate consumes one login attempt for clientKey.
func (s *AuthService) CheckLoginRate(clientKey string) error {
	if s.rateLimiters == nil {
		return nil
	}
	if !s.rateLimiters.GetOrCreate(clientKey).Allow() {
		s.metrics.RecordLogin("rate_limited")
		return domain.ErrLoginRateLimited
	}
	return nil
}

// Issue checks the credential pair and returns a signed session token.
//
// A wrong username and a wrong password produce the same error.
func (s *AuthService) Issue(ctx context.Context, username, password string) (string, *domain.SessionClaims, error) {
	if !s.Configured() {
		s.metrics.RecordLogin("misconfigured")
		return "", nil, domain.ErrServerMisconfigured
	}

	// Evaluate both comparisons so timing does not reveal which one failed.
	userOK := passhash.Equal(username, s.username)
	passOK := passhash.Equal(password, s.password)
	if !userOK || !passOK {
		s.metrics.RecordLogin("invalid")
		return "", nil, domain.ErrInvalidCredentials
	}

	now := s.now()
	claims := &domain.SessionClaims{
		Subject:   username,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", nil, domain.ErrInternalServer.WithCause(err)
	}
	tok, err := token.Sign(s.secret, payload)
	if err != nil {
		return "", nil, domain.ErrServerMisconfigured.WithCause(err)
	}

	s.metrics.RecordLogin("success")
	return tok, claims, nil
}

// Verify reports whether tok is a valid, unexpired session token.
// It never panics on malformed input.
func (s *AuthService) Verify(tok string) bool {
	_, err := s.Inspect(tok)
	return err == nil
}

// Inspect verifies tok and returns its claims. Every failure is
// ErrUnauthenticated with a detail for logging.
func (s *AuthService) Inspect(tok string) (*domain.SessionClaims, error) {
	claims, reason, err := s.inspect(tok)
	if err != nil {
		s.metrics.RecordTokenValidation(reason)
		return nil, err
	}
	s.metrics.RecordTokenValidation("valid")
	return claims, nil
}

func (s *AuthService) inspect(tok string) (*domain.SessionClaims, string, error) {
	if !s.Configured() {
		return nil, "misconfigured", domain.ErrUnauthenticated.WithDetails("auth not configured")
	}
	if tok == "" {
		return nil, "missing", domain.ErrUnauthenticated.WithDetails("no session")
	}

	payload, err := token.Open(s.secret, tok)
	if err != nil {
		if errors.Is(err, token.ErrSignature) {
			return nil, "invalid", domain.ErrUnauthenticated.WithDetails("bad signature")
		}
		return nil, "invalid", domain.ErrUnauthenticated.WithDetails("malformed token")
	}

	var claims domain.SessionClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, "invalid", domain.ErrUnauthenticated.WithDetails("malformed claims")
	}
	if claims.IsExpired(s.now()) {
		return nil, "expired", domain.ErrUnauthenticated.WithDetails("session expired")
	}
	if !passhash.Equal(claims.Subject, s.username) {
		return nil, "invalid", domain.ErrUnauthenticated.WithDetails("unknown subject")
	}
	return &claims, "valid", nil
}

// ============================================================================
// RateLimiterRegistry - Rate Limiter Management
// ============================================================================

// maxLimiters bounds the registry; when reached it is reset.
const maxLimiters = 10000

// RateLimiterRegistry manages one rate limiter per client key.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiterRegistry creates a registry handing out limiters with the
// given rate and burst.
func NewRateLimiterRegistry(limit rate.Limit, burst int) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// GetOrCreate retrieves an existing rate limiter or creates a new one.
func (r *RateLimiterRegistry) GetOrCreate(key string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := r.limiters[key]; exists {
		return limiter
	}
	if len(r.limiters) >= maxLimiters {
		r.limiters = make(map[string]*rate.Limiter)
	}

	limiter = rate.NewLimiter(r.limit, r.burst)
	r.limiters[key] = limiter
	return limiter
}

// Len returns the number of tracked clients.
func (r *RateLimiterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

type nopAuthMetrics struct{}

func (nopAuthMetrics) RecordLogin(string)           {}
func (nopAuthMetrics) RecordTokenValidation(string) {}
