package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/internal/telemetry/logger"
)

// maxLoginBody bounds login request bodies.
const maxLoginBody = 64 << 10

// handleLogin handles POST /api/auth/login. The body is JSON or a form with
// username and password.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		h.handleServiceError(w, r, domain.ErrServerMisconfigured)
		return
	}

	if err := h.auth.CheckLoginRate(ClientIP(r, h.trustProxy)); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	req, err := decodeLogin(w, r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	token, claims, err := h.auth.Issue(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.L(r.Context()).Warn("admin login rejected", "client_ip", ClientIP(r, h.trustProxy), "reason", domain.GetErrorKind(err))
		h.handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, int(h.auth.SessionTTL()/time.Second)))
	logger.L(r.Context()).Info("admin login", "subject", claims.Subject, "client_ip", ClientIP(r, h.trustProxy))
	h.writeJSON(w, r, http.StatusOK, LoginResponse{Success: true, ExpiresAt: claims.ExpiresAt})
}

// handleLogout handles POST /api/auth/logout. It always succeeds.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	h.writeJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

// handleLoginPage handles GET on the login path. There is no HTML UI; the
// reply points clients at the login API and echoes the return target.
func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, LoginPageResponse{
		LoginEndpoint: "/api/auth/login",
		Next:          r.URL.Query().Get("next"),
	})
}

// handleSession handles GET /admin/session.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	c := ClaimsFromContext(r.Context())
	if c == nil {
		h.handleServiceError(w, r, domain.ErrUnauthenticated)
		return
	}
	h.writeJSON(w, r, http.StatusOK, SessionResponse{
		Success:   true,
		Subject:   c.Subject,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	})
}

// sessionCookie builds the session cookie. maxAge < 0 clears it.
func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (*LoginRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return nil, domain.ErrMalformedRequest.WithDetails("invalid JSON body")
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, domain.ErrMalformedRequest.WithDetails("invalid form body")
	}
	return &LoginRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}, nil
}
