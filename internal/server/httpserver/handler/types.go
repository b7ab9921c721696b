package handler

import "github.com/notehub-dev/notehub/internal/core/domain"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
}

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/auth/login.
type LoginResponse struct {
	Success   bool  `json:"success"`
	ExpiresAt int64 `json:"expiresAt"`
}

// SuccessResponse is the response body for operations with no payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SessionResponse is the response body for GET /admin/session.
type SessionResponse struct {
	Success   bool   `json:"success"`
	Subject   string `json:"subject"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// LoginPageResponse is the response body for GET on the login path.
type LoginPageResponse struct {
	LoginEndpoint string `json:"loginEndpoint"`
	Next          string `json:"next,omitempty"`
}

// UploadResponse is the response body for POST /api/upload.
type UploadResponse struct {
	Success bool                 `json:"success"`
	Chapter *domain.CatalogEntry `json:"chapter"`
	Storage string               `json:"storage"`
}

// HealthResponse is the response body for GET /health and GET /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
