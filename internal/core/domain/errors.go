// Package domain defines the core domain models for notehub.
package domain

import "errors"

// DomainError is a failure a client can act on. Code has the form
// NH-<AREA>-<NNNN>, where the first three digits of NNNN are the HTTP
// status the API answers with. Kind is the short name sent to clients.
type DomainError struct {
	Code    string
	Kind    string
	Message string
	Details string
	Cause   error
}

// NewDomainError defines a sentinel.
func NewDomainError(code, kind, message string) *DomainError {
	return &DomainError{Code: code, Kind: kind, Message: message}
}

func (e *DomainError) Error() string {
	msg := "[" + e.Code + "] " + e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches any DomainError with the same code, so a sentinel matches
// the decorated copies made from it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy of e carrying details. Sentinels are shared
// and never modified.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

func asDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	ok := errors.As(err, &de)
	return de, ok
}

// IsDomainError reports whether err wraps a DomainError, with the given
// code unless code is empty.
func IsDomainError(err error, code string) bool {
	de, ok := asDomainError(err)
	return ok && (code == "" || de.Code == code)
}

// GetErrorCode returns the code of the DomainError in err, or "".
func GetErrorCode(err error) string {
	if de, ok := asDomainError(err); ok {
		return de.Code
	}
	return ""
}

// GetErrorKind returns the kind of the DomainError in err, or "".
func GetErrorKind(err error) string {
	if de, ok := asDomainError(err); ok {
		return de.Kind
	}
	return ""
}

// Admin authentication. ErrInvalidCredentials covers every mismatch and
// never says which half of the pair was wrong.
var (
	ErrUnauthenticated     = NewDomainError("NH-AUTH-4010", "Unauthenticated", "authentication required")
	ErrInvalidCredentials  = NewDomainError("NH-AUTH-4011", "InvalidCredentials", "invalid credentials")
	ErrLoginRateLimited    = NewDomainError("NH-AUTH-4290", "RateLimited", "too many login attempts")
	ErrServerMisconfigured = NewDomainError("NH-AUTH-5000", "ServerMisconfigured", "server auth is not configured")
)

// Submission validation.
var (
	ErrMalformedRequest      = NewDomainError("NH-VAL-4000", "MalformedRequest", "malformed request")
	ErrMissingField          = NewDomainError("NH-VAL-4001", "MissingField", "missing required fields")
	ErrInvalidField          = NewDomainError("NH-VAL-4002", "InvalidField", "invalid field value")
	ErrNoAttachmentProvided  = NewDomainError("NH-VAL-4003", "NoAttachmentProvided", "at least one file is required")
	ErrAttachmentTooLarge    = NewDomainError("NH-VAL-4130", "AttachmentTooLarge", "attachment too large")
	ErrInvalidAttachmentType = NewDomainError("NH-VAL-4150", "InvalidAttachmentType", "attachment must be a PDF")
)

// Catalog lookups. ErrChapterConflict is returned when a derived id is
// taken and the submission did not ask to replace it.
var (
	ErrChapterNotFound = NewDomainError("NH-CAT-4040", "ChapterNotFound", "chapter not found")
	ErrChapterConflict = NewDomainError("NH-CAT-4090", "ChapterConflict", "chapter id already exists")
)

// Artifact backends and the overlay store.
var (
	ErrUnknownBackend     = NewDomainError("NH-BE-4001", "UnknownBackend", "unknown storage backend")
	ErrLocalWriteFailed   = NewDomainError("NH-BE-5001", "LocalWriteFailed", "local artifact write failed")
	ErrRemoteAPIFailed    = NewDomainError("NH-BE-5002", "RemoteApiFailed", "remote artifact upload failed")
	ErrOverlayWriteFailed = NewDomainError("NH-BE-5004", "OverlayWriteFailed", "catalog overlay write failed")

	// ErrRemoteCredentialsMissing means owner, repo or token is unset.
	ErrRemoteCredentialsMissing = NewDomainError("NH-BE-5003", "RemoteCredentialsMissing",
		"remote storage is not configured; set owner, repo and token")
)

// ErrInternalServer stands in for any failure that is not a DomainError.
var ErrInternalServer = NewDomainError("NH-SYS-5000", "Internal", "internal server error")
