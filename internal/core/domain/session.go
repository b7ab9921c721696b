package domain

import "time"

// SessionClaims is the payload signed into the admin session token.
//
// Timestamps are Unix milliseconds.
type SessionClaims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// IsExpired reports whether the claims are past their expiry at now.
// Claims without an expiry are treated as expired.
func (c *SessionClaims) IsExpired(now time.Time) bool {
	if c.ExpiresAt <= 0 {
		return true
	}
	return now.UnixMilli() >= c.ExpiresAt
}

// IssuedTime returns IssuedAt as a time.Time.
func (c *SessionClaims) IssuedTime() time.Time {
	return time.UnixMilli(c.IssuedAt)
}

// ExpiresTime returns ExpiresAt as a time.Time.
func (c *SessionClaims) ExpiresTime() time.Time {
	return time.UnixMilli(c.ExpiresAt)
}
