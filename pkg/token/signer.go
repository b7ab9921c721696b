package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// Separator joins the payload and signature halves of a token.
const Separator = "."

var (
	// ErrMalformed is returned when a token cannot be split or decoded.
	ErrMalformed = errors.New("token: malformed")

	// ErrSignature is returned when the signature does not match the payload.
	ErrSignature = errors.New("token: signature mismatch")

	// ErrNoSecret is returned when signing or opening without a secret.
	ErrNoSecret = errors.New("token: secret is empty")
)

var payloadEncoding = base64.StdEncoding.Strict()

// Sign encodes payload and appends its HMAC-SHA256 signature.
func Sign(secret, payload []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	return payloadEncoding.EncodeToString(payload) + Separator + signatureHex(secret, payload), nil
}

// Open splits token on its last separator, decodes the payload, and returns
// it only if the signature matches. The comparison is constant-time.
func Open(secret []byte, tok string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	// The decoder silently skips CR/LF; refuse them so every accepted token
	// has exactly one textual form.
	if strings.ContainsAny(tok, "\r\n") {
		return nil, ErrMalformed
	}

	idx := strings.LastIndex(tok, Separator)
	if idx <= 0 || idx == len(tok)-1 {
		return nil, ErrMalformed
	}

	payload, err := payloadEncoding.DecodeString(tok[:idx])
	if err != nil {
		return nil, ErrMalformed
	}

	expected := signatureHex(secret, payload)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(tok[idx+1:])) != 1 {
		return nil, ErrSignature
	}

	return payload, nil
}

func signatureHex(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
