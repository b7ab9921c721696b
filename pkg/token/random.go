package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// MinSecretBytes is the shortest secret NewSecret should be asked for;
// HMAC-SHA256 gains nothing from keys beyond the hash size.
const MinSecretBytes = sha256.Size

// NewSecret returns n random bytes as unpadded URL-safe base64, which
// needs no quoting in YAML or an environment variable.
func NewSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
