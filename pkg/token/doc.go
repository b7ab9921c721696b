// Package token provides signed session token encoding, random secret
// generation and content digests.
//
// Token Format:
//
//	base64(payload) "." hex(HMAC-SHA256(secret, payload))
//
// The payload is opaque to this package; callers choose its serialization.
// The base64 half uses standard padded encoding and is decoded strictly, and
// the signature half must be lowercase hex, so no two distinct token strings
// verify to the same payload.
package token
