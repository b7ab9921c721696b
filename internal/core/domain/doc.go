// Package domain defines the core domain models for notehub.
//
// Domain models are plain value objects without IO dependencies.
// This package contains:
//
//   - CatalogEntry: a chapter record with optional notes/solutions artifacts
//   - SessionClaims: the signed payload carried by the admin session cookie
//   - Errors: the structured error taxonomy shared by every layer
package domain
