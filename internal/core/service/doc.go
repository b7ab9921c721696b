// Package service provides the domain services of notehub.
//
// Domain services contain the business logic and define interfaces for their
// storage and transport dependencies, allowing for dependency injection and
// testability.
//
// This package contains:
//
//   - AuthService: admin login, signed session tokens and login throttling
//   - AccessGate: protected-path decisions on top of AuthService
//   - CatalogService: merged base+overlay catalog and serialized upserts
//   - IngestService: upload validation, artifact persistence and registration
//
// All services are safe for concurrent use.
package service
