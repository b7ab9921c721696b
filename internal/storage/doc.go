// Package storage provides durable storage for the mutable catalog overlay.
//
// The overlay lives in an embedded Badger database. Each overlay record is
// one key, so an upsert is a single serializable transaction instead of a
// read-modify-write of a whole file:
//
//   - KV: the transactional key space, implemented by BadgerEngine
//   - OverlayStore: CatalogEntry records keyed by chapter id
//
// The immutable base catalog is compiled into the binary by the basecatalog
// subpackage and is never written here.
package storage
