package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned by Get for an absent key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("kv engine closed")
	// ErrTxnConflict is returned when Update keeps losing write conflicts.
	ErrTxnConflict = errors.New("transaction conflict retries exhausted")
)

// KV is the part of the engine the overlay records are kept in. Update
// runs fn in a serializable read-write transaction; fn may run again after
// a conflict.
type KV interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error
	Update(ctx context.Context, fn func(txn Txn) error) error
}

// Txn is the view of a read-write transaction handed to Update callbacks.
type Txn interface {
	// Get returns ErrKeyNotFound when key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Stats is a point-in-time view of the engine's disk usage.
type Stats struct {
	LSMBytes      uint64
	ValueLogBytes uint64
	GCRewrites    uint64
	TxnRetries    uint64

	// LastGC is zero until the first value log GC pass.
	LastGC time.Time
}

// TotalBytes is the combined on-disk size.
func (s Stats) TotalBytes() uint64 { return s.LSMBytes + s.ValueLogBytes }

// Options configures a BadgerEngine.
type Options struct {
	Dir string

	// SyncWrites fsyncs every commit. Overlay writes are rare admin
	// uploads, so it defaults on.
	SyncWrites bool

	// GCInterval is the period of value log GC; zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the stale fraction a value log file needs before
	// GC rewrites it.
	GCDiscardRatio float64

	BlockCacheBytes int64

	// ConflictRetries bounds how often Update reruns a conflicting txn.
	ConflictRetries int
}

// DefaultOptions returns the options used by notehub-server for dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:             dir,
		SyncWrites:      true,
		GCInterval:      10 * time.Minute,
		GCDiscardRatio:  0.5,
		BlockCacheBytes: 16 << 20,
		ConflictRetries: 5,
	}
}
