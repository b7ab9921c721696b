package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// restorePendingWrites bounds the write batches Load keeps in flight.
const restorePendingWrites = 256

// BadgerEngine keeps the catalog overlay in a Badger database. It
// satisfies KV and adds the maintenance operations notehub-server uses
// directly.
type BadgerEngine struct {
	db   *badger.DB
	opts Options
	log  *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
	bg        sync.WaitGroup

	lastGC     atomic.Int64 // unix nanoseconds
	gcRewrites atomic.Uint64
	retries    atomic.Uint64
}

// OpenBadger opens or creates the database in opts.Dir. Zero tuning
// fields take their DefaultOptions values.
func OpenBadger(opts Options, logger *slog.Logger) (*BadgerEngine, error) {
	if opts.Dir == "" {
		return nil, errors.New("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions(opts.Dir)
	if opts.GCDiscardRatio <= 0 || opts.GCDiscardRatio >= 1 {
		opts.GCDiscardRatio = def.GCDiscardRatio
	}
	if opts.BlockCacheBytes <= 0 {
		opts.BlockCacheBytes = def.BlockCacheBytes
	}
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = def.ConflictRetries
	}

	bopts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLog{logger}).
		WithSyncWrites(opts.SyncWrites).
		WithBlockCacheSize(opts.BlockCacheBytes).
		WithDetectConflicts(true)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", opts.Dir, err)
	}

	e := &BadgerEngine{db: db, opts: opts, log: logger, stop: make(chan struct{})}
	if opts.GCInterval > 0 {
		e.bg.Add(1)
		go e.gcLoop()
	}

	logger.Info("overlay store opened",
		"dir", opts.Dir,
		"sync_writes", opts.SyncWrites,
		"gc_interval", opts.GCInterval)
	return e, nil
}

// Get returns a copy of the value stored under key.
func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	var value []byte
	err := e.db.View(func(txn *badger.Txn) (err error) {
		value, err = badgerTxn{txn}.Get(key)
		return err
	})
	return value, err
}

// Scan calls fn for every key under prefix in key order until fn
// returns false.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 32, Prefix: prefix})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				return nil
			}
		}
		return nil
	})
}

// Update commits fn's writes atomically. A write conflict reruns fn, up
// to Options.ConflictRetries times, so fn must only touch txn.
func (e *BadgerEngine) Update(ctx context.Context, fn func(txn Txn) error) error {
	for attempt := 1; ; attempt++ {
		if err := e.check(ctx); err != nil {
			return err
		}
		err := e.db.Update(func(txn *badger.Txn) error {
			return fn(badgerTxn{txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt >= e.opts.ConflictRetries {
			return fmt.Errorf("%w after %d attempts", ErrTxnConflict, attempt)
		}
		e.retries.Add(1)
		e.log.Debug("overlay write conflict", "attempt", attempt)
	}
}

// Backup streams a full backup to w.
func (e *BadgerEngine) Backup(ctx context.Context, w io.Writer) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	if _, err := e.db.Backup(w, 0); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

// Restore loads a stream written by Backup. Keys present in both are
// overwritten.
func (e *BadgerEngine) Restore(ctx context.Context, r io.Reader) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	if err := e.db.Load(r, restorePendingWrites); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

// GC rewrites value log files until Badger finds nothing worth
// rewriting, and returns how many it rewrote.
func (e *BadgerEngine) GC(ctx context.Context) (int, error) {
	if err := e.check(ctx); err != nil {
		return 0, err
	}
	rewrites := 0
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.opts.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return rewrites, fmt.Errorf("value log gc: %w", err)
		}
		rewrites++
	}
	e.gcRewrites.Add(uint64(rewrites))
	e.lastGC.Store(time.Now().UnixNano())
	e.log.Debug("value log gc finished", "rewrites", rewrites)
	return rewrites, nil
}

// Stats reports disk usage and maintenance counters.
func (e *BadgerEngine) Stats(ctx context.Context) (Stats, error) {
	if err := e.check(ctx); err != nil {
		return Stats{}, err
	}
	lsm, vlog := e.db.Size()
	s := Stats{
		LSMBytes:      uint64(lsm),
		ValueLogBytes: uint64(vlog),
		GCRewrites:    e.gcRewrites.Load(),
		TxnRetries:    e.retries.Load(),
	}
	if ns := e.lastGC.Load(); ns != 0 {
		s.LastGC = time.Unix(0, ns)
	}
	return s, nil
}

// Close stops background GC and closes the database. Later calls are
// no-ops.
func (e *BadgerEngine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stop)
		e.bg.Wait()
		if cerr := e.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close: %w", cerr)
		}
		e.log.Info("overlay store closed")
	})
	return err
}

// RegisterMetrics exposes the engine's counters on reg. The values are
// read at scrape time.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) *BadgerEngine {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "notehub", Subsystem: "badger", Name: name, Help: help}
	}
	size := func(lsm bool) func() float64 {
		return func() float64 {
			if e.closed.Load() {
				return 0
			}
			l, v := e.db.Size()
			if lsm {
				return float64(l)
			}
			return float64(v)
		}
	}

	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts(opts("lsm_size_bytes", "Size of the LSM tree.")), size(true)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts(opts("value_log_size_bytes", "Size of the value log.")), size(false)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts(opts("last_gc_timestamp_seconds", "Unix time of the last value log GC.")),
			func() float64 { return float64(e.lastGC.Load()) / 1e9 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts(opts("gc_rewrites_total", "Value log files rewritten by GC.")),
			func() float64 { return float64(e.gcRewrites.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts(opts("txn_retries_total", "Overlay transactions rerun after a write conflict.")),
			func() float64 { return float64(e.retries.Load()) }),
	)
	return e
}

func (e *BadgerEngine) gcLoop() {
	defer e.bg.Done()
	ticker := time.NewTicker(e.opts.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.opts.GCInterval)
			if _, err := e.GC(ctx); err != nil && !errors.Is(err, ErrClosed) {
				e.log.Warn("value log gc failed", "error", err)
			}
			cancel()
		case <-e.stop:
			return
		}
	}
}

func (e *BadgerEngine) check(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

type badgerTxn struct{ txn *badger.Txn }

func (t badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t badgerTxn) Set(key, value []byte) error { return t.txn.Set(key, value) }
func (t badgerTxn) Delete(key []byte) error     { return t.txn.Delete(key) }

// badgerLog routes Badger's logging to slog. Its info output is routine
// compaction noise and goes to debug.
type badgerLog struct{ l *slog.Logger }

func (b badgerLog) Errorf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLog) Warningf(format string, args ...interface{}) {
	b.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLog) Infof(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLog) Debugf(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
