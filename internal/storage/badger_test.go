package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestEngine(t *testing.T) *BadgerEngine {
	t.Helper()

	opts := DefaultOptions(t.TempDir())
	opts.GCInterval = 0
	opts.SyncWrites = false

	engine, err := OpenBadger(opts, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func put(t *testing.T, engine *BadgerEngine, key, value string) {
	t.Helper()
	err := engine.Update(context.Background(), func(txn Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		put(t, engine, "test-key", "test-value")
		got, err := engine.Get(ctx, []byte("test-key"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "test-value" {
			t.Errorf("expected test-value, got %s", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("non-existent"))
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := []byte("delete-key")
		put(t, engine, string(key), "v")
		err := engine.Update(ctx, func(txn Txn) error { return txn.Delete(key) })
		if err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
		}
	})

	t.Run("Scan with prefix", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			put(t, engine, "scan:"+strconv.Itoa(i), "v")
		}
		put(t, engine, "other:1", "v")
		put(t, engine, "scam", "v")

		count := 0
		err := engine.Scan(ctx, []byte("scan:"), func(key, value []byte) bool {
			if !bytes.HasPrefix(key, []byte("scan:")) {
				t.Errorf("unexpected key %s", key)
			}
			count++
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		if count != 5 {
			t.Errorf("expected 5 keys, got %d", count)
		}
	})

	t.Run("Scan stops early", func(t *testing.T) {
		count := 0
		err := engine.Scan(ctx, []byte("scan:"), func(key, value []byte) bool {
			count++
			return count < 2
		})
		if err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("expected scan to stop after 2, got %d", count)
		}
	})
}

func TestBadgerEngine_UpdateRollsBackOnError(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := engine.Update(ctx, func(txn Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := engine.Get(ctx, []byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("write from failed txn is visible: %v", err)
	}
}

func TestBadgerEngine_ConcurrentReadModifyWrite(t *testing.T) {
	engine := newTestEngine(t)
	engine.opts.ConflictRetries = 1000
	ctx := context.Background()
	key := []byte("counter")

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := engine.Update(ctx, func(txn Txn) error {
				n := 0
				raw, err := txn.Get(key)
				switch {
				case errors.Is(err, ErrKeyNotFound):
				case err != nil:
					return err
				default:
					n, _ = strconv.Atoi(string(raw))
				}
				return txn.Set(key, []byte(strconv.Itoa(n+1)))
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	raw, err := engine.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != strconv.Itoa(workers) {
		t.Errorf("lost update: counter = %s, want %d", raw, workers)
	}
}

func TestBadgerEngine_Backup(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	put(t, engine, "a", "1")
	var buf bytes.Buffer
	if err := engine.Backup(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("backup is empty")
	}

	restored := newTestEngine(t)
	if err := restored.Restore(ctx, &buf); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := restored.Get(ctx, []byte("a"))
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if string(got) != "1" {
		t.Errorf("restored value = %q, want %q", got, "1")
	}
}

func TestBadgerEngine_GCAndStats(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.GC(ctx); err != nil {
		t.Fatalf("GC: %v", err)
	}
	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.LastGC.IsZero() {
		t.Error("LastGC not recorded")
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestEngine(t)
	reg := prometheus.NewRegistry()
	engine.RegisterMetrics(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "notehub_badger_lsm_size_bytes" {
			found = true
		}
	}
	if !found {
		t.Error("notehub_badger_lsm_size_bytes not registered")
	}
}

func TestBadgerEngine_Closed(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := engine.Get(context.Background(), []byte("k")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestOpenBadger_RequiresDir(t *testing.T) {
	if _, err := OpenBadger(Options{}, nil); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestBadgerEngine_BackgroundGCStopsOnClose(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.GCInterval = 5 * time.Millisecond
	opts.SyncWrites = false
	engine, err := OpenBadger(opts, slog.Default())
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err := engine.Stats(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !stats.LastGC.IsZero() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background gc never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
}
