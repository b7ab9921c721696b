package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// overlayPrefix is the key namespace of overlay chapter records.
const overlayPrefix = "overlay/chapter/"

// OverlayStore persists the mutable catalog overlay, one JSON record per
// chapter id.
type OverlayStore struct {
	kv     KV
	logger *slog.Logger
}

// NewOverlayStore creates an overlay store on top of kv.
func NewOverlayStore(kv KV, logger *slog.Logger) *OverlayStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverlayStore{kv: kv, logger: logger}
}

func overlayKey(id string) []byte {
	return []byte(overlayPrefix + id)
}

// List returns every decodable overlay entry keyed by id.
//
// Records that fail to decode, or whose id differs from their key, are
// skipped and logged; an iteration error is
// returned with whatever was read so far discarded.
func (s *OverlayStore) List(ctx context.Context) (map[string]*domain.CatalogEntry, error) {
	out := make(map[string]*domain.CatalogEntry)
	err := s.kv.Scan(ctx, []byte(overlayPrefix), func(key, value []byte) bool {
		entry, err := decodeEntry(strings.TrimPrefix(string(key), overlayPrefix), value)
		if err != nil {
			s.logger.Warn("skipping corrupt overlay record",
				"key", string(key),
				"error", err)
			return true
		}
		out[entry.ID] = entry
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan overlay: %w", err)
	}
	return out, nil
}

// Get returns the overlay entry for id, or (nil, nil) when there is none.
func (s *OverlayStore) Get(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	raw, err := s.kv.Get(ctx, overlayKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(id, raw)
}

// Apply runs a read-modify-write of a single overlay record in one
// transaction. fn receives the current entry (nil if absent) and returns the
// entry to store; returning an error aborts without writing.
//
// fn may run more than once if the transaction conflicts.
func (s *OverlayStore) Apply(ctx context.Context, id string,
	fn func(existing *domain.CatalogEntry) (*domain.CatalogEntry, error)) (*domain.CatalogEntry, error) {
	var stored *domain.CatalogEntry

	err := s.kv.Update(ctx, func(txn Txn) error {
		var existing *domain.CatalogEntry
		raw, err := txn.Get(overlayKey(id))
		switch {
		case errors.Is(err, ErrKeyNotFound):
		case err != nil:
			return err
		default:
			// A corrupt record is replaced rather than blocking writes.
			if existing, err = decodeEntry(id, raw); err != nil {
				s.logger.Warn("overwriting corrupt overlay record", "id", id, "error", err)
				existing = nil
			}
		}

		next, err := fn(existing)
		if err != nil {
			return err
		}
		if next.ID != id {
			return fmt.Errorf("overlay: entry id %q does not match key %q", next.ID, id)
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode overlay entry: %w", err)
		}
		if err := txn.Set(overlayKey(id), data); err != nil {
			return err
		}
		stored = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Put stores entry unconditionally.
func (s *OverlayStore) Put(ctx context.Context, entry *domain.CatalogEntry) error {
	_, err := s.Apply(ctx, entry.ID, func(*domain.CatalogEntry) (*domain.CatalogEntry, error) {
		return entry, nil
	})
	return err
}

// ImportIfEmpty writes entries in one transaction when the overlay holds no
// records. It reports how many entries were written.
func (s *OverlayStore) ImportIfEmpty(ctx context.Context, entries []*domain.CatalogEntry) (int, error) {
	empty := true
	err := s.kv.Scan(ctx, []byte(overlayPrefix), func(_, _ []byte) bool {
		empty = false
		return false
	})
	if err != nil {
		return 0, fmt.Errorf("scan overlay: %w", err)
	}
	if !empty || len(entries) == 0 {
		return 0, nil
	}

	err = s.kv.Update(ctx, func(txn Txn) error {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode overlay entry %q: %w", e.ID, err)
			}
			if err := txn.Set(overlayKey(e.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// decodeEntry parses the record stored under id.
func decodeEntry(id string, raw []byte) (*domain.CatalogEntry, error) {
	var entry domain.CatalogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	entry.Normalize()
	if entry.ID == "" {
		return nil, errors.New("overlay record has no id")
	}
	if entry.ID != id {
		return nil, fmt.Errorf("overlay record under %q has id %q", id, entry.ID)
	}
	return &entry, nil
}
