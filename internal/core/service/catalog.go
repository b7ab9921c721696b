package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// OverlayRepository defines the storage interface for the catalog overlay.
type OverlayRepository interface {
	// List returns all overlay entries keyed by id.
	List(ctx context.Context) (map[string]*domain.CatalogEntry, error)

	// Get returns the overlay entry for id, or nil if there is none.
	Get(ctx context.Context, id string) (*domain.CatalogEntry, error)

	// Apply read-modify-writes one entry in a single transaction.
	Apply(ctx context.Context, id string,
		fn func(existing *domain.CatalogEntry) (*domain.CatalogEntry, error)) (*domain.CatalogEntry, error)

	// ImportIfEmpty writes entries only if the overlay has none.
	ImportIfEmpty(ctx context.Context, entries []*domain.CatalogEntry) (int, error)
}

// CatalogService serves the merged catalog: the immutable base set with the
// overlay shadowing it by id.
//
// Reads go straight to the overlay store, so a completed Upsert is visible to
// every later Get in the process. Writes are serialized by a single-writer
// lock on top of the store's own transactions.
type CatalogService struct {
	base    map[string]*domain.CatalogEntry
	overlay OverlayRepository
	logger  *slog.Logger

	writeMu sync.Mutex
	now     func() time.Time
}

// NewCatalogService creates a catalog over base and overlay. base is not
// modified.
func NewCatalogService(base map[string]*domain.CatalogEntry, overlay OverlayRepository, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	if base == nil {
		base = map[string]*domain.CatalogEntry{}
	}
	return &CatalogService{
		base:    base,
		overlay: overlay,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the merged catalog. Entries are copies.
//
// An unreadable overlay is logged and treated as empty.
func (s *CatalogService) Get(ctx context.Context) map[string]*domain.CatalogEntry {
	merged := make(map[string]*domain.CatalogEntry, len(s.base))
	for id, e := range s.base {
		merged[id] = e.Clone()
	}

	overlay, err := s.overlay.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "overlay unreadable, serving base catalog only", "error", err)
		return merged
	}
	for id, e := range overlay {
		merged[id] = e
	}
	return merged
}

// Lookup returns the merged entry for id.
func (s *CatalogService) Lookup(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	e, err := s.overlay.Get(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "overlay lookup failed, falling back to base", "id", id, "error", err)
	}
	if e != nil {
		return e, nil
	}
	if b, ok := s.base[id]; ok {
		return b.Clone(), nil
	}
	return nil, domain.ErrChapterNotFound.WithDetails(id)
}

// Counts returns the number of base and overlay entries.
func (s *CatalogService) Counts(ctx context.Context) (base, overlay int, err error) {
	o, err := s.overlay.List(ctx)
	return len(s.base), len(o), err
}

// Upsert stores entry in the overlay, replacing any entry with the same id.
// It is idempotent by id. Zero CreatedAt or UpdatedAt are set to the current
// time; other values are stored as given.
func (s *CatalogService) Upsert(ctx context.Context, entry *domain.CatalogEntry) error {
	_, err := s.write(ctx, entry, true, false)
	return err
}

// Register stores entry in the overlay as the ingester does: an entry whose
// id exists in the overlay or the base catalog is rejected with
// ErrChapterConflict unless allowReplace is set. A replaced entry keeps its
// CreatedAt and any artifact URL the new entry leaves unset.
func (s *CatalogService) Register(ctx context.Context, entry *domain.CatalogEntry, allowReplace bool) (*domain.CatalogEntry, error) {
	return s.write(ctx, entry, allowReplace, true)
}

// Exists reports whether id is present in the merged catalog.
func (s *CatalogService) Exists(ctx context.Context, id string) (bool, error) {
	if _, ok := s.base[id]; ok {
		return true, nil
	}
	e, err := s.overlay.Get(ctx, id)
	if err != nil {
		return false, domain.ErrOverlayWriteFailed.WithDetails("read overlay").WithCause(err)
	}
	return e != nil, nil
}

func (s *CatalogService) write(ctx context.Context, entry *domain.CatalogEntry, allowReplace, merge bool) (*domain.CatalogEntry, error) {
	if entry == nil {
		return nil, domain.ErrMalformedRequest.WithDetails("nil entry")
	}
	e := entry.Clone()
	e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	baseEntry, inBase := s.base[e.ID]
	if inBase && !allowReplace {
		return nil, domain.ErrChapterConflict.WithDetails(e.ID)
	}

	now := s.now().UTC()
	stored, err := s.overlay.Apply(ctx, e.ID, func(existing *domain.CatalogEntry) (*domain.CatalogEntry, error) {
		next := e.Clone()
		if existing != nil && !allowReplace {
			return nil, domain.ErrChapterConflict.WithDetails(e.ID)
		}
		prev := existing
		if prev == nil && inBase {
			prev = baseEntry
		}
		if prev != nil && merge {
			if !prev.CreatedAt.IsZero() {
				next.CreatedAt = prev.CreatedAt
			}
			if next.NotesURL == nil && prev.NotesURL != nil {
				v := *prev.NotesURL
				next.NotesURL = &v
			}
			if next.SolutionsURL == nil && prev.SolutionsURL != nil {
				v := *prev.SolutionsURL
				next.SolutionsURL = &v
			}
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = now
		}
		return next, nil
	})
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.ErrOverlayWriteFailed.WithCause(err)
	}
	return stored, nil
}

// Import loads entries into an empty overlay. It is a no-op when the overlay
// already holds records.
func (s *CatalogService) Import(ctx context.Context, entries map[string]*domain.CatalogEntry) (int, error) {
	list := make([]*domain.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		c := e.Clone()
		c.Normalize()
		if err := c.Validate(); err != nil {
			s.logger.WarnContext(ctx, "skipping invalid import entry", "id", c.ID, "error", err)
			continue
		}
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.overlay.ImportIfEmpty(ctx, list)
	if err != nil {
		return 0, domain.ErrOverlayWriteFailed.WithDetails("import").WithCause(err)
	}
	return n, nil
}
