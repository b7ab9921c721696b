package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/internal/core/service"
	"github.com/notehub-dev/notehub/internal/storage"
	"github.com/notehub-dev/notehub/internal/telemetry/logger"
)

// OverlayCounts are the overlay sizes catalog benchmarks run at.
var OverlayCounts = []int{10, 100, 1000}

const (
	benchUser   = "admin"
	benchPass   = "correct horse battery staple"
	benchSecret = "0123456789abcdef0123456789abcdef"
)

func newAuth(password string) *service.AuthService {
	return service.NewAuthService(service.AuthServiceConfig{
		Username: benchUser,
		Password: password,
		Secret:   benchSecret,
	})
}

func newEngine(b *testing.B) *storage.BadgerEngine {
	b.Helper()
	opts := storage.DefaultOptions(b.TempDir())
	opts.GCInterval = 0
	opts.SyncWrites = false
	engine, err := storage.OpenBadger(opts, logger.Discard())
	if err != nil {
		b.Fatalf("open badger: %v", err)
	}
	b.Cleanup(func() { engine.Close() })
	return engine
}

func chapterEntry(i int) *domain.CatalogEntry {
	class := 6 + i%7
	url := fmt.Sprintf("/notes/class-%d/science/chapter-%d.pdf", class, i)
	return &domain.CatalogEntry{
		ID:            fmt.Sprintf("class%d-science-chapter-%d", class, i),
		Title:         fmt.Sprintf("Chapter %d", i),
		ClassLevel:    class,
		Subject:       "Science",
		ChapterNumber: fmt.Sprint(i),
		NotesURL:      &url,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// newCatalog returns a catalog whose overlay holds count entries.
func newCatalog(b *testing.B, count int) (*service.CatalogService, []string) {
	b.Helper()
	engine := newEngine(b)
	catalog := service.NewCatalogService(nil, storage.NewOverlayStore(engine, logger.Discard()), logger.Discard())

	ctx := context.Background()
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		e := chapterEntry(i)
		if err := catalog.Upsert(ctx, e); err != nil {
			b.Fatalf("prefill: %v", err)
		}
		ids[i] = e.ID
	}
	return catalog, ids
}
