package service

import (
	"context"
	"sync"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// mockOverlay is an in-memory OverlayRepository.
type mockOverlay struct {
	mu       sync.Mutex
	entries  map[string]*domain.CatalogEntry
	listErr  error
	applyErr error
}

func newMockOverlay() *mockOverlay {
	return &mockOverlay{entries: make(map[string]*domain.CatalogEntry)}
}

func (m *mockOverlay) List(ctx context.Context) (map[string]*domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make(map[string]*domain.CatalogEntry, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.Clone()
	}
	return out, nil
}

func (m *mockOverlay) Get(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.entries[id].Clone(), nil
}

func (m *mockOverlay) Apply(ctx context.Context, id string,
	fn func(existing *domain.CatalogEntry) (*domain.CatalogEntry, error)) (*domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	next, err := fn(m.entries[id].Clone())
	if err != nil {
		return nil, err
	}
	m.entries[id] = next.Clone()
	return next, nil
}

func (m *mockOverlay) ImportIfEmpty(ctx context.Context, entries []*domain.CatalogEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) > 0 {
		return 0, nil
	}
	for _, e := range entries {
		m.entries[e.ID] = e.Clone()
	}
	return len(entries), nil
}

// mockBackend records stored artifacts in memory.
type mockBackend struct {
	name      string
	urlPrefix string
	failOn    string // path suffix that fails
	failErr   error

	mu      sync.Mutex
	stored  map[string][]byte
	removed []string
}

func newMockBackend(name string) *mockBackend {
	return &mockBackend{name: name, urlPrefix: "/" + name, stored: make(map[string][]byte)}
}

func (b *mockBackend) Name() string { return b.name }

func (b *mockBackend) Store(ctx context.Context, path string, data []byte) (string, error) {
	if b.failOn != "" && len(path) >= len(b.failOn) && path[len(path)-len(b.failOn):] == b.failOn {
		return "", b.failErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stored[path] = append([]byte(nil), data...)
	return b.urlPrefix + "/" + path, nil
}

func (b *mockBackend) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for p := range b.stored {
		out = append(out, p)
	}
	return out
}

// removingBackend also implements ArtifactRemover.
type removingBackend struct {
	*mockBackend
}

func (b removingBackend) Remove(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stored, path)
	b.removed = append(b.removed, path)
	return nil
}

// countingMetrics records metric calls.
type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: make(map[string]int)}
}

func (c *countingMetrics) inc(k string) {
	c.mu.Lock()
	c.counts[k]++
	c.mu.Unlock()
}

func (c *countingMetrics) get(k string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[k]
}

func (c *countingMetrics) RecordLogin(result string)            { c.inc("login:" + result) }
func (c *countingMetrics) RecordTokenValidation(result string)  { c.inc("verify:" + result) }
func (c *countingMetrics) RecordGateDecision(decision string)   { c.inc("gate:" + decision) }
func (c *countingMetrics) RecordSubmission(outcome string)      { c.inc("submission:" + outcome) }
func (c *countingMetrics) ObserveArtifactStore(backend, result string, _ float64, _ int) {
	c.inc("store:" + backend + ":" + result)
}

// gatedBackend reports each Store on entered and holds the first one until
// release is closed.
type gatedBackend struct {
	removingBackend
	entered chan string
	release chan struct{}
	once    sync.Once
}

func newGatedBackend(name string) *gatedBackend {
	return &gatedBackend{
		removingBackend: removingBackend{newMockBackend(name)},
		entered:         make(chan string, 4),
		release:         make(chan struct{}),
	}
}

func (b *gatedBackend) Store(ctx context.Context, path string, data []byte) (string, error) {
	b.entered <- path
	first := false
	b.once.Do(func() { first = true })
	if first {
		<-b.release
	}
	return b.removingBackend.Store(ctx, path, data)
}

// racedRegistrar sees no entry at the early check and loses at Register.
type racedRegistrar struct{}

func (racedRegistrar) Exists(context.Context, string) (bool, error) { return false, nil }

func (racedRegistrar) Register(_ context.Context, e *domain.CatalogEntry, _ bool) (*domain.CatalogEntry, error) {
	return nil, domain.ErrChapterConflict.WithDetails(e.ID)
}
