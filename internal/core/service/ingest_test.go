package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

var testPDF = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF\n")

func pdf() *Attachment {
	return &Attachment{Filename: "doc.pdf", ContentType: "application/pdf", Data: testPDF}
}

type ingestFixture struct {
	svc     *IngestService
	catalog *CatalogService
	local   *mockBackend
	remote  *mockBackend
	metrics *countingMetrics
}

func newIngestFixture(t *testing.T, overlay OverlayRepository) *ingestFixture {
	t.Helper()
	if overlay == nil {
		overlay = newMockOverlay()
	}
	f := &ingestFixture{
		catalog: NewCatalogService(map[string]*domain.CatalogEntry{
			"class6-science-chapter-1": testEntry("class6-science-chapter-1", "Base"),
		}, overlay, nil),
		local:   newMockBackend("local"),
		remote:  newMockBackend(RemoteBackendName),
		metrics: newCountingMetrics(),
	}
	f.local.urlPrefix = "/notes"
	f.remote.urlPrefix = "https://cdn.example/gh/o/r@main/pdfs"

	svc, err := NewIngestService(f.catalog, IngestServiceConfig{
		Backends: []ArtifactBackend{f.local, f.remote},
		Metrics:  f.metrics,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.svc = svc
	return f
}

func (f *ingestFixture) snapshot(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(f.catalog.Get(context.Background()))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestIngest_PathDerivation(t *testing.T) {
	f := newIngestFixture(t, nil)

	res, err := f.svc.Ingest(context.Background(), &Submission{
		Title: "Crop Production", Class: "8", Subject: "Science", ChapterNumber: "Chapter 5",
		Notes: pdf(),
	})
	if err != nil {
		t.Fatal(err)
	}

	const want = "class8/science/chapter-5-notes.pdf"
	if res.Paths[domain.ArtifactNotes] != want {
		t.Errorf("path = %q, want %q", res.Paths[domain.ArtifactNotes], want)
	}
	if !strings.Contains(*res.Entry.NotesURL, want) {
		t.Errorf("notesUrl %q does not contain %q", *res.Entry.NotesURL, want)
	}
	if _, ok := f.local.stored[want]; !ok {
		t.Error("artifact not written to local backend")
	}
	if res.Storage != "local" {
		t.Errorf("storage = %q", res.Storage)
	}
}

func TestIngest_PartialAttachment(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, &Submission{
		Title: "Light", Class: "7", Subject: "Science", ChapterNumber: "Chapter 9",
		Notes: pdf(),
	})
	if err != nil {
		t.Fatal(err)
	}

	got := f.catalog.Get(ctx)[res.Entry.ID]
	if got == nil {
		t.Fatal("entry not visible after Ingest returned")
	}
	if got.NotesURL == nil {
		t.Error("notesUrl should be set")
	}
	if got.SolutionsURL != nil {
		t.Errorf("solutionsUrl = %q, want nil", *got.SolutionsURL)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if f.metrics.get("submission:registered") != 1 {
		t.Error("registered outcome not recorded")
	}
}

func TestIngest_ValidationRejectsWithoutSideEffects(t *testing.T) {
	big := bytes.Repeat([]byte("x"), DefaultMaxAttachmentSize)
	tooLarge := &Attachment{ContentType: "application/pdf", Data: append([]byte("%PDF-"), big...)}

	tests := []struct {
		name string
		sub  Submission
		want *domain.DomainError
	}{
		{"missing class", Submission{Title: "T", Subject: "Science", Notes: pdf()}, domain.ErrMissingField},
		{"missing title", Submission{Class: "8", Subject: "Science", Notes: pdf()}, domain.ErrMissingField},
		{"missing subject", Submission{Title: "T", Class: "8", Notes: pdf()}, domain.ErrMissingField},
		{"blank title", Submission{Title: "  ", Class: "8", Subject: "Science", Notes: pdf()}, domain.ErrMissingField},
		{"class not a number", Submission{Title: "T", Class: "eight", Subject: "Science", Notes: pdf()}, domain.ErrInvalidField},
		{"class zero", Submission{Title: "T", Class: "0", Subject: "Science", Notes: pdf()}, domain.ErrInvalidField},
		{"no attachment", Submission{Title: "T", Class: "8", Subject: "Science"}, domain.ErrNoAttachmentProvided},
		{"not pdf content type", Submission{Title: "T", Class: "8", Subject: "Science",
			Notes: &Attachment{ContentType: "image/png", Data: testPDF}}, domain.ErrInvalidAttachmentType},
		{"pdf type but not pdf bytes", Submission{Title: "T", Class: "8", Subject: "Science",
			Solutions: &Attachment{ContentType: "application/pdf", Data: []byte("GIF89a")}}, domain.ErrInvalidAttachmentType},
		{"too large", Submission{Title: "T", Class: "8", Subject: "Science", Notes: tooLarge}, domain.ErrAttachmentTooLarge},
		{"traversal subject", Submission{Title: "T", Class: "8", Subject: "../etc", Notes: pdf()}, domain.ErrInvalidField},
		{"traversal chapter", Submission{Title: "T", Class: "8", Subject: "Science", ChapterNumber: "a/../../b", Notes: pdf()}, domain.ErrInvalidField},
		{"unknown backend", Submission{Title: "T", Class: "8", Subject: "Science", Backend: "s3", Notes: pdf()}, domain.ErrUnknownBackend},
		{"base id collision", Submission{Title: "T", Class: "6", Subject: "Science", ChapterNumber: "Chapter 1", Notes: pdf()}, domain.ErrChapterConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, nil)
			before := f.snapshot(t)

			sub := tt.sub
			_, err := f.svc.Ingest(context.Background(), &sub)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %s", err, tt.want.Code)
			}
			if after := f.snapshot(t); !bytes.Equal(before, after) {
				t.Error("catalog changed after rejected submission")
			}
			if len(f.local.paths())+len(f.remote.paths()) != 0 {
				t.Error("artifact written for rejected submission")
			}
			if f.metrics.get("submission:rejected") != 1 {
				t.Error("rejected outcome not recorded")
			}
		})
	}
}

func TestIngest_BackendSelection(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
		want string
	}{
		{"default", Submission{}, "local"},
		{"storeOnGithub flag", Submission{StoreOnGithub: true}, RemoteBackendName},
		{"explicit remote alias", Submission{Backend: "remote"}, RemoteBackendName},
		{"explicit local wins over flag", Submission{Backend: "LOCAL", StoreOnGithub: true}, "local"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, nil)
			sub := tt.sub
			sub.Title, sub.Class, sub.Subject = "T", "8", "Science"
			sub.ChapterNumber = fmt.Sprintf("Chapter %d", i+10)
			sub.Solutions = pdf()

			res, err := f.svc.Ingest(context.Background(), &sub)
			if err != nil {
				t.Fatal(err)
			}
			if res.Storage != tt.want {
				t.Errorf("storage = %q, want %q", res.Storage, tt.want)
			}
			if tt.want == RemoteBackendName && !strings.HasPrefix(*res.Entry.SolutionsURL, "https://cdn.example/") {
				t.Errorf("solutionsUrl = %q", *res.Entry.SolutionsURL)
			}
		})
	}
}

func TestIngest_BackendFailureRegistersNothing(t *testing.T) {
	f := newIngestFixture(t, nil)
	f.local.failOn = "-solutions.pdf"
	f.local.failErr = domain.ErrLocalWriteFailed.WithDetails("disk full")
	before := f.snapshot(t)

	_, err := f.svc.Ingest(context.Background(), &Submission{
		Title: "T", Class: "8", Subject: "Science", ChapterNumber: "Chapter 2",
		Notes: pdf(), Solutions: pdf(),
	})
	if !errors.Is(err, domain.ErrLocalWriteFailed) {
		t.Fatalf("err = %v", err)
	}
	if !bytes.Equal(before, f.snapshot(t)) {
		t.Error("partial entry registered")
	}
	if f.metrics.get("store:local:error") != 1 || f.metrics.get("store:local:ok") != 1 {
		t.Errorf("store metrics = %v", f.metrics.counts)
	}
}

func TestIngest_BackendFailureRollsBackRemovable(t *testing.T) {
	overlay := newMockOverlay()
	catalog := NewCatalogService(nil, overlay, nil)
	backend := removingBackend{newMockBackend("local")}
	backend.failOn = "-solutions.pdf"
	backend.failErr = errors.New("io error")

	svc, err := NewIngestService(catalog, IngestServiceConfig{Backends: []ArtifactBackend{backend}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Ingest(context.Background(), &Submission{
		Title: "T", Class: "8", Subject: "Science", Notes: pdf(), Solutions: pdf(),
	})
	if !errors.Is(err, domain.ErrInternalServer) {
		t.Fatalf("non-domain backend error should map to internal: %v", err)
	}
	if len(backend.paths()) != 0 {
		t.Errorf("notes artifact not rolled back: %v", backend.paths())
	}
	if len(backend.removed) != 1 || backend.removed[0] != "class8/science/chapter-notes.pdf" {
		t.Errorf("removed = %v", backend.removed)
	}
}

func TestIngest_RegistryFailure(t *testing.T) {
	overlay := newMockOverlay()
	overlay.applyErr = errors.New("badger closed")
	f := newIngestFixture(t, overlay)

	_, err := f.svc.Ingest(context.Background(), &Submission{
		Title: "T", Class: "8", Subject: "Science", Notes: pdf(),
	})
	if !errors.Is(err, domain.ErrOverlayWriteFailed) {
		t.Errorf("err = %v, want OverlayWriteFailed", err)
	}
}

func TestIngest_UpdateReplacesExisting(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()
	sub := Submission{Title: "V1", Class: "8", Subject: "Science", ChapterNumber: "Chapter 3", Notes: pdf()}

	first, err := f.svc.Ingest(ctx, &sub)
	if err != nil {
		t.Fatal(err)
	}

	again := sub
	again.Title = "V2"
	if _, err := f.svc.Ingest(ctx, &again); !errors.Is(err, domain.ErrChapterConflict) {
		t.Fatalf("resubmission without update: err = %v", err)
	}

	again.Update = true
	again.Notes = nil
	again.Solutions = pdf()
	second, err := f.svc.Ingest(ctx, &again)
	if err != nil {
		t.Fatal(err)
	}
	if second.Entry.ID != first.Entry.ID || second.Entry.Title != "V2" {
		t.Errorf("entry = %+v", second.Entry)
	}
	if second.Entry.NotesURL == nil || second.Entry.SolutionsURL == nil {
		t.Error("update should keep the earlier notes URL and add solutions")
	}
	if !second.Entry.CreatedAt.Equal(first.Entry.CreatedAt) {
		t.Error("createdAt changed on update")
	}
}

func TestIngest_LegacyScheme(t *testing.T) {
	svc, err := NewIngestService(NewCatalogService(nil, newMockOverlay(), nil), IngestServiceConfig{
		Backends: []ArtifactBackend{newMockBackend("local")},
		IDScheme: IDSchemeLegacy,
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.Ingest(context.Background(), &Submission{
		Title: "T", Class: "8", Subject: "Science", ChapterNumber: "Chapter 5", Notes: pdf(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Entry.ID != "8s5" {
		t.Errorf("id = %q, want 8s5", res.Entry.ID)
	}
}

func TestIngest_ConcurrentDistinctIDs(t *testing.T) {
	f := newIngestFixture(t, newBadgerOverlay(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Ingest(ctx, &Submission{
				Title: "T", Class: "8", Subject: "Science",
				ChapterNumber: fmt.Sprintf("Chapter %d", 20+i), Notes: pdf(),
			})
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = res.Entry.ID
		}(i)
	}
	wg.Wait()

	got := f.catalog.Get(ctx)
	for _, id := range ids {
		if got[id] == nil {
			t.Errorf("entry %q lost", id)
		}
	}
}

func TestIngest_ConcurrentSameIDKeepsWinnerArtifacts(t *testing.T) {
	catalog := NewCatalogService(nil, newBadgerOverlay(t), nil)
	backend := newGatedBackend("local")
	svc, err := NewIngestService(catalog, IngestServiceConfig{Backends: []ArtifactBackend{backend}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	sub := func() *Submission {
		return &Submission{Title: "T", Class: "8", Subject: "Science", ChapterNumber: "Chapter 5", Notes: pdf()}
	}

	errs := make(chan error, 2)
	go func() {
		_, err := svc.Ingest(ctx, sub())
		errs <- err
	}()
	<-backend.entered

	go func() {
		_, err := svc.Ingest(ctx, sub())
		errs <- err
	}()
	select {
	case p := <-backend.entered:
		t.Errorf("second submission stored %q while the first was in flight", p)
	case <-time.After(100 * time.Millisecond):
	}
	close(backend.release)

	var ok, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrChapterConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("ok = %d, conflicts = %d", ok, conflicts)
	}

	entry, err := catalog.Lookup(ctx, "class8-science-chapter-5")
	if err != nil {
		t.Fatal(err)
	}
	const path = "class8/science/chapter-5-notes.pdf"
	if entry.NotesURL == nil || *entry.NotesURL != "/local/"+path {
		t.Errorf("notesUrl = %v", entry.NotesURL)
	}
	if got := backend.paths(); len(got) != 1 || got[0] != path {
		t.Errorf("stored = %v, want [%s]", got, path)
	}
	if len(backend.removed) != 0 {
		t.Errorf("removed = %v", backend.removed)
	}
}

func TestIngest_RegisterConflictLeavesArtifacts(t *testing.T) {
	backend := removingBackend{newMockBackend("local")}
	svc, err := NewIngestService(racedRegistrar{}, IngestServiceConfig{Backends: []ArtifactBackend{backend}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Ingest(context.Background(), &Submission{
		Title: "T", Class: "8", Subject: "Science", Notes: pdf(),
	})
	if !errors.Is(err, domain.ErrChapterConflict) {
		t.Fatalf("err = %v, want ChapterConflict", err)
	}
	if len(backend.removed) != 0 {
		t.Errorf("removed = %v, want nothing", backend.removed)
	}
	if len(backend.paths()) != 1 {
		t.Errorf("stored = %v", backend.paths())
	}
}

func TestIDLocks_ReleasesEntries(t *testing.T) {
	var l idLocks
	unlockA := l.lock("a")
	unlockB := l.lock("b")
	unlockA()
	unlockB()
	if len(l.m) != 0 {
		t.Errorf("locks left = %d", len(l.m))
	}
}

func TestNewIngestService_Errors(t *testing.T) {
	catalog := NewCatalogService(nil, newMockOverlay(), nil)
	if _, err := NewIngestService(catalog, IngestServiceConfig{}); err == nil {
		t.Error("expected error without backends")
	}
	if _, err := NewIngestService(catalog, IngestServiceConfig{
		Backends:       []ArtifactBackend{newMockBackend("local")},
		DefaultBackend: "github",
	}); err == nil {
		t.Error("expected error for unregistered default backend")
	}
}

func TestIngestService_BackendNames(t *testing.T) {
	f := newIngestFixture(t, nil)
	if got := strings.Join(f.svc.BackendNames(), ","); got != "github,local" {
		t.Errorf("BackendNames = %q", got)
	}
}
