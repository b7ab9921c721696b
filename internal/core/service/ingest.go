package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/pkg/token"
)

// DefaultMaxAttachmentSize is the per-attachment ceiling (10 MiB).
const DefaultMaxAttachmentSize = 10 << 20

// RemoteBackendName is the name the storeOnGithub flag selects.
const RemoteBackendName = "github"

// artifactKinds is the order attachments are validated and stored in.
var artifactKinds = []domain.ArtifactKind{domain.ArtifactNotes, domain.ArtifactSolutions}

// pdfMagic is the header every accepted attachment starts with.
var pdfMagic = []byte("%PDF-")

// ArtifactBackend persists a binary artifact and returns its retrieval URL.
type ArtifactBackend interface {
	// Name identifies the backend in requests, config and responses.
	Name() string

	// Store writes data at the relative path and returns a stable URL.
	Store(ctx context.Context, path string, data []byte) (string, error)
}

// ArtifactRemover is implemented by backends that can undo a Store.
type ArtifactRemover interface {
	Remove(ctx context.Context, path string) error
}

// CatalogRegistrar is the catalog surface the ingester writes through.
type CatalogRegistrar interface {
	Exists(ctx context.Context, id string) (bool, error)
	Register(ctx context.Context, entry *domain.CatalogEntry, allowReplace bool) (*domain.CatalogEntry, error)
}

// IngestMetrics receives ingest outcomes and backend timings.
type IngestMetrics interface {
	RecordSubmission(outcome string)
	ObserveArtifactStore(backend, result string, seconds float64, bytes int)
}

// IngestState is a step of the per-submission state machine.
type IngestState string

const (
	StateReceived   IngestState = "received"
	StateValidated  IngestState = "validated"
	StatePersisted  IngestState = "persisted"
	StateRegistered IngestState = "registered"
	StateRejected   IngestState = "rejected"
)

// Attachment is one uploaded file.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Submission is an upload request as received from the admin panel.
// Class is kept as text so a missing value and a malformed one can be told
// apart.
type Submission struct {
	Title         string
	Class         string
	Subject       string
	ChapterNumber string
	Description   string
	Tags          string

	// Backend names the artifact backend; empty means StoreOnGithub or the
	// configured default.
	Backend       string
	StoreOnGithub bool

	// Update allows replacing an existing chapter with the same id.
	Update bool

	Notes     *Attachment
	Solutions *Attachment
}

// IngestResult describes a registered submission.
type IngestResult struct {
	Entry   *domain.CatalogEntry
	Storage string
	Paths   map[domain.ArtifactKind]string
}

// IngestService validates submissions, stores their artifacts and registers
// the resulting catalog entry.
type IngestService struct {
	catalog        CatalogRegistrar
	backends       map[string]ArtifactBackend
	defaultBackend string
	maxSize        int
	scheme         IDScheme
	metrics        IngestMetrics
	logger         *slog.Logger

	locks idLocks
}

// IngestServiceConfig holds configuration for IngestService.
type IngestServiceConfig struct {
	Backends       []ArtifactBackend
	DefaultBackend string
	MaxSize        int
	IDScheme       IDScheme
	Metrics        IngestMetrics
	Logger         *slog.Logger
}

// NewIngestService creates an ingester. DefaultBackend must name one of
// Backends.
func NewIngestService(catalog CatalogRegistrar, cfg IngestServiceConfig) (*IngestService, error) {
	s := &IngestService{
		catalog:  catalog,
		backends: make(map[string]ArtifactBackend, len(cfg.Backends)),
		maxSize:  cfg.MaxSize,
		scheme:   cfg.IDScheme,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	for _, b := range cfg.Backends {
		s.backends[b.Name()] = b
	}
	if len(s.backends) == 0 {
		return nil, errors.New("ingest: no artifact backends configured")
	}

	def := canonicalBackend(cfg.DefaultBackend)
	if def == "" {
		def = "local"
	}
	if _, ok := s.backends[def]; !ok {
		return nil, fmt.Errorf("ingest: default backend %q is not configured", cfg.DefaultBackend)
	}
	s.defaultBackend = def

	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxAttachmentSize
	}
	if s.scheme == "" {
		s.scheme = IDSchemeSlug
	}
	if s.metrics == nil {
		s.metrics = nopIngestMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// BackendNames returns the registered backend names, sorted.
func (s *IngestService) BackendNames() []string {
	names := make([]string, 0, len(s.backends))
	for n := range s.backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MaxAttachmentSize returns the per-attachment ceiling in bytes.
func (s *IngestService) MaxAttachmentSize() int {
	return s.maxSize
}

// Ingest runs a submission through Received → Validated → Persisted →
// Registered. Any failure leaves it Rejected and returns a DomainError;
// validation failures have no side effects.
func (s *IngestService) Ingest(ctx context.Context, sub *Submission) (*IngestResult, error) {
	log := s.logger.With("title", sub.Title, "subject", sub.Subject, "class", sub.Class)
	log.DebugContext(ctx, "ingest state", "state", StateReceived)

	plan, err := s.validate(sub)
	if err != nil {
		return nil, s.reject(ctx, log, "validation", err)
	}
	log = log.With("id", plan.entry.ID, "backend", plan.backend.Name())

	// Submissions for one id are serialized from the collision check through
	// registration, since they write the same artifact paths.
	unlock := s.locks.lock(plan.entry.ID)
	defer unlock()

	if !sub.Update {
		if err := s.checkNew(ctx, plan.entry.ID); err != nil {
			return nil, s.reject(ctx, log, "validation", err)
		}
	}
	log.DebugContext(ctx, "ingest state", "state", StateValidated)

	stored, err := s.persist(ctx, log, plan)
	if err != nil {
		s.rollback(ctx, log, plan.backend, stored, sub.Update)
		return nil, s.reject(ctx, log, "backend", err)
	}
	log.DebugContext(ctx, "ingest state", "state", StatePersisted, "artifacts", len(stored))

	entry, err := s.catalog.Register(ctx, plan.entry, sub.Update)
	if err != nil {
		// On a conflict the paths belong to the entry that won.
		conflict := domain.IsDomainError(err, domain.ErrChapterConflict.Code)
		s.rollback(ctx, log, plan.backend, stored, sub.Update || conflict)
		return nil, s.reject(ctx, log, "registry", err)
	}

	s.metrics.RecordSubmission(string(StateRegistered))
	log.InfoContext(ctx, "chapter registered", "state", StateRegistered, "update", sub.Update)

	return &IngestResult{
		Entry:   entry,
		Storage: plan.backend.Name(),
		Paths:   plan.paths,
	}, nil
}

// ingestPlan is a validated submission ready for persistence.
type ingestPlan struct {
	entry       *domain.CatalogEntry
	backend     ArtifactBackend
	paths       map[domain.ArtifactKind]string
	attachments map[domain.ArtifactKind]*Attachment
}

func (s *IngestService) validate(sub *Submission) (*ingestPlan, error) {
	title := strings.TrimSpace(sub.Title)
	class := strings.TrimSpace(sub.Class)
	subject := strings.TrimSpace(sub.Subject)
	chapter := strings.TrimSpace(sub.ChapterNumber)

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if class == "" {
		missing = append(missing, "class")
	}
	if subject == "" {
		missing = append(missing, "subject")
	}
	if len(missing) > 0 {
		return nil, domain.ErrMissingField.WithDetails(strings.Join(missing, ", "))
	}

	classLevel, err := strconv.Atoi(class)
	if err != nil || classLevel <= 0 {
		return nil, domain.ErrInvalidField.WithDetails("class must be a positive integer")
	}

	attachments := make(map[domain.ArtifactKind]*Attachment, 2)
	if sub.Notes != nil {
		attachments[domain.ArtifactNotes] = sub.Notes
	}
	if sub.Solutions != nil {
		attachments[domain.ArtifactSolutions] = sub.Solutions
	}
	if len(attachments) == 0 {
		return nil, domain.ErrNoAttachmentProvided
	}
	for _, kind := range artifactKinds {
		if a, ok := attachments[kind]; ok {
			if err := s.checkAttachment(kind, a); err != nil {
				return nil, err
			}
		}
	}

	subjectDir := SubjectDir(subject)
	slug := ChapterSlug(chapter)
	if err := checkPathSegment("subject", subjectDir); err != nil {
		return nil, err
	}
	if err := checkPathSegment("chapterNumber", slug); err != nil {
		return nil, err
	}

	backend, err := s.resolveBackend(sub)
	if err != nil {
		return nil, err
	}

	plan := &ingestPlan{
		backend:     backend,
		attachments: attachments,
		paths:       make(map[domain.ArtifactKind]string, len(attachments)),
		entry: &domain.CatalogEntry{
			ID:            s.scheme.DeriveID(classLevel, subject, chapter),
			Title:         title,
			ClassLevel:    classLevel,
			Subject:       subject,
			ChapterNumber: chapter,
			Description:   strings.TrimSpace(sub.Description),
			Tags:          strings.TrimSpace(sub.Tags),
		},
	}
	for kind := range attachments {
		plan.paths[kind] = ArtifactPath(classLevel, subject, chapter, kind)
	}

	return plan, nil
}

// checkNew rejects a new submission whose id is already in the catalog.
// Register checks again atomically.
func (s *IngestService) checkNew(ctx context.Context, id string) error {
	exists, err := s.catalog.Exists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrChapterConflict.WithDetails(id + " exists; resubmit with update=true to replace it")
	}
	return nil
}

func (s *IngestService) checkAttachment(kind domain.ArtifactKind, a *Attachment) error {
	if !strings.Contains(strings.ToLower(a.ContentType), "pdf") {
		return domain.ErrInvalidAttachmentType.WithDetails(fmt.Sprintf("%s: content type %q", kind, a.ContentType))
	}
	if len(a.Data) > s.maxSize {
		return domain.ErrAttachmentTooLarge.WithDetails(fmt.Sprintf("%s exceeds %d bytes", kind, s.maxSize))
	}
	if !bytes.HasPrefix(a.Data, pdfMagic) {
		return domain.ErrInvalidAttachmentType.WithDetails(fmt.Sprintf("%s is not a PDF document", kind))
	}
	return nil
}

func (s *IngestService) resolveBackend(sub *Submission) (ArtifactBackend, error) {
	name := canonicalBackend(sub.Backend)
	if name == "" {
		if sub.StoreOnGithub {
			name = RemoteBackendName
		} else {
			name = s.defaultBackend
		}
	}
	b, ok := s.backends[name]
	if !ok {
		return nil, domain.ErrUnknownBackend.WithDetails(fmt.Sprintf("%q (available: %s)", sub.Backend, strings.Join(s.BackendNames(), ", ")))
	}
	return b, nil
}

// persist stores notes then solutions and returns the paths written so far,
// also on error.
func (s *IngestService) persist(ctx context.Context, log *slog.Logger, plan *ingestPlan) ([]string, error) {
	var stored []string
	for _, kind := range artifactKinds {
		a, ok := plan.attachments[kind]
		if !ok {
			continue
		}
		path := plan.paths[kind]

		start := time.Now()
		url, err := plan.backend.Store(ctx, path, a.Data)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			s.metrics.ObserveArtifactStore(plan.backend.Name(), "error", elapsed, len(a.Data))
			if !domain.IsDomainError(err, "") {
				err = domain.ErrInternalServer.WithDetails("store " + string(kind)).WithCause(err)
			}
			return stored, err
		}
		s.metrics.ObserveArtifactStore(plan.backend.Name(), "ok", elapsed, len(a.Data))
		log.InfoContext(ctx, "artifact stored",
			"kind", string(kind),
			"path", path,
			"bytes", len(a.Data),
			"sha256", token.Digest(a.Data))

		stored = append(stored, path)
		plan.entry.SetArtifactURL(kind, url)
	}
	return stored, nil
}

// rollback removes artifacts of a rejected submission where the backend
// supports it. With keep set the paths may hold artifacts an existing entry
// references, so nothing is removed. Failures are logged only.
func (s *IngestService) rollback(ctx context.Context, log *slog.Logger, backend ArtifactBackend, paths []string, keep bool) {
	if len(paths) == 0 {
		return
	}
	remover, ok := backend.(ArtifactRemover)
	if !ok || keep {
		log.WarnContext(ctx, "artifacts of rejected submission left in place", "paths", paths)
		return
	}
	for _, p := range paths {
		if err := remover.Remove(context.WithoutCancel(ctx), p); err != nil {
			log.WarnContext(ctx, "artifact rollback failed", "path", p, "error", err)
		}
	}
}

func (s *IngestService) reject(ctx context.Context, log *slog.Logger, stage string, err error) error {
	s.metrics.RecordSubmission(string(StateRejected))

	attrs := []any{"state", StateRejected, "stage", stage, "code", domain.GetErrorCode(err), "error", err}
	if stage == "validation" || domain.IsDomainError(err, domain.ErrChapterConflict.Code) {
		log.WarnContext(ctx, "submission rejected", attrs...)
	} else {
		log.ErrorContext(ctx, "submission rejected", attrs...)
	}
	return err
}

// canonicalBackend lowercases a backend name and maps the generic "remote"
// to the remote backend.
func canonicalBackend(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "remote" {
		return RemoteBackendName
	}
	return name
}

// idLocks hands out one mutex per catalog id, dropped when unused.
type idLocks struct {
	mu sync.Mutex
	m  map[string]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

func (l *idLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*idLock)
	}
	k, ok := l.m[id]
	if !ok {
		k = &idLock{}
		l.m[id] = k
	}
	k.refs++
	l.mu.Unlock()

	k.Lock()
	return func() {
		k.Unlock()
		l.mu.Lock()
		if k.refs--; k.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}

type nopIngestMetrics struct{}

func (nopIngestMetrics) RecordSubmission(string)                         {}
func (nopIngestMetrics) ObserveArtifactStore(string, string, float64, int) {}
