package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce lets a rotation finish writing both files.
const reloadDebounce = 500 * time.Millisecond

// k8sDataDir is the symlink Kubernetes swaps when a secret volume updates.
const k8sDataDir = "..data"

// CertReloader serves a certificate and key pair and swaps in a new pair
// when either file changes. A pair that fails to load is ignored and the
// previous one stays in service.
type CertReloader struct {
	certFile string
	keyFile  string
	log      *slog.Logger
	debounce time.Duration

	current atomic.Pointer[tls.Certificate]

	fsw      *fsnotify.Watcher
	quit     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

// NewCertReloader loads the initial pair. Call Start to follow changes.
func NewCertReloader(certFile, keyFile string, log *slog.Logger) (*CertReloader, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &CertReloader{
		certFile: certFile,
		keyFile:  keyFile,
		log:      log,
		debounce: reloadDebounce,
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	if err := r.load(); err != nil {
		return nil, fmt.Errorf("tlsroots: %w", err)
	}
	return r, nil
}

// Start watches the directories holding the pair, so replacement by
// rename is seen as well as in-place writes.
func (r *CertReloader) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: %w", err)
	}
	for _, dir := range r.dirs() {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("tlsroots: watch %s: %w", dir, err)
		}
	}
	r.fsw = fsw
	go r.run()
	r.log.Info("watching certificate for rotation", "cert_file", r.certFile, "key_file", r.keyFile)
	return nil
}

// Stop ends watching. It may be called more than once, and without Start.
func (r *CertReloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.quit)
		if r.fsw != nil {
			<-r.exited
			err = r.fsw.Close()
		}
	})
	return err
}

// GetCertificate hands the TLS stack the current pair.
func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.current.Load(), nil
}

// TLSConfig is a server config that presents whichever pair is current.
func (r *CertReloader) TLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: r.GetCertificate}
}

// NotAfter is the expiry of the current certificate.
func (r *CertReloader) NotAfter() time.Time {
	if c := r.current.Load(); c != nil && c.Leaf != nil {
		return c.Leaf.NotAfter
	}
	return time.Time{}
}

func (r *CertReloader) dirs() []string {
	certDir, keyDir := filepath.Dir(r.certFile), filepath.Dir(r.keyFile)
	if certDir == keyDir {
		return []string{certDir}
	}
	return []string{certDir, keyDir}
}

func (r *CertReloader) run() {
	defer close(r.exited)

	var due <-chan time.Time
	for {
		select {
		case ev, ok := <-r.fsw.Events:
			if !ok {
				return
			}
			if r.touches(ev) {
				due = time.After(r.debounce)
			}
		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}
			r.log.Warn("certificate watcher error", "error", err)
		case <-due:
			due = nil
			r.tryReload()
		case <-r.quit:
			return
		}
	}
}

func (r *CertReloader) touches(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	return name == filepath.Base(r.certFile) || name == filepath.Base(r.keyFile) || name == k8sDataDir
}

func (r *CertReloader) tryReload() {
	if err := r.load(); err != nil {
		r.log.Error("certificate reload failed; previous certificate kept", "cert_file", r.certFile, "error", err)
	}
}

func (r *CertReloader) load() error {
	pair, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}
	r.current.Store(&pair)

	if pair.Leaf != nil && time.Now().After(pair.Leaf.NotAfter) {
		r.log.Warn("serving an expired certificate", "cert_file", r.certFile, "not_after", pair.Leaf.NotAfter)
		return nil
	}
	r.log.Info("certificate loaded", "cert_file", r.certFile, "not_after", r.NotAfter())
	return nil
}
