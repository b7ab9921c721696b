package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// LocalName is the backend name of Local.
const LocalName = "local"

// Local stores artifacts on the local filesystem.
type Local struct {
	root      string
	urlPrefix string
	logger    *slog.Logger
}

// LocalConfig configures a Local backend.
type LocalConfig struct {
	// Root is the public asset directory (default: public/notes).
	Root string

	// URLPrefix is the root-relative URL Root is served under (default: /notes).
	URLPrefix string

	Logger *slog.Logger
}

// NewLocal creates a local backend. The root directory is created on first
// write.
func NewLocal(cfg LocalConfig) *Local {
	l := &Local{
		root:      cfg.Root,
		urlPrefix: "/" + strings.Trim(cfg.URLPrefix, "/"),
		logger:    cfg.Logger,
	}
	if l.root == "" {
		l.root = filepath.Join("public", "notes")
	}
	if l.urlPrefix == "/" {
		l.urlPrefix = "/notes"
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Name implements service.ArtifactBackend.
func (l *Local) Name() string { return LocalName }

// Root returns the directory artifacts are written under.
func (l *Local) Root() string { return l.root }

// URLPrefix returns the URL prefix artifacts are served under.
func (l *Local) URLPrefix() string { return l.urlPrefix }

// Store writes data to root/p atomically (temp file + rename) and returns the
// root-relative URL.
func (l *Local) Store(ctx context.Context, p string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.ErrLocalWriteFailed.WithCause(err)
	}
	dest, err := l.resolve(p)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", domain.ErrLocalWriteFailed.WithDetails("create directory").WithCause(err)
	}
	if err := writeFileAtomic(dest, data, 0o644); err != nil {
		return "", domain.ErrLocalWriteFailed.WithCause(err)
	}

	l.logger.DebugContext(ctx, "artifact stored", "backend", LocalName, "path", p, "bytes", len(data))
	return l.urlPrefix + "/" + escapePath(p), nil
}

// Remove deletes a stored artifact. A missing file is not an error.
func (l *Local) Remove(ctx context.Context, p string) error {
	dest, err := l.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.ErrLocalWriteFailed.WithDetails("remove").WithCause(err)
	}
	return nil
}

// resolve maps a relative artifact path to a file under root, refusing
// anything that would leave it.
func (l *Local) resolve(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" || clean != "/"+p || strings.Contains(p, `\`) {
		return "", domain.ErrInvalidField.WithDetails(fmt.Sprintf("invalid artifact path %q", p))
	}
	return filepath.Join(l.root, filepath.FromSlash(clean[1:])), nil
}

func writeFileAtomic(dest string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

// escapePath escapes each segment of a slash-separated path for use in a URL.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
