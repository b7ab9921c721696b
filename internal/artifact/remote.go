package artifact

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// RemoteName is the backend name of Remote.
const RemoteName = "github"

// Remote defaults.
const (
	DefaultRemoteBranch     = "main"
	DefaultRemotePathPrefix = "pdfs"
	DefaultCDNBase          = "https://cdn.jsdelivr.net/gh"
	DefaultRemoteTimeout    = 30 * time.Second
	DefaultRemoteAttempts   = 3
)

// RetryObserver is notified about retried remote calls.
type RetryObserver interface {
	IncRemoteRetry(backend string)
}

// RemoteConfig configures a Remote backend.
type RemoteConfig struct {
	Owner  string
	Repo   string
	Branch string
	Token  string

	// PathPrefix is prepended to artifact paths inside the repository.
	PathPrefix string

	// CDNBase is the mirror URLs are built on: {CDNBase}/{owner}/{repo}@{branch}/{path}.
	CDNBase string

	// APIBaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	APIBaseURL string

	// Timeout bounds each API call.
	Timeout time.Duration

	// MaxAttempts bounds tries per artifact, including the first.
	MaxAttempts int

	// BaseDelay is the first retry delay (default 500ms).
	BaseDelay time.Duration

	// UserAgent replaces the go-github default when set.
	UserAgent string

	HTTPClient *http.Client
	Retries    RetryObserver
	Logger     *slog.Logger
}

// Remote stores artifacts in a GitHub repository through the contents API.
//
// Writes are idempotent under retry: the git blob SHA of the content is
// compared with the file already at the path (equal means nothing to do),
// and updates carry the SHA they replace so a concurrent change surfaces as
// a conflict instead of being overwritten blindly.
type Remote struct {
	cfg    RemoteConfig
	client *github.Client
	logger *slog.Logger
}

// NewRemote creates a Remote backend. Missing credentials are reported by
// Store, not here, so a server without GitHub settings still starts.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.Branch == "" {
		cfg.Branch = DefaultRemoteBranch
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultRemotePathPrefix
	}
	cfg.PathPrefix = strings.Trim(cfg.PathPrefix, "/")
	if cfg.CDNBase == "" {
		cfg.CDNBase = DefaultCDNBase
	}
	cfg.CDNBase = strings.TrimRight(cfg.CDNBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRemoteAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := github.NewClient(cfg.HTTPClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("remote: api base url: %w", err)
		}
		client.BaseURL = base
	}

	return &Remote{cfg: cfg, client: client, logger: cfg.Logger}, nil
}

// Name implements service.ArtifactBackend.
func (r *Remote) Name() string { return RemoteName }

// Configured reports whether owner, repo and token are set.
func (r *Remote) Configured() bool {
	return r.cfg.Owner != "" && r.cfg.Repo != "" && r.cfg.Token != ""
}

// RepoPath returns the path of an artifact inside the repository.
func (r *Remote) RepoPath(p string) string {
	if r.cfg.PathPrefix == "" {
		return p
	}
	return r.cfg.PathPrefix + "/" + p
}

// URL returns the CDN URL of an artifact.
func (r *Remote) URL(p string) string {
	return fmt.Sprintf("%s/%s/%s@%s/%s", r.cfg.CDNBase, r.cfg.Owner, r.cfg.Repo, r.cfg.Branch, escapePath(r.RepoPath(p)))
}

// Store commits data at the artifact path and returns its CDN URL.
func (r *Remote) Store(ctx context.Context, p string, data []byte) (string, error) {
	if !r.Configured() {
		return "", domain.ErrRemoteCredentialsMissing
	}
	if clean := path.Clean("/" + p); clean == "/" || clean != "/"+p {
		return "", domain.ErrInvalidField.WithDetails(fmt.Sprintf("invalid artifact path %q", p))
	}

	repoPath := r.RepoPath(p)
	blobSHA := GitBlobSHA(data)
	log := r.logger.With("backend", RemoteName, "repo", r.cfg.Owner+"/"+r.cfg.Repo, "path", repoPath)

	var outcome string
	policy := Backoff{
		Attempts:  r.cfg.MaxAttempts,
		Base:      r.cfg.BaseDelay,
		Max:       10 * r.cfg.BaseDelay,
		Retryable: retryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if r.cfg.Retries != nil {
				r.cfg.Retries.IncRemoteRetry(RemoteName)
			}
			log.WarnContext(ctx, "remote store failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = r.put(ctx, repoPath, commitMessage(p), data, blobSHA)
		return err
	})
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return "", err
		}
		return "", domain.ErrRemoteAPIFailed.WithDetails(describe(err)).WithCause(err)
	}

	log.InfoContext(ctx, "artifact stored", "outcome", outcome, "blob_sha", blobSHA, "bytes", len(data))
	return r.URL(p), nil
}

// put performs one conditional write. It returns "unchanged", "created" or
// "updated".
func (r *Remote) put(ctx context.Context, repoPath, message string, data []byte, blobSHA string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	current, err := r.currentSHA(ctx, repoPath)
	if err != nil {
		return "", err
	}
	if current == blobSHA {
		return "unchanged", nil
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
		Branch:  github.String(r.cfg.Branch),
	}
	if current == "" {
		if _, _, err := r.client.Repositories.CreateFile(ctx, r.cfg.Owner, r.cfg.Repo, repoPath, opts); err != nil {
			return "", err
		}
		return "created", nil
	}

	opts.SHA = github.String(current)
	if _, _, err := r.client.Repositories.UpdateFile(ctx, r.cfg.Owner, r.cfg.Repo, repoPath, opts); err != nil {
		return "", err
	}
	return "updated", nil
}

// currentSHA returns the blob SHA at repoPath on the branch, or "" if the
// file does not exist.
func (r *Remote) currentSHA(ctx context.Context, repoPath string) (string, error) {
	file, _, resp, err := r.client.Repositories.GetContents(ctx, r.cfg.Owner, r.cfg.Repo, repoPath,
		&github.RepositoryContentGetOptions{Ref: r.cfg.Branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	if file == nil {
		return "", fmt.Errorf("%s is a directory", repoPath)
	}
	return file.GetSHA(), nil
}

// GitBlobSHA returns the SHA-1 git assigns to a blob with this content.
func GitBlobSHA(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// commitMessage renders "Upload notes for class8/science/chapter-5" from an
// artifact path.
func commitMessage(p string) string {
	stem := strings.TrimSuffix(p, ".pdf")
	for _, kind := range []domain.ArtifactKind{domain.ArtifactNotes, domain.ArtifactSolutions} {
		if base, ok := strings.CutSuffix(stem, "-"+string(kind)); ok {
			return fmt.Sprintf("Upload %s for %s", kind, base)
		}
	}
	return "Upload " + p
}

// retryable classifies errors worth another attempt: rate limits, 5xx,
// write conflicts from a concurrent commit, and transport failures.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		if respErr.Response == nil {
			return false
		}
		status := respErr.Response.StatusCode
		// 409: branch moved under us; 422 without a sha: file appeared
		// between the read and the create. Both resolve on a fresh read.
		return ShouldRetryHTTPStatus(status) || status == http.StatusConflict || status == http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Transport errors and per-attempt timeouts.
	return true
}

func describe(err error) string {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return fmt.Sprintf("github responded %d: %s", respErr.Response.StatusCode, respErr.Message)
	}
	return err.Error()
}
