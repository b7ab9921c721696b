package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/internal/infra/buildinfo"
)

// DefaultCookieName is the server's session cookie name.
const DefaultCookieName = "admin_session"

// DefaultTimeout bounds each request. Uploads of two 10 MiB files need room.
const DefaultTimeout = 2 * time.Minute

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	cookieName string
	session    string
	userAgent  string
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithSession sets the session cookie value sent with every request.
func WithSession(cookie string) Option {
	return func(c *HTTPClient) { c.session = cookie }
}

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(c *HTTPClient) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// NewHTTPClient creates a new HTTP client. A server without a scheme is
// assumed to be plain http.
func NewHTTPClient(server string, opts ...Option) *HTTPClient {
	baseURL := strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{
		baseURL:    baseURL,
		cookieName: DefaultCookieName,
		userAgent:  buildinfo.UserAgent("notehub-cli"),
		client: &http.Client{
			Timeout: DefaultTimeout,
			// The gate redirects browsers; the CLI wants the status itself.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Session returns the current session cookie value.
func (c *HTTPClient) Session() string {
	return c.session
}

// APIError is an error response from the server.
type APIError struct {
	Status    int
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Message   string `json:"error"`
	Details   string `json:"details"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, msg)
}

// IsUnauthenticated reports whether err is a 401 from the server.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Cookie    string
	ExpiresAt int64 // unix ms
}

// SessionInfo describes the current admin session. Times are unix ms.
type SessionInfo struct {
	Subject   string `json:"subject"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// UploadRequest describes a chapter upload. NotesPath and SolutionsPath
// name local PDF files; at least one must be set.
type UploadRequest struct {
	Title         string
	Class         int
	Subject       string
	ChapterNumber string
	Description   string
	Tags          string
	Backend       string
	Update        bool
	NotesPath     string
	SolutionsPath string
}

// UploadResult is the server's reply to an upload.
type UploadResult struct {
	Chapter *domain.CatalogEntry `json:"chapter"`
	Storage string               `json:"storage"`
}

// Health checks GET /health.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, "", nil)
}

// Login exchanges credentials for a session cookie and keeps it on the
// client.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/auth/login", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	var out struct {
		ExpiresAt int64 `json:"expiresAt"`
	}
	if err := parseResponse(resp, &out); err != nil {
		return nil, err
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName && ck.Value != "" {
			c.session = ck.Value
			return &LoginResult{Cookie: ck.Value, ExpiresAt: out.ExpiresAt}, nil
		}
	}
	return nil, fmt.Errorf("login succeeded but no %s cookie was set", c.cookieName)
}

// Logout asks the server to clear the cookie and forgets the session.
func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, "", nil)
	c.session = ""
	return err
}

// WhoAmI returns the session the client currently holds.
func (c *HTTPClient) WhoAmI(ctx context.Context) (*SessionInfo, error) {
	var out SessionInfo
	if err := c.do(ctx, http.MethodGet, "/admin/session", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chapters returns the merged catalog keyed by chapter id.
func (c *HTTPClient) Chapters(ctx context.Context) (map[string]*domain.CatalogEntry, error) {
	out := make(map[string]*domain.CatalogEntry)
	if err := c.do(ctx, http.MethodGet, "/api/chapters", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Chapter returns one catalog entry.
func (c *HTTPClient) Chapter(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	var out domain.CatalogEntry
	if err := c.do(ctx, http.MethodGet, "/api/chapters/"+url.PathEscape(id), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload submits a chapter. wrap, when non-nil, wraps the request body,
// e.g. to report progress; it receives the body size.
func (c *HTTPClient) Upload(ctx context.Context, req *UploadRequest, wrap func(body io.Reader, size int64) io.Reader) (*UploadResult, error) {
	if req.NotesPath == "" && req.SolutionsPath == "" {
		return nil, errors.New("upload needs --notes or --solutions")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	class := ""
	if req.Class > 0 {
		class = strconv.Itoa(req.Class)
	}
	fields := [][2]string{
		{"title", req.Title},
		{"class", class},
		{"subject", req.Subject},
		{"chapterNumber", req.ChapterNumber},
		{"description", req.Description},
		{"tags", req.Tags},
		{"backend", req.Backend},
	}
	if req.Update {
		fields = append(fields, [2]string{"update", "true"})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := attachFile(mw, "notes", req.NotesPath); err != nil {
		return nil, err
	}
	if err := attachFile(mw, "solutions", req.SolutionsPath); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	size := int64(buf.Len())
	var body io.Reader = &buf
	if wrap != nil {
		body = wrap(body, size)
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/upload", body, mw.FormDataContentType(), func(r *http.Request) {
		r.ContentLength = size
	})
	if err != nil {
		return nil, err
	}
	var out UploadResult
	if err := parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Backup streams the server's overlay backup into w and returns the number
// of bytes written.
func (c *HTTPClient) Backup(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/admin/backup", nil, "")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 300 {
		return 0, parseResponse(resp, nil)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read backup: %w", err)
	}
	return n, nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s file: %w", field, err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", "application/pdf")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = pw.Write(data)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, target any) error {
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return parseResponse(resp, target)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body io.Reader, contentType string, mutate ...func(*http.Request)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.session})
	}
	for _, m := range mutate {
		m(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// parseResponse decodes a JSON body into target, or the error body into
// an *APIError for statuses >= 300.
func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(data, apiErr); err != nil && len(data) > 0 {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
