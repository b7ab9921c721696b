package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeAPI emulates the notehub endpoints the client uses.
type fakeAPI struct {
	t          *testing.T
	lastCookie string
	lastAccept string
	lastUA     string
	upload     map[string]string
	files      map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lastAccept = r.Header.Get("Accept")
	f.lastUA = r.Header.Get("User-Agent")
	f.lastCookie = ""
	if c, err := r.Cookie(DefaultCookieName); err == nil {
		f.lastCookie = c.Value
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"success":false,"code":"NH-AUTH-4011","kind":"InvalidCredentials","error":"invalid credentials","request_id":"r1"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: DefaultCookieName, Value: "sess.abc", Path: "/"})
		io.WriteString(w, `{"success":true,"expiresAt":1790000000}`)

	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout":
		http.SetCookie(w, &http.Cookie{Name: DefaultCookieName, Value: "", MaxAge: -1})
		io.WriteString(w, `{"success":true}`)

	case r.URL.Path == "/admin/session":
		if f.lastCookie != "sess.abc" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"code":"NH-AUTH-4010","kind":"Unauthenticated","error":"authentication required"}`)
			return
		}
		io.WriteString(w, `{"success":true,"subject":"admin","issuedAt":1,"expiresAt":2}`)

	case r.URL.Path == "/api/chapters":
		io.WriteString(w, `{"6sci1":{"id":"6sci1","title":"Food","class":6,"subject":"Science","notesUrl":null,"solutionsUrl":null}}`)

	case strings.HasPrefix(r.URL.Path, "/api/chapters/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/chapters/")
		if id != "6sci1" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"code":"NH-CAT-4040","kind":"ChapterNotFound","error":"chapter not found","details":"`+id+`"}`)
			return
		}
		io.WriteString(w, `{"id":"6sci1","title":"Food","class":6,"subject":"Science"}`)

	case r.URL.Path == "/api/upload":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			f.t.Errorf("parse upload: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.upload = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f.upload[k] = v[0]
		}
		f.files = map[string]string{}
		for k, fhs := range r.MultipartForm.File {
			fh := fhs[0]
			rc, _ := fh.Open()
			data, _ := io.ReadAll(rc)
			rc.Close()
			f.files[k] = fh.Filename + "|" + fh.Header.Get("Content-Type") + "|" + string(data)
		}
		io.WriteString(w, `{"success":true,"chapter":{"id":"class8-science-chapter-5","title":"Light","class":8,"subject":"Science","notesUrl":"/notes/x.pdf"},"storage":"local"}`)

	case r.URL.Path == "/admin/backup":
		if f.lastCookie != "sess.abc" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"code":"NH-AUTH-4010","kind":"Unauthenticated","error":"authentication required"}`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		io.WriteString(w, "badger-backup")

	case r.URL.Path == "/health":
		io.WriteString(w, `{"status":"ok"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "404 page not found")
	}
}

func newTestClient(t *testing.T, opts ...Option) (*HTTPClient, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{t: t}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, opts...), api
}

func TestNewHTTPClient_BaseURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:3000", "http://localhost:3000"},
		{"https://notes.example.com/", "https://notes.example.com"},
		{"localhost:3000", "http://localhost:3000"},
	}
	for _, tt := range tests {
		if got := NewHTTPClient(tt.server).BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestHTTPClient_LoginStoresCookie(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	res, err := c.Login(ctx, "admin", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Cookie != "sess.abc" || res.ExpiresAt != 1790000000 || c.Session() != "sess.abc" {
		t.Errorf("result = %+v, session %q", res, c.Session())
	}

	who, err := c.WhoAmI(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if who.Subject != "admin" || api.lastCookie != "sess.abc" {
		t.Errorf("whoami = %+v, cookie sent %q", who, api.lastCookie)
	}
	if api.lastAccept != "application/json" || !strings.HasPrefix(api.lastUA, "notehub-cli/") {
		t.Errorf("Accept = %q, User-Agent = %q", api.lastAccept, api.lastUA)
	}
}

func TestHTTPClient_LoginRejected(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Login(context.Background(), "admin", "nope")
	if !IsUnauthenticated(err) {
		t.Fatalf("err = %v, want 401", err)
	}
	apiErr := err.(*APIError)
	if apiErr.Code != "NH-AUTH-4011" || apiErr.RequestID != "r1" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if err.Error() != "[NH-AUTH-4011] invalid credentials" {
		t.Errorf("Error() = %q", err.Error())
	}
	if c.Session() != "" {
		t.Error("session set after failed login")
	}
}

func TestHTTPClient_Logout(t *testing.T) {
	c, api := newTestClient(t, WithSession("sess.abc"))

	if err := c.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if api.lastCookie != "sess.abc" || c.Session() != "" {
		t.Errorf("cookie sent %q, session after %q", api.lastCookie, c.Session())
	}
}

func TestHTTPClient_Chapters(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	all, err := c.Chapters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e := all["6sci1"]; e == nil || e.ClassLevel != 6 || e.NotesURL != nil {
		t.Errorf("chapters = %+v", all)
	}

	if _, err := c.Chapter(ctx, "6sci1"); err != nil {
		t.Fatal(err)
	}

	_, err = c.Chapter(ctx, "nope")
	if err == nil || !strings.Contains(err.Error(), "NH-CAT-4040") || !strings.Contains(err.Error(), "nope") {
		t.Errorf("err = %v", err)
	}
}

func TestHTTPClient_Upload(t *testing.T) {
	c, api := newTestClient(t, WithSession("sess.abc"))
	dir := t.TempDir()
	notes := filepath.Join(dir, "light-notes.pdf")
	if err := os.WriteFile(notes, []byte("%PDF-1.4 light"), 0o600); err != nil {
		t.Fatal(err)
	}

	var wrappedSize int64
	res, err := c.Upload(context.Background(), &UploadRequest{
		Title:         "Light",
		Class:         8,
		Subject:       "Science",
		ChapterNumber: "Chapter 5",
		Update:        true,
		NotesPath:     notes,
	}, func(body io.Reader, size int64) io.Reader {
		wrappedSize = size
		return body
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Storage != "local" || res.Chapter.ID != "class8-science-chapter-5" {
		t.Errorf("result = %+v", res)
	}
	if api.upload["class"] != "8" || api.upload["chapterNumber"] != "Chapter 5" || api.upload["update"] != "true" {
		t.Errorf("fields = %v", api.upload)
	}
	if _, ok := api.upload["description"]; ok {
		t.Error("empty description should not be sent")
	}
	if api.files["notes"] != "light-notes.pdf|application/pdf|%PDF-1.4 light" {
		t.Errorf("notes part = %q", api.files["notes"])
	}
	if _, ok := api.files["solutions"]; ok {
		t.Error("solutions part should be absent")
	}
	if wrappedSize <= 0 {
		t.Errorf("wrap size = %d", wrappedSize)
	}
}

func TestHTTPClient_UploadNeedsFile(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.Upload(context.Background(), &UploadRequest{Title: "x"}, nil); err == nil {
		t.Error("expected error without files")
	}
}

func TestParseResponse_NonJSONError(t *testing.T) {
	c, _ := newTestClient(t)

	err := c.do(context.Background(), http.MethodGet, "/nowhere", nil, "", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "404 page not found") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestHealth(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestHTTPClient_Backup(t *testing.T) {
	c, _ := newTestClient(t, WithSession("sess.abc"))

	var buf strings.Builder
	n, err := c.Backup(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len("badger-backup")) || buf.String() != "badger-backup" {
		t.Errorf("Backup wrote %d bytes %q", n, buf.String())
	}
}

func TestHTTPClient_BackupUnauthenticated(t *testing.T) {
	c, _ := newTestClient(t)

	var buf strings.Builder
	_, err := c.Backup(context.Background(), &buf)
	if !IsUnauthenticated(err) {
		t.Fatalf("err = %v, want 401", err)
	}
	if buf.Len() != 0 {
		t.Errorf("error body leaked into output: %q", buf.String())
	}
}
