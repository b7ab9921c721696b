package confloader

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Addr string `koanf:"addr"`
		} `koanf:"http"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"server"`
	Auth struct {
		Username          string        `koanf:"username"`
		SessionTTL        time.Duration `koanf:"session_ttl"`
		ProtectedPrefixes []string      `koanf:"protected_prefixes"`
		LoginBurst        int           `koanf:"login_burst"`
	} `koanf:"auth"`
	Metrics struct {
		Enabled bool `koanf:"enabled"`
	} `koanf:"metrics"`
}

func defaultTestConfig() *testConfig {
	var c testConfig
	c.Server.HTTP.Addr = "127.0.0.1:3000"
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Auth.SessionTTL = 4 * time.Hour
	c.Auth.ProtectedPrefixes = []string{"/admin", "/api/upload"}
	c.Auth.LoginBurst = 5
	c.Metrics.Enabled = true
	return &c
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "notehub.yaml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
	if NewLoader().envPrefix != DefaultEnvPrefix {
		t.Error("default prefix not applied")
	}
}

func TestLoader_Load_DefaultsOnly(t *testing.T) {
	cfg := defaultTestConfig()
	l := NewLoader(WithEnvPrefix("NHTEST_DEFAULTS_"))

	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, defaultTestConfig()) {
		t.Errorf("defaults changed: %+v", cfg)
	}
	if l.String("server.http.addr") != "127.0.0.1:3000" {
		t.Errorf("server.http.addr = %q", l.String("server.http.addr"))
	}
}

func TestLoader_Load_File(t *testing.T) {
	path := writeFile(t, `
server:
  http:
    addr: "0.0.0.0:8080"
auth:
  session_ttl: 30m
  protected_prefixes: ["/admin"]
metrics:
  enabled: false
`)
	cfg := defaultTestConfig()
	if err := NewLoader(WithConfigFile(path), WithEnvPrefix("NHTEST_FILE_")).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTP.Addr != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Auth.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.Auth.SessionTTL)
	}
	if !reflect.DeepEqual(cfg.Auth.ProtectedPrefixes, []string{"/admin"}) {
		t.Errorf("ProtectedPrefixes = %v, want replaced list", cfg.Auth.ProtectedPrefixes)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("unset key lost its default: %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	err := NewLoader(WithConfigFile("/nonexistent/notehub.yaml")).Load(defaultTestConfig())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoader_Load_EnvUnderscoreKeys(t *testing.T) {
	t.Setenv("NHTEST_ENV_AUTH_SESSION_TTL", "2h")
	t.Setenv("NHTEST_ENV_AUTH_LOGIN_BURST", "9")
	t.Setenv("NHTEST_ENV_SERVER_SHUTDOWN_TIMEOUT", "1s")
	t.Setenv("NHTEST_ENV_AUTH_PROTECTED_PREFIXES", "/admin, /private")
	t.Setenv("NHTEST_ENV_UNKNOWN_KEY", "ignored")

	cfg := defaultTestConfig()
	l := NewLoader(WithEnvPrefix("NHTEST_ENV_"))
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.LoginBurst != 9 {
		t.Errorf("LoginBurst = %d", cfg.Auth.LoginBurst)
	}
	if cfg.Server.ShutdownTimeout != time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if !reflect.DeepEqual(cfg.Auth.ProtectedPrefixes, []string{"/admin", "/private"}) {
		t.Errorf("ProtectedPrefixes = %v", cfg.Auth.ProtectedPrefixes)
	}
	for _, k := range l.Keys() {
		if k == "unknown.key" {
			t.Error("unknown env key should be ignored")
		}
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeFile(t, "auth:\n  username: from-file\nserver:\n  http:\n    addr: \"10.0.0.1:80\"\n")
	t.Setenv("NHTEST_PRIO_ADMIN_USERNAME", "from-alias")
	t.Setenv("NHTEST_PRIO_AUTH_USERNAME", "from-env")
	t.Setenv("NHTEST_PRIO_LEGACY_ADDR", "10.0.0.2:80")

	cfg := defaultTestConfig()
	l := NewLoader(
		WithConfigFile(path),
		WithEnvPrefix("NHTEST_PRIO_AUTH_"),
		WithEnvAliases(map[string]string{
			"NHTEST_PRIO_ADMIN_USERNAME": "auth.username",
			"NHTEST_PRIO_LEGACY_ADDR":    "server.http.addr",
		}),
	)
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Alias beats file.
	if cfg.Server.HTTP.Addr != "10.0.0.2:80" {
		t.Errorf("Addr = %q, want alias value", cfg.Server.HTTP.Addr)
	}
	// With prefix NHTEST_PRIO_AUTH_, NHTEST_PRIO_AUTH_USERNAME maps to
	// "username", which is not a known key and is ignored.
	if cfg.Auth.Username != "from-alias" {
		t.Errorf("Username = %q, want from-alias", cfg.Auth.Username)
	}
}

func TestLoader_Load_PrefixedEnvBeatsAlias(t *testing.T) {
	t.Setenv("NHTEST_ALIAS_ADMIN", "from-alias")
	t.Setenv("NHTEST_PFX_AUTH_USERNAME", "from-env")

	cfg := defaultTestConfig()
	l := NewLoader(
		WithEnvPrefix("NHTEST_PFX_"),
		WithEnvAliases(map[string]string{"NHTEST_ALIAS_ADMIN": "auth.username"}),
	)
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Username != "from-env" {
		t.Errorf("Username = %q, want from-env", cfg.Auth.Username)
	}
}

func TestLoader_Load_InvalidTarget(t *testing.T) {
	var notStruct int
	for _, target := range []any{nil, testConfig{}, &notStruct} {
		if err := NewLoader().Load(target); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Load(%T) = %v, want ErrInvalidTarget", target, err)
		}
	}
}

func TestLoader_Load_AliasCoercesSlices(t *testing.T) {
	t.Setenv("NHTEST_PROTECTED", "/admin,/api/upload, /private")

	cfg := defaultTestConfig()
	l := NewLoader(
		WithEnvPrefix("NHTEST_COERCE_"),
		WithEnvAliases(map[string]string{"NHTEST_PROTECTED": "auth.protected_prefixes"}),
	)
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"/admin", "/api/upload", "/private"}
	if !reflect.DeepEqual(cfg.Auth.ProtectedPrefixes, want) {
		t.Errorf("ProtectedPrefixes = %v, want %v", cfg.Auth.ProtectedPrefixes, want)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"log": map[string]any{"level": "debug"}}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	if l.String("log.level") != "debug" {
		t.Errorf("log.level = %q", l.String("log.level"))
	}
}

func TestStructFields(t *testing.T) {
	fields := structFields(reflect.TypeOf(testConfig{}))
	for _, key := range []string{"server.http.addr", "server.shutdown_timeout", "auth.session_ttl", "auth.protected_prefixes", "metrics.enabled"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if fields["auth.protected_prefixes"].kind != reflect.Slice {
		t.Error("protected_prefixes should be a slice field")
	}
}

func TestSetNested(t *testing.T) {
	m := map[string]any{}
	setNested(m, "artifact.remote.owner", "octo")
	setNested(m, "artifact.remote.repo", "notes")

	remote := m["artifact"].(map[string]any)["remote"].(map[string]any)
	if remote["owner"] != "octo" || remote["repo"] != "notes" {
		t.Errorf("nested map = %v", m)
	}
}
