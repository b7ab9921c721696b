package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Verify validates the configuration. Missing admin credentials are not an
// error here: the server starts and refuses logins until they are set.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyAuth(&cfg.Auth),
		verifyStorage(&cfg.Storage),
		verifyCatalog(&cfg.Catalog),
		verifyArtifact(&cfg.Artifact),
		verifyLog(&cfg.Log),
		verifyMetrics(&cfg.Metrics),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.http.addr: %w", err))
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http.tls_cert_file and tls_key_file must be set together"))
	}
	switch strings.ToLower(cfg.Environment) {
	case "", "development", "production", "test":
	default:
		errs = append(errs, fmt.Errorf("server.environment: unknown value %q", cfg.Environment))
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyAuth(cfg *AuthSection) error {
	var errs []error
	if cfg.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if cfg.CookieName == "" || strings.ContainsAny(cfg.CookieName, " ;=,\t") {
		errs = append(errs, fmt.Errorf("auth.cookie_name: invalid name %q", cfg.CookieName))
	}
	if !strings.HasPrefix(cfg.LoginPath, "/") {
		errs = append(errs, errors.New("auth.login_path must start with /"))
	}
	for _, p := range cfg.ProtectedPrefixes {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("auth.protected_prefixes: %q must start with /", p))
		}
	}
	if cfg.LoginRatePerMinute < 0 || cfg.LoginBurst < 0 {
		errs = append(errs, errors.New("auth.login_rate_per_minute and login_burst must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if cfg.GCInterval < 0 {
		return errors.New("storage.gc_interval must not be negative")
	}
	return nil
}

func verifyCatalog(cfg *CatalogSection) error {
	switch strings.ToLower(cfg.IDScheme) {
	case "", "slug", "legacy":
		return nil
	default:
		return fmt.Errorf("catalog.id_scheme: unknown scheme %q", cfg.IDScheme)
	}
}

func verifyArtifact(cfg *ArtifactSection) error {
	var errs []error
	if cfg.MaxSize <= 0 {
		errs = append(errs, errors.New("artifact.max_size must be positive"))
	}
	switch strings.ToLower(cfg.DefaultBackend) {
	case "", "local", "github", "remote":
	default:
		errs = append(errs, fmt.Errorf("artifact.default_backend: unknown backend %q", cfg.DefaultBackend))
	}
	if cfg.Local.Root == "" {
		errs = append(errs, errors.New("artifact.local.root is required"))
	}
	if !strings.HasPrefix(cfg.Local.URLPrefix, "/") || cfg.Local.URLPrefix == "/" {
		errs = append(errs, fmt.Errorf("artifact.local.url_prefix: %q must be a non-root absolute path", cfg.Local.URLPrefix))
	}
	for key, raw := range map[string]string{
		"artifact.remote.cdn_base":     cfg.Remote.CDNBase,
		"artifact.remote.api_base_url": cfg.Remote.APIBaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: %q is not an absolute URL", key, raw))
		}
	}
	if cfg.Remote.Timeout < 0 || cfg.Remote.MaxAttempts < 0 {
		errs = append(errs, errors.New("artifact.remote.timeout and max_attempts must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", cfg.Level))
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Format))
	}
	return errors.Join(errs...)
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}
