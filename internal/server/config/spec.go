package config

import (
	"strings"
	"time"
)

// ServerConfig is the root configuration for notehub-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Auth     AuthSection     `koanf:"auth"`
	Storage  StorageSection  `koanf:"storage"`
	Catalog  CatalogSection  `koanf:"catalog"`
	Artifact ArtifactSection `koanf:"artifact"`
	Log      LogSection      `koanf:"log"`
	Metrics  MetricsSection  `koanf:"metrics"`
}

// ServerSection configures the HTTP endpoint and process lifecycle.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// Environment is "development" or "production". Production marks the
	// session cookie Secure.
	Environment string `koanf:"environment"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// TrustProxy honours X-Forwarded-For and X-Real-IP for client IPs.
	TrustProxy bool `koanf:"trust_proxy"`
}

// Production reports whether the server runs in production mode.
func (s ServerSection) Production() bool {
	return strings.EqualFold(strings.TrimSpace(s.Environment), "production")
}

// AuthSection configures the single administrator identity and sessions.
type AuthSection struct {
	Username string `koanf:"username"`

	// Password is plaintext or an argon2id PHC string.
	Password string `koanf:"password"`

	// Secret keys the session HMAC.
	Secret string `koanf:"secret"`

	SessionTTL        time.Duration `koanf:"session_ttl"`
	CookieName        string        `koanf:"cookie_name"`
	LoginPath         string        `koanf:"login_path"`
	ProtectedPrefixes []string      `koanf:"protected_prefixes"`

	// LoginRatePerMinute bounds login attempts per client IP (0 disables).
	LoginRatePerMinute int `koanf:"login_rate_per_minute"`
	LoginBurst         int `koanf:"login_burst"`
}

// StorageSection configures the overlay store.
type StorageSection struct {
	DataDir    string        `koanf:"data_dir"`
	SyncWrites bool          `koanf:"sync_writes"`
	// GCInterval of zero turns off periodic value log GC.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// CatalogSection configures catalog identity and bootstrap.
type CatalogSection struct {
	// IDScheme is "slug" or "legacy".
	IDScheme string `koanf:"id_scheme"`

	// ImportFile names a chapters.json overlay imported into an empty store.
	ImportFile string `koanf:"import_file"`
}

// ArtifactSection configures ingestion limits and storage backends.
type ArtifactSection struct {
	MaxSize        int                  `koanf:"max_size"`
	DefaultBackend string               `koanf:"default_backend"`
	Local          LocalArtifactConfig  `koanf:"local"`
	Remote         RemoteArtifactConfig `koanf:"remote"`
}

// LocalArtifactConfig configures the filesystem backend.
type LocalArtifactConfig struct {
	Root      string `koanf:"root"`
	URLPrefix string `koanf:"url_prefix"`

	// Serve exposes Root under URLPrefix from the HTTP server.
	Serve bool `koanf:"serve"`
}

// RemoteArtifactConfig configures the GitHub backend.
type RemoteArtifactConfig struct {
	Owner       string        `koanf:"owner"`
	Repo        string        `koanf:"repo"`
	Branch      string        `koanf:"branch"`
	Token       string        `koanf:"token"`
	PathPrefix  string        `koanf:"path_prefix"`
	CDNBase     string        `koanf:"cdn_base"`
	APIBaseURL  string        `koanf:"api_base_url"`
	CAFile      string        `koanf:"ca_file"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}
