package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:3000"
	DefaultEnvironment     = "development"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultSessionTTL         = 4 * time.Hour
	DefaultCookieName         = "admin_session"
	DefaultLoginPath          = "/admin/login"
	DefaultLoginRatePerMinute = 10
	DefaultLoginBurst         = 5

	DefaultDataDir    = "data/overlay"
	DefaultGCInterval = 10 * time.Minute

	DefaultIDScheme = "slug"

	DefaultMaxSize        = 10 << 20
	DefaultBackend        = "local"
	DefaultLocalRoot      = "public/notes"
	DefaultLocalURLPrefix = "/notes"

	DefaultRemoteBranch      = "main"
	DefaultRemotePathPrefix  = "pdfs"
	DefaultRemoteCDNBase     = "https://cdn.jsdelivr.net/gh"
	DefaultRemoteTimeout     = 30 * time.Second
	DefaultRemoteMaxAttempts = 3

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath = "/metrics"
)

// DefaultProtectedPrefixes lists the path prefixes that require a session.
var DefaultProtectedPrefixes = []string{"/admin", "/api/upload"}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP:            HTTPConfig{Addr: DefaultHTTPAddr},
			Environment:     DefaultEnvironment,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Auth: AuthSection{
			SessionTTL:         DefaultSessionTTL,
			CookieName:         DefaultCookieName,
			LoginPath:          DefaultLoginPath,
			ProtectedPrefixes:  append([]string(nil), DefaultProtectedPrefixes...),
			LoginRatePerMinute: DefaultLoginRatePerMinute,
			LoginBurst:         DefaultLoginBurst,
		},
		Storage: StorageSection{
			DataDir:    DefaultDataDir,
			SyncWrites: true,
			GCInterval: DefaultGCInterval,
		},
		Catalog: CatalogSection{
			IDScheme: DefaultIDScheme,
		},
		Artifact: ArtifactSection{
			MaxSize:        DefaultMaxSize,
			DefaultBackend: DefaultBackend,
			Local: LocalArtifactConfig{
				Root:      DefaultLocalRoot,
				URLPrefix: DefaultLocalURLPrefix,
				Serve:     true,
			},
			Remote: RemoteArtifactConfig{
				Branch:      DefaultRemoteBranch,
				PathPrefix:  DefaultRemotePathPrefix,
				CDNBase:     DefaultRemoteCDNBase,
				Timeout:     DefaultRemoteTimeout,
				MaxAttempts: DefaultRemoteMaxAttempts,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}
