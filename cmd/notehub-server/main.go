package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/notehub-dev/notehub/internal/artifact"
	"github.com/notehub-dev/notehub/internal/core/service"
	"github.com/notehub-dev/notehub/internal/infra/buildinfo"
	"github.com/notehub-dev/notehub/internal/infra/confloader"
	"github.com/notehub-dev/notehub/internal/infra/shutdown"
	"github.com/notehub-dev/notehub/internal/infra/tlsroots"
	"github.com/notehub-dev/notehub/internal/server/config"
	"github.com/notehub-dev/notehub/internal/server/httpserver"
	"github.com/notehub-dev/notehub/internal/server/httpserver/handler"
	"github.com/notehub-dev/notehub/internal/storage"
	"github.com/notehub-dev/notehub/internal/storage/basecatalog"
	"github.com/notehub-dev/notehub/internal/telemetry/logger"
	"github.com/notehub-dev/notehub/internal/telemetry/metric"
)

// envAliases are the unprefixed variable names older deployments use.
var envAliases = map[string]string{
	"ADMIN_USERNAME": "auth.username",
	"ADMIN_PASSWORD": "auth.password",
	"AUTH_SECRET":    "auth.secret",
	"GITHUB_OWNER":   "artifact.remote.owner",
	"GITHUB_REPO":    "artifact.remote.repo",
	"GITHUB_BRANCH":  "artifact.remote.branch",
	"GITHUB_TOKEN":   "artifact.remote.token",
	"NODE_ENV":       "server.environment",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		restoreFile = flag.String("restore", "", "Load an overlay backup into the data directory and exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("notehub-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting notehub-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	registry := metric.NewRegistry()
	if *restoreFile != "" {
		return restoreOverlay(cfg, registry, *restoreFile, log)
	}

	sd := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)

	var certs *tlsroots.CertReloader
	if cfg.Server.HTTP.TLSCertFile != "" {
		if certs, err = watchCertificate(cfg, log); err != nil {
			return fmt.Errorf("init tls: %w", err)
		}
		sd.OnShutdown("tls-watcher", func(context.Context) error { return certs.Stop() })
	}

	engine, err := initStorage(cfg, registry, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	sd.OnShutdown("storage", func(context.Context) error {
		return engine.Close()
	})

	svc, err := initServices(cfg, engine, registry, log)
	if err != nil {
		engine.Close()
		return fmt.Errorf("init services: %w", err)
	}

	routerCfg := &httpserver.RouterConfig{
		Handler: handler.Config{
			Auth:    svc.Auth,
			Catalog: svc.Catalog,
			Ingest:  svc.Ingest,
			Backup:  engine.Backup,
			Cookie: handler.CookieConfig{
				Name:   cfg.Auth.CookieName,
				Secure: cfg.Server.Production(),
			},
			LoginPath:  cfg.Auth.LoginPath,
			TrustProxy: cfg.Server.HTTP.TrustProxy,
			Ready: func(ctx context.Context) error {
				_, err := engine.Stats(ctx)
				return err
			},
		},
		Gate:   svc.Gate,
		Logger: log,
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = registry
		routerCfg.MetricsHandler = registry.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Artifact.Local.Serve {
		routerCfg.StaticDir = cfg.Artifact.Local.Root
		routerCfg.StaticPrefix = cfg.Artifact.Local.URLPrefix
	}

	srv := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(routerCfg))
	sd.OnShutdown("http", srv.Shutdown)

	if *configFile != "" {
		w, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sd.OnShutdown("config-watcher", func(context.Context) error { return w.Stop() })
		}
	}

	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr(), "tls", certs != nil)

		var err error
		if certs != nil {
			err = srv.ListenAndServeTLS(certs.TLSConfig())
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil {
			log.Error("HTTP server error", "error", err)
			sd.Trigger("http server: " + err.Error())
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := sd.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithEnvAliases(envAliases)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger builds the process logger and installs it as slog's default.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	lc.Output = os.Stdout
	log, err := logger.New(lc)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

// initStorage opens the Badger overlay store.
func initStorage(cfg *config.ServerConfig, registry *metric.Registry, log *slog.Logger) (*storage.BadgerEngine, error) {
	opts := storage.DefaultOptions(cfg.Storage.DataDir)
	opts.SyncWrites = cfg.Storage.SyncWrites
	opts.GCInterval = cfg.Storage.GCInterval

	engine, err := storage.OpenBadger(opts, log)
	if err != nil {
		return nil, err
	}
	return engine.RegisterMetrics(registry.Registerer()), nil
}

// restoreOverlay loads a backup taken from GET /admin/backup. The server
// must not be running against the same data directory.
func restoreOverlay(cfg *config.ServerConfig, registry *metric.Registry, path string, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	engine, err := initStorage(cfg, registry, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := engine.Restore(context.Background(), f); err != nil {
		engine.Close()
		return err
	}
	if err := engine.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}

	log.Info("overlay restored", "path", filepath.Clean(path), "data_dir", cfg.Storage.DataDir)
	return nil
}

// Services holds all initialized services.
type Services struct {
	Auth    *service.AuthService
	Gate    *service.AccessGate
	Catalog *service.CatalogService
	Ingest  *service.IngestService
}

// initServices wires the domain services.
func initServices(cfg *config.ServerConfig, engine *storage.BadgerEngine, registry *metric.Registry, log *slog.Logger) (*Services, error) {
	ctx := context.Background()

	base, err := basecatalog.Load()
	if err != nil {
		return nil, fmt.Errorf("base catalog: %w", err)
	}

	catalog := service.NewCatalogService(base, storage.NewOverlayStore(engine, log), log)
	if cfg.Catalog.ImportFile != "" {
		if err := importOverlay(ctx, catalog, cfg.Catalog.ImportFile, log); err != nil {
			return nil, err
		}
	}
	if err := registry.Registerer().Register(metric.NewCollector(catalog)); err != nil {
		return nil, fmt.Errorf("register catalog collector: %w", err)
	}

	auth := service.NewAuthService(service.AuthServiceConfig{
		Username:           cfg.Auth.Username,
		Password:           cfg.Auth.Password,
		Secret:             cfg.Auth.Secret,
		SessionTTL:         cfg.Auth.SessionTTL,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
		LoginBurst:         cfg.Auth.LoginBurst,
		Metrics:            registry,
	})
	if !auth.Configured() {
		log.Warn("admin credentials are not configured; logins and uploads will be refused")
	}

	gate := service.NewAccessGate(auth, service.AccessGateConfig{
		LoginPath:         cfg.Auth.LoginPath,
		ProtectedPrefixes: cfg.Auth.ProtectedPrefixes,
		Metrics:           registry,
	})

	backends, err := buildBackends(cfg, registry, log)
	if err != nil {
		return nil, err
	}
	scheme, err := service.ParseIDScheme(cfg.Catalog.IDScheme)
	if err != nil {
		return nil, err
	}
	ingest, err := service.NewIngestService(catalog, service.IngestServiceConfig{
		Backends:       backends,
		DefaultBackend: cfg.Artifact.DefaultBackend,
		MaxSize:        cfg.Artifact.MaxSize,
		IDScheme:       scheme,
		Metrics:        registry,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest service: %w", err)
	}

	baseCount, overlayCount, _ := catalog.Counts(ctx)
	log.Info("services initialized",
		"base_entries", baseCount,
		"overlay_entries", overlayCount,
		"backends", ingest.BackendNames(),
		"id_scheme", string(scheme))

	return &Services{Auth: auth, Gate: gate, Catalog: catalog, Ingest: ingest}, nil
}

// buildBackends creates the local backend and, always, the GitHub backend.
// The latter reports missing credentials at upload time.
func buildBackends(cfg *config.ServerConfig, registry *metric.Registry, log *slog.Logger) ([]service.ArtifactBackend, error) {
	local := artifact.NewLocal(artifact.LocalConfig{
		Root:      cfg.Artifact.Local.Root,
		URLPrefix: cfg.Artifact.Local.URLPrefix,
		Logger:    log,
	})

	rc := cfg.Artifact.Remote
	var httpClient *http.Client
	if rc.CAFile != "" {
		roots, err := tlsroots.SystemWith(rc.CAFile)
		if err != nil {
			return nil, fmt.Errorf("remote backend: %w", err)
		}
		httpClient = tlsroots.Client(roots)
	}

	remote, err := artifact.NewRemote(artifact.RemoteConfig{
		Owner:       rc.Owner,
		Repo:        rc.Repo,
		Branch:      rc.Branch,
		Token:       rc.Token,
		PathPrefix:  rc.PathPrefix,
		CDNBase:     rc.CDNBase,
		APIBaseURL:  rc.APIBaseURL,
		Timeout:     rc.Timeout,
		MaxAttempts: rc.MaxAttempts,
		UserAgent:   buildinfo.UserAgent("notehub-server"),
		HTTPClient:  httpClient,
		Retries:     registry,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("remote backend: %w", err)
	}
	if !remote.Configured() {
		log.Info("github backend has no credentials; github uploads will be rejected")
	}

	return []service.ArtifactBackend{local, remote}, nil
}

// importOverlay seeds an empty overlay from a chapters.json file.
func importOverlay(ctx context.Context, catalog *service.CatalogService, path string, log *slog.Logger) error {
	entries, err := basecatalog.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("catalog import file not found", "path", path)
			return nil
		}
		return fmt.Errorf("read import file: %w", err)
	}

	n, err := catalog.Import(ctx, entries)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("imported catalog overlay", "path", filepath.Clean(path), "entries", n)
	}
	return nil
}

// watchConfig reloads the log level when the config file changes. Other
// settings need a restart.
func watchConfig(path string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(path, func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level == logger.GetLevel() {
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		log.Info("log level changed", "level", cfg.Log.Level)
	}, confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	w.Start()
	return w, nil
}

// watchCertificate loads the HTTPS pair and reloads it on rotation. A
// watcher that cannot start leaves the initial pair in service.
func watchCertificate(cfg *config.ServerConfig, log *slog.Logger) (*tlsroots.CertReloader, error) {
	w, err := tlsroots.NewCertReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile, log)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		log.Warn("certificate reload disabled", "error", err)
	}
	return w, nil
}
