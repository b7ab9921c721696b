package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/notehub-dev/notehub/internal/cli/config"
	"github.com/notehub-dev/notehub/internal/cli/connection"
	"github.com/notehub-dev/notehub/internal/cli/output"
	"github.com/notehub-dev/notehub/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "notehub-cli",
		Usage:   "Manage a notehub server from the command line",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoAmICommand(),
			ChaptersCommand(),
			UploadCommand(),
			BackupCommand(),
			PingCommand(),
			HashPasswordCommand(),
			GenSecretCommand(),
			ShellCommand(),
		},
		Before: loadState,
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "notehub server URL (default from the CLI config, else " + config.DefaultServer + ")",
			EnvVars: []string{"NOTEHUB_SERVER"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config and session file",
			EnvVars: []string{"NOTEHUB_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout",
			Value: connection.DefaultTimeout,
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server     string
	ConfigPath string
	Output     string
	Wide       bool
	Timeout    time.Duration
}

// ParseGlobalFlags extracts global flags from context, filling gaps from
// the CLI config file.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	cfg := cliConfig(c)
	flags := &GlobalFlags{
		Server:     c.String("server"),
		ConfigPath: c.String("config"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		Timeout:    c.Duration("timeout"),
	}
	if flags.Server == "" {
		flags.Server = cfg.Server
	}
	if flags.Server == "" {
		flags.Server = config.DefaultServer
	}
	if flags.Output == "" {
		flags.Output = cfg.Output
	}
	return flags
}

const configKey = "cliConfig"

func loadState(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[configKey].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

func saveConfig(c *cli.Context, cfg *config.CLIConfig) error {
	c.App.Metadata[configKey] = cfg
	return config.Save(cfg, c.String("config"))
}

// newClient returns an API client carrying the saved session when it
// belongs to the selected server and has not expired.
func newClient(c *cli.Context) *connection.HTTPClient {
	flags := ParseGlobalFlags(c)
	opts := []connection.Option{connection.WithTimeout(flags.Timeout)}
	if s := cliConfig(c).Session; s.ValidFor(flags.Server, time.Now()) {
		opts = append(opts, connection.WithSession(s.Cookie))
	}
	return connection.NewHTTPClient(flags.Server, opts...)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func stdin(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

// explain adds a hint to errors a user can act on.
func explain(err error) error {
	if connection.IsUnauthenticated(err) {
		return fmt.Errorf("%w (run notehub-cli login)", err)
	}
	return err
}
