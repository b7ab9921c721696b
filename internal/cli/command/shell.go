package command

import (
	"bufio"
	"errors"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/notehub-dev/notehub/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Run commands interactively (exit, quit or Ctrl+D to leave)",
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	fmtOut := stdout(c)
	// One buffered reader serves the loop and commands that read stdin;
	// bufio.NewReader hands back the same reader when wrapping it again.
	in := bufio.NewReader(stdin(c))

	// Each line runs as a fresh invocation so a login inside the shell is
	// seen by the commands after it.
	exec := func(args []string) error {
		if len(args) > 0 && args[0] == "shell" {
			return errors.New("already in the shell")
		}
		app := App()
		app.Writer = fmtOut
		app.ErrWriter = stderr(c)
		app.Reader = in
		app.ExitErrHandler = func(*cli.Context, error) {}

		argv := []string{c.App.Name,
			"--config", flags.ConfigPath,
			"--server", flags.Server,
			"--timeout", flags.Timeout.String(),
		}
		if flags.Output != "" {
			argv = append(argv, "--output", flags.Output)
		}
		if flags.Wide {
			argv = append(argv, "--wide")
		}
		return app.Run(append(argv, args...))
	}

	r := repl.New(repl.Config{
		Input:       in,
		Output:      fmtOut,
		Prompt:      "notehub> ",
		Commands:    commandPaths(c.App.Commands),
		HistoryFile: filepath.Join(filepath.Dir(flags.ConfigPath), "history"),
		Exec:        exec,
	})
	return r.Run()
}

// commandPaths lists every command as it is typed, e.g. "chapters list".
func commandPaths(cmds []*cli.Command) []string {
	var paths []string
	var walk func(prefix []string, cmds []*cli.Command)
	walk = func(prefix []string, cmds []*cli.Command) {
		for _, cmd := range cmds {
			if cmd.Hidden || cmd.Name == "shell" {
				continue
			}
			p := append(append([]string(nil), prefix...), cmd.Name)
			paths = append(paths, strings.Join(p, " "))
			walk(p, cmd.Subcommands)
		}
	}
	walk(nil, cmds)
	return paths
}
