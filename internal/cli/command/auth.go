package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/notehub-dev/notehub/internal/cli/config"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in as the admin and save the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Admin username",
				EnvVars:  []string{"NOTEHUB_USERNAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Admin password (prefer --password-stdin)",
				EnvVars: []string{"NOTEHUB_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:  "password-stdin",
				Usage: "Read the password from stdin",
			},
		},
		Action: runLogin,
	}
}

func runLogin(c *cli.Context) error {
	password := c.String("password")
	if c.Bool("password-stdin") || password == "" {
		if !c.Bool("password-stdin") {
			fmt.Fprint(stderr(c), "Password: ")
		}
		var err error
		if password, err = readLine(stdin(c)); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if password == "" {
		return errors.New("password is required")
	}

	flags := ParseGlobalFlags(c)
	client := newClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
	defer cancel()

	result, err := client.Login(ctx, c.String("username"), password)
	if err != nil {
		return err
	}

	cfg := cliConfig(c)
	cfg.Session = &config.Session{
		Server:    flags.Server,
		Cookie:    result.Cookie,
		ExpiresAt: result.ExpiresAt,
	}
	if err := saveConfig(c, cfg); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	msg := "Logged in to " + flags.Server
	if result.ExpiresAt > 0 {
		msg += " until " + time.UnixMilli(result.ExpiresAt).Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintln(stdout(c), msg)
	return nil
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out and forget the saved session",
		Action: runLogout,
	}
}

func runLogout(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	cfg := cliConfig(c)

	if cfg.Session.ValidFor(flags.Server, time.Now()) {
		ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
		defer cancel()
		// The server keeps no session state; a failed call still leaves
		// nothing to clean up remotely.
		if err := newClient(c).Logout(ctx); err != nil {
			fmt.Fprintf(stderr(c), "warning: logout request failed: %v\n", err)
		}
	}

	cfg.Session = nil
	if err := saveConfig(c, cfg); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintln(stdout(c), "Logged out")
	return nil
}

// WhoAmICommand returns the whoami command.
func WhoAmICommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the current admin session",
		Action: runWhoAmI,
	}
}

type sessionView struct {
	Subject   string    `json:"subject"`
	Server    string    `json:"server"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func runWhoAmI(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
	defer cancel()

	info, err := newClient(c).WhoAmI(ctx)
	if err != nil {
		return explain(err)
	}
	return render(c, sessionView{
		Subject:   info.Subject,
		Server:    flags.Server,
		IssuedAt:  time.UnixMilli(info.IssuedAt),
		ExpiresAt: time.UnixMilli(info.ExpiresAt),
	})
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
