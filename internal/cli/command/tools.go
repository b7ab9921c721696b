package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/notehub-dev/notehub/pkg/passhash"
	"github.com/notehub-dev/notehub/pkg/token"
)

// HashPasswordCommand returns the hash-password command.
func HashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print an argon2id hash for ADMIN_PASSWORD (reads the password from stdin)",
		Action: func(c *cli.Context) error {
			password, err := readLine(stdin(c))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if password == "" {
				return errors.New("password is required")
			}
			hash, err := passhash.Hash(password, passhash.DefaultParams)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout(c), hash)
			return nil
		},
	}
}

// GenSecretCommand returns the gen-secret command.
func GenSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-secret",
		Usage: "Print a random AUTH_SECRET",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "bytes",
				Usage: "Secret length in bytes (min 32)",
				Value: token.MinSecretBytes,
			},
		},
		Action: func(c *cli.Context) error {
			n := c.Int("bytes")
			if n < token.MinSecretBytes {
				return fmt.Errorf("--bytes must be at least %d", token.MinSecretBytes)
			}
			secret, err := token.NewSecret(n)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout(c), secret)
			return nil
		},
	}
}
