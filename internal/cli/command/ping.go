package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the server is up",
		Action: func(c *cli.Context) error {
			flags := ParseGlobalFlags(c)
			ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
			defer cancel()

			start := time.Now()
			if err := newClient(c).Health(ctx); err != nil {
				return err
			}
			fmt.Fprintf(stdout(c), "%s is healthy (%s)\n", flags.Server, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
