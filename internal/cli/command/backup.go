package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
)

// BackupCommand returns the backup command.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:        "backup",
		Usage:       "Download a backup of the server's chapter overlay",
		Description: "Restore a backup with notehub-server -restore FILE while the server is stopped.",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Destination file (default notehub-overlay-<timestamp>.bak)",
			},
		},
		Action: runBackup,
	}
}

func runBackup(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	dest := c.Path("file")
	if dest == "" {
		dest = fmt.Sprintf("notehub-overlay-%s.bak", time.Now().UTC().Format("20060102T150405Z"))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".notehub-backup-*")
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
	defer cancel()

	n, err := newClient(c).Backup(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return explain(err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("save backup: %w", err)
	}

	fmt.Fprintf(stdout(c), "Wrote %d bytes to %s\n", n, dest)
	return nil
}
