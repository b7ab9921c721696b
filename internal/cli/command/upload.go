package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/notehub-dev/notehub/internal/cli/connection"
	"github.com/notehub-dev/notehub/internal/cli/output"
)

// UploadCommand returns the upload command.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload chapter notes and/or solutions (requires login)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Chapter title", Required: true},
			&cli.IntFlag{Name: "class", Usage: "Class level", Required: true},
			&cli.StringFlag{Name: "subject", Usage: "Subject name", Required: true},
			&cli.StringFlag{Name: "chapter", Usage: "Chapter number, e.g. 1 or 1.2", Required: true},
			&cli.StringFlag{Name: "description", Usage: "Short description"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.PathFlag{Name: "notes", Usage: "Notes PDF"},
			&cli.PathFlag{Name: "solutions", Usage: "Solutions PDF"},
			&cli.StringFlag{Name: "backend", Usage: "Storage backend: local or github (server default when empty)"},
			&cli.BoolFlag{Name: "update", Usage: "Replace files of an existing chapter"},
			&cli.BoolFlag{Name: "no-progress", Usage: "Do not show upload progress"},
		},
		Action: runUpload,
	}
}

func runUpload(c *cli.Context) error {
	if c.Path("notes") == "" && c.Path("solutions") == "" {
		return errors.New("at least one of --notes or --solutions is required")
	}
	flags := ParseGlobalFlags(c)

	req := &connection.UploadRequest{
		Title:         c.String("title"),
		Class:         c.Int("class"),
		Subject:       c.String("subject"),
		ChapterNumber: c.String("chapter"),
		Description:   c.String("description"),
		Tags:          c.String("tags"),
		Backend:       c.String("backend"),
		Update:        c.Bool("update"),
		NotesPath:     c.Path("notes"),
		SolutionsPath: c.Path("solutions"),
	}

	var bar *output.ProgressBar
	var wrap func(io.Reader, int64) io.Reader
	if !c.Bool("no-progress") {
		bar = output.NewProgressBar(stderr(c), "Uploading")
		wrap = func(r io.Reader, size int64) io.Reader {
			bar.SetTotal(size)
			return bar.Reader(r)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
	defer cancel()

	result, err := newClient(c).Upload(ctx, req, wrap)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return explain(err)
	}

	if isTable(flags.Output) {
		fmt.Fprintf(stdout(c), "Stored chapter %s on %s\n", result.Chapter.ID, result.Storage)
		return render(c, toRow(result.Chapter))
	}
	return render(c, result)
}
