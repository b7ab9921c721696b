package command

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// ChaptersCommand returns the chapters command.
func ChaptersCommand() *cli.Command {
	return &cli.Command{
		Name:    "chapters",
		Aliases: []string{"ch"},
		Usage:   "Browse the public catalog",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List chapters",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "class",
						Usage: "Only chapters of this class level",
					},
					&cli.StringFlag{
						Name:  "subject",
						Usage: "Only chapters of this subject (case-insensitive)",
					},
				},
				Action: runChaptersList,
			},
			{
				Name:      "get",
				Usage:     "Show one chapter",
				ArgsUsage: "<chapter-id>",
				Action:    runChaptersGet,
			},
		},
	}
}

// chapterRow is the table view of a catalog entry.
type chapterRow struct {
	ID           string  `json:"id"`
	Class        int     `json:"class"`
	Subject      string  `json:"subject"`
	Chapter      string  `json:"chapter"`
	Title        string  `json:"title"`
	Notes        bool    `json:"notes"`
	Solutions    bool    `json:"solutions"`
	NotesURL     *string `json:"notesUrl" table:"wide"`
	SolutionsURL *string `json:"solutionsUrl" table:"wide"`
}

func toRow(e *domain.CatalogEntry) chapterRow {
	return chapterRow{
		ID:           e.ID,
		Class:        e.ClassLevel,
		Subject:      e.Subject,
		Chapter:      e.ChapterNumber,
		Title:        e.Title,
		Notes:        e.NotesURL != nil,
		Solutions:    e.SolutionsURL != nil,
		NotesURL:     e.NotesURL,
		SolutionsURL: e.SolutionsURL,
	}
}

func runChaptersList(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
	defer cancel()

	catalog, err := newClient(c).Chapters(ctx)
	if err != nil {
		return err
	}

	entries := filterChapters(catalog, c.Int("class"), c.String("subject"))
	if isTable(flags.Output) {
		rows := make([]chapterRow, len(entries))
		for i, e := range entries {
			rows[i] = toRow(e)
		}
		return render(c, rows)
	}
	return render(c, entries)
}

// filterChapters returns matching entries ordered by class, subject and id.
func filterChapters(catalog map[string]*domain.CatalogEntry, class int, subject string) []*domain.CatalogEntry {
	entries := make([]*domain.CatalogEntry, 0, len(catalog))
	for _, e := range catalog {
		if e == nil {
			continue
		}
		if class > 0 && e.ClassLevel != class {
			continue
		}
		if subject != "" && !strings.EqualFold(e.Subject, subject) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ClassLevel != b.ClassLevel {
			return a.ClassLevel < b.ClassLevel
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.ID < b.ID
	})
	return entries
}

func runChaptersGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: notehub-cli chapters get <chapter-id>")
	}
	flags := ParseGlobalFlags(c)

	ctx, cancel := context.WithTimeout(context.Background(), flags.Timeout)
	defer cancel()

	entry, err := newClient(c).Chapter(ctx, c.Args().First())
	if err != nil {
		return err
	}
	if isTable(flags.Output) {
		return render(c, toRow(entry))
	}
	return render(c, entry)
}

func isTable(format string) bool {
	return format == "" || strings.EqualFold(format, "table")
}
