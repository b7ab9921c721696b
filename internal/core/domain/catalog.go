package domain

import (
	"strings"
	"time"
)

// ArtifactKind names the slot a stored PDF fills on a catalog entry.
type ArtifactKind string

const (
	ArtifactNotes     ArtifactKind = "notes"
	ArtifactSolutions ArtifactKind = "solutions"
)

// CatalogEntry is a single chapter record visible to readers.
//
// NotesURL and SolutionsURL are nil when the corresponding artifact was never
// uploaded; they serialize as JSON null.
type CatalogEntry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ClassLevel    int       `json:"class"`
	Subject       string    `json:"subject"`
	ChapterNumber string    `json:"chapterNumber"`
	Description   string    `json:"description"`
	Tags          string    `json:"tags"`
	NotesURL      *string   `json:"notesUrl"`
	SolutionsURL  *string   `json:"solutionsUrl"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

// Clone returns a deep copy of the entry.
func (e *CatalogEntry) Clone() *CatalogEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.NotesURL != nil {
		v := *e.NotesURL
		c.NotesURL = &v
	}
	if e.SolutionsURL != nil {
		v := *e.SolutionsURL
		c.SolutionsURL = &v
	}
	return &c
}

// Normalize trims text fields and turns empty artifact URLs into nil.
// Older overlay files stored "" for a missing artifact.
func (e *CatalogEntry) Normalize() {
	e.ID = strings.TrimSpace(e.ID)
	e.Title = strings.TrimSpace(e.Title)
	e.Subject = strings.TrimSpace(e.Subject)
	e.ChapterNumber = strings.TrimSpace(e.ChapterNumber)
	if e.NotesURL != nil && strings.TrimSpace(*e.NotesURL) == "" {
		e.NotesURL = nil
	}
	if e.SolutionsURL != nil && strings.TrimSpace(*e.SolutionsURL) == "" {
		e.SolutionsURL = nil
	}
}

// Validate checks the invariants every stored entry must satisfy.
func (e *CatalogEntry) Validate() error {
	switch {
	case e.ID == "":
		return ErrInvalidField.WithDetails("id is required")
	case e.Title == "":
		return ErrMissingField.WithDetails("title")
	case e.ClassLevel <= 0:
		return ErrInvalidField.WithDetails("class must be a positive integer")
	case e.Subject == "":
		return ErrMissingField.WithDetails("subject")
	}
	return nil
}

// SetArtifactURL stores url in the slot named by kind.
func (e *CatalogEntry) SetArtifactURL(kind ArtifactKind, url string) {
	u := url
	switch kind {
	case ArtifactNotes:
		e.NotesURL = &u
	case ArtifactSolutions:
		e.SolutionsURL = &u
	}
}
