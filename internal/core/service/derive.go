package service

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

// IDScheme selects how catalog ids are derived from a submission.
type IDScheme string

const (
	// IDSchemeSlug derives class{N}-{subject}-{chapter} from full slugs.
	IDSchemeSlug IDScheme = "slug"

	// IDSchemeLegacy derives {N}{subject initial}{chapter digits}, the format
	// of ids created by earlier deployments. Distinct chapters can collide.
	IDSchemeLegacy IDScheme = "legacy"
)

// ParseIDScheme parses a configured scheme name; empty means slug.
func ParseIDScheme(s string) (IDScheme, error) {
	switch IDScheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", IDSchemeSlug:
		return IDSchemeSlug, nil
	case IDSchemeLegacy:
		return IDSchemeLegacy, nil
	}
	return "", fmt.Errorf("unknown id scheme %q", s)
}

// DeriveID returns the catalog id for a chapter.
func (s IDScheme) DeriveID(classLevel int, subject, chapterNumber string) string {
	if s == IDSchemeLegacy {
		return legacyID(classLevel, subject, chapterNumber)
	}
	chapter := slugify(chapterNumber)
	if chapter == "" {
		chapter = "chapter"
	}
	return fmt.Sprintf("class%d-%s-%s", classLevel, slugify(subject), chapter)
}

func legacyID(classLevel int, subject, chapterNumber string) string {
	var initial string
	for _, r := range SubjectDir(subject) {
		initial = string(r)
		break
	}

	var digits strings.Builder
	for _, r := range chapterNumber {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		d = "1"
	}
	return strconv.Itoa(classLevel) + initial + d
}

// ChapterSlug lowercases chapterNumber (default "chapter") and replaces each
// whitespace run with a hyphen.
func ChapterSlug(chapterNumber string) string {
	if chapterNumber == "" {
		chapterNumber = "chapter"
	}
	return strings.Join(strings.Fields(strings.ToLower(chapterNumber)), "-")
}

// SubjectDir is the directory name of a subject: the subject lowercased.
func SubjectDir(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// ArtifactPath returns class{N}/{subjectDir}/{slug}-{kind}.pdf.
func ArtifactPath(classLevel int, subject, chapterNumber string, kind domain.ArtifactKind) string {
	return fmt.Sprintf("class%d/%s/%s-%s.pdf", classLevel, SubjectDir(subject), ChapterSlug(chapterNumber), kind)
}

// checkPathSegment rejects values that would escape their directory once
// used as a path segment.
func checkPathSegment(field, v string) error {
	if v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return domain.ErrInvalidField.WithDetails(field + " must not contain path separators")
	}
	for _, r := range v {
		if unicode.IsControl(r) {
			return domain.ErrInvalidField.WithDetails(field + " must not contain control characters")
		}
	}
	return nil
}

// slugify lowercases s and collapses every run of non-alphanumerics into one
// hyphen.
func slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
