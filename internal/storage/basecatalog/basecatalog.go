// Package basecatalog holds the immutable chapter set compiled into the
// binary. It is never mutated at runtime; the overlay shadows it by id.
package basecatalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/notehub-dev/notehub/internal/core/domain"
)

//go:embed chapters.json
var chaptersJSON []byte

// Load decodes the embedded base catalog.
func Load() (map[string]*domain.CatalogEntry, error) {
	return Decode(chaptersJSON)
}

// Decode parses a JSON object of id -> entry. Entries without an "id" field
// take the object key as their id.
func Decode(data []byte) (map[string]*domain.CatalogEntry, error) {
	var raw map[string]*domain.CatalogEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	out := make(map[string]*domain.CatalogEntry, len(raw))
	for id, e := range raw {
		if e == nil {
			continue
		}
		if e.ID == "" {
			e.ID = id
		}
		e.Normalize()
		if e.ID != id {
			return nil, fmt.Errorf("decode catalog: entry %q has id %q", id, e.ID)
		}
		out[id] = e
	}
	return out, nil
}

// ReadFile decodes a chapters.json file in the same shape as the embedded
// catalog. It is used to import overlay files written by older deployments.
func ReadFile(path string) (map[string]*domain.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
