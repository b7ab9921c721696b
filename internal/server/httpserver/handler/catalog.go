package handler

import (
	"net/http"
)

// handleListChapters handles GET /api/chapters. The reply is the merged
// catalog keyed by chapter id.
func (h *Handler) handleListChapters(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.catalog.Get(r.Context()))
}

// handleGetChapter handles GET /api/chapters/{id}.
func (h *Handler) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	entry, err := h.catalog.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, entry)
}
