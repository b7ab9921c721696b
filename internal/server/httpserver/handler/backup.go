package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/notehub-dev/notehub/internal/telemetry/logger"
)

// handleBackup handles GET /admin/backup. The overlay backup is streamed as
// it is produced, so a failure after the first byte can only be logged.
func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("notehub-overlay-%s.bak", time.Now().UTC().Format("20060102T150405Z"))
	cw := &countingWriter{w: w, header: func() {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}}

	if err := h.backup(r.Context(), cw); err != nil {
		if cw.n == 0 {
			h.handleServiceError(w, r, err)
			return
		}
		logger.L(r.Context()).Error("backup aborted", "bytes", cw.n, "error", err)
		return
	}
	if cw.n == 0 {
		cw.header()
		w.WriteHeader(http.StatusOK)
	}
	logger.L(r.Context()).Info("backup served", "bytes", cw.n)
}

// countingWriter sets the download headers before the first write.
type countingWriter struct {
	w      http.ResponseWriter
	header func()
	n      int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.n == 0 && len(p) > 0 {
		c.header()
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
