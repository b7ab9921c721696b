package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/internal/core/service"
)

// Multipart parts above this size spill to temporary files.
const uploadMemory = 8 << 20

// formOverhead allows for non-file fields and multipart framing.
const formOverhead = 1 << 20

// handleUpload handles POST /api/upload.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		h.handleServiceError(w, r, domain.ErrInternalServer.WithDetails("uploads are not configured"))
		return
	}

	maxSize := h.ingest.MaxAttachmentSize()
	r.Body = http.MaxBytesReader(w, r.Body, int64(2*maxSize+formOverhead))
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleServiceError(w, r, domain.ErrAttachmentTooLarge.WithDetails(
				fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit)))
			return
		}
		h.handleServiceError(w, r, domain.ErrMalformedRequest.WithDetails("expected multipart/form-data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	sub := &service.Submission{
		Title:         r.FormValue("title"),
		Class:         r.FormValue("class"),
		Subject:       r.FormValue("subject"),
		ChapterNumber: r.FormValue("chapterNumber"),
		Description:   r.FormValue("description"),
		Tags:          r.FormValue("tags"),
		Backend:       r.FormValue("backend"),
		StoreOnGithub: formBool(r.FormValue("storeOnGithub")),
		Update:        formBool(r.FormValue("update")),
	}

	var err error
	if sub.Notes, err = readAttachment(r.MultipartForm, "notes", maxSize); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if sub.Solutions, err = readAttachment(r.MultipartForm, "solutions", maxSize); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	res, err := h.ingest.Ingest(r.Context(), sub)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, UploadResponse{
		Success: true,
		Chapter: res.Entry,
		Storage: res.Storage,
	})
}

// readAttachment returns the first file under field, or nil when the field
// is absent or an empty file input was submitted. At most maxSize+1 bytes
// are read so the ingester can report oversize files.
func readAttachment(form *multipart.Form, field string, maxSize int) (*service.Attachment, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	fh := files[0]
	if fh.Filename == "" && fh.Size == 0 {
		return nil, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, domain.ErrMalformedRequest.WithDetails("cannot read " + field)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(maxSize)+1))
	if err != nil {
		return nil, domain.ErrMalformedRequest.WithDetails("cannot read " + field)
	}

	return &service.Attachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func formBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
