package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/healthchat/internal/common"
	"github.com/dmitrijs2005/healthchat/internal/server/metrics"
)

type uploadResponse struct {
	Message    string `json:"message"`
	Summary    string `json:"summary"`
	Rows       int    `json:"rows"`
	StorageKey string `json:"storageKey,omitempty"`
}

// Upload handles POST /upload: a multipart form with a "file" part.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.Fail(w, r, common.ErrMalformedRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		h.Error(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	user := UserFromContext(r.Context())
	res, err := h.uploads.Upload(r.Context(), user.ID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		if errors.Is(err, common.ErrUnsupportedFile) {
			metrics.UploadsTotal.WithLabelValues("unsupported").Inc()
		} else {
			metrics.UploadsTotal.WithLabelValues("error").Inc()
		}
		h.Fail(w, r, err)
		return
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	h.JSON(w, http.StatusOK, uploadResponse{
		Message:    "File processed successfully",
		Summary:    res.Summary,
		Rows:       res.Rows,
		StorageKey: res.StorageKey,
	})
}
