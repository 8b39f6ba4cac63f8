package handler

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/storage"
)

// UploadHandler accepts listing images and stores them in an ImageStore.
type UploadHandler struct {
	store    storage.ImageStore
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadHandler creates an UploadHandler that rejects files larger than maxBytes.
func NewUploadHandler(store storage.ImageStore, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{store: store, maxBytes: maxBytes, logger: logger}
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// HandleUpload stores the multipart field "image".
//
// HTTP: POST /api/uploads
// Auth: Required
//
// The content type is sniffed from the first 512 bytes rather than trusted
// from the part header.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// room for the multipart envelope on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("image",
				fmt.Sprintf("image must be %d bytes or less", h.maxBytes)))
			return
		}
		writeError(w, apperror.ValidationFailed("image", "multipart field \"image\" is required"))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeError(w, apperror.ValidationFailed("image",
			fmt.Sprintf("image must be %d bytes or less", h.maxBytes)))
		return
	}

	br := bufio.NewReaderSize(file, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	if _, ok := storage.ExtensionFor(contentType); !ok {
		writeError(w, apperror.ValidationFailed("image",
			fmt.Sprintf("unsupported image type %s", contentType)))
		return
	}

	url, err := h.store.Put(r.Context(), header.Filename, contentType, br)
	if err != nil {
		h.logger.Error("image upload failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.logger.Info("image uploaded",
		slog.String("url", url),
		slog.Int64("bytes", header.Size),
	)
	writeJSON(w, http.StatusCreated, UploadResponse{URL: url})
}
