package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/auth"
	"github.com/sakif/pinmap/internal/storage/minio"
)

// MaxImageBytes caps a single upload.
const MaxImageBytes = 5 << 20

// ImageUploader stores an image on behalf of ownerID and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, ownerID, contentType string, size int64, r io.Reader) (string, error)
}

// ImageHandler accepts pin images before the pin itself is created.
type ImageHandler struct {
	images ImageUploader
	logger *slog.Logger
}

func NewImageHandler(images ImageUploader, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{images: images, logger: logger}
}

// ImageResponse is returned by HandleUpload.
type ImageResponse struct {
	URL string `json:"url"`
}

// HandleUpload stores the "image" part of a multipart form under the caller's
// user ID, so only pins by that user can later remove it.
//
// HTTP: POST /api/images (behind auth.RequireAuth)
func (h *ImageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<10)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		writeError(w, apperror.ValidationFailed("image", "expected a multipart form with an image under 5 MB"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperror.ValidationFailed("image", "image file is required"))
		return
	}
	defer file.Close()

	contentType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	url, err := h.images.Upload(r.Context(), user.ID, contentType, header.Size, file)
	if err != nil {
		if errors.Is(err, minio.ErrUnsupportedType) {
			writeError(w, apperror.ValidationFailed("image", "only JPEG, PNG, GIF and WebP images are accepted"))
			return
		}
		h.logger.Error("image upload failed", slog.String("error", err.Error()))
		writeError(w, apperror.Store("uploading image", err))
		return
	}

	h.logger.Info("image uploaded",
		slog.String("userID", user.ID),
		slog.String("url", url),
		slog.Int64("bytes", header.Size),
	)
	writeJSON(w, http.StatusCreated, ImageResponse{URL: url})
}
