package handlers

import (
	"log"
	"net/http"

	"github.com/knowreal/knowreal-backend/internal/middleware"
	"github.com/knowreal/knowreal-backend/internal/services"
)

type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// IllustrationHandler accepts a dream illustration and returns its hosted URL,
// which the client then submits as illustration_url.
type IllustrationHandler struct {
	uploader services.IllustrationUploader
}

func NewIllustrationHandler(uploader services.IllustrationUploader) *IllustrationHandler {
	return &IllustrationHandler{uploader: uploader}
}

// Upload handles POST /api/dreams/illustrations with a multipart "file" field.
func (h *IllustrationHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeFailure(w, http.StatusServiceUnavailable, "Illustration uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxIllustrationSize+maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeFailure(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "No file provided")
		return
	}
	file.Close()

	identity := middleware.IdentityFrom(r.Context())
	url, err := h.uploader.UploadIllustration(r.Context(), identity.UserID, fileHeader)
	if err != nil {
		log.Printf("Error uploading illustration for %s: %v", identity.UserID, err)
		writeFailure(w, http.StatusBadRequest, "Failed to upload illustration")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success: true,
		Message: "Illustration uploaded successfully",
		URL:     url,
	})
}
