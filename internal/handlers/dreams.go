package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/knowreal/knowreal-backend/internal/middleware"
	"github.com/knowreal/knowreal-backend/internal/models"
	"github.com/knowreal/knowreal-backend/internal/services"
)

// DreamHandler serves the dream listing and record mutations. Routes must be
// mounted behind middleware.RequireIdentity.
type DreamHandler struct {
	dreams      *services.DreamService
	listingPath string
}

func NewDreamHandler(dreams *services.DreamService, listingPath string) *DreamHandler {
	return &DreamHandler{dreams: dreams, listingPath: listingPath}
}

type DreamListResponse struct {
	Success bool `json:"success"`
	*services.DreamPage
}

type DreamResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Dream   *models.Dream `json:"dream"`
}

type MutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.MutationResult
}

// List handles GET /api/dreams?q=&mood=&lucid=&page=.
func (h *DreamHandler) List(w http.ResponseWriter, r *http.Request) {
	params := services.ParseListParams(r.URL.Query())

	page, err := h.dreams.List(r.Context(), middleware.IdentityFrom(r.Context()), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DreamListResponse{Success: true, DreamPage: page})
}

// Get handles GET /api/dreams/{id}.
func (h *DreamHandler) Get(w http.ResponseWriter, r *http.Request) {
	dream, err := h.dreams.Get(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DreamResponse{Success: true, Dream: dream})
}

// Create handles POST /api/dreams from a form or a JSON body.
func (h *DreamHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, _, err := decodeDreamInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	dream, err := h.dreams.Create(r.Context(), middleware.IdentityFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}

	if isFormRequest(r) {
		http.Redirect(w, r, h.listingPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, DreamResponse{
		Success: true,
		Message: "Dream created successfully",
		Dream:   dream,
	})
}

// Update handles PUT and POST /api/dreams/{id}. The path id wins over a
// dream_id form field.
func (h *DreamHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, bodyID, err := decodeDreamInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		id = bodyID
	}

	result, err := h.dreams.Update(r.Context(), middleware.IdentityFrom(r.Context()), id, in)
	if err != nil {
		writeError(w, err)
		return
	}

	if isFormRequest(r) {
		http.Redirect(w, r, h.listingPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{
		Success:        true,
		Message:        "Dream updated successfully",
		MutationResult: result,
	})
}

// Delete handles DELETE /api/dreams/{id}. Deleting a dream that does not
// exist or is not the caller's succeeds with affected 0.
func (h *DreamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.dreams.Delete(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{
		Success:        true,
		Message:        "Dream deleted successfully",
		MutationResult: result,
	})
}
