package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/knowreal/knowreal-backend/internal/middleware"
	"github.com/knowreal/knowreal-backend/internal/models"
	"github.com/knowreal/knowreal-backend/internal/services"
)

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *models.User `json:"user,omitempty"`
	Token   string       `json:"token,omitempty"`
}

// AuthHandler exposes account signup, signin and session teardown.
type AuthHandler struct {
	users    *services.UserService
	sessions *services.SessionStore
}

func NewAuthHandler(users *services.UserService, sessions *services.SessionStore) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

func decodeAuthRequest(w http.ResponseWriter, r *http.Request) (AuthRequest, bool) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	return req, true
}

// Signup creates an account and signs it in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}

	user, err := h.users.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), uuid.MustParse(user.ID))
	if err != nil {
		log.Printf("Error creating session for %s: %v", user.ID, err)
		writeFailure(w, http.StatusInternalServerError, "Account created, but signing in failed. Please sign in.")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: "Account created successfully",
		User:    user,
		Token:   token,
	})
}

// Signin returns a bearer token for valid credentials.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}

	user, err := h.users.Signin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, err := uuid.Parse(user.ID)
	if err != nil {
		log.Printf("Error: stored user id %q is not a uuid", user.ID)
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	token, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		log.Printf("Error creating session for %s: %v", user.ID, err)
		writeFailure(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Signed in successfully",
		User:    user,
		Token:   token,
	})
}

// Signout drops the caller's session. It succeeds without a session too.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Invalidate(r.Context(), services.RequestToken(r)); err != nil {
		log.Printf("Error invalidating session: %v", err)
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Signed out"})
}

// Me returns the signed-in user. Mount behind middleware.RequireIdentity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, services.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "OK", User: user})
}
