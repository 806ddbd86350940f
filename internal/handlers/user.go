package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/accounthub/apiserver/internal/services"
	"github.com/accounthub/apiserver/types"
)

const (
	maxAvatarBytes = 8 << 20
	formFieldFile  = "file"
)

// UserHandler provides HTTP handlers for user records. avatarService is nil
// when no object storage backend is configured; avatar routes then answer
// 501.
type UserHandler struct {
	userService   *services.UserService
	avatarService *services.AvatarService
}

// NewUserHandler constructs a handler with the provided services.
func NewUserHandler(userService *services.UserService, avatarService *services.AvatarService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		avatarService: avatarService,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, avatarService *services.AvatarService) {
	handler := NewUserHandler(userService, avatarService)

	r.Post("/", handler.CreateUser)
	r.Get("/", handler.ListUsers)
	r.Get("/lookup", handler.LookupUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Patch("/", handler.UpdateProfile)
		r.Delete("/", handler.DeleteUser)
		r.Put("/password", handler.ReplacePassword)
		r.Post("/deactivate", handler.DeactivateUser)
		r.Post("/activate", handler.ActivateUser)
		r.Put("/avatar", handler.UploadAvatar)
		r.Get("/avatar", handler.GetAvatar)
		r.Delete("/avatar", handler.DeleteAvatar)
	})
}

// CreateUser registers a new user. The payload carries a precomputed
// password_hash; this service never receives plaintext credentials.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input services.CreateUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// ListUsers returns a page of users, optionally filtered by ?active=.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	_, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var active *bool
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("active"))) {
	case "":
	case "true", "1":
		value := true
		active = &value
	case "false", "0":
		value := false
		active = &value
	default:
		writeError(w, http.StatusBadRequest, "invalid active filter")
		return
	}

	users, total, err := h.userService.List(r.Context(), active, offset, limit)
	if err != nil {
		writeServiceError(w, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users, Total: total})
}

// LookupUser fetches a single user by ?email= or ?username=.
func (h *UserHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	username := strings.TrimSpace(r.URL.Query().Get("username"))

	var (
		user types.User
		err  error
	)
	switch {
	case email != "" && username == "":
		user, err = h.userService.GetByEmail(r.Context(), email)
	case username != "" && email == "":
		user, err = h.userService.GetByUsername(r.Context(), username)
	default:
		writeError(w, http.StatusBadRequest, "exactly one of email or username is required")
		return
	}
	if err != nil {
		writeServiceError(w, err, "failed to look up user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input services.UpdateProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), chi.URLParam(r, "userID"), input)
	if err != nil {
		writeServiceError(w, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ReplacePassword swaps the stored hash for one supplied by the external
// authentication collaborator.
func (h *UserHandler) ReplacePassword(w http.ResponseWriter, r *http.Request) {
	var req ReplacePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.userService.RotatePassword(r.Context(), chi.URLParam(r, "userID"), req.PasswordHash); err != nil {
		writeServiceError(w, err, "failed to replace password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *UserHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	user, err := h.userService.SetActive(r.Context(), chi.URLParam(r, "userID"), active)
	if err != nil {
		writeServiceError(w, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadAvatar accepts a multipart form with a "file" part and stores it as
// the user's avatar.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatarService == nil {
		writeError(w, http.StatusNotImplemented, "avatar storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	user, err := h.avatarService.Upload(r.Context(), chi.URLParam(r, "userID"), file, header.Size, contentType)
	if err != nil {
		writeServiceError(w, err, "failed to store avatar")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetAvatar streams the user's current avatar.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatarService == nil {
		writeError(w, http.StatusNotImplemented, "avatar storage is not configured")
		return
	}

	rc, contentType, err := h.avatarService.Open(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err, "failed to load avatar")
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// DeleteAvatar removes the user's avatar object and clears avatar_url.
func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatarService == nil {
		writeError(w, http.StatusNotImplemented, "avatar storage is not configured")
		return
	}

	if err := h.avatarService.Remove(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, err, "failed to delete avatar")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UserListResponse is the payload for ListUsers.
type UserListResponse struct {
	Users []types.User `json:"users"`
	Total int          `json:"total"`
}

// ReplacePasswordRequest carries a precomputed replacement hash.
type ReplacePasswordRequest struct {
	PasswordHash string `json:"password_hash"`
}
