package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/accounthub/apiserver/internal/services"
	"github.com/accounthub/apiserver/internal/store"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps store/service sentinels onto HTTP statuses; anything
// unrecognized becomes a 500 with the given fallback message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already exists")
	case errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnsupportedAvatarType):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = 1
	limit = 20

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}
	return page, limit, (page - 1) * limit, nil
}
