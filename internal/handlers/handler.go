package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tasklane/convo/internal/chat"
	"github.com/tasklane/convo/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	svc   *chat.Service
	db    store.Store
	redis *store.RedisStore
}

// NewHandler creates a new Handler. redis may be nil when not configured.
func NewHandler(svc *chat.Service, db store.Store, redis *store.RedisStore) *Handler {
	return &Handler{svc: svc, db: db, redis: redis}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// serviceError maps chat service sentinels onto HTTP status codes. All
// rejections are synchronous responses to the triggering request.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrUnauthorized):
		h.Error(w, http.StatusForbidden, "not authorized for this task")
	case errors.Is(err, chat.ErrNotFound):
		h.Error(w, http.StatusNotFound, "not found")
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}
