package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tasklane/convo/internal/api/middleware"
	"github.com/tasklane/convo/internal/models"
)

// SendMessageRequest is the POST /messages body.
type SendMessageRequest struct {
	TaskID     string    `json:"task_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
}

// MessageListResponse is the GET /tasks/{id}/messages response.
type MessageListResponse struct {
	TaskID   string           `json:"task_id"`
	Messages []models.Message `json:"messages"`
}

// SendMessage handles posting a message to a task thread. The persisted
// row is returned synchronously; the new_message room broadcast happens as
// a side effect inside the service.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.svc.SendMessage(r.Context(), caller, req.TaskID, req.ReceiverID, req.Content)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// ListTaskMessages handles fetching a task thread, oldest first.
func (h *Handler) ListTaskMessages(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	taskID := chi.URLParam(r, "id")
	messages, err := h.svc.ListMessages(r.Context(), caller.ID, taskID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, MessageListResponse{TaskID: taskID, Messages: messages})
}

// MarkRead handles PUT /messages/{id}/read. Receiver-only.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID := chi.URLParam(r, "id")
	msg, err := h.svc.MarkRead(r.Context(), caller.ID, messageID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, msg)
}
