package handlers

import (
	"net/http"

	"github.com/tasklane/convo/internal/api/middleware"
	"github.com/tasklane/convo/internal/models"
)

// ConversationListResponse is the GET /conversations response.
type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

// ListConversations returns the caller's inbox: one latest-message summary
// per task thread, newest activity first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	summaries, err := h.svc.ListConversations(r.Context(), caller.ID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	h.JSON(w, http.StatusOK, ConversationListResponse{Conversations: summaries})
}
