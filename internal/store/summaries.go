package store

import (
	"sort"

	"github.com/google/uuid"

	"github.com/tasklane/convo/internal/models"
)

// buildSummaries assembles conversation summaries from the
// latest-message-per-task rows and the per-task unread counts, newest
// activity first.
func buildSummaries(latest []models.Message, unread map[string]int, userID uuid.UUID) []models.ConversationSummary {
	summaries := make([]models.ConversationSummary, 0, len(latest))
	for _, msg := range latest {
		peer := msg.SenderID
		if peer == userID {
			peer = msg.ReceiverID
		}
		summaries = append(summaries, models.ConversationSummary{
			TaskID:      msg.TaskID,
			PeerID:      peer,
			LastMessage: msg,
			Unread:      unread[msg.TaskID],
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	return summaries
}
