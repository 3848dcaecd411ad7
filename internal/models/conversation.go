package models

import "github.com/google/uuid"

// ConversationSummary is one row of the inbox view: the latest message of a
// task thread the user participates in, plus how many messages addressed to
// them in that thread are still unread.
//
// Threads are keyed by task id alone. If several providers message the same
// client about one task their messages collapse into a single summary; that
// mirrors the upstream grouping (see DESIGN.md).
type ConversationSummary struct {
	TaskID      string    `json:"task_id"`
	PeerID      uuid.UUID `json:"peer_id"`
	LastMessage Message   `json:"last_message"`
	Unread      int       `json:"unread"`
}
