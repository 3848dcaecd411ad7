package models

import "github.com/google/uuid"

// User is the identity snapshot resolved from the external identity store.
// Once bound to a connection it is treated as immutable.
type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// TaskRef is the slice of a task record this service needs for
// authorization: who posted it.
type TaskRef struct {
	ID       string    `json:"id"`
	ClientID uuid.UUID `json:"client_id"`
}
