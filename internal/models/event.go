package models

import "github.com/google/uuid"

// Event types pushed to connected clients after a mutation commits.
const (
	EventConversationCreated = "conversation.created"
	EventConversationDeleted = "conversation.deleted"
	EventMemberLeft          = "member.left"
	EventMessageCreated      = "message.created"
	EventConversationRead    = "conversation.read"
	EventRequestCreated      = "request.created"
	EventRequestAccepted     = "request.accepted"
	EventRequestDenied       = "request.denied"
)

// Event tells a set of users that something they can see has changed.
// Clients treat it as an invalidation signal and re-fetch.
type Event struct {
	Type           string      `json:"type"`
	ConversationID *uuid.UUID  `json:"conversation_id,omitempty"`
	Recipients     []uuid.UUID `json:"recipients"`
	Data           any         `json:"data,omitempty"`
}
