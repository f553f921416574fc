package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a person known to the service.
//
// Subject is the identity provider's stable id for the person (Firebase UID,
// or "local|<uuid>" for accounts created through /v1/auth/signup). The
// identity resolver maps every authenticated request to a User through it.
type User struct {
	ID           uuid.UUID `json:"id"`
	Subject      string    `json:"-"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ImageURL     string    `json:"image_url"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation is either a direct (two-party, unnamed) conversation or a
// named group.
//
// DirectKey is set only for direct conversations and is unique across the
// store: see DirectKey(). DeletingAt marks a conversation whose rows are
// waiting to be purged; such conversations are invisible to every read.
type Conversation struct {
	ID         uuid.UUID  `json:"id"`
	IsGroup    bool       `json:"is_group"`
	Name       *string    `json:"name"`
	DirectKey  *string    `json:"-"`
	DeletingAt *time.Time `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ConversationMember is the join row between a conversation and a user.
// It carries the user's read pointer into the conversation.
type ConversationMember struct {
	ConversationID    uuid.UUID `json:"conversation_id"`
	UserID            uuid.UUID `json:"user_id"`
	LastSeenMessageID *int64    `json:"last_seen_message_id"`
	JoinedAt          time.Time `json:"joined_at"`
}

// MessageTypeText is the only message type the clients send today.
const MessageTypeText = "text"

// Message is a single chat message. IDs are monotonic per store, so a higher
// ID is always a newer message; read pointers and cursors rely on that.
//
// Content is a sequence of parts so a message can carry multi-part payloads.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Type           string    `json:"type"`
	Content        []string  `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// FriendRequest is a pending, directional request. Accepting or denying it
// removes the row.
type FriendRequest struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}
