package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DirectKey returns the identity of the direct conversation between a and b.
// The pair is sorted, so DirectKey(a, b) == DirectKey(b, a).
func DirectKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}

// MemberSummary is the profile slice shown for each other member of a group.
type MemberSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	ImageURL string    `json:"image_url"`
}

// MemberProfile is the counterpart of a direct conversation together with
// how far they have read.
type MemberProfile struct {
	User
	LastSeenMessageID *int64 `json:"last_seen_message_id"`
}

// ConversationDetail is the response of a single-conversation read. Exactly
// one of OtherMember (direct) and OtherMembers (group) is set; the other
// serializes as null.
type ConversationDetail struct {
	Conversation
	OtherMember  *MemberProfile  `json:"other_member"`
	OtherMembers []MemberSummary `json:"other_members"`
}

// LastMessage is the preview shown in the conversation list.
type LastMessage struct {
	Sender    string    `json:"sender"`
	Content   []string  `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one row of the caller's conversation list.
// LastActivityAt is the newest message's time, or the conversation's
// creation when it has none; the list is ordered by it, newest first.
type ConversationSummary struct {
	Conversation   Conversation `json:"conversation"`
	OtherMember    *User        `json:"other_member"`
	LastMessage    *LastMessage `json:"last_message"`
	UnseenCount    int64        `json:"unseen_count"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}

// MessageView is a message joined with its sender's profile.
type MessageView struct {
	Message
	SenderName    string `json:"sender_name"`
	SenderImage   string `json:"sender_image"`
	IsCurrentUser bool   `json:"is_current_user"`
}

// Friend is a counterpart of one of the caller's direct conversations.
type Friend struct {
	User
	ConversationID uuid.UUID `json:"conversation_id"`
}

// RequestView is an incoming friend request with its sender's profile.
type RequestView struct {
	Request FriendRequest `json:"request"`
	Sender  User          `json:"sender"`
}
