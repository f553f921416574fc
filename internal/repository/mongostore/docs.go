package mongostore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Subject      string    `bson:"subject"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	EmailLower   string    `bson:"email_lower"`
	ImageURL     string    `bson:"image_url"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toUserDoc(u models.User) userDoc {
	return userDoc{
		ID:           u.ID.String(),
		Subject:      u.Subject,
		Username:     u.Username,
		Email:        u.Email,
		EmailLower:   strings.ToLower(u.Email),
		ImageURL:     u.ImageURL,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func (d userDoc) model() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", d.ID, err)
	}
	return &models.User{
		ID:           id,
		Subject:      d.Subject,
		Username:     d.Username,
		Email:        d.Email,
		ImageURL:     d.ImageURL,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}, nil
}

// Nil pointers are omitted so the partial unique index on direct_key only
// sees direct conversations, and "not deleting" is simply a missing field.
type conversationDoc struct {
	ID         string     `bson:"_id"`
	IsGroup    bool       `bson:"is_group"`
	Name       *string    `bson:"name,omitempty"`
	DirectKey  *string    `bson:"direct_key,omitempty"`
	DeletingAt *time.Time `bson:"deleting_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
}

func (d conversationDoc) model() (*models.Conversation, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("conversation id %q: %w", d.ID, err)
	}
	return &models.Conversation{
		ID:         id,
		IsGroup:    d.IsGroup,
		Name:       d.Name,
		DirectKey:  d.DirectKey,
		DeletingAt: d.DeletingAt,
		CreatedAt:  d.CreatedAt,
	}, nil
}

type memberDoc struct {
	ConversationID    string    `bson:"conversation_id"`
	UserID            string    `bson:"user_id"`
	LastSeenMessageID *int64    `bson:"last_seen_message_id"`
	JoinedAt          time.Time `bson:"joined_at"`
}

func (d memberDoc) model() (*models.ConversationMember, error) {
	convID, err := uuid.Parse(d.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("membership conversation id %q: %w", d.ConversationID, err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("membership user id %q: %w", d.UserID, err)
	}
	return &models.ConversationMember{
		ConversationID:    convID,
		UserID:            userID,
		LastSeenMessageID: d.LastSeenMessageID,
		JoinedAt:          d.JoinedAt,
	}, nil
}

type messageDoc struct {
	ID             int64     `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	Type           string    `bson:"type"`
	Content        []string  `bson:"content"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d messageDoc) model() (*models.Message, error) {
	convID, err := uuid.Parse(d.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("message conversation id %q: %w", d.ConversationID, err)
	}
	senderID, err := uuid.Parse(d.SenderID)
	if err != nil {
		return nil, fmt.Errorf("message sender id %q: %w", d.SenderID, err)
	}
	return &models.Message{
		ID:             d.ID,
		ConversationID: convID,
		SenderID:       senderID,
		Type:           d.Type,
		Content:        d.Content,
		CreatedAt:      d.CreatedAt,
	}, nil
}

type requestDoc struct {
	ID         string    `bson:"_id"`
	SenderID   string    `bson:"sender_id"`
	ReceiverID string    `bson:"receiver_id"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d requestDoc) model() (*models.FriendRequest, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("request id %q: %w", d.ID, err)
	}
	senderID, err := uuid.Parse(d.SenderID)
	if err != nil {
		return nil, fmt.Errorf("request sender id %q: %w", d.SenderID, err)
	}
	receiverID, err := uuid.Parse(d.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("request receiver id %q: %w", d.ReceiverID, err)
	}
	return &models.FriendRequest{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		CreatedAt:  d.CreatedAt,
	}, nil
}

// now is truncated to the millisecond BSON dates carry, so values handed back
// from Create compare equal to what a later read returns.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
