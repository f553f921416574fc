package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/scatter"
)

// Page size for message history.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// member loads a visible conversation and checks the caller belongs to it.
func (s *Service) member(ctx context.Context, caller *models.User, conversationID uuid.UUID) (*models.Conversation, []models.ConversationMember, error) {
	conv, err := visible(ctx, s.store, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, nil, apperr.ErrNotFound
	}
	members, err := s.store.Memberships().ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("list members: %w", err)
	}
	if !hasMember(members, caller.ID) {
		return nil, nil, apperr.ErrForbidden
	}
	return conv, members, nil
}

// SendMessage appends a message from the caller. At least one content part
// must be non-blank; an empty type means text.
func (s *Service) SendMessage(ctx context.Context, caller *models.User, conversationID uuid.UUID, msgType string, content []string) (*models.MessageView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	blank := true
	for _, part := range content {
		if strings.TrimSpace(part) != "" {
			blank = false
			break
		}
	}
	if blank {
		return nil, fmt.Errorf("%w: message content is empty", apperr.ErrInvalidInput)
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	_, members, err := s.member(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.Messages().Create(ctx, models.Message{
		ConversationID: conversationID,
		SenderID:       caller.ID,
		Type:           msgType,
		Content:        content,
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	view := &models.MessageView{
		Message:       *msg,
		SenderName:    caller.Username,
		SenderImage:   caller.ImageURL,
		IsCurrentUser: true,
	}
	s.Publish(ctx, models.Event{
		Type:           models.EventMessageCreated,
		ConversationID: convRef(conversationID),
		Recipients:     memberIDs(members),
		Data:           msg,
	})
	return view, nil
}

// ListMessages returns a page of history, newest first. before is a message
// id cursor (0 for the newest page); limit defaults to DefaultPageSize and
// is capped at MaxPageSize.
func (s *Service) ListMessages(ctx context.Context, caller *models.User, conversationID uuid.UUID, before int64, limit int) ([]models.MessageView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if _, _, err := s.member(ctx, caller, conversationID); err != nil {
		return nil, err
	}

	msgs, err := s.store.Messages().ListByConversation(ctx, conversationID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var senders []uuid.UUID
	index := make(map[uuid.UUID]int)
	for _, m := range msgs {
		if _, ok := index[m.SenderID]; !ok {
			index[m.SenderID] = len(senders)
			senders = append(senders, m.SenderID)
		}
	}
	profiles := make([]*models.User, len(senders))
	report := scatter.Gather(ctx, len(senders), fanout, func(ctx context.Context, i int) error {
		u, err := s.store.Users().GetByID(ctx, senders[i])
		profiles[i] = u
		return err
	})
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("load senders: %w", err)
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.MessageView{
			Message:       m,
			IsCurrentUser: m.SenderID == caller.ID,
		}
		// A sender whose account is gone renders without a name.
		if u := profiles[index[m.SenderID]]; u != nil {
			view.SenderName = u.Username
			view.SenderImage = u.ImageURL
		}
		views = append(views, view)
	}
	return views, nil
}
