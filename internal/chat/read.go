package chat

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/scatter"
	"go.uber.org/zap"
)

// MarkRead moves the caller's read pointer to messageID.
//
// A caller without a membership is a silent no-op. When messageID does not
// resolve to a message of this conversation the pointer is cleared rather
// than left pointing somewhere stale.
func (s *Service) MarkRead(ctx context.Context, caller *models.User, conversationID uuid.UUID, messageID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	membership, err := s.store.Memberships().Get(ctx, conversationID, caller.ID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if membership == nil {
		return nil
	}

	var pointer *int64
	if messageID > 0 {
		msg, err := s.store.Messages().GetByID(ctx, messageID)
		if err != nil {
			return fmt.Errorf("get message: %w", err)
		}
		if msg != nil && msg.ConversationID == conversationID {
			pointer = &msg.ID
		}
	}

	if err := s.store.Memberships().SetLastSeen(ctx, conversationID, caller.ID, pointer); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	members, err := s.store.Memberships().ListByConversation(ctx, conversationID)
	if err != nil {
		s.logger.Warn("failed to list members for read event", zap.Error(err))
		return nil
	}
	s.Publish(ctx, models.Event{
		Type:           models.EventConversationRead,
		ConversationID: convRef(conversationID),
		Recipients:     memberIDs(members),
		Data: map[string]any{
			"user_id":              caller.ID.String(),
			"last_seen_message_id": pointer,
		},
	})
	return nil
}

// List returns the caller's conversations, newest activity first, each with
// its last message and the number of messages the caller has not seen.
func (s *Service) List(ctx context.Context, caller *models.User) ([]models.ConversationSummary, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	memberships, err := s.store.Memberships().ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	rows := make([]*models.ConversationSummary, len(memberships))
	report := scatter.Gather(ctx, len(memberships), fanout, func(ctx context.Context, i int) error {
		row, err := s.summarize(ctx, caller, memberships[i])
		rows[i] = row
		return err
	})
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]models.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// summarize builds one list row; nil means the conversation is not visible.
func (s *Service) summarize(ctx context.Context, caller *models.User, m models.ConversationMember) (*models.ConversationSummary, error) {
	conv, err := visible(ctx, s.store, m.ConversationID)
	if err != nil || conv == nil {
		return nil, err
	}

	row := &models.ConversationSummary{
		Conversation:   *conv,
		LastActivityAt: conv.CreatedAt,
	}

	if !conv.IsGroup {
		other, err := s.otherMember(ctx, conv.ID, caller.ID)
		if err != nil {
			return nil, err
		}
		if other == nil {
			s.logger.Warn("direct conversation without a counterpart",
				zap.String("conversation_id", conv.ID.String()),
			)
		}
		row.OtherMember = other
	}

	latest, err := s.store.Messages().Latest(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		sender, err := s.store.Users().GetByID(ctx, latest.SenderID)
		if err != nil {
			return nil, err
		}
		preview := &models.LastMessage{
			Content:   latest.Content,
			Type:      latest.Type,
			CreatedAt: latest.CreatedAt,
		}
		if sender != nil {
			preview.Sender = sender.Username
		}
		row.LastMessage = preview
		row.LastActivityAt = latest.CreatedAt
	}

	row.UnseenCount, err = s.store.Messages().CountUnseen(ctx, conv.ID, m.LastSeenMessageID, caller.ID)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// otherMember returns the counterpart of a direct conversation, nil when the
// membership or the user record is missing.
func (s *Service) otherMember(ctx context.Context, conversationID, self uuid.UUID) (*models.User, error) {
	members, err := s.store.Memberships().ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.UserID != self {
			return s.store.Users().GetByID(ctx, m.UserID)
		}
	}
	return nil, nil
}
