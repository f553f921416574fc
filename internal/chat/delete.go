package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Delete removes a conversation with all its memberships and messages.
//
// The conversation is first marked deleting, which hides it from every
// read, and then purged in one transaction. When the purge fails the mark
// stays and a purge task is scheduled; the delete still succeeds as long as
// the task was queued.
func (s *Service) Delete(ctx context.Context, caller *models.User, conversationID uuid.UUID) error {
	return s.delete(ctx, caller, conversationID, nil)
}

// RemoveFriend deletes the direct conversation that makes two users friends.
// Groups are rejected with ErrNotDirect.
func (s *Service) RemoveFriend(ctx context.Context, caller *models.User, conversationID uuid.UUID) error {
	return s.delete(ctx, caller, conversationID, func(c *models.Conversation) error {
		if c.IsGroup {
			return apperr.ErrNotDirect
		}
		return nil
	})
}

func (s *Service) delete(ctx context.Context, caller *models.User, conversationID uuid.UUID, check func(*models.Conversation) error) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	conv, err := visible(ctx, s.store, conversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return apperr.ErrNotFound
	}
	if check != nil {
		if err := check(conv); err != nil {
			return err
		}
	}

	members, err := s.store.Memberships().ListByConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	if !hasMember(members, caller.ID) {
		return apperr.ErrForbidden
	}
	if len(members) < 2 {
		return apperr.ErrEmptyConversation
	}

	marked, err := s.store.Conversations().MarkDeleting(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("mark conversation deleting: %w", err)
	}
	if !marked {
		// A concurrent delete got there first.
		return apperr.ErrNotFound
	}

	if err := s.Purge(ctx, conversationID); err != nil {
		s.logger.Warn("inline purge failed, scheduling retry",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err),
		)
		if s.purges == nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		if serr := s.purges.SchedulePurge(ctx, conversationID); serr != nil {
			return fmt.Errorf("delete conversation: %w", multierr.Combine(err, serr))
		}
	}

	s.logger.Info("conversation deleted",
		zap.String("conversation_id", conversationID.String()),
		zap.String("deleted_by", caller.ID.String()),
		zap.Bool("group", conv.IsGroup),
	)
	s.Publish(ctx, models.Event{
		Type:           models.EventConversationDeleted,
		ConversationID: convRef(conversationID),
		Recipients:     memberIDs(members),
	})
	return nil
}

// Purge removes the rows of a conversation that is marked deleting: its
// messages, its memberships and the conversation itself, in one
// transaction. A conversation that is gone already is a no-op. A
// conversation that is not marked is left alone.
func (s *Service) Purge(ctx context.Context, conversationID uuid.UUID) error {
	var messages, memberships int64
	var skipped bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		conv, err := tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if conv == nil || conv.DeletingAt == nil {
			skipped = conv != nil
			return nil
		}

		if messages, err = tx.Messages().DeleteByConversation(ctx, conversationID); err != nil {
			return err
		}
		if memberships, err = tx.Memberships().RemoveAll(ctx, conversationID); err != nil {
			return err
		}
		return tx.Conversations().Delete(ctx, conversationID)
	})
	if err != nil {
		return fmt.Errorf("purge conversation: %w", err)
	}

	if skipped {
		s.logger.Warn("purge skipped, conversation is not marked deleting",
			zap.String("conversation_id", conversationID.String()),
		)
		return nil
	}
	s.logger.Debug("conversation purged",
		zap.String("conversation_id", conversationID.String()),
		zap.Int64("messages", messages),
		zap.Int64("memberships", memberships),
	)
	return nil
}

// LeaveGroup removes the caller's own membership. The conversation, the
// other memberships and the messages stay. Direct conversations cannot be
// left; that would leave a one-sided pair behind.
func (s *Service) LeaveGroup(ctx context.Context, caller *models.User, conversationID uuid.UUID) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	conv, err := visible(ctx, s.store, conversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return apperr.ErrNotFound
	}

	membership, err := s.store.Memberships().Get(ctx, conversationID, caller.ID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if membership == nil {
		return apperr.ErrNotAMember
	}
	if !conv.IsGroup {
		return apperr.ErrNotGroup
	}

	if err := s.store.Memberships().Remove(ctx, conversationID, caller.ID); err != nil {
		return fmt.Errorf("leave group: %w", err)
	}

	remaining, err := s.store.Memberships().ListByConversation(ctx, conversationID)
	if err != nil {
		s.logger.Warn("failed to list remaining members", zap.Error(err))
		remaining = nil
	}
	s.Publish(ctx, models.Event{
		Type:           models.EventMemberLeft,
		ConversationID: convRef(conversationID),
		Recipients:     append(memberIDs(remaining), caller.ID),
		Data:           map[string]string{"user_id": caller.ID.String()},
	})
	return nil
}
