package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
	"github.com/lalith-99/chatline/internal/scatter"
	"go.uber.org/zap"
)

// Get returns a conversation with its participants.
//
// A missing conversation, or one marked deleting, is a soft miss: nil, nil.
// A caller without a membership gets ErrForbidden. Direct conversations
// carry the other member and their read pointer; groups carry a summary of
// every other member.
func (s *Service) Get(ctx context.Context, caller *models.User, conversationID uuid.UUID) (*models.ConversationDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	conv, err := visible(ctx, s.store, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, nil
	}

	members, err := s.store.Memberships().ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if !hasMember(members, caller.ID) {
		return nil, apperr.ErrForbidden
	}

	others := make([]models.ConversationMember, 0, len(members))
	for _, m := range members {
		if m.UserID != caller.ID {
			others = append(others, m)
		}
	}

	if !conv.IsGroup {
		if len(others) == 0 {
			return nil, fmt.Errorf("%w: direct conversation %s has no second member", apperr.ErrInconsistentState, conv.ID)
		}
		other := others[0]
		u, err := s.store.Users().GetByID(ctx, other.UserID)
		if err != nil {
			return nil, fmt.Errorf("get other member: %w", err)
		}
		if u == nil {
			return nil, fmt.Errorf("%w: member %s of conversation %s has no user record",
				apperr.ErrInconsistentState, other.UserID, conv.ID)
		}
		return &models.ConversationDetail{
			Conversation: *conv,
			OtherMember: &models.MemberProfile{
				User:              *u,
				LastSeenMessageID: other.LastSeenMessageID,
			},
		}, nil
	}

	summaries := make([]models.MemberSummary, len(others))
	report := scatter.Gather(ctx, len(others), fanout, func(ctx context.Context, i int) error {
		u, err := s.store.Users().GetByID(ctx, others[i].UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: member %s of conversation %s has no user record",
				apperr.ErrInconsistentState, others[i].UserID, conv.ID)
		}
		summaries[i] = models.MemberSummary{ID: u.ID, Username: u.Username, ImageURL: u.ImageURL}
		return nil
	})
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}

	return &models.ConversationDetail{
		Conversation: *conv,
		OtherMembers: summaries,
	}, nil
}

// CreateGroup creates a named group holding the caller and memberIDs and
// returns its id. Duplicate ids, and the caller's own id, are dropped from
// memberIDs. Every member must exist.
func (s *Service) CreateGroup(ctx context.Context, caller *models.User, name string, memberIDs []uuid.UUID) (uuid.UUID, error) {
	if err := requireCaller(caller); err != nil {
		return uuid.Nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: group name is required", apperr.ErrInvalidInput)
	}

	seen := map[uuid.UUID]bool{caller.ID: true}
	members := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return uuid.Nil, fmt.Errorf("%w: a group needs at least one other member", apperr.ErrInvalidInput)
	}

	report := scatter.Gather(ctx, len(members), fanout, func(ctx context.Context, i int) error {
		u, err := s.store.Users().GetByID(ctx, members[i])
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: %s", apperr.ErrUserNotFound, members[i])
		}
		return nil
	})
	if err := report.Err(); err != nil {
		return uuid.Nil, fmt.Errorf("check group members: %w", err)
	}

	var conv *models.Conversation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		conv, err = tx.Conversations().Create(ctx, models.Conversation{IsGroup: true, Name: &name})
		if err != nil {
			return err
		}
		for _, userID := range append([]uuid.UUID{caller.ID}, members...) {
			if _, err := tx.Memberships().Add(ctx, conv.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create group: %w", err)
	}

	s.logger.Info("group created",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("creator_id", caller.ID.String()),
		zap.Int("members", len(members)+1),
	)
	s.Publish(ctx, models.Event{
		Type:           models.EventConversationCreated,
		ConversationID: convRef(conv.ID),
		Recipients:     append([]uuid.UUID{caller.ID}, members...),
	})
	return conv.ID, nil
}

// CreateConversation opens a direct conversation between the caller and
// friendID and returns its id. A direct conversation for the pair, in
// either direction, yields ErrDuplicateConversation.
func (s *Service) CreateConversation(ctx context.Context, caller *models.User, friendID uuid.UUID) (uuid.UUID, error) {
	if err := requireCaller(caller); err != nil {
		return uuid.Nil, err
	}
	if friendID == caller.ID {
		return uuid.Nil, fmt.Errorf("%w: cannot start a conversation with yourself", apperr.ErrInvalidInput)
	}

	friend, err := s.store.Users().GetByID(ctx, friendID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get friend: %w", err)
	}
	if friend == nil {
		return uuid.Nil, apperr.ErrUserNotFound
	}

	conv, err := s.OpenDirect(ctx, caller.ID, friend.ID, nil)
	if err != nil {
		return uuid.Nil, err
	}

	s.Publish(ctx, models.Event{
		Type:           models.EventConversationCreated,
		ConversationID: convRef(conv.ID),
		Recipients:     []uuid.UUID{caller.ID, friend.ID},
	})
	return conv.ID, nil
}

// OpenDirect inserts the direct conversation for a and b together with both
// memberships in one transaction. within, when set, runs first in the same
// transaction; its error aborts everything.
//
// The pair's direct key is unique in the store, so the insert alone decides
// duplicates: a live conversation for the pair yields
// ErrDuplicateConversation. A conversation for the pair that is only waiting
// to be purged is purged on the spot and the insert retried once.
func (s *Service) OpenDirect(ctx context.Context, a, b uuid.UUID, within func(ctx context.Context, tx repository.Store) error) (*models.Conversation, error) {
	key := models.DirectKey(a, b)

	insert := func() (*models.Conversation, error) {
		var conv *models.Conversation
		err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
			if within != nil {
				if err := within(ctx, tx); err != nil {
					return err
				}
			}
			var err error
			conv, err = tx.Conversations().Create(ctx, models.Conversation{DirectKey: &key})
			if err != nil {
				return err
			}
			if _, err := tx.Memberships().Add(ctx, conv.ID, a); err != nil {
				return err
			}
			_, err = tx.Memberships().Add(ctx, conv.ID, b)
			return err
		})
		return conv, err
	}

	conv, err := insert()
	if errors.Is(err, repository.ErrDuplicateKey) {
		existing, lookupErr := s.store.Conversations().GetByDirectKey(ctx, key)
		if lookupErr != nil {
			return nil, fmt.Errorf("get conversation by direct key: %w", lookupErr)
		}
		if existing == nil || existing.DeletingAt == nil {
			return nil, apperr.ErrDuplicateConversation
		}
		if purgeErr := s.Purge(ctx, existing.ID); purgeErr != nil {
			return nil, fmt.Errorf("purge stale direct conversation: %w", purgeErr)
		}
		conv, err = insert()
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperr.ErrDuplicateConversation
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}

	s.logger.Info("direct conversation created",
		zap.String("conversation_id", conv.ID.String()),
	)
	return conv, nil
}
