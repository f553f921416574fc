// Package friends manages friend requests and the friendships they turn
// into. A friendship is not stored on its own: two users are friends while
// a direct conversation holding both of them exists.
package friends

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
	"github.com/lalith-99/chatline/internal/scatter"
	"go.uber.org/zap"
)

const fanout = 8

type Ledger struct {
	store  repository.Store
	chat   *chat.Service
	logger *zap.Logger
}

func NewLedger(store repository.Store, chatService *chat.Service, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, chat: chatService, logger: logger}
}

func requireCaller(caller *models.User) error {
	if caller == nil {
		return apperr.ErrUnauthorized
	}
	return nil
}

// SendRequest sends a friend request to the user registered under email.
func (l *Ledger) SendRequest(ctx context.Context, caller *models.User, email string) (*models.FriendRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", apperr.ErrInvalidInput)
	}

	target, err := l.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if target == nil {
		return nil, apperr.ErrUserNotFound
	}
	if target.ID == caller.ID {
		return nil, fmt.Errorf("%w: cannot send a request to yourself", apperr.ErrInvalidInput)
	}

	existing, err := l.store.Conversations().GetByDirectKey(ctx, models.DirectKey(caller.ID, target.ID))
	if err != nil {
		return nil, fmt.Errorf("get direct conversation: %w", err)
	}
	if existing != nil && existing.DeletingAt == nil {
		return nil, apperr.ErrAlreadyFriends
	}

	pending, err := l.store.FriendRequests().GetBetween(ctx, caller.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("get pending request: %w", err)
	}
	if pending != nil {
		return nil, apperr.ErrRequestExists
	}
	reverse, err := l.store.FriendRequests().GetBetween(ctx, target.ID, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("get reverse request: %w", err)
	}
	if reverse != nil {
		return nil, fmt.Errorf("%w: this user already sent you a request, accept it instead", apperr.ErrRequestExists)
	}

	req, err := l.store.FriendRequests().Create(ctx, models.FriendRequest{
		SenderID:   caller.ID,
		ReceiverID: target.ID,
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, apperr.ErrRequestExists
	}
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	l.chat.Publish(ctx, models.Event{
		Type:       models.EventRequestCreated,
		Recipients: []uuid.UUID{target.ID},
		Data:       req,
	})
	return req, nil
}

// ListRequests returns the requests waiting for the caller, newest first.
func (l *Ledger) ListRequests(ctx context.Context, caller *models.User) ([]models.RequestView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	requests, err := l.store.FriendRequests().ListIncoming(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	senders := make([]*models.User, len(requests))
	report := scatter.Gather(ctx, len(requests), fanout, func(ctx context.Context, i int) error {
		u, err := l.store.Users().GetByID(ctx, requests[i].SenderID)
		senders[i] = u
		return err
	})
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("load request senders: %w", err)
	}

	out := make([]models.RequestView, 0, len(requests))
	for i, req := range requests {
		if senders[i] == nil {
			l.logger.Warn("friend request from a missing user",
				zap.String("request_id", req.ID.String()),
				zap.String("sender_id", req.SenderID.String()),
			)
			continue
		}
		out = append(out, models.RequestView{Request: req, Sender: *senders[i]})
	}
	return out, nil
}

// pendingFor loads a request and checks the caller is its receiver.
func (l *Ledger) pendingFor(ctx context.Context, caller *models.User, requestID uuid.UUID) (*models.FriendRequest, error) {
	req, err := l.store.FriendRequests().GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, apperr.ErrNotFound
	}
	if req.ReceiverID != caller.ID {
		return nil, apperr.ErrForbidden
	}
	return req, nil
}

// Accept turns a request into a friendship: the request row goes away and
// the direct conversation with both memberships appears, in one
// transaction. When the pair already has a direct conversation the request
// is still consumed and that conversation's id is returned.
func (l *Ledger) Accept(ctx context.Context, caller *models.User, requestID uuid.UUID) (uuid.UUID, error) {
	if err := requireCaller(caller); err != nil {
		return uuid.Nil, err
	}
	req, err := l.pendingFor(ctx, caller, requestID)
	if err != nil {
		return uuid.Nil, err
	}

	consume := func(ctx context.Context, tx repository.Store) error {
		removed, err := tx.FriendRequests().Delete(ctx, req.ID)
		if err != nil {
			return err
		}
		if !removed {
			// Accepted or denied concurrently.
			return apperr.ErrNotFound
		}
		return nil
	}

	conv, err := l.chat.OpenDirect(ctx, req.SenderID, req.ReceiverID, consume)
	if errors.Is(err, apperr.ErrDuplicateConversation) {
		var existing *models.Conversation
		err = l.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
			if err := consume(ctx, tx); err != nil {
				return err
			}
			var err error
			existing, err = tx.Conversations().GetByDirectKey(ctx, models.DirectKey(req.SenderID, req.ReceiverID))
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("%w: direct conversation vanished during accept", apperr.ErrInconsistentState)
			}
			return nil
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("accept request: %w", err)
		}
		conv = existing
	} else if err != nil {
		return uuid.Nil, fmt.Errorf("accept request: %w", err)
	}

	l.logger.Info("friend request accepted",
		zap.String("request_id", req.ID.String()),
		zap.String("conversation_id", conv.ID.String()),
	)
	pair := []uuid.UUID{req.SenderID, req.ReceiverID}
	l.chat.Publish(ctx, models.Event{
		Type:           models.EventRequestAccepted,
		ConversationID: &conv.ID,
		Recipients:     pair,
	})
	return conv.ID, nil
}

// Deny drops a request addressed to the caller.
func (l *Ledger) Deny(ctx context.Context, caller *models.User, requestID uuid.UUID) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	req, err := l.pendingFor(ctx, caller, requestID)
	if err != nil {
		return err
	}

	removed, err := l.store.FriendRequests().Delete(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("deny request: %w", err)
	}
	if !removed {
		return apperr.ErrNotFound
	}

	l.chat.Publish(ctx, models.Event{
		Type:       models.EventRequestDenied,
		Recipients: []uuid.UUID{req.SenderID, req.ReceiverID},
		Data:       map[string]string{"request_id": req.ID.String()},
	})
	return nil
}

// ListFriends returns the counterparts of the caller's direct
// conversations, ordered by username.
func (l *Ledger) ListFriends(ctx context.Context, caller *models.User) ([]models.Friend, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	memberships, err := l.store.Memberships().ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	found := make([]*models.Friend, len(memberships))
	report := scatter.Gather(ctx, len(memberships), fanout, func(ctx context.Context, i int) error {
		friend, err := l.friendIn(ctx, caller.ID, memberships[i].ConversationID)
		found[i] = friend
		return err
	})
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	out := make([]models.Friend, 0, len(found))
	for _, f := range found {
		if f != nil {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

// friendIn returns the other party of a visible direct conversation, nil
// for groups, hidden conversations and broken pairs.
func (l *Ledger) friendIn(ctx context.Context, self, conversationID uuid.UUID) (*models.Friend, error) {
	conv, err := l.store.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.DeletingAt != nil || conv.IsGroup {
		return nil, nil
	}

	members, err := l.store.Memberships().ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.UserID == self {
			continue
		}
		u, err := l.store.Users().GetByID(ctx, m.UserID)
		if err != nil || u == nil {
			return nil, err
		}
		return &models.Friend{User: *u, ConversationID: conv.ID}, nil
	}
	return nil, nil
}
