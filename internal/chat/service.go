// Package chat implements conversations and their messages: reading a
// conversation with its participants, creating direct and group
// conversations, deleting, leaving, read pointers and message history.
//
// Every method takes the caller as an explicit *models.User resolved at the
// request boundary. A nil caller is ErrUnauthorized. Authorization is derived
// from stored memberships on every call.
package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
	"go.uber.org/zap"
)

// fanout bounds concurrent lookups inside one request.
const fanout = 8

// Publisher delivers realtime events after a mutation commits.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// PurgeScheduler queues the removal of a conversation that is marked
// deleting but whose rows could not be removed inline.
type PurgeScheduler interface {
	SchedulePurge(ctx context.Context, conversationID uuid.UUID) error
}

type Service struct {
	store     repository.Store
	publisher Publisher
	purges    PurgeScheduler
	logger    *zap.Logger
}

// NewService wires the service. publisher and purges may be nil: events are
// then dropped, and a failed inline purge fails the delete.
func NewService(store repository.Store, publisher Publisher, purges PurgeScheduler, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		purges:    purges,
		logger:    logger,
	}
}

func requireCaller(caller *models.User) error {
	if caller == nil {
		return apperr.ErrUnauthorized
	}
	return nil
}

// Publish sends an event to its recipients. Delivery is best-effort: a
// failure is logged and never fails the mutation that produced the event.
func (s *Service) Publish(ctx context.Context, ev models.Event) {
	if s.publisher == nil || len(ev.Recipients) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", ev.Type),
			zap.Int("recipients", len(ev.Recipients)),
			zap.Error(err),
		)
	}
}

// visible returns the conversation unless it is missing or marked deleting.
func visible(ctx context.Context, store repository.Store, id uuid.UUID) (*models.Conversation, error) {
	conv, err := store.Conversations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.DeletingAt != nil {
		return nil, nil
	}
	return conv, nil
}

func memberIDs(members []models.ConversationMember) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func hasMember(members []models.ConversationMember, userID uuid.UUID) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func convRef(id uuid.UUID) *uuid.UUID {
	return &id
}
