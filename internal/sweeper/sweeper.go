// Package sweeper finishes conversation deletes that could not complete
// inline. A delete marks the conversation first; anything still marked is
// purged here, either by a queued per-conversation task or by the periodic
// sweep over every marked conversation.
package sweeper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lalith-99/chatline/internal/repository"
	"github.com/lalith-99/chatline/internal/scatter"
	"go.uber.org/zap"
)

// Task types handled by the worker.
const (
	TypePurge = "conversation:purge"
	TypeSweep = "conversation:sweep"
)

// DefaultBatch is how many marked conversations one sweep picks up.
const DefaultBatch = 100

// Purger removes the rows of a conversation marked deleting.
type Purger interface {
	Purge(ctx context.Context, conversationID uuid.UUID) error
}

type Sweeper struct {
	purger        Purger
	conversations repository.ConversationRepository
	batch         int
	logger        *zap.Logger
}

func New(purger Purger, conversations repository.ConversationRepository, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		purger:        purger,
		conversations: conversations,
		batch:         DefaultBatch,
		logger:        logger,
	}
}

// Sweep purges one batch of marked conversations and returns how many were
// removed. Failures do not stop the rest of the batch; they are combined
// into the returned error and stay marked for the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.conversations.ListDeleting(ctx, s.batch)
	if err != nil {
		return 0, fmt.Errorf("list marked conversations: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	report := scatter.Gather(ctx, len(ids), 4, func(ctx context.Context, i int) error {
		if err := s.purger.Purge(ctx, ids[i]); err != nil {
			return fmt.Errorf("conversation %s: %w", ids[i], err)
		}
		return nil
	})

	purged := report.Total - len(report.Failed)
	s.logger.Info("sweep finished",
		zap.Int("marked", len(ids)),
		zap.Int("purged", purged),
		zap.Int("failed", len(report.Failed)),
	)
	return purged, report.Err()
}

type purgePayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// NewPurgeTask builds the task that purges one conversation.
func NewPurgeTask(conversationID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(purgePayload{ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("marshal purge payload: %w", err)
	}
	return asynq.NewTask(TypePurge, payload), nil
}

// HandlePurge processes a TypePurge task. A payload that does not decode is
// dropped without retry.
func (s *Sweeper) HandlePurge(ctx context.Context, t *asynq.Task) error {
	var p purgePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode purge payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.ConversationID == uuid.Nil {
		return fmt.Errorf("purge payload has no conversation id: %w", asynq.SkipRetry)
	}
	if err := s.purger.Purge(ctx, p.ConversationID); err != nil {
		return err
	}
	s.logger.Info("queued purge done", zap.String("conversation_id", p.ConversationID.String()))
	return nil
}

// HandleSweep processes a TypeSweep task.
func (s *Sweeper) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	_, err := s.Sweep(ctx)
	return err
}
