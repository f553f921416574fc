package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
)

type ConversationStore struct {
	q querier
}

const conversationColumns = `id, is_group, name, direct_key, deleting_at, created_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.IsGroup,
		&c.Name,
		&c.DirectKey,
		&c.DeletingAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ConversationStore) Create(ctx context.Context, c models.Conversation) (*models.Conversation, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	// ON CONFLICT DO NOTHING instead of letting the unique index raise:
	// a raised 23505 would abort the surrounding transaction, and callers
	// such as request acceptance need to keep going after a conflict.
	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, NULL, $5)
		ON CONFLICT DO NOTHING
		RETURNING ` + conversationColumns

	out, err := scanConversation(s.q.QueryRow(ctx, query, c.ID, c.IsGroup, c.Name, c.DirectKey, c.CreatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("insert conversation: %w", repository.ErrDuplicateKey)
		}
		return nil, mapWriteErr("insert conversation", err)
	}
	return out, nil
}

func (s *ConversationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1`

	c, err := scanConversation(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *ConversationStore) GetByDirectKey(ctx context.Context, key string) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE direct_key = $1`

	c, err := scanConversation(s.q.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation by direct key: %w", err)
	}
	return c, nil
}

func (s *ConversationStore) MarkDeleting(ctx context.Context, id uuid.UUID) (bool, error) {
	// The IS NULL guard makes the mark a compare-and-set: of two concurrent
	// deletes, exactly one sees RowsAffected() == 1.
	query := `
		UPDATE conversations
		SET deleting_at = now()
		WHERE id = $1 AND deleting_at IS NULL`

	tag, err := s.q.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark conversation deleting: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) ListDeleting(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM conversations
		WHERE deleting_at IS NOT NULL
		ORDER BY deleting_at
		LIMIT $1`

	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list deleting conversations: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleting conversations: %w", err)
	}
	return ids, nil
}
