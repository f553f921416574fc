package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatline/internal/models"
)

type MessageStore struct {
	q querier
}

const messageColumns = `id, conversation_id, sender_id, type, content, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Type,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) Create(ctx context.Context, m models.Message) (*models.Message, error) {
	// Messages use bigserial, so Postgres generates the ID. RETURNING gives it back.
	query := `
		INSERT INTO messages (conversation_id, sender_id, type, content, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.q.QueryRow(ctx, query, m.ConversationID, m.SenderID, m.Type, m.Content))
	if err != nil {
		return nil, mapWriteErr("insert message", err)
	}
	return msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	// Cursor-based pagination:
	//   before=0  → first page (newest messages), no bound on id.
	//   before=42 → messages older than id 42.
	// Both paths ORDER BY id DESC; id is monotonic, so that is time order.
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE conversation_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3`
		args = []any{conversationID, before, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE conversation_id = $1
			ORDER BY id DESC
			LIMIT $2`
		args = []any{conversationID, limit}
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *MessageStore) Latest(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id DESC
		LIMIT 1`

	msg, err := scanMessage(s.q.QueryRow(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) CountUnseen(ctx context.Context, conversationID uuid.UUID, after *int64, exclude uuid.UUID) (int64, error) {
	// COALESCE($2, 0): a nil pointer means nothing has been read yet, and
	// bigserial ids start at 1.
	query := `
		SELECT count(*)
		FROM messages
		WHERE conversation_id = $1 AND id > COALESCE($2, 0) AND sender_id <> $3`

	var n int64
	if err := s.q.QueryRow(ctx, query, conversationID, after, exclude).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unseen: %w", err)
	}
	return n, nil
}

func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
