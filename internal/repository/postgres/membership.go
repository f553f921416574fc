package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
)

type MembershipStore struct {
	q querier
}

const memberColumns = `conversation_id, user_id, last_seen_message_id, joined_at`

func (s *MembershipStore) Add(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	// (conversation_id, user_id) is the primary key. A second row for the
	// pair is reported as ErrDuplicateKey rather than silently ignored, so
	// callers can tell whether they created the membership.
	query := `
		INSERT INTO conversation_members (conversation_id, user_id, joined_at)
		VALUES ($1, $2, now())
		ON CONFLICT (conversation_id, user_id) DO NOTHING
		RETURNING ` + memberColumns

	var m models.ConversationMember
	err := s.q.QueryRow(ctx, query, conversationID, userID).Scan(
		&m.ConversationID,
		&m.UserID,
		&m.LastSeenMessageID,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("add member: %w", repository.ErrDuplicateKey)
		}
		return nil, mapWriteErr("add member", err)
	}
	return &m, nil
}

func (s *MembershipStore) Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2`

	var m models.ConversationMember
	err := s.q.QueryRow(ctx, query, conversationID, userID).Scan(
		&m.ConversationID,
		&m.UserID,
		&m.LastSeenMessageID,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

func (s *MembershipStore) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM conversation_members
		WHERE conversation_id = $1
		ORDER BY joined_at, user_id`

	return s.list(ctx, "list members", query, conversationID)
}

func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM conversation_members
		WHERE user_id = $1
		ORDER BY joined_at, conversation_id`

	return s.list(ctx, "list memberships", query, userID)
}

func (s *MembershipStore) list(ctx context.Context, op, query string, arg uuid.UUID) ([]models.ConversationMember, error) {
	rows, err := s.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	members := make([]models.ConversationMember, 0)
	for rows.Next() {
		var m models.ConversationMember
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.LastSeenMessageID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (s *MembershipStore) Remove(ctx context.Context, conversationID, userID uuid.UUID) error {
	query := `
		DELETE FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2`

	_, err := s.q.Exec(ctx, query, conversationID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *MembershipStore) RemoveAll(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM conversation_members WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("remove all members: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *MembershipStore) SetLastSeen(ctx context.Context, conversationID, userID uuid.UUID, messageID *int64) error {
	query := `
		UPDATE conversation_members
		SET last_seen_message_id = $3
		WHERE conversation_id = $1 AND user_id = $2`

	_, err := s.q.Exec(ctx, query, conversationID, userID, messageID)
	if err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}
