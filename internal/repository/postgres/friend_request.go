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

type FriendRequestStore struct {
	q querier
}

const requestColumns = `id, sender_id, receiver_id, created_at`

func scanRequest(row pgx.Row) (*models.FriendRequest, error) {
	var r models.FriendRequest
	if err := row.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FriendRequestStore) Create(ctx context.Context, r models.FriendRequest) (*models.FriendRequest, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO friend_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sender_id, receiver_id) DO NOTHING
		RETURNING ` + requestColumns

	out, err := scanRequest(s.q.QueryRow(ctx, query, r.ID, r.SenderID, r.ReceiverID, r.CreatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("insert friend request: %w", repository.ErrDuplicateKey)
		}
		return nil, mapWriteErr("insert friend request", err)
	}
	return out, nil
}

func (s *FriendRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM friend_requests WHERE id = $1`

	r, err := scanRequest(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	return r, nil
}

func (s *FriendRequestStore) GetBetween(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE sender_id = $1 AND receiver_id = $2`

	r, err := scanRequest(s.q.QueryRow(ctx, query, senderID, receiverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get friend request between: %w", err)
	}
	return r, nil
}

func (s *FriendRequestStore) ListIncoming(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE receiver_id = $1
		ORDER BY created_at DESC`

	rows, err := s.q.Query(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	requests := make([]models.FriendRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}
	return requests, nil
}

func (s *FriendRequestStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete friend request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
