package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatline/internal/models"
)

type UserStore struct {
	q querier
}

const userColumns = `id, subject, username, email, image_url, password_hash, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Subject,
		&u.Username,
		&u.Email,
		&u.ImageURL,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row. Unique subject and email are enforced by
// the schema and surface as repository.ErrDuplicateKey.
func (s *UserStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	out, err := scanUser(s.q.QueryRow(ctx, query,
		u.ID, u.Subject, u.Username, u.Email, u.ImageURL, u.PasswordHash, u.CreatedAt,
	))
	if err != nil {
		return nil, mapWriteErr("insert user", err)
	}
	return out, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getBy(ctx, "get user", `id = $1`, id)
}

func (s *UserStore) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	return s.getBy(ctx, "get user by subject", `subject = $1`, subject)
}

// GetByEmail looks a user up by email. Used by login and friend requests.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "get user by email", `lower(email) = lower($1)`, email)
}

func (s *UserStore) getBy(ctx context.Context, op, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(s.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
