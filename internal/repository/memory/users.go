package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u models.User) (*models.User, error) {
	st, unlock, err := r.s.begin(ctx, "users.Create")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	for _, existing := range st.users {
		switch {
		case existing.ID == u.ID:
			return nil, fmt.Errorf("insert user: %w (id)", repository.ErrDuplicateKey)
		case existing.Subject == u.Subject:
			return nil, fmt.Errorf("insert user: %w (subject)", repository.ErrDuplicateKey)
		case strings.EqualFold(existing.Email, u.Email):
			return nil, fmt.Errorf("insert user: %w (email)", repository.ErrDuplicateKey)
		}
	}
	st.users[u.ID] = u
	return &u, nil
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	st, unlock, err := r.s.begin(ctx, "users.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	return r.find(ctx, "users.GetBySubject", func(u models.User) bool { return u.Subject == subject })
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, "users.GetByEmail", func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepo) find(ctx context.Context, op string, match func(models.User) bool) (*models.User, error) {
	st, unlock, err := r.s.begin(ctx, op)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, u := range st.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, nil
}
