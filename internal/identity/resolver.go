// Package identity maps an authenticated principal to its stored user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/auth"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
	"go.uber.org/zap"
)

type Resolver struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewResolver(users repository.UserRepository, logger *zap.Logger) *Resolver {
	return &Resolver{users: users, logger: logger}
}

// Resolve returns the user whose subject matches the principal.
// No principal (or an empty subject) is ErrUnauthorized; a principal with
// no user record is ErrUserNotFound.
func (r *Resolver) Resolve(ctx context.Context, p *auth.Principal) (*models.User, error) {
	if p == nil || p.Subject == "" {
		return nil, apperr.ErrUnauthorized
	}

	u, err := r.users.GetBySubject(ctx, p.Subject)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if u == nil {
		return nil, apperr.ErrUserNotFound
	}
	return u, nil
}

// Sync returns the principal's user, creating it from the token claims on
// first sign-in. created reports whether a new record was written.
func (r *Resolver) Sync(ctx context.Context, p *auth.Principal) (u *models.User, created bool, err error) {
	if p == nil || p.Subject == "" {
		return nil, false, apperr.ErrUnauthorized
	}

	u, err = r.users.GetBySubject(ctx, p.Subject)
	if err != nil {
		return nil, false, fmt.Errorf("sync identity: %w", err)
	}
	if u != nil {
		return u, false, nil
	}

	if p.Email == "" {
		return nil, false, fmt.Errorf("%w: token carries no email", apperr.ErrInvalidInput)
	}

	u, err = r.users.Create(ctx, models.User{
		Subject:  p.Subject,
		Username: displayName(p),
		Email:    p.Email,
		ImageURL: p.Picture,
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		// Either a concurrent sync for the same subject won, or the email
		// belongs to a different subject.
		u, err = r.users.GetBySubject(ctx, p.Subject)
		if err != nil {
			return nil, false, fmt.Errorf("sync identity: %w", err)
		}
		if u == nil {
			return nil, false, fmt.Errorf("%w: email already registered", apperr.ErrInvalidInput)
		}
		return u, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sync identity: %w", err)
	}

	r.logger.Info("user created on first sign-in",
		zap.String("user_id", u.ID.String()),
		zap.String("subject", u.Subject),
	)
	return u, true, nil
}

// displayName falls back to the local part of the email when the provider
// sends no name.
func displayName(p *auth.Principal) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}
