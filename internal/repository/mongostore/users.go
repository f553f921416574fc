package mongostore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserStore struct {
	col *mongo.Collection
}

func (s *UserStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	if _, err := s.col.InsertOne(ctx, toUserDoc(u)); err != nil {
		return nil, mapWriteErr("insert user", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getBy(ctx, "get user", bson.M{"_id": id.String()})
}

func (s *UserStore) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	return s.getBy(ctx, "get user by subject", bson.M{"subject": subject})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "get user by email", bson.M{"email_lower": strings.ToLower(email)})
}

func (s *UserStore) getBy(ctx context.Context, op string, filter bson.M) (*models.User, error) {
	var doc userDoc
	found, err := findOne(ctx, s.col, filter, &doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, nil
	}
	return doc.model()
}
