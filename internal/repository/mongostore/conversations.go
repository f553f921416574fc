package mongostore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConversationStore struct {
	col *mongo.Collection
}

func (s *ConversationStore) Create(ctx context.Context, c models.Conversation) (*models.Conversation, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	c.DeletingAt = nil

	doc := conversationDoc{
		ID:        c.ID.String(),
		IsGroup:   c.IsGroup,
		Name:      c.Name,
		DirectKey: c.DirectKey,
		CreatedAt: c.CreatedAt,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return nil, mapWriteErr("insert conversation", err)
	}
	return &c, nil
}

func (s *ConversationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.getBy(ctx, "get conversation", bson.M{"_id": id.String()})
}

func (s *ConversationStore) GetByDirectKey(ctx context.Context, key string) (*models.Conversation, error) {
	return s.getBy(ctx, "get conversation by direct key", bson.M{"direct_key": key})
}

func (s *ConversationStore) getBy(ctx context.Context, op string, filter bson.M) (*models.Conversation, error) {
	var doc conversationDoc
	found, err := findOne(ctx, s.col, filter, &doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, nil
	}
	return doc.model()
}

func (s *ConversationStore) MarkDeleting(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id.String(), "deleting_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"deleting_at": now()}},
	)
	if err != nil {
		return false, fmt.Errorf("mark conversation deleting: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id.String()}); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) ListDeleting(ctx context.Context, limit int) ([]uuid.UUID, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "deleting_at", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.col.Find(ctx, bson.M{"deleting_at": bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list deleting conversations: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode deleting conversations: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, fmt.Errorf("conversation id %q: %w", d.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
