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

type FriendRequestStore struct {
	col *mongo.Collection
}

func (s *FriendRequestStore) Create(ctx context.Context, r models.FriendRequest) (*models.FriendRequest, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	doc := requestDoc{
		ID:         r.ID.String(),
		SenderID:   r.SenderID.String(),
		ReceiverID: r.ReceiverID.String(),
		CreatedAt:  r.CreatedAt,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return nil, mapWriteErr("insert friend request", err)
	}
	return &r, nil
}

func (s *FriendRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	return s.getBy(ctx, "get friend request", bson.M{"_id": id.String()})
}

func (s *FriendRequestStore) GetBetween(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	return s.getBy(ctx, "get friend request between", bson.M{
		"sender_id":   senderID.String(),
		"receiver_id": receiverID.String(),
	})
}

func (s *FriendRequestStore) getBy(ctx context.Context, op string, filter bson.M) (*models.FriendRequest, error) {
	var doc requestDoc
	found, err := findOne(ctx, s.col, filter, &doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, nil
	}
	return doc.model()
}

func (s *FriendRequestStore) ListIncoming(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"receiver_id": receiverID.String()},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode incoming requests: %w", err)
	}

	out := make([]models.FriendRequest, 0, len(docs))
	for _, d := range docs {
		r, err := d.model()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *FriendRequestStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return false, fmt.Errorf("delete friend request: %w", err)
	}
	return res.DeletedCount == 1, nil
}
