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

type MembershipStore struct {
	col *mongo.Collection
}

func memberFilter(conversationID, userID uuid.UUID) bson.M {
	return bson.M{"conversation_id": conversationID.String(), "user_id": userID.String()}
}

func (s *MembershipStore) Add(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	doc := memberDoc{
		ConversationID: conversationID.String(),
		UserID:         userID.String(),
		JoinedAt:       now(),
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return nil, mapWriteErr("insert membership", err)
	}
	return doc.model()
}

func (s *MembershipStore) Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	var doc memberDoc
	found, err := findOne(ctx, s.col, memberFilter(conversationID, userID), &doc)
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	if !found {
		return nil, nil
	}
	return doc.model()
}

func (s *MembershipStore) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMember, error) {
	sort := bson.D{{Key: "joined_at", Value: 1}, {Key: "user_id", Value: 1}}
	return s.list(ctx, "list conversation members", bson.M{"conversation_id": conversationID.String()}, sort)
}

func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationMember, error) {
	sort := bson.D{{Key: "joined_at", Value: 1}, {Key: "conversation_id", Value: 1}}
	return s.list(ctx, "list user memberships", bson.M{"user_id": userID.String()}, sort)
}

func (s *MembershipStore) list(ctx context.Context, op string, filter bson.M, sort bson.D) ([]models.ConversationMember, error) {
	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var docs []memberDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.ConversationMember, 0, len(docs))
	for _, d := range docs {
		m, err := d.model()
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *MembershipStore) Remove(ctx context.Context, conversationID, userID uuid.UUID) error {
	if _, err := s.col.DeleteOne(ctx, memberFilter(conversationID, userID)); err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

func (s *MembershipStore) RemoveAll(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"conversation_id": conversationID.String()})
	if err != nil {
		return 0, fmt.Errorf("remove memberships: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MembershipStore) SetLastSeen(ctx context.Context, conversationID, userID uuid.UUID, messageID *int64) error {
	_, err := s.col.UpdateOne(ctx,
		memberFilter(conversationID, userID),
		bson.M{"$set": bson.M{"last_seen_message_id": messageID}},
	)
	if err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}
