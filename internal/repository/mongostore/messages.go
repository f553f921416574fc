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

// messageSequence is the counters document that hands out message ids.
const messageSequence = "messages"

type MessageStore struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func (s *MessageStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messageSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MessageStore) Create(ctx context.Context, m models.Message) (*models.Message, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return nil, err
	}
	doc := messageDoc{
		ID:             id,
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Type:           m.Type,
		Content:        m.Content,
		CreatedAt:      now(),
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return nil, mapWriteErr("insert message", err)
	}
	return doc.model()
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	var doc messageDoc
	found, err := findOne(ctx, s.col, bson.M{"_id": id}, &doc)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if !found {
		return nil, nil
	}
	return doc.model()
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	filter := bson.M{"conversation_id": conversationID.String()}
	if before > 0 {
		filter["_id"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	out := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		m, err := d.model()
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *MessageStore) Latest(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	msgs, err := s.ListByConversation(ctx, conversationID, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (s *MessageStore) CountUnseen(ctx context.Context, conversationID uuid.UUID, after *int64, exclude uuid.UUID) (int64, error) {
	var floor int64
	if after != nil {
		floor = *after
	}
	n, err := s.col.CountDocuments(ctx, bson.M{
		"conversation_id": conversationID.String(),
		"_id":             bson.M{"$gt": floor},
		"sender_id":       bson.M{"$ne": exclude.String()},
	})
	if err != nil {
		return 0, fmt.Errorf("count unseen messages: %w", err)
	}
	return n, nil
}

func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"conversation_id": conversationID.String()})
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return res.DeletedCount, nil
}
