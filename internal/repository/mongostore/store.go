// Package mongostore implements repository.Store on MongoDB.
//
// Ids are stored as strings, message ids come from a counters collection so
// they stay int64 and monotonic, and every uniqueness rule of the SQL schema
// is a unique index here (see EnsureIndexes). Multi-document writes run in
// session transactions, which need a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lalith-99/chatline/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	colUsers         = "users"
	colConversations = "conversations"
	colMembers       = "conversation_members"
	colMessages      = "messages"
	colRequests      = "friend_requests"
	colCounters      = "counters"
)

// Connect dials MongoDB and pings the primary before returning.
func Connect(ctx context.Context, uri string, logger *zap.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("mongo connection established")
	return client, nil
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	inTx   bool
}

var _ repository.Store = (*Store)(nil)

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) Users() repository.UserRepository { return &UserStore{col: s.db.Collection(colUsers)} }
func (s *Store) Conversations() repository.ConversationRepository {
	return &ConversationStore{col: s.db.Collection(colConversations)}
}
func (s *Store) Memberships() repository.MembershipRepository {
	return &MembershipStore{col: s.db.Collection(colMembers)}
}
func (s *Store) Messages() repository.MessageRepository {
	return &MessageStore{col: s.db.Collection(colMessages), counters: s.db.Collection(colCounters)}
}
func (s *Store) FriendRequests() repository.FriendRequestRepository {
	return &FriendRequestStore{col: s.db.Collection(colRequests)}
}

// WithTx runs fn in a session transaction. The context handed to fn is the
// session context; every collection call made with it joins the transaction.
// The driver may run fn more than once on transient transaction errors.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	tx := &Store{client: s.client, db: s.db, inTx: true}
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, tx)
	})
	return err
}

// EnsureIndexes creates the indexes the repositories rely on. Safe to call on
// every start; existing indexes with the same keys and options are left alone.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "subject", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email_lower", Value: 1}}, Options: unique},
		},
		colConversations: {
			{
				Keys: bson.D{{Key: "direct_key", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"direct_key": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "deleting_at", Value: 1}}},
		},
		colMembers: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		colMessages: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "_id", Value: -1}}},
		},
		colRequests: {
			{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}}},
		},
	}

	for col, specs := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create %s indexes: %w", col, err)
		}
	}
	return nil
}

func mapWriteErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// findOne decodes a single document into out and reports whether it existed.
func findOne(ctx context.Context, col *mongo.Collection, filter any, out any) (bool, error) {
	err := col.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
