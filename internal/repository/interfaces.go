package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
)

// Conventions shared by every implementation:
//   - context.Context first on every method; it carries the request deadline
//     and, inside WithTx, the transaction.
//   - Single-row reads return nil, nil when the row does not exist.
//   - List methods return an empty slice, never nil, so JSON renders [].

// ErrDuplicateKey is returned when an insert violates a uniqueness
// constraint (direct conversation pair, membership pair, request pair,
// user subject or email).
var ErrDuplicateKey = errors.New("duplicate key")

// UserRepository handles user records.
type UserRepository interface {
	// Create inserts a user. ID and CreatedAt are filled in when zero.
	Create(ctx context.Context, u models.User) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetBySubject is the identity resolver's lookup.
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ConversationRepository owns conversation rows.
type ConversationRepository interface {
	// Create inserts a conversation. A DirectKey that already exists yields
	// ErrDuplicateKey; this is the only duplicate check for direct pairs.
	Create(ctx context.Context, c models.Conversation) (*models.Conversation, error)

	// GetByID returns the row even when it is marked deleting; callers decide
	// what a deleting conversation means for them.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// GetByDirectKey finds the direct conversation for a user pair.
	GetByDirectKey(ctx context.Context, key string) (*models.Conversation, error)

	// MarkDeleting sets DeletingAt if it is not set yet. Returns false when the
	// row is missing or was already marked.
	MarkDeleting(ctx context.Context, id uuid.UUID) (bool, error)

	// Delete removes the conversation row only. No-op if missing.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListDeleting returns up to limit conversation ids that are marked
	// deleting, oldest mark first.
	ListDeleting(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// MembershipRepository handles who belongs to which conversation.
type MembershipRepository interface {
	// Add inserts a membership. An existing (conversation, user) pair yields
	// ErrDuplicateKey.
	Add(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error)
	Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMember, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationMember, error)

	// Remove deletes one membership. No-op if missing.
	Remove(ctx context.Context, conversationID, userID uuid.UUID) error

	// RemoveAll deletes every membership of a conversation and returns how
	// many rows went away.
	RemoveAll(ctx context.Context, conversationID uuid.UUID) (int64, error)

	// SetLastSeen moves the read pointer; nil clears it.
	SetLastSeen(ctx context.Context, conversationID, userID uuid.UUID, messageID *int64) error
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create persists a message and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, m models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id int64) (*models.Message, error)

	// ListByConversation returns messages newest first. before=0 starts from
	// the latest message; otherwise only ids lower than before are returned.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error)

	// Latest returns the newest message of a conversation, nil if it has none.
	Latest(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)

	// CountUnseen counts messages with id > after (all when after is nil)
	// not sent by exclude.
	CountUnseen(ctx context.Context, conversationID uuid.UUID, after *int64, exclude uuid.UUID) (int64, error)

	// DeleteByConversation removes every message of a conversation.
	DeleteByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

// FriendRequestRepository handles pending friend requests.
type FriendRequestRepository interface {
	// Create inserts a request; an existing (sender, receiver) pair yields
	// ErrDuplicateKey.
	Create(ctx context.Context, r models.FriendRequest) (*models.FriendRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	GetBetween(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error)
	ListIncoming(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error)

	// Delete removes a request and reports whether a row was removed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Store groups the repositories of one backend.
type Store interface {
	Users() UserRepository
	Conversations() ConversationRepository
	Memberships() MembershipRepository
	Messages() MessageRepository
	FriendRequests() FriendRequestRepository

	// WithTx runs fn in a transaction. fn must use the Store and the context
	// it is given; every write through them commits or rolls back together.
	// Calling WithTx on the Store handed to fn joins the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
