// Package memory is an in-process repository.Store. It backs local
// development (STORE_DRIVER=memory) and the service tests.
//
// Transactions are serialized: WithTx holds an exclusive lock for the whole
// callback, snapshots the data first and restores the snapshot when the
// callback fails. Non-transactional calls take the shared side of the same
// lock, so they never observe a transaction half-applied.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
)

type memberKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

type requestKey struct {
	senderID   uuid.UUID
	receiverID uuid.UUID
}

type state struct {
	users         map[uuid.UUID]models.User
	conversations map[uuid.UUID]models.Conversation
	members       map[memberKey]models.ConversationMember
	messages      map[int64]models.Message
	requests      map[uuid.UUID]models.FriendRequest
}

func newState() *state {
	return &state{
		users:         make(map[uuid.UUID]models.User),
		conversations: make(map[uuid.UUID]models.Conversation),
		members:       make(map[memberKey]models.ConversationMember),
		messages:      make(map[int64]models.Message),
		requests:      make(map[uuid.UUID]models.FriendRequest),
	}
}

// clone copies the maps. Row values are copied; pointer fields inside rows
// are shared, which is fine because rows are replaced, never mutated in place.
func (st *state) clone() *state {
	out := newState()
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.conversations {
		out.conversations[k] = v
	}
	for k, v := range st.members {
		out.members[k] = v
	}
	for k, v := range st.messages {
		out.messages[k] = v
	}
	for k, v := range st.requests {
		out.requests[k] = v
	}
	return out
}

type database struct {
	txLock sync.RWMutex
	mu     sync.Mutex
	st     *state
	// nextMessageID lives outside the snapshot: like a sequence, ids handed
	// out inside a rolled-back transaction are not reused.
	nextMessageID int64
	faults        map[string]*fault
}

type fault struct {
	skip int
	err  error
}

// Store implements repository.Store in memory.
type Store struct {
	db   *database
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{db: &database{
		st:     newState(),
		faults: make(map[string]*fault),
	}}
}

func (s *Store) Users() repository.UserRepository                   { return userRepo{s} }
func (s *Store) Conversations() repository.ConversationRepository   { return conversationRepo{s} }
func (s *Store) Memberships() repository.MembershipRepository       { return membershipRepo{s} }
func (s *Store) Messages() repository.MessageRepository             { return messageRepo{s} }
func (s *Store) FriendRequests() repository.FriendRequestRepository { return requestRepo{s} }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.txLock.Lock()
	defer s.db.txLock.Unlock()

	s.db.mu.Lock()
	snapshot := s.db.st.clone()
	s.db.mu.Unlock()

	if err := fn(ctx, &Store{db: s.db, inTx: true}); err != nil {
		s.db.mu.Lock()
		s.db.st = snapshot
		s.db.mu.Unlock()
		return err
	}
	return nil
}

// Fail makes every call of op return err until Recover(op) is called. Op
// names are "<repository>.<Method>", e.g. "messages.DeleteByConversation".
func (s *Store) Fail(op string, err error) {
	s.FailAfter(op, 0, err)
}

// FailAfter lets the next n calls of op through and fails every call after
// that with err.
func (s *Store) FailAfter(op string, n int, err error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.faults[op] = &fault{skip: n, err: err}
}

// Recover clears a fault set with Fail.
func (s *Store) Recover(op string) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.faults, op)
}

// begin checks the context and any injected fault, then locks the data.
// The returned func releases the locks.
func (s *Store) begin(ctx context.Context, op string) (*state, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !s.inTx {
		s.db.txLock.RLock()
	}
	s.db.mu.Lock()
	unlock := func() {
		s.db.mu.Unlock()
		if !s.inTx {
			s.db.txLock.RUnlock()
		}
	}
	if f := s.db.faults[op]; f != nil {
		if f.skip > 0 {
			f.skip--
		} else {
			unlock()
			return nil, nil, fmt.Errorf("%s: %w", op, f.err)
		}
	}
	return s.db.st, unlock, nil
}
