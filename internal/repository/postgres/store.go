package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/chatline/internal/repository"
)

// querier is what both *pgxpool.Pool and pgx.Tx provide. Every store runs
// its SQL through one, so the same code serves pooled and transactional use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres implementation of repository.Store.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool

	users         *UserStore
	conversations *ConversationStore
	memberships   *MembershipStore
	messages      *MessageStore
	requests      *FriendRequestStore
}

// NewStore builds a Store on top of a pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return newStore(pool, pool, false)
}

func newStore(pool *pgxpool.Pool, q querier, inTx bool) *Store {
	return &Store{
		pool:          pool,
		q:             q,
		inTx:          inTx,
		users:         &UserStore{q: q},
		conversations: &ConversationStore{q: q},
		memberships:   &MembershipStore{q: q},
		messages:      &MessageStore{q: q},
		requests:      &FriendRequestStore{q: q},
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository                   { return s.users }
func (s *Store) Conversations() repository.ConversationRepository   { return s.conversations }
func (s *Store) Memberships() repository.MembershipRepository       { return s.memberships }
func (s *Store) Messages() repository.MessageRepository             { return s.messages }
func (s *Store) FriendRequests() repository.FriendRequestRepository { return s.requests }

// WithTx runs fn inside a single Postgres transaction. pgx.BeginTxFunc
// commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, newStore(s.pool, tx, true))
	})
	if err != nil {
		return fmt.Errorf("postgres tx: %w", err)
	}
	return nil
}

// uniqueViolation is the SQLSTATE Postgres uses for unique constraint
// failures.
const uniqueViolation = "23505"

// mapWriteErr turns unique violations into repository.ErrDuplicateKey and
// wraps everything else with the operation name.
func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, repository.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}
