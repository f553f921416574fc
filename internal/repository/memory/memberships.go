package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository"
)

type membershipRepo struct{ s *Store }

func (r membershipRepo) Add(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	st, unlock, err := r.s.begin(ctx, "memberships.Add")
	if err != nil {
		return nil, err
	}
	defer unlock()

	key := memberKey{conversationID, userID}
	if _, ok := st.members[key]; ok {
		return nil, fmt.Errorf("insert membership: %w", repository.ErrDuplicateKey)
	}
	m := models.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now().UTC(),
	}
	st.members[key] = m
	return &m, nil
}

func (r membershipRepo) Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	st, unlock, err := r.s.begin(ctx, "memberships.Get")
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, ok := st.members[memberKey{conversationID, userID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r membershipRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMember, error) {
	out, err := r.list(ctx, "memberships.ListByConversation", func(m models.ConversationMember) bool {
		return m.ConversationID == conversationID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}

func (r membershipRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationMember, error) {
	out, err := r.list(ctx, "memberships.ListByUser", func(m models.ConversationMember) bool {
		return m.UserID == userID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ConversationID.String() < out[j].ConversationID.String()
	})
	return out, nil
}

func (r membershipRepo) list(ctx context.Context, op string, match func(models.ConversationMember) bool) ([]models.ConversationMember, error) {
	st, unlock, err := r.s.begin(ctx, op)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]models.ConversationMember, 0)
	for _, m := range st.members {
		if match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r membershipRepo) Remove(ctx context.Context, conversationID, userID uuid.UUID) error {
	st, unlock, err := r.s.begin(ctx, "memberships.Remove")
	if err != nil {
		return err
	}
	defer unlock()

	delete(st.members, memberKey{conversationID, userID})
	return nil
}

func (r membershipRepo) RemoveAll(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	st, unlock, err := r.s.begin(ctx, "memberships.RemoveAll")
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for k := range st.members {
		if k.conversationID == conversationID {
			delete(st.members, k)
			n++
		}
	}
	return n, nil
}

func (r membershipRepo) SetLastSeen(ctx context.Context, conversationID, userID uuid.UUID, messageID *int64) error {
	st, unlock, err := r.s.begin(ctx, "memberships.SetLastSeen")
	if err != nil {
		return err
	}
	defer unlock()

	key := memberKey{conversationID, userID}
	m, ok := st.members[key]
	if !ok {
		return nil
	}
	if messageID != nil {
		id := *messageID
		messageID = &id
	}
	m.LastSeenMessageID = messageID
	st.members[key] = m
	return nil
}
