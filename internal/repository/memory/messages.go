package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
)

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, m models.Message) (*models.Message, error) {
	st, unlock, err := r.s.begin(ctx, "messages.Create")
	if err != nil {
		return nil, err
	}
	defer unlock()

	r.s.db.nextMessageID++
	m.ID = r.s.db.nextMessageID
	m.CreatedAt = time.Now().UTC()
	m.Content = append([]string(nil), m.Content...)
	st.messages[m.ID] = m
	return &m, nil
}

func (r messageRepo) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	st, unlock, err := r.s.begin(ctx, "messages.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, ok := st.messages[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// newestFirst returns the conversation's messages ordered by id descending.
func newestFirst(st *state, conversationID uuid.UUID) []models.Message {
	out := make([]models.Message, 0)
	for _, m := range st.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r messageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	st, unlock, err := r.s.begin(ctx, "messages.ListByConversation")
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]models.Message, 0)
	for _, m := range newestFirst(st, conversationID) {
		if before > 0 && m.ID >= before {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (r messageRepo) Latest(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	st, unlock, err := r.s.begin(ctx, "messages.Latest")
	if err != nil {
		return nil, err
	}
	defer unlock()

	msgs := newestFirst(st, conversationID)
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (r messageRepo) CountUnseen(ctx context.Context, conversationID uuid.UUID, after *int64, exclude uuid.UUID) (int64, error) {
	st, unlock, err := r.s.begin(ctx, "messages.CountUnseen")
	if err != nil {
		return 0, err
	}
	defer unlock()

	var floor int64
	if after != nil {
		floor = *after
	}
	var n int64
	for _, m := range st.messages {
		if m.ConversationID == conversationID && m.ID > floor && m.SenderID != exclude {
			n++
		}
	}
	return n, nil
}

func (r messageRepo) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	st, unlock, err := r.s.begin(ctx, "messages.DeleteByConversation")
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for id, m := range st.messages {
		if m.ConversationID == conversationID {
			delete(st.messages, id)
			n++
		}
	}
	return n, nil
}
