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

type conversationRepo struct{ s *Store }

func (r conversationRepo) Create(ctx context.Context, c models.Conversation) (*models.Conversation, error) {
	st, unlock, err := r.s.begin(ctx, "conversations.Create")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.DeletingAt = nil

	if _, ok := st.conversations[c.ID]; ok {
		return nil, fmt.Errorf("insert conversation: %w (id)", repository.ErrDuplicateKey)
	}
	if c.DirectKey != nil {
		for _, existing := range st.conversations {
			if existing.DirectKey != nil && *existing.DirectKey == *c.DirectKey {
				return nil, fmt.Errorf("insert conversation: %w (direct_key)", repository.ErrDuplicateKey)
			}
		}
	}
	st.conversations[c.ID] = c
	return &c, nil
}

func (r conversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	st, unlock, err := r.s.begin(ctx, "conversations.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, ok := st.conversations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r conversationRepo) GetByDirectKey(ctx context.Context, key string) (*models.Conversation, error) {
	st, unlock, err := r.s.begin(ctx, "conversations.GetByDirectKey")
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, c := range st.conversations {
		if c.DirectKey != nil && *c.DirectKey == key {
			return &c, nil
		}
	}
	return nil, nil
}

func (r conversationRepo) MarkDeleting(ctx context.Context, id uuid.UUID) (bool, error) {
	st, unlock, err := r.s.begin(ctx, "conversations.MarkDeleting")
	if err != nil {
		return false, err
	}
	defer unlock()

	c, ok := st.conversations[id]
	if !ok || c.DeletingAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	c.DeletingAt = &now
	st.conversations[id] = c
	return true, nil
}

func (r conversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	st, unlock, err := r.s.begin(ctx, "conversations.Delete")
	if err != nil {
		return err
	}
	defer unlock()

	delete(st.conversations, id)
	return nil
}

func (r conversationRepo) ListDeleting(ctx context.Context, limit int) ([]uuid.UUID, error) {
	st, unlock, err := r.s.begin(ctx, "conversations.ListDeleting")
	if err != nil {
		return nil, err
	}
	defer unlock()

	marked := make([]models.Conversation, 0)
	for _, c := range st.conversations {
		if c.DeletingAt != nil {
			marked = append(marked, c)
		}
	}
	sort.Slice(marked, func(i, j int) bool {
		return marked[i].DeletingAt.Before(*marked[j].DeletingAt)
	})
	if limit > 0 && len(marked) > limit {
		marked = marked[:limit]
	}

	ids := make([]uuid.UUID, 0, len(marked))
	for _, c := range marked {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
