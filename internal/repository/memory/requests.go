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

type requestRepo struct{ s *Store }

func (r requestRepo) Create(ctx context.Context, req models.FriendRequest) (*models.FriendRequest, error) {
	st, unlock, err := r.s.begin(ctx, "requests.Create")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	for _, existing := range st.requests {
		if existing.ID == req.ID ||
			(requestKey{existing.SenderID, existing.ReceiverID} == requestKey{req.SenderID, req.ReceiverID}) {
			return nil, fmt.Errorf("insert friend request: %w", repository.ErrDuplicateKey)
		}
	}
	st.requests[req.ID] = req
	return &req, nil
}

func (r requestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	st, unlock, err := r.s.begin(ctx, "requests.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, ok := st.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r requestRepo) GetBetween(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	st, unlock, err := r.s.begin(ctx, "requests.GetBetween")
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, req := range st.requests {
		if req.SenderID == senderID && req.ReceiverID == receiverID {
			return &req, nil
		}
	}
	return nil, nil
}

func (r requestRepo) ListIncoming(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	st, unlock, err := r.s.begin(ctx, "requests.ListIncoming")
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]models.FriendRequest, 0)
	for _, req := range st.requests {
		if req.ReceiverID == receiverID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r requestRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	st, unlock, err := r.s.begin(ctx, "requests.Delete")
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, ok := st.requests[id]; !ok {
		return false, nil
	}
	delete(st.requests, id)
	return true, nil
}
