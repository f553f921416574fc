package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository/memory"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(typ string) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (s *recordingScheduler) SchedulePurge(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ids = append(s.ids, id)
	return nil
}

type fixture struct {
	store     *memory.Store
	svc       *Service
	events    *recordingPublisher
	scheduler *recordingScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	events := &recordingPublisher{}
	scheduler := &recordingScheduler{}
	return &fixture{
		store:     store,
		svc:       NewService(store, events, scheduler, zaptest.NewLogger(t)),
		events:    events,
		scheduler: scheduler,
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.store.Users().Create(context.Background(), models.User{
		Subject:  "local|" + name,
		Username: name,
		Email:    name + "@example.com",
		ImageURL: "https://example.com/" + name + ".png",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *fixture) memberCount(t *testing.T, conversationID uuid.UUID) int {
	t.Helper()
	members, err := f.store.Memberships().ListByConversation(context.Background(), conversationID)
	if err != nil {
		t.Fatal(err)
	}
	return len(members)
}

func (f *fixture) messageCount(t *testing.T, conversationID uuid.UUID) int {
	t.Helper()
	msgs, err := f.store.Messages().ListByConversation(context.Background(), conversationID, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return len(msgs)
}

func (f *fixture) send(t *testing.T, sender *models.User, conversationID uuid.UUID, text string) *models.MessageView {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), sender, conversationID, "", []string{text})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	return msg
}
