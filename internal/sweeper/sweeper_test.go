package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/repository/memory"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	store   *memory.Store
	chat    *chat.Service
	sweeper *Sweeper
	loop    *Loop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()

	f := &fixture{store: store}
	f.chat = chat.NewService(store, nil, NewNextSweep(logger), logger)
	f.sweeper = New(f.chat, store.Conversations(), logger)
	f.loop = NewLoop(f.sweeper, 10*time.Millisecond, logger)
	return f
}

// markedConversation creates a direct conversation with a message and
// deletes it while purges fail, leaving it marked.
func (f *fixture) markedConversation(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var users []*models.User
	for i := 0; i < 2; i++ {
		u, err := f.store.Users().Create(ctx, models.User{
			Subject: uuid.NewString(),
			Email:   uuid.NewString() + "@example.com",
		})
		if err != nil {
			t.Fatal(err)
		}
		users = append(users, u)
	}
	id, err := f.chat.CreateConversation(ctx, users[0], users[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.chat.SendMessage(ctx, users[0], id, "", []string{"hi"}); err != nil {
		t.Fatal(err)
	}

	f.store.Fail("messages.DeleteByConversation", errors.New("boom"))
	defer f.store.Recover("messages.DeleteByConversation")
	if err := f.chat.Delete(ctx, users[0], id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	return id
}

func (f *fixture) gone(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	ctx := context.Background()
	conv, err := f.store.Conversations().GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	members, err := f.store.Memberships().ListByConversation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := f.store.Messages().ListByConversation(ctx, id, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return conv == nil && len(members) == 0 && len(msgs) == 0
}

func TestSweepPurgesMarkedConversations(t *testing.T) {
	f := newFixture(t)
	a, b := f.markedConversation(t), f.markedConversation(t)

	purged, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged %d, want 2", purged)
	}
	if !f.gone(t, a) || !f.gone(t, b) {
		t.Fatal("sweep left rows behind")
	}

	purged, err = f.sweeper.Sweep(context.Background())
	if err != nil || purged != 0 {
		t.Fatalf("empty sweep = %d, %v", purged, err)
	}
}

func TestSweepReportsFailuresAndKeepsThemMarked(t *testing.T) {
	f := newFixture(t)
	id := f.markedConversation(t)

	boom := errors.New("still down")
	f.store.Fail("memberships.RemoveAll", boom)
	purged, err := f.sweeper.Sweep(context.Background())
	if !errors.Is(err, boom) || purged != 0 {
		t.Fatalf("Sweep = %d, %v; want 0 and %v", purged, err, boom)
	}
	f.store.Recover("memberships.RemoveAll")

	ids, err := f.store.Conversations().ListDeleting(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("marked = %v, want [%s]", ids, id)
	}
}

func TestHandlePurge(t *testing.T) {
	f := newFixture(t)
	id := f.markedConversation(t)

	task, err := NewPurgeTask(id)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypePurge {
		t.Fatalf("task type = %q", task.Type())
	}
	if err := f.sweeper.HandlePurge(context.Background(), task); err != nil {
		t.Fatalf("HandlePurge: %v", err)
	}
	if !f.gone(t, id) {
		t.Fatal("purge task left rows behind")
	}

	bad := asynq.NewTask(TypePurge, []byte("{not json"))
	if err := f.sweeper.HandlePurge(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload error = %v, want SkipRetry", err)
	}
}

func TestLoopSweepsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	id := f.markedConversation(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.loop.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !f.gone(t, id) {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("loop never purged the conversation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}
