package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/models"
)

func TestGroupLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1, u2, u3 := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "u3")

	group, err := f.svc.CreateGroup(ctx, u1, "friends", []uuid.UUID{u2.ID, u3.ID})
	if err != nil {
		t.Fatal(err)
	}
	if n := f.memberCount(t, group); n != 3 {
		t.Fatalf("after create: %d members, want 3", n)
	}
	f.send(t, u1, group, "hi all")
	f.send(t, u2, group, "hey")

	if err := f.svc.LeaveGroup(ctx, u2, group); err != nil {
		t.Fatal(err)
	}
	if n := f.memberCount(t, group); n != 2 {
		t.Fatalf("after leave: %d members, want 2", n)
	}
	if m, _ := f.store.Memberships().Get(ctx, group, u2.ID); m != nil {
		t.Fatal("u2 is still a member")
	}
	if n := f.messageCount(t, group); n != 2 {
		t.Fatalf("leave touched messages: %d left, want 2", n)
	}

	if err := f.svc.Delete(ctx, u1, group); err != nil {
		t.Fatal(err)
	}
	if n := f.memberCount(t, group); n != 0 {
		t.Fatalf("after delete: %d members, want 0", n)
	}
	if n := f.messageCount(t, group); n != 0 {
		t.Fatalf("after delete: %d messages, want 0", n)
	}
	conv, err := f.store.Conversations().GetByID(ctx, group)
	if err != nil || conv != nil {
		t.Fatalf("conversation row = %+v, %v; want gone", conv, err)
	}

	deleted := f.events.ofType(models.EventConversationDeleted)
	if len(deleted) != 1 || len(deleted[0].Recipients) != 2 {
		t.Fatalf("deleted events = %+v", deleted)
	}
	if len(f.scheduler.ids) != 0 {
		t.Fatalf("purge scheduled for a clean delete: %v", f.scheduler.ids)
	}
}

func TestDeleteGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	direct, err := f.svc.CreateConversation(ctx, alice, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	lonely, err := f.svc.CreateGroup(ctx, alice, "lonely", []uuid.UUID{bob.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.LeaveGroup(ctx, bob, lonely); err != nil {
		t.Fatal(err)
	}
	group, err := f.svc.CreateGroup(ctx, alice, "group", []uuid.UUID{bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"missing", func() error { return f.svc.Delete(ctx, alice, uuid.New()) }, apperr.ErrNotFound},
		{"non-member", func() error { return f.svc.Delete(ctx, carol, direct) }, apperr.ErrForbidden},
		{"one member left", func() error { return f.svc.Delete(ctx, alice, lonely) }, apperr.ErrEmptyConversation},
		{"remove friend on a group", func() error { return f.svc.RemoveFriend(ctx, alice, group) }, apperr.ErrNotDirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := f.svc.RemoveFriend(ctx, bob, direct); err != nil {
		t.Fatalf("RemoveFriend: %v", err)
	}
	if err := f.svc.Delete(ctx, alice, direct); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.CreateConversation(ctx, alice, bob.ID); err != nil {
		t.Fatalf("recreate after remove: %v", err)
	}
}

func TestDeletePurgeFailureSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	direct, err := f.svc.CreateConversation(ctx, alice, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	f.send(t, alice, direct, "hello")

	boom := errors.New("storage unavailable")
	f.store.Fail("memberships.RemoveAll", boom)

	if err := f.svc.Delete(ctx, alice, direct); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.scheduler.ids) != 1 || f.scheduler.ids[0] != direct {
		t.Fatalf("scheduled purges = %v, want [%s]", f.scheduler.ids, direct)
	}

	// The transaction rolled back, so rows are still there but hidden.
	if n := f.messageCount(t, direct); n != 1 {
		t.Fatalf("messages after failed purge = %d, want 1", n)
	}
	detail, err := f.svc.Get(ctx, alice, direct)
	if err != nil || detail != nil {
		t.Fatalf("Get = %+v, %v; want soft miss", detail, err)
	}
	list, err := f.svc.List(ctx, alice)
	if err != nil || len(list) != 0 {
		t.Fatalf("List = %+v, %v; want empty", list, err)
	}
	if _, err := f.svc.SendMessage(ctx, alice, direct, "", []string{"anyone?"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("SendMessage error = %v, want ErrNotFound", err)
	}

	f.store.Recover("memberships.RemoveAll")
	if err := f.svc.Purge(ctx, direct); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if f.memberCount(t, direct) != 0 || f.messageCount(t, direct) != 0 {
		t.Fatal("purge left rows behind")
	}
	if err := f.svc.Purge(ctx, direct); err != nil {
		t.Fatalf("second Purge: %v", err)
	}
}

func TestDeleteFailsWhenRetryCannotBeScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	direct, err := f.svc.CreateConversation(ctx, alice, bob.ID)
	if err != nil {
		t.Fatal(err)
	}

	purgeErr := errors.New("purge failed")
	queueErr := errors.New("queue down")
	f.store.Fail("conversations.Delete", purgeErr)
	f.scheduler.err = queueErr

	err = f.svc.Delete(ctx, alice, direct)
	if !errors.Is(err, purgeErr) || !errors.Is(err, queueErr) {
		t.Fatalf("error = %v, want both causes", err)
	}
}

func TestStaleDirectConversationIsPurgedOnRecreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	first, err := f.svc.CreateConversation(ctx, alice, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	f.store.Fail("messages.DeleteByConversation", errors.New("boom"))
	if err := f.svc.Delete(ctx, alice, first); err != nil {
		t.Fatal(err)
	}
	f.store.Recover("messages.DeleteByConversation")

	second, err := f.svc.CreateConversation(ctx, bob, alice.ID)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if second == first {
		t.Fatal("recreate returned the deleted conversation")
	}
	if conv, _ := f.store.Conversations().GetByID(ctx, first); conv != nil {
		t.Fatal("stale conversation was not purged")
	}
}

func TestLeaveGroupGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	direct, err := f.svc.CreateConversation(ctx, alice, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	group, err := f.svc.CreateGroup(ctx, alice, "g", []uuid.UUID{bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		caller  *models.User
		id      uuid.UUID
		wantErr error
	}{
		{"missing", alice, uuid.New(), apperr.ErrNotFound},
		{"not a member", carol, group, apperr.ErrNotAMember},
		{"direct", alice, direct, apperr.ErrNotGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.LeaveGroup(ctx, tt.caller, tt.id); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := f.memberCount(t, direct); n != 2 {
		t.Fatalf("direct conversation has %d members, want 2", n)
	}
}
