package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/models"
)

func TestNilCallerIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	checks := map[string]error{}
	_, checks["Get"] = f.svc.Get(ctx, nil, id)
	_, checks["CreateGroup"] = f.svc.CreateGroup(ctx, nil, "g", []uuid.UUID{id})
	_, checks["CreateConversation"] = f.svc.CreateConversation(ctx, nil, id)
	checks["Delete"] = f.svc.Delete(ctx, nil, id)
	checks["LeaveGroup"] = f.svc.LeaveGroup(ctx, nil, id)
	checks["MarkRead"] = f.svc.MarkRead(ctx, nil, id, 1)
	_, checks["List"] = f.svc.List(ctx, nil)

	for name, err := range checks {
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Errorf("%s error = %v, want ErrUnauthorized", name, err)
		}
	}
}

func TestCreateConversationHasExactlyTwoMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	id, err := f.svc.CreateConversation(ctx, alice, bob.ID)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if n := f.memberCount(t, id); n != 2 {
		t.Fatalf("direct conversation has %d members, want 2", n)
	}

	detail, err := f.svc.Get(ctx, bob, id)
	if err != nil {
		t.Fatal(err)
	}
	if detail.IsGroup || detail.OtherMember == nil || detail.OtherMember.ID != alice.ID {
		t.Fatalf("detail = %+v", detail)
	}
	if detail.OtherMembers != nil {
		t.Fatal("direct detail carries a group member list")
	}
	if got := f.events.ofType(models.EventConversationCreated); len(got) != 1 || len(got[0].Recipients) != 2 {
		t.Fatalf("created events = %+v", got)
	}
}

func TestCreateConversationRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	if _, err := f.svc.CreateConversation(ctx, alice, bob.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		caller  *models.User
		target  uuid.UUID
		wantErr error
	}{
		{"same direction", alice, bob.ID, apperr.ErrDuplicateConversation},
		{"reverse direction", bob, alice.ID, apperr.ErrDuplicateConversation},
		{"unknown target", alice, uuid.New(), apperr.ErrUserNotFound},
		{"self", alice, alice.ID, apperr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateConversation(ctx, tt.caller, tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateConversationConcurrentCallsCreateOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, duplicates int
	for i := 0; i < callers; i++ {
		caller, target := alice, bob.ID
		if i%2 == 1 {
			caller, target = bob, alice.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateConversation(ctx, caller, target)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperr.ErrDuplicateConversation):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || duplicates != callers-1 {
		t.Fatalf("created=%d duplicates=%d, want 1 and %d", created, duplicates, callers-1)
	}
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	direct, err := f.svc.CreateConversation(ctx, alice, bob.ID)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("missing conversation is a soft miss", func(t *testing.T) {
		detail, err := f.svc.Get(ctx, alice, uuid.New())
		if err != nil || detail != nil {
			t.Fatalf("Get = %+v, %v; want nil, nil", detail, err)
		}
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		detail, err := f.svc.Get(ctx, carol, direct)
		if !errors.Is(err, apperr.ErrForbidden) || detail != nil {
			t.Fatalf("Get = %+v, %v; want ErrForbidden", detail, err)
		}
	})

	t.Run("direct carries the counterpart read pointer", func(t *testing.T) {
		msg := f.send(t, alice, direct, "hello")
		if err := f.svc.MarkRead(ctx, bob, direct, msg.ID); err != nil {
			t.Fatal(err)
		}
		detail, err := f.svc.Get(ctx, alice, direct)
		if err != nil {
			t.Fatal(err)
		}
		got := detail.OtherMember.LastSeenMessageID
		if got == nil || *got != msg.ID {
			t.Fatalf("LastSeenMessageID = %v, want %d", got, msg.ID)
		}
	})

	t.Run("direct without counterpart is inconsistent", func(t *testing.T) {
		key := models.DirectKey(alice.ID, uuid.New())
		conv, err := f.store.Conversations().Create(ctx, models.Conversation{DirectKey: &key})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.store.Memberships().Add(ctx, conv.ID, alice.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := f.svc.Get(ctx, alice, conv.ID); !errors.Is(err, apperr.ErrInconsistentState) {
			t.Fatalf("error = %v, want ErrInconsistentState", err)
		}
	})

	t.Run("group lists every other member", func(t *testing.T) {
		group, err := f.svc.CreateGroup(ctx, alice, "trio", []uuid.UUID{bob.ID, carol.ID})
		if err != nil {
			t.Fatal(err)
		}
		detail, err := f.svc.Get(ctx, bob, group)
		if err != nil {
			t.Fatal(err)
		}
		if !detail.IsGroup || detail.OtherMember != nil || len(detail.OtherMembers) != 2 {
			t.Fatalf("detail = %+v", detail)
		}
		names := map[string]bool{}
		for _, m := range detail.OtherMembers {
			names[m.Username] = true
		}
		if !names["alice"] || !names["carol"] || names["bob"] {
			t.Fatalf("other members = %+v", detail.OtherMembers)
		}
	})

	t.Run("group member without user record is inconsistent", func(t *testing.T) {
		group, err := f.svc.CreateGroup(ctx, alice, "ghosts", []uuid.UUID{bob.ID})
		if err != nil {
			t.Fatal(err)
		}
		ghostA, ghostB := uuid.New(), uuid.New()
		for _, g := range []uuid.UUID{ghostA, ghostB} {
			if _, err := f.store.Memberships().Add(ctx, group, g); err != nil {
				t.Fatal(err)
			}
		}
		_, err = f.svc.Get(ctx, alice, group)
		if !errors.Is(err, apperr.ErrInconsistentState) {
			t.Fatalf("error = %v, want ErrInconsistentState", err)
		}
	})
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	t.Run("deduplicates members and the caller", func(t *testing.T) {
		id, err := f.svc.CreateGroup(ctx, alice, "  team  ", []uuid.UUID{bob.ID, carol.ID, bob.ID, alice.ID})
		if err != nil {
			t.Fatal(err)
		}
		if n := f.memberCount(t, id); n != 3 {
			t.Fatalf("group has %d members, want 3", n)
		}
		detail, err := f.svc.Get(ctx, alice, id)
		if err != nil {
			t.Fatal(err)
		}
		if detail.Name == nil || *detail.Name != "team" {
			t.Fatalf("name = %v, want trimmed \"team\"", detail.Name)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name    string
			group   string
			members []uuid.UUID
			wantErr error
		}{
			{"blank name", "   ", []uuid.UUID{bob.ID}, apperr.ErrInvalidInput},
			{"no members", "g", nil, apperr.ErrInvalidInput},
			{"only the caller", "g", []uuid.UUID{alice.ID}, apperr.ErrInvalidInput},
			{"unknown member", "g", []uuid.UUID{bob.ID, uuid.New()}, apperr.ErrUserNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.CreateGroup(ctx, alice, tt.group, tt.members)
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("a failed insert leaves nothing behind", func(t *testing.T) {
		dave := f.user(t, "dave")
		boom := errors.New("boom")
		f.store.FailAfter("memberships.Add", 1, boom)
		defer f.store.Recover("memberships.Add")

		if _, err := f.svc.CreateGroup(ctx, dave, "doomed", []uuid.UUID{bob.ID}); !errors.Is(err, boom) {
			t.Fatalf("error = %v, want %v", err, boom)
		}
		memberships, err := f.store.Memberships().ListByUser(ctx, dave.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(memberships) != 0 {
			t.Fatalf("dave kept %d memberships after rollback", len(memberships))
		}
	})
}
