package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/auth"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/friends"
	"github.com/lalith-99/chatline/internal/identity"
	"github.com/lalith-99/chatline/internal/models"
	"github.com/lalith-99/chatline/internal/realtime"
	"github.com/lalith-99/chatline/internal/repository/memory"
	"github.com/lalith-99/chatline/internal/sweeper"
	"go.uber.org/zap/zaptest"
)

const testSecret = "router-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, verifier auth.Verifier, jwtSecret string) *gin.Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	hub := realtime.NewHub(logger)
	svc := chat.NewService(store, realtime.NewLocalBroker(hub), sweeper.NewNextSweep(logger), logger)

	return NewRouter(Deps{
		Verifier:  verifier,
		Resolver:  identity.NewResolver(store.Users(), logger),
		Users:     store.Users(),
		Chat:      svc,
		Friends:   friends.NewLedger(store, svc, logger),
		Hub:       hub,
		JWTSecret: jwtSecret,
		TokenTTL:  time.Hour,
		Logger:    logger,
	})
}

// call performs one request and decodes a JSON response into out when out is
// not nil.
func call(t *testing.T, r http.Handler, method, path, token string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

type account struct {
	token string
	user  models.User
}

func signup(t *testing.T, r http.Handler, name string) account {
	t.Helper()
	var resp authResponse
	code := call(t, r, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email":    name + "@example.com",
		"password": "correct horse",
		"username": name,
	}, &resp)
	if code != http.StatusCreated {
		t.Fatalf("signup %s: status %d", name, code)
	}
	return account{token: resp.Token, user: *resp.User}
}

func expect(t *testing.T, step string, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: status = %d, want %d", step, got, want)
	}
}

func TestRouterFriendsAndConversations(t *testing.T) {
	r := newTestRouter(t, auth.NewJWTVerifier(testSecret), testSecret)

	alice := signup(t, r, "alice")
	bob := signup(t, r, "bob")
	carol := signup(t, r, "carol")

	expect(t, "duplicate signup", call(t, r, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email": "alice@example.com", "password": "another one", "username": "alice2",
	}, nil), http.StatusConflict)

	var me models.User
	expect(t, "me", call(t, r, http.MethodGet, "/v1/users/me", alice.token, nil, &me), http.StatusOK)
	if me.ID != alice.user.ID {
		t.Fatalf("me = %s, want %s", me.ID, alice.user.ID)
	}

	// Friend request flow.
	expect(t, "send request", call(t, r, http.MethodPost, "/v1/requests", alice.token,
		gin.H{"email": "bob@example.com"}, nil), http.StatusCreated)
	expect(t, "send again", call(t, r, http.MethodPost, "/v1/requests", alice.token,
		gin.H{"email": "bob@example.com"}, nil), http.StatusConflict)
	expect(t, "unknown email", call(t, r, http.MethodPost, "/v1/requests", alice.token,
		gin.H{"email": "nobody@example.com"}, nil), http.StatusNotFound)

	var incoming []models.RequestView
	expect(t, "list requests", call(t, r, http.MethodGet, "/v1/requests", bob.token, nil, &incoming), http.StatusOK)
	if len(incoming) != 1 || incoming[0].Sender.ID != alice.user.ID {
		t.Fatalf("incoming = %+v", incoming)
	}

	requestPath := "/v1/requests/" + incoming[0].Request.ID.String()
	expect(t, "accept by sender", call(t, r, http.MethodPost, requestPath+"/accept", alice.token, nil, nil), http.StatusForbidden)

	var accepted conversationIDResponse
	expect(t, "accept", call(t, r, http.MethodPost, requestPath+"/accept", bob.token, nil, &accepted), http.StatusOK)
	directPath := "/v1/conversations/" + accepted.ConversationID.String()

	var aliceFriends, bobFriends []models.Friend
	expect(t, "alice friends", call(t, r, http.MethodGet, "/v1/friends", alice.token, nil, &aliceFriends), http.StatusOK)
	expect(t, "bob friends", call(t, r, http.MethodGet, "/v1/friends", bob.token, nil, &bobFriends), http.StatusOK)
	if len(aliceFriends) != 1 || aliceFriends[0].ID != bob.user.ID ||
		len(bobFriends) != 1 || bobFriends[0].ID != alice.user.ID {
		t.Fatalf("friends not symmetric: %+v / %+v", aliceFriends, bobFriends)
	}

	expect(t, "duplicate direct", call(t, r, http.MethodPost, "/v1/conversations", bob.token,
		gin.H{"friend_id": alice.user.ID}, nil), http.StatusConflict)

	// Messages and reads.
	var sent models.MessageView
	expect(t, "send message", call(t, r, http.MethodPost, directPath+"/messages", alice.token,
		gin.H{"content": []string{"hi bob"}}, &sent), http.StatusCreated)
	expect(t, "blank message", call(t, r, http.MethodPost, directPath+"/messages", alice.token,
		gin.H{"content": []string{"  "}}, nil), http.StatusBadRequest)
	expect(t, "outsider sends", call(t, r, http.MethodPost, directPath+"/messages", carol.token,
		gin.H{"content": []string{"hey"}}, nil), http.StatusForbidden)

	var history []models.MessageView
	expect(t, "history", call(t, r, http.MethodGet, directPath+"/messages?limit=10", bob.token, nil, &history), http.StatusOK)
	if len(history) != 1 || history[0].ID != sent.ID || history[0].IsCurrentUser {
		t.Fatalf("history = %+v", history)
	}
	expect(t, "bad limit", call(t, r, http.MethodGet, directPath+"/messages?limit=zero", bob.token, nil, nil), http.StatusBadRequest)

	var list []models.ConversationSummary
	expect(t, "list before read", call(t, r, http.MethodGet, "/v1/conversations", bob.token, nil, &list), http.StatusOK)
	if len(list) != 1 || list[0].UnseenCount != 1 {
		t.Fatalf("list = %+v", list)
	}
	expect(t, "mark read", call(t, r, http.MethodPost, directPath+"/read", bob.token,
		gin.H{"message_id": sent.ID}, nil), http.StatusNoContent)
	expect(t, "list after read", call(t, r, http.MethodGet, "/v1/conversations", bob.token, nil, &list), http.StatusOK)
	if list[0].UnseenCount != 0 {
		t.Fatalf("unseen = %d after read", list[0].UnseenCount)
	}

	// Authorization on reads.
	expect(t, "outsider get", call(t, r, http.MethodGet, directPath, carol.token, nil, nil), http.StatusForbidden)
	expect(t, "malformed id", call(t, r, http.MethodGet, "/v1/conversations/not-a-uuid", alice.token, nil, nil), http.StatusBadRequest)

	// Groups.
	expect(t, "blank group name", call(t, r, http.MethodPost, "/v1/groups", alice.token,
		gin.H{"name": "   ", "member_ids": []uuid.UUID{bob.user.ID}}, nil), http.StatusBadRequest)
	expect(t, "unknown member", call(t, r, http.MethodPost, "/v1/groups", alice.token,
		gin.H{"name": "trip", "member_ids": []uuid.UUID{uuid.New()}}, nil), http.StatusNotFound)

	var group conversationIDResponse
	expect(t, "create group", call(t, r, http.MethodPost, "/v1/groups", alice.token,
		gin.H{"name": "trip", "member_ids": []uuid.UUID{bob.user.ID, carol.user.ID}}, &group), http.StatusCreated)
	groupPath := "/v1/groups/" + group.ConversationID.String()

	expect(t, "leave direct", call(t, r, http.MethodPost, "/v1/groups/"+accepted.ConversationID.String()+"/leave",
		alice.token, nil, nil), http.StatusBadRequest)
	expect(t, "carol leaves", call(t, r, http.MethodPost, groupPath+"/leave", carol.token, nil, nil), http.StatusNoContent)
	expect(t, "carol leaves again", call(t, r, http.MethodPost, groupPath+"/leave", carol.token, nil, nil), http.StatusForbidden)
	expect(t, "carol deletes", call(t, r, http.MethodDelete, groupPath, carol.token, nil, nil), http.StatusForbidden)
	expect(t, "alice deletes", call(t, r, http.MethodDelete, groupPath, alice.token, nil, nil), http.StatusNoContent)
	expect(t, "delete again", call(t, r, http.MethodDelete, groupPath, alice.token, nil, nil), http.StatusNotFound)

	var detail *models.ConversationDetail
	expect(t, "get deleted", call(t, r, http.MethodGet, "/v1/conversations/"+group.ConversationID.String(),
		alice.token, nil, &detail), http.StatusOK)
	if detail != nil {
		t.Fatalf("deleted group still readable: %+v", detail)
	}

	// Unfriend.
	expect(t, "remove unknown friend", call(t, r, http.MethodDelete, "/v1/friends/"+uuid.NewString(),
		alice.token, nil, nil), http.StatusNotFound)
	expect(t, "remove friend", call(t, r, http.MethodDelete, "/v1/friends/"+accepted.ConversationID.String(),
		bob.token, nil, nil), http.StatusNoContent)
	expect(t, "friends after remove", call(t, r, http.MethodGet, "/v1/friends", alice.token, nil, &aliceFriends), http.StatusOK)
	if len(aliceFriends) != 0 {
		t.Fatalf("friends = %+v after remove", aliceFriends)
	}
}

func TestRouterLogin(t *testing.T) {
	r := newTestRouter(t, auth.NewJWTVerifier(testSecret), testSecret)
	signup(t, r, "dave")

	tests := []struct {
		name     string
		email    string
		password string
		want     int
	}{
		{name: "ok", email: "dave@example.com", password: "correct horse", want: http.StatusOK},
		{name: "wrong password", email: "dave@example.com", password: "battery staple", want: http.StatusUnauthorized},
		{name: "unknown email", email: "eve@example.com", password: "correct horse", want: http.StatusUnauthorized},
		{name: "malformed email", email: "dave", password: "correct horse", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp authResponse
			code := call(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{
				"email": tt.email, "password": tt.password,
			}, &resp)
			expect(t, tt.name, code, tt.want)
			if tt.want == http.StatusOK && resp.Token == "" {
				t.Fatal("login returned no token")
			}
		})
	}

	expect(t, "health", call(t, r, http.MethodGet, "/v1/health", "", nil, nil), http.StatusOK)
	expect(t, "no token", call(t, r, http.MethodGet, "/v1/conversations", "", nil, nil), http.StatusUnauthorized)
}

// stubVerifier treats the token as the subject, the way an external
// provider's token would resolve to a stable id.
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*auth.Principal, error) {
	if token == "bad" {
		return nil, errors.New("bad token")
	}
	return &auth.Principal{Subject: token, Email: token + "@example.com", Name: "Ext " + token}, nil
}

func TestRouterSyncWithExternalProvider(t *testing.T) {
	r := newTestRouter(t, stubVerifier{}, "")

	expect(t, "signup not mounted", call(t, r, http.MethodPost, "/v1/auth/signup", "", gin.H{}, nil), http.StatusNotFound)
	expect(t, "bad token", call(t, r, http.MethodPost, "/v1/users/sync", "bad", nil, nil), http.StatusUnauthorized)
	expect(t, "before sync", call(t, r, http.MethodGet, "/v1/users/me", "uid-1", nil, nil), http.StatusForbidden)

	var created, again models.User
	expect(t, "first sync", call(t, r, http.MethodPost, "/v1/users/sync", "uid-1", nil, &created), http.StatusCreated)
	expect(t, "second sync", call(t, r, http.MethodPost, "/v1/users/sync", "uid-1", nil, &again), http.StatusOK)
	if created.ID != again.ID || created.Username != "Ext uid-1" {
		t.Fatalf("sync = %+v then %+v", created, again)
	}
	expect(t, "after sync", call(t, r, http.MethodGet, "/v1/users/me", "uid-1", nil, nil), http.StatusOK)
}
