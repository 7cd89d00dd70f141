package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/hub"
	"github.com/chatwave/backend/internal/models"
	"github.com/chatwave/backend/internal/services"
)

// staticValidator resolves opaque tokens to usernames without signature checks.
type staticValidator map[string]string

func (v staticValidator) ValidateToken(token string) (*services.Claims, error) {
	username, ok := v[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &services.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: username},
	}, nil
}

// flakyStore is a ChatStore whose CreateMessage fails a configured number of
// times before recovering.
type flakyStore struct {
	mu       sync.Mutex
	users    map[string]db.User
	failures int
	nextID   int64
}

func (s *flakyStore) GetUserByUsername(_ context.Context, username string) (db.User, error) {
	user, ok := s.users[username]
	if !ok {
		return db.User{}, errors.New("no such user")
	}
	return user, nil
}

func (s *flakyStore) GetChannel(_ context.Context, id int64) (db.Channel, error) {
	return db.Channel{ID: id, Name: "general"}, nil
}

func (s *flakyStore) IsChannelMember(context.Context, db.ChannelMemberParams) (bool, error) {
	return true, nil
}

func (s *flakyStore) CreateMessage(_ context.Context, arg db.CreateMessageParams) (db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return db.Message{}, errors.New("database is locked")
	}

	s.nextID++
	return db.Message{
		ID:        s.nextID,
		Content:   arg.Content,
		UserID:    arg.UserID,
		ChannelID: arg.ChannelID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func dialChat(t *testing.T, serverURL string, channelID int64, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") +
		fmt.Sprintf("/ws/%d?token=%s", channelID, token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readChatEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

// A persistence failure is fatal to that message only: the sender alone is
// told, nothing reaches the other members, and the session keeps processing
// frames.
func TestMessagePersistenceFailure(t *testing.T) {
	store := &flakyStore{
		users: map[string]db.User{
			"alice": {ID: 1, Username: "alice"},
			"bob":   {ID: 2, Username: "bob"},
		},
		failures: 2,
	}
	validator := staticValidator{"alice-token": "alice", "bob-token": "bob"}

	handler := NewChatHandler(hub.New(), store, validator)
	r := chi.NewRouter()
	r.Get("/ws/{channelID}", handler.Serve)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	const channelID = int64(7)

	aliceConn := dialChat(t, server.URL, channelID, "alice-token")
	readChatEvent(t, aliceConn) // own join

	bobConn := dialChat(t, server.URL, channelID, "bob-token")
	readChatEvent(t, bobConn)   // own join
	readChatEvent(t, aliceConn) // bob's join

	// Two frames hit the failing store. The sender alone gets one error
	// event per frame; the second frame proves the session stayed up.
	for _, content := range []string{"one", "two"} {
		if err := aliceConn.WriteJSON(models.InboundFrame{Content: content}); err != nil {
			t.Fatalf("send frame %q: %v", content, err)
		}

		got := readChatEvent(t, aliceConn)
		if got.Type != models.EventError {
			t.Fatalf("sender event after failed store = %+v, want type error", got)
		}
		if got.Content != "message could not be saved" {
			t.Errorf("error event content = %q", got.Content)
		}
		if got.Username != models.SystemUsername {
			t.Errorf("error event username = %q, want %q", got.Username, models.SystemUsername)
		}
		if got.ChannelID != channelID {
			t.Errorf("error event channel_id = %d, want %d", got.ChannelID, channelID)
		}
	}

	// The store recovers. The next frame broadcasts normally, and it is the
	// first thing bob receives since his own join: the failed messages and
	// the sender-only error events never reached him.
	if err := aliceConn.WriteJSON(models.InboundFrame{Content: "three"}); err != nil {
		t.Fatalf("send frame: %v", err)
	}

	if got := readChatEvent(t, aliceConn); got.Type != models.EventMessage || got.Content != "three" {
		t.Fatalf("sender event after store recovery = %+v, want the three message", got)
	}
	bobGot := readChatEvent(t, bobConn)
	if bobGot.Type != models.EventMessage || bobGot.Content != "three" {
		t.Fatalf("bob's first post-join event = %+v, want the three message", bobGot)
	}
	if bobGot.Username != "alice" || bobGot.UserID != 1 {
		t.Errorf("broadcast author = %q/%d, want alice/1", bobGot.Username, bobGot.UserID)
	}
}
