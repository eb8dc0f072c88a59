package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

// newChannelServer runs handler for a single websocket client and
// returns a connected Channel.
func newChannelServer(t *testing.T, handler func(*websocket.Conn, *http.Request)) *Channel {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ch, err := DialChannel(wsURL, "chatroom", "alice", "test-token")
	if err != nil {
		t.Fatalf("DialChannel: %v", err)
	}
	t.Cleanup(func() {
		_ = ch.Close()
	})
	return ch
}

func TestDialSendsTopicAndAuth(t *testing.T) {
	done := make(chan struct{})
	ch := newChannelServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer close(done)
		if got := r.URL.Query().Get("topic"); got != "chatroom" {
			t.Errorf("topic = %q", got)
		}
		if got := r.URL.Query().Get("presence_key"); got != "alice" {
			t.Errorf("presence_key = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}
		_ = conn.WriteJSON(Event{Type: EventSubscribed})
	})

	ev, err := ch.ReadOnce()
	if err != nil {
		t.Fatalf("ReadOnce: %v", err)
	}
	if ev.Type != EventSubscribed {
		t.Fatalf("expected subscribed, got %q", ev.Type)
	}
	<-done
}

func TestReadOnceDecodesRowEvents(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ch := newChannelServer(t, func(conn *websocket.Conn, _ *http.Request) {
		msg := Message{ID: "m1", Content: "hello", CreatedAt: created, AuthorID: "u1"}
		_ = conn.WriteJSON(Event{Type: EventInsert, Message: &msg})
		deleted := Message{ID: "m1", IsDeleted: true}
		_ = conn.WriteJSON(Event{Type: EventUpdate, Message: &deleted})
	})

	ev, err := ch.ReadOnce()
	if err != nil {
		t.Fatalf("ReadOnce: %v", err)
	}
	if ev.Type != EventInsert || ev.Message == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Message.ID != "m1" || ev.Message.Content != "hello" {
		t.Fatalf("unexpected message: %+v", ev.Message)
	}
	if !ev.Message.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v", ev.Message.CreatedAt)
	}

	ev, err = ch.ReadOnce()
	if err != nil {
		t.Fatalf("ReadOnce: %v", err)
	}
	if ev.Type != EventUpdate || ev.Message == nil || !ev.Message.IsDeleted {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestReadOnceSkipsGarbageFrames(t *testing.T) {
	ch := newChannelServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"no_type":true}`))
		_ = conn.WriteJSON(Event{Type: EventPresence, State: map[string][]PresencePayload{
			"alice": {{Username: "alice", LastActive: 1700000000000}},
		}})
	})

	ev, err := ch.ReadOnce()
	if err != nil {
		t.Fatalf("ReadOnce: %v", err)
	}
	if ev.Type != EventPresence {
		t.Fatalf("expected presence after skipping garbage, got %q", ev.Type)
	}
	payloads := ev.State["alice"]
	if len(payloads) != 1 || payloads[0].Username != "alice" {
		t.Fatalf("unexpected state: %+v", ev.State)
	}
}

func TestTrackPublishesPresenceFrame(t *testing.T) {
	got := make(chan Event, 1)
	ch := newChannelServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Errorf("decode track frame: %v", err)
			return
		}
		got <- ev
	})

	payload := PresencePayload{Username: "alice", IsTyping: true, LastActive: 1700000000000, AvatarColor: "#EF4444"}
	if err := ch.Track(payload); err != nil {
		t.Fatalf("Track: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Type != "track" || ev.Payload == nil {
			t.Fatalf("unexpected frame: %+v", ev)
		}
		if *ev.Payload != payload {
			t.Fatalf("payload = %+v", *ev.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("track frame never arrived")
	}
}

func TestReadOnceErrorAfterServerClose(t *testing.T) {
	ch := newChannelServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteJSON(Event{Type: EventSubscribed})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	if _, err := ch.ReadOnce(); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, err := ch.ReadOnce(); err == nil {
		t.Fatal("expected read error after close")
	}
}

func TestBuildChannelURLRejectsHTTP(t *testing.T) {
	if _, err := buildChannelURL("http://example.com/realtime", "chatroom", "alice"); err == nil {
		t.Fatal("expected error for non-websocket scheme")
	}
	got, err := buildChannelURL("wss://example.com/realtime", "chatroom", "a b")
	if err != nil {
		t.Fatalf("buildChannelURL: %v", err)
	}
	if !strings.Contains(got, "topic=chatroom") || !strings.Contains(got, "presence_key=a+b") {
		t.Fatalf("unexpected url: %s", got)
	}
}
