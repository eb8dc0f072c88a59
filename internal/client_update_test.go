package internal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chatroom/internal/localization"
)

func newTestModel(t *testing.T) *TUIModel {
	t.Helper()
	loc, err := localization.NewLocalizer()
	if err != nil {
		t.Fatalf("load locales: %v", err)
	}
	model := NewTUIModel(TUIConfig{
		API:         NewBackendClient("http://localhost:0"),
		Localizer:   loc,
		RealtimeURL: "ws://localhost:0/realtime",
		Topic:       "chatroom",
	})
	model.viewport = viewport.New(80, 10)
	model.ready = true
	model.width, model.height = 100, 24
	return model
}

func TestReconnectAfterLossRefetchesNewest(t *testing.T) {
	model := newTestModel(t)
	_, _ = model.startChat(&User{ID: "user-a", Username: "alice", AvatarColor: "#EF4444"})
	gen := model.sessionGen

	model.Update(initialPageMsg{gen: gen, page: newestFirstPage(10, 10)})
	if model.loading {
		t.Fatalf("initial page should clear the loading flag")
	}

	model.Update(channelLostMsg{gen: gen, err: errors.New("connection reset")})
	if !model.needsResync {
		t.Fatalf("losing the channel should schedule a history resync")
	}

	_, cmd := model.Update(channelConnectedMsg{gen: gen, channel: &Channel{}})
	if cmd == nil {
		t.Fatalf("reconnect should issue commands")
	}
	if model.needsResync {
		t.Fatalf("resync flag should clear once the refetch is issued")
	}
	if !model.loading {
		t.Fatalf("reconnect after a loss should put a history fetch in flight")
	}

	// the refetched page carries rows delivered during the outage;
	// LoadInitial re-anchors the window at the newest message
	model.Update(initialPageMsg{gen: gen, page: newestFirstPage(13, 13)})
	messages := model.feed.Messages()
	if len(messages) != 13 {
		t.Fatalf("expected 13 messages after resync, got %d", len(messages))
	}
	if messages[len(messages)-1].ID != "msg-0013" {
		t.Fatalf("window should be anchored at msg-0013, got %s", messages[len(messages)-1].ID)
	}
}

func TestFirstConnectDoesNotRefetch(t *testing.T) {
	model := newTestModel(t)
	_, _ = model.startChat(&User{ID: "user-a", Username: "alice", AvatarColor: "#EF4444"})
	gen := model.sessionGen
	model.Update(initialPageMsg{gen: gen, page: newestFirstPage(5, 5)})

	model.Update(channelConnectedMsg{gen: gen, channel: &Channel{}})
	if model.loading {
		t.Fatalf("a plain first connect must not refetch history")
	}
}

func TestReplyCyclingSurvivesHistoryPrepend(t *testing.T) {
	model := newTestModel(t)
	model.user = &User{ID: "user-a"}
	model.feed.LoadInitial(newestFirstPage(5, 3)) // window: msg-0003..msg-0005

	model.cycleReplyTarget()
	if model.replyTo == nil || model.replyTo.ID != "msg-0005" {
		t.Fatalf("first cycle should select the newest message, got %+v", model.replyTo)
	}

	// older history arrives and shifts every index by two
	model.feed.FinishLoadOlder(newestFirstPage(2, 2), nil)

	model.cycleReplyTarget()
	if model.replyTo.ID != "msg-0004" {
		t.Fatalf("cycle should step to the next-older message, got %s", model.replyTo.ID)
	}
}

func TestScrollOnEmptyWindowKeepsHistoryOpen(t *testing.T) {
	model := newTestModel(t)
	model.mode = modeChat
	model.user = &User{ID: "user-a"}

	model.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	if !model.feed.HasMore() {
		t.Fatalf("scrolling an empty window must not latch history closed")
	}
	if model.feed.Loading() {
		t.Fatalf("no fetch should be armed without a cursor")
	}
}

func TestStartupRestoresHeldSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/profiles/user-a" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"user-a","username":"alice","avatar_color":"#EF4444"}`))
	}))
	defer srv.Close()

	loc, err := localization.NewLocalizer()
	if err != nil {
		t.Fatalf("load locales: %v", err)
	}
	api := NewBackendClient(srv.URL)
	api.SetToken(testToken(t, "user-a", "alice@example.com", time.Now().Add(time.Hour)))

	model := NewTUIModel(TUIConfig{API: api, Localizer: loc, RealtimeURL: "ws://localhost:0", Topic: "chatroom"})
	if cmd := model.Init(); cmd == nil {
		t.Fatalf("Init should return commands")
	}
	if !model.authBusy {
		t.Fatalf("a valid held token should start the restore")
	}

	session, ok := api.CurrentSession()
	if !ok {
		t.Fatalf("expected a current session from the held token")
	}
	msg := model.restoreSessionCmd(session)()
	done, ok := msg.(authDoneMsg)
	if !ok || done.user == nil {
		t.Fatalf("expected a successful auth result, got %#v", msg)
	}
	model.Update(msg)
	if model.mode != modeChat {
		t.Fatalf("a restored session should land in the chat, mode=%d", model.mode)
	}
	if model.user.Username != "alice" || model.user.AvatarColor != "#EF4444" {
		t.Fatalf("restored user should carry the fetched profile, got %+v", model.user)
	}
}

func TestStartupWithoutTokenStaysOnAuthForm(t *testing.T) {
	model := newTestModel(t)
	if cmd := model.Init(); cmd == nil {
		t.Fatalf("Init should still blink the cursor")
	}
	if model.authBusy {
		t.Fatalf("no token means no restore in flight")
	}
	if model.mode != modeAuth {
		t.Fatalf("startup without a session should show the sign-in form")
	}
}
