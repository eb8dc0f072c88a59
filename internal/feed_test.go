package internal

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var feedBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newestFirstPage fabricates a history page the way the backend returns
// it: newest first, timestamps descending from start.
func newestFirstPage(start int, n int) []Message {
	page := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		seq := start - i
		page = append(page, Message{
			ID:        fmt.Sprintf("msg-%04d", seq),
			Content:   fmt.Sprintf("message %d", seq),
			CreatedAt: feedBase.Add(time.Duration(seq) * time.Second),
			AuthorID:  "user-a",
			Author:    Profile{UserID: "user-a", Username: "alice", AvatarColor: "#EF4444"},
		})
	}
	return page
}

func TestLoadInitialOrdersOldestFirst(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(150, 50))

	require.Equal(t, 50, feed.Len())
	assert.True(t, feed.HasMore(), "full page means older history may exist")

	msgs := feed.Messages()
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i-1].CreatedAt.Before(msgs[i].CreatedAt),
			"messages must ascend by CreatedAt at index %d", i)
	}

	cursor, ok := feed.OldestCursor()
	require.True(t, ok)
	assert.Equal(t, msgs[0].CreatedAt, cursor)
}

func TestShortInitialPageMeansNoMore(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(7, 7))
	assert.False(t, feed.HasMore())
	assert.False(t, feed.BeginLoadOlder())
}

func TestLoadOlderPaginationKeepsWindowUnique(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(100, 50))

	require.True(t, feed.BeginLoadOlder())
	assert.False(t, feed.BeginLoadOlder(), "second trigger must collapse while in flight")

	// overlap: the older page re-delivers the two oldest already-loaded rows
	older := newestFirstPage(52, 50)
	added := feed.FinishLoadOlder(older, nil)
	assert.Equal(t, 48, added)
	assert.Equal(t, 98, feed.Len())

	seen := make(map[string]struct{})
	msgs := feed.Messages()
	for i, msg := range msgs {
		_, dup := seen[msg.ID]
		require.False(t, dup, "duplicate ID %s", msg.ID)
		seen[msg.ID] = struct{}{}
		if i > 0 {
			assert.True(t, msgs[i-1].CreatedAt.Before(msg.CreatedAt))
		}
	}
}

func TestTwoFullPagesYieldHundredAscending(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(200, 50))
	require.True(t, feed.BeginLoadOlder())
	feed.FinishLoadOlder(newestFirstPage(150, 50), nil)

	require.Equal(t, 100, feed.Len())
	assert.True(t, feed.HasMore())

	msgs := feed.Messages()
	unique := make(map[string]struct{}, len(msgs))
	for i, msg := range msgs {
		unique[msg.ID] = struct{}{}
		if i > 0 {
			require.True(t, msgs[i-1].CreatedAt.Before(msg.CreatedAt))
		}
	}
	assert.Len(t, unique, 100)
}

func TestShortOlderPageLatchesHasMore(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(100, 50))

	require.True(t, feed.BeginLoadOlder())
	feed.FinishLoadOlder(newestFirstPage(30, 30), nil)
	assert.False(t, feed.HasMore())

	// latched for the rest of the session
	assert.False(t, feed.BeginLoadOlder())
}

func TestLoadOlderErrorLeavesWindowUntouched(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(100, 50))

	require.True(t, feed.BeginLoadOlder())
	added := feed.FinishLoadOlder(nil, errors.New("network down"))
	assert.Zero(t, added)
	assert.Equal(t, 50, feed.Len())
	assert.True(t, feed.HasMore(), "a failed fetch is not the end of history")
	assert.False(t, feed.Loading())

	// the next trigger retries
	assert.True(t, feed.BeginLoadOlder())
}

func TestApplyInsertDedupesReplays(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(10, 10))

	msg := Message{
		ID:        "msg-live",
		Content:   "hello",
		CreatedAt: feedBase.Add(time.Hour),
		AuthorID:  "user-b",
		Author:    Profile{UserID: "user-b", Username: "bob", AvatarColor: "#10B981"},
	}
	assert.True(t, feed.ApplyInsert(msg))
	assert.False(t, feed.ApplyInsert(msg), "replayed delivery must be ignored")
	assert.Equal(t, 11, feed.Len())
}

func TestApplyInsertResolvesMissingAuthor(t *testing.T) {
	resolver := func(userID string) (Profile, error) {
		if userID == "user-c" {
			return Profile{UserID: "user-c", Username: "carol", AvatarColor: "#8B5CF6"}, nil
		}
		return Profile{}, errors.New("not found")
	}
	feed := NewMessageFeed(resolver)

	require.True(t, feed.ApplyInsert(Message{ID: "m1", AuthorID: "user-c", CreatedAt: feedBase}))
	got, ok := feed.MessageByID("m1")
	require.True(t, ok)
	assert.Equal(t, "carol", got.Author.Username)

	// lookup failure falls back to the placeholder with the default color
	require.True(t, feed.ApplyInsert(Message{ID: "m2", AuthorID: "user-x", CreatedAt: feedBase}))
	got, ok = feed.MessageByID("m2")
	require.True(t, ok)
	assert.Empty(t, got.Author.Username)
	assert.Equal(t, defaultAvatarColor, got.Author.AvatarColor)
}

func TestApplyUpdateFlipsDeleteFlagOnly(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(5, 5))

	assert.True(t, feed.ApplyUpdate(Message{ID: "msg-0003", IsDeleted: true}))
	got, ok := feed.MessageByID("msg-0003")
	require.True(t, ok)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, "message 3", got.Content, "content is kept, rendering hides it")

	assert.False(t, feed.ApplyUpdate(Message{ID: "msg-0002", IsDeleted: false}))
	assert.False(t, feed.ApplyUpdate(Message{ID: "missing", IsDeleted: true}))
}

func TestAuthorizeDeleteEnforcesOwnership(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(5, 5))

	assert.NoError(t, feed.AuthorizeDelete("msg-0003", "user-a"))
	assert.ErrorIs(t, feed.AuthorizeDelete("msg-0003", "user-b"), ErrNotMessageOwner)
	assert.ErrorIs(t, feed.AuthorizeDelete("missing", "user-a"), ErrUnknownMessage)
}

func TestNearBottomControlsFollow(t *testing.T) {
	feed := NewMessageFeed(nil)

	// 100 lines of content, 20 visible, scrolled to the bottom
	feed.SyncViewport(80, 20, 100)
	assert.True(t, feed.NearBottom())

	// within the slack still follows
	feed.SyncViewport(78, 20, 100)
	assert.True(t, feed.NearBottom())

	// reading history further up must not be yanked down
	feed.SyncViewport(40, 20, 100)
	assert.False(t, feed.NearBottom())
}

func TestReconcilePrependKeepsVisibleLines(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.SyncViewport(1, 20, 100)

	// 60 lines of older content arrived above
	assert.Equal(t, 61, feed.ReconcilePrepend(160))

	// shrinking content never produces a negative delta
	assert.Equal(t, 1, feed.ReconcilePrepend(90))
}

func TestShouldLoadOlderTrigger(t *testing.T) {
	feed := NewMessageFeed(nil)
	feed.LoadInitial(newestFirstPage(100, 50))

	feed.SyncViewport(1, 20, 300)
	assert.True(t, feed.ShouldLoadOlder())

	feed.SyncViewport(10, 20, 300)
	assert.False(t, feed.ShouldLoadOlder(), "away from the top")

	feed.SyncViewport(0, 20, 300)
	require.True(t, feed.BeginLoadOlder())
	assert.False(t, feed.ShouldLoadOlder(), "fetch already in flight")
	feed.FinishLoadOlder(newestFirstPage(10, 10), nil)
	assert.False(t, feed.ShouldLoadOlder(), "history exhausted")
}
