package internal

import (
	"errors"
	"time"
)

const (
	// messagesPerPage is the history page size for both the initial
	// load and every "load older" fetch.
	messagesPerPage = 50

	// bottomSlackLines is how close to the bottom the viewport must be
	// for a live insert to auto-follow.
	bottomSlackLines = 3

	// loadOlderTriggerLines is the distance from the top below which
	// scrolling triggers the next history page.
	loadOlderTriggerLines = 2
)

// ErrNotMessageOwner is returned when a delete is requested for a
// message the current user did not write. The check happens before any
// backend call is made.
var ErrNotMessageOwner = errors.New("cannot delete another user's message")

// ErrUnknownMessage is returned when an operation names a message ID
// that is not in the loaded window.
var ErrUnknownMessage = errors.New("message not loaded")

// ProfileResolver looks up an author snapshot by user ID. Implementations
// are expected to be cheap (a cache in front of the profile store).
type ProfileResolver func(userID string) (Profile, error)

// MessageFeed owns the ordered, deduplicated message window. It blends
// three sources: the initial page, backward pagination, and live
// realtime inserts/updates. The window is always contiguous and
// anchored at the most recent message; ordering is by CreatedAt with
// ties kept in arrival order. All methods must be called from the
// single UI event loop; the reentrancy flag, not a lock, is what keeps
// pagination sane.
type MessageFeed struct {
	messages []Message
	seen     map[string]struct{}
	pageSize int
	hasMore  bool
	loading  bool
	resolve  ProfileResolver
	scroll   scrollState
}

// NewMessageFeed returns an empty feed. resolve may be nil; inserts then
// fall back to the placeholder profile when the event carries none.
func NewMessageFeed(resolve ProfileResolver) *MessageFeed {
	return &MessageFeed{
		seen:     make(map[string]struct{}),
		pageSize: messagesPerPage,
		hasMore:  true,
		resolve:  resolve,
	}
}

// PageSize is the limit to pass to history fetches.
func (f *MessageFeed) PageSize() int { return f.pageSize }

// Messages returns the window ordered oldest to newest.
func (f *MessageFeed) Messages() []Message { return f.messages }

// Len reports the number of loaded messages.
func (f *MessageFeed) Len() int { return len(f.messages) }

// HasMore reports whether older history may still exist on the server.
func (f *MessageFeed) HasMore() bool { return f.hasMore }

// Loading reports whether a "load older" fetch is in flight.
func (f *MessageFeed) Loading() bool { return f.loading }

// LoadInitial installs the newest page. The fetch returns newest-first;
// the feed stores oldest-first for display. A full page means older
// history may exist.
func (f *MessageFeed) LoadInitial(page []Message) {
	f.messages = f.messages[:0]
	f.seen = make(map[string]struct{})
	f.hasMore = len(page) == f.pageSize
	for i := len(page) - 1; i >= 0; i-- {
		msg := page[i]
		if _, dup := f.seen[msg.ID]; dup {
			continue
		}
		f.seen[msg.ID] = struct{}{}
		f.messages = append(f.messages, msg)
	}
}

// BeginLoadOlder arms a backward fetch. It returns false when one is
// already in flight or when the history is exhausted, and the caller
// must then do nothing: concurrent triggers collapse to one request.
func (f *MessageFeed) BeginLoadOlder() bool {
	if f.loading || !f.hasMore {
		return false
	}
	f.loading = true
	return true
}

// OldestCursor is the pagination cursor: fetch strictly older than the
// oldest loaded message. ok is false when the window is empty.
func (f *MessageFeed) OldestCursor() (time.Time, bool) {
	if len(f.messages) == 0 {
		return time.Time{}, false
	}
	return f.messages[0].CreatedAt, true
}

// FinishLoadOlder resolves the fetch armed by BeginLoadOlder. On a
// fetch error the window and hasMore are left untouched, per the
// degrade-to-no-new-data policy. A short page latches hasMore to false
// for the rest of the session. Duplicates already in the window are
// dropped before prepending. Returns the number of messages added.
func (f *MessageFeed) FinishLoadOlder(page []Message, fetchErr error) int {
	f.loading = false
	if fetchErr != nil {
		return 0
	}
	if len(page) < f.pageSize {
		f.hasMore = false
	}
	// page arrives newest-first; build the prepend slice oldest-first
	older := make([]Message, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		msg := page[i]
		if _, dup := f.seen[msg.ID]; dup {
			continue
		}
		f.seen[msg.ID] = struct{}{}
		older = append(older, msg)
	}
	if len(older) == 0 {
		return 0
	}
	f.messages = append(older, f.messages...)
	return len(older)
}

// ApplyInsert appends a live message. Replayed deliveries with a known
// ID are ignored. The author snapshot is resolved here, at insert time,
// falling back to the empty-username placeholder when the lookup fails
// or races.
func (f *MessageFeed) ApplyInsert(msg Message) bool {
	if _, dup := f.seen[msg.ID]; dup {
		return false
	}
	if msg.Author.Username == "" && f.resolve != nil {
		if prof, err := f.resolve(msg.AuthorID); err == nil {
			msg.Author = prof
		}
	}
	if msg.Author.AvatarColor == "" {
		msg.Author.AvatarColor = defaultAvatarColor
	}
	f.seen[msg.ID] = struct{}{}
	f.messages = append(f.messages, msg)
	return true
}

// ApplyUpdate handles row updates from the realtime feed. Only the
// soft-delete transition is meaningful; everything else is ignored.
func (f *MessageFeed) ApplyUpdate(msg Message) bool {
	if !msg.IsDeleted {
		return false
	}
	for i := range f.messages {
		if f.messages[i].ID == msg.ID {
			f.messages[i].IsDeleted = true
			return true
		}
	}
	return false
}

// AuthorizeDelete enforces ownership before any delete request leaves
// the client.
func (f *MessageFeed) AuthorizeDelete(id, requesterID string) error {
	for i := range f.messages {
		if f.messages[i].ID == id {
			if f.messages[i].AuthorID != requesterID {
				return ErrNotMessageOwner
			}
			return nil
		}
	}
	return ErrUnknownMessage
}

// MessageByID returns the loaded message with the given ID.
func (f *MessageFeed) MessageByID(id string) (Message, bool) {
	for i := range f.messages {
		if f.messages[i].ID == id {
			return f.messages[i], true
		}
	}
	return Message{}, false
}

// scrollState mirrors the viewport geometry in lines: the first visible
// line, the view height, and the rendered content height. The feed uses
// it to decide follows, prepend reconciliation and pagination triggers
// without ever touching the widget directly.
type scrollState struct {
	offset     int
	viewHeight int
	totalLines int
}

// SyncViewport records the current viewport geometry. Call it before
// mutating the feed so the pre-change state is what decisions use.
func (f *MessageFeed) SyncViewport(offset, viewHeight, totalLines int) {
	f.scroll = scrollState{offset: offset, viewHeight: viewHeight, totalLines: totalLines}
}

// NearBottom reports whether the viewport was within the follow slack
// of the bottom at the last sync. A live insert should auto-scroll only
// in that case; a reader further up is left alone.
func (f *MessageFeed) NearBottom() bool {
	return f.scroll.totalLines-(f.scroll.offset+f.scroll.viewHeight) <= bottomSlackLines
}

// ReconcilePrepend returns the scroll offset that keeps the same lines
// visible after older content grew the rendering to newTotal lines.
func (f *MessageFeed) ReconcilePrepend(newTotal int) int {
	delta := newTotal - f.scroll.totalLines
	if delta < 0 {
		delta = 0
	}
	return f.scroll.offset + delta
}

// ShouldLoadOlder is the infinite-scroll trigger: near the top, history
// remaining, and no fetch in flight.
func (f *MessageFeed) ShouldLoadOlder() bool {
	return f.scroll.offset < loadOlderTriggerLines && f.hasMore && !f.loading
}
