package internal

import (
	"strings"
	"time"
)

// defaultAvatarColor is used whenever a profile lookup fails or races
// with the realtime feed, matching the backend's column default.
const defaultAvatarColor = "#3B82F6"

// Profile is a denormalized author snapshot. It is resolved once, when a
// message is rendered or inserted, and never updated retroactively: a
// message shows the author's name and color as they were at send time.
type Profile struct {
	UserID      string `json:"user_id,omitempty"`
	Username    string `json:"username"`
	AvatarColor string `json:"avatar_color"`
}

// ReplyRef is the snapshot of the message being replied to, captured at
// send time. It is not a live reference and goes stale on purpose.
type ReplyRef struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	AuthorName string `json:"user_name"`
}

// Attachment describes an uploaded file linked to a message. The URL is
// a long-lived signed link, not a permanent one.
type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Message is one row of the chat history. ID and CreatedAt are assigned
// by the backend; the client never invents either.
type Message struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
	AuthorID   string      `json:"user_id"`
	ReplyTo    *ReplyRef   `json:"reply_to,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	IsDeleted  bool        `json:"is_deleted"`
	Author     Profile     `json:"user_profiles"`
}

// User is the authenticated local user with the cached profile fields.
// Refreshed only by explicit save actions.
type User struct {
	ID          string
	Email       string
	Username    string
	AvatarColor string
	CreatedAt   time.Time
}

// Session holds the backend-issued access token and the claims the
// client cares about.
type Session struct {
	AccessToken string
	UserID      string
	Email       string
	ExpiresAt   time.Time
}

// Expired reports whether the session token is past its expiry. A zero
// expiry means the token carried no exp claim and is treated as live.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// OutgoingMessage is what the client asks the backend to insert.
type OutgoingMessage struct {
	Content    string      `json:"content"`
	ReplyTo    *ReplyRef   `json:"reply_to,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// NewOutgoing builds the insert payload for a send. It returns false
// when there is nothing to send: empty content with no attachment. The
// reply snapshot is denormalized here, at send time.
func NewOutgoing(content string, replyTo *Message, attachment *Attachment) (OutgoingMessage, bool) {
	content = strings.TrimSpace(content)
	if content == "" && attachment == nil {
		return OutgoingMessage{}, false
	}
	out := OutgoingMessage{Content: content, Attachment: attachment}
	if replyTo != nil {
		out.ReplyTo = &ReplyRef{
			ID:         replyTo.ID,
			Content:    replyTo.Content,
			AuthorName: replyTo.Author.Username,
		}
	}
	return out, true
}
