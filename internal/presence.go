package internal

import (
	"sort"
	"time"
)

const (
	// awayAfter is how long without activity before a user shows as away.
	awayAfter = 60 * time.Second

	// typingTimeout is the quiet period after the last keystroke before
	// the "stopped typing" payload goes out.
	typingTimeout = 3 * time.Second

	// defaultActivityInterval debounces plain activity publishes so
	// pointer/key noise does not saturate the channel. Tunable, not a
	// contract.
	defaultActivityInterval = 2 * time.Second
)

// Presence statuses derived from the payloads. Away is computed from
// elapsed time at read time, never pushed by the remote.
const (
	StatusOnline = "online"
	StatusTyping = "typing"
	StatusAway   = "away"
)

// PresencePayload is the small mutable state each client tracks on the
// shared channel. Field names are the channel's wire contract.
type PresencePayload struct {
	Username    string `json:"username"`
	IsTyping    bool   `json:"isTyping"`
	LastActive  int64  `json:"lastActive"` // unix milliseconds
	AvatarColor string `json:"avatarColor"`
}

// OnlineUser is one remote user as derived from the latest sync.
type OnlineUser struct {
	Username    string
	Status      string
	LastActive  time.Time
	AvatarColor string
}

// TrackFunc publishes the local user's payload on the shared channel.
type TrackFunc func(PresencePayload) error

// PresenceTracker derives the set of other online users from the
// channel's full-state syncs and publishes the local user's own status.
// Single event loop ownership; the typing timer is modelled as a
// generation counter so at most one "stopped typing" fires per quiet
// period no matter how many keystrokes restarted it.
type PresenceTracker struct {
	username    string
	avatarColor string
	track       TrackFunc

	remotes []PresencePayload

	typingGen   int
	isTyping    bool
	lastActive  time.Time
	lastPublish time.Time

	// ActivityInterval is the minimum spacing between plain activity
	// publishes. Zero disables the debounce.
	ActivityInterval time.Duration
}

// NewPresenceTracker builds a tracker for the local user. track must
// not be nil.
func NewPresenceTracker(username, avatarColor string, track TrackFunc) *PresenceTracker {
	if avatarColor == "" {
		avatarColor = defaultAvatarColor
	}
	return &PresenceTracker{
		username:         username,
		avatarColor:      avatarColor,
		track:            track,
		ActivityInterval: defaultActivityInterval,
	}
}

// Username returns the presence key the tracker publishes under.
func (p *PresenceTracker) Username() string { return p.username }

// AnnounceSelf makes the local user visible as soon as the channel
// subscription is active, before any activity happens.
func (p *PresenceTracker) AnnounceSelf(now time.Time) error {
	p.lastActive = now
	return p.publish(false, now)
}

// Activity records local input (pointer, key, click). The publish is
// debounced to ActivityInterval; the local timestamp always advances.
func (p *PresenceTracker) Activity(now time.Time) error {
	p.lastActive = now
	if p.ActivityInterval > 0 && now.Sub(p.lastPublish) < p.ActivityInterval {
		return nil
	}
	return p.publish(false, now)
}

// SetTyping marks the local user as typing and returns the generation
// to hand to the 3 second timer. Each call invalidates any pending
// timer: only the expiry carrying the latest generation does anything.
func (p *PresenceTracker) SetTyping(now time.Time) (int, error) {
	p.typingGen++
	p.isTyping = true
	p.lastActive = now
	return p.typingGen, p.publish(true, now)
}

// TypingExpired reverts to not-typing when gen is still the latest
// generation. Stale timers are no-ops, which is what guarantees exactly
// one stop broadcast per quiet period.
func (p *PresenceTracker) TypingExpired(gen int, now time.Time) error {
	if gen != p.typingGen || !p.isTyping {
		return nil
	}
	p.isTyping = false
	return p.publish(false, now)
}

// UpdateIdentity republishes presence under a new username/color after
// a profile save so other clients see the new snapshot immediately.
func (p *PresenceTracker) UpdateIdentity(username, avatarColor string, now time.Time) error {
	if username != "" {
		p.username = username
	}
	if avatarColor != "" {
		p.avatarColor = avatarColor
	}
	p.lastActive = now
	return p.publish(p.isTyping, now)
}

func (p *PresenceTracker) publish(typing bool, now time.Time) error {
	p.lastPublish = now
	return p.track(PresencePayload{
		Username:    p.username,
		IsTyping:    typing,
		LastActive:  now.UnixMilli(),
		AvatarColor: p.avatarColor,
	})
}

// ApplySync replaces the remote view with a full channel state: every
// tracked payload across all presence keys, minus the local user's own
// entry. Entries without a username are dropped. This is a full resync,
// not a diff.
func (p *PresenceTracker) ApplySync(state map[string][]PresencePayload) {
	p.remotes = p.remotes[:0]
	for _, payloads := range state {
		for _, payload := range payloads {
			if payload.Username == "" || payload.Username == p.username {
				continue
			}
			p.remotes = append(p.remotes, payload)
		}
	}
	sort.Slice(p.remotes, func(i, j int) bool {
		return p.remotes[i].Username < p.remotes[j].Username
	})
}

// OnlineUsers derives the current statuses. Away wins over typing: it
// is recomputed from elapsed time at every call, so a stale isTyping
// flag on a gone-quiet client cannot mask absence.
func (p *PresenceTracker) OnlineUsers(now time.Time) []OnlineUser {
	users := make([]OnlineUser, 0, len(p.remotes))
	for _, r := range p.remotes {
		lastActive := time.UnixMilli(r.LastActive)
		if r.LastActive == 0 {
			lastActive = now
		}
		status := StatusOnline
		switch {
		case now.Sub(lastActive) > awayAfter:
			status = StatusAway
		case r.IsTyping:
			status = StatusTyping
		}
		color := r.AvatarColor
		if color == "" {
			color = defaultAvatarColor
		}
		users = append(users, OnlineUser{
			Username:    r.Username,
			Status:      status,
			LastActive:  lastActive,
			AvatarColor: color,
		})
	}
	return users
}

// TypingUsernames lists the remote users currently flagging themselves
// as typing, for the composer's indicator line.
func (p *PresenceTracker) TypingUsernames() []string {
	var names []string
	for _, r := range p.remotes {
		if r.IsTyping {
			names = append(names, r.Username)
		}
	}
	return names
}
