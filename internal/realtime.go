package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame types on the realtime channel. The server pushes row-change
// events for the message table and full-state presence syncs; the
// client publishes its own presence payload with track frames.
const (
	EventSubscribed = "subscribed"
	EventInsert     = "insert"
	EventUpdate     = "update"
	EventPresence   = "presence"
	eventTrack      = "track"
)

// Event is one decoded frame from the channel. Only the field matching
// the type is populated.
type Event struct {
	Type    string                       `json:"type"`
	Message *Message                     `json:"message,omitempty"`
	State   map[string][]PresencePayload `json:"state,omitempty"`
	Payload *PresencePayload             `json:"payload,omitempty"`
}

// Channel is the single shared realtime connection for a chat session.
// Both the feed and the presence tracker consume its events; the local
// presence payload is the only thing written back. Reads happen one
// frame at a time from the event loop; Track may be called from the
// same loop, serialized by the write mutex.
type Channel struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
}

// DialChannel opens the websocket subscription for a topic. The
// presence key must be unique per client; the username serves. The
// session token rides in the Authorization header.
func DialChannel(baseURL, topic, presenceKey, token string) (*Channel, error) {
	joinURL, err := buildChannelURL(baseURL, topic, presenceKey)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(joinURL, header)
	if err != nil {
		return nil, err
	}
	return &Channel{conn: conn}, nil
}

// ReadOnce blocks for the next frame and decodes it. Non-text frames
// and frames that fail to decode are skipped, not errors; duplicate or
// out-of-order deliveries are the consumer's concern. A read error
// means the subscription is gone.
func (c *Channel) ReadOnce() (Event, error) {
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return Event{}, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			continue
		}
		if ev.Type == "" {
			continue
		}
		return ev, nil
	}
}

// Track publishes the local presence payload, replacing whatever this
// client tracked before.
func (c *Channel) Track(p PresencePayload) error {
	frame := Event{Type: eventTrack, Payload: &p}
	encoded, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, encoded)
}

// Close sends the websocket close frame and drops the connection. This
// is the session's only explicit cancellation: the server removes the
// client's presence entry when the connection goes.
func (c *Channel) Close() error {
	c.writeMutex.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMutex.Unlock()
	return c.conn.Close()
}

func buildChannelURL(base, topic, presenceKey string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid scheme for websocket: %s", parsed.Scheme)
	}
	query := parsed.Query()
	query.Set("topic", topic)
	query.Set("presence_key", presenceKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
