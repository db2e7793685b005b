package chatfeed

import "time"

// Message is one chat frame from the feed websocket.
type Message struct {
	Type     string   `json:"type,omitempty"`
	Room     string   `json:"room"`
	Msg      string   `json:"msg"`
	Sender   *string  `json:"sender,omitempty"`
	SenderID string   `json:"sender_id,omitempty"`
	Badges   []string `json:"badges,omitempty"`
	Follower bool     `json:"follower,omitempty"`
	Owner    bool     `json:"owner,omitempty"`
	SentAt   int64    `json:"ts,omitempty"`
}

// Time is the send time reported by the feed, or zero.
func (m *Message) Time() time.Time {
	if m == nil || m.SentAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.SentAt)
}

// WebSocketState is the connection lifecycle of the feed socket.
type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)

func (s WebSocketState) String() string { return string(s) }

// ReplyRequest is the body of POST /reply and of websocket reply frames.
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string   `json:"status"`
	Channels []string `json:"channels,omitempty"`
}
