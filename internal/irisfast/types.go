package irisfast

import "strings"

// Message is one inbound chat line pushed by Iris over the WebSocket.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

// MessageJSON carries the raw chat-log identifiers.
type MessageJSON struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

// UserID prefers the stable numeric id and falls back to the display name.
func (m *Message) UserID() string {
	if m.JSON != nil && strings.TrimSpace(m.JSON.UserID) != "" {
		return strings.TrimSpace(m.JSON.UserID)
	}
	return m.SenderName()
}

func (m *Message) SenderName() string {
	if m.Sender != nil {
		return strings.TrimSpace(*m.Sender)
	}
	return ""
}

// IsDirect reports a 1:1 chat. KakaoTalk names a 1:1 room after the other party.
func (m *Message) IsDirect() bool {
	name := m.SenderName()
	return name != "" && strings.TrimSpace(m.Room) == name
}

type Config struct {
	Port              int    `json:"port"`
	PollingSpeed      int    `json:"polling_speed"`
	MessageRate       int    `json:"message_rate"`
	WebserverEndpoint string `json:"web_server_endpoint"`
}

// ReplyRequest is the /reply body and the WS reply frame. Data is text or base64 PNG.
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)
