package ws

import (
	"encoding/json"
	"time"

	"haikuslam/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgWrite MessageType = "write"
	MsgVote  MessageType = "vote"
	MsgTopic MessageType = "topic"
	MsgList  MessageType = "list"
	MsgGame  MessageType = "game"
	MsgPing  MessageType = "ping"
)

// Server → Client message types
const (
	MsgConnected MessageType = "connected"
	MsgError     MessageType = "error"
	MsgGameView  MessageType = "game_view"
	MsgGameList  MessageType = "game_list"
	MsgPong      MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a reply from server to client. RequestID echoes the
// client message it answers.
type ServerMessage struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"requestId,omitempty"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, requestID string, payload any) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		RequestID: requestID,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// WritePayload is the payload for write message
type WritePayload struct {
	GameID string `json:"gameId"`
	Poem   string `json:"poem"`
}

// VotePayload is the payload for vote message
type VotePayload struct {
	GameID   string `json:"gameId"`
	BallotID string `json:"ballotId"`
}

// TopicPayload is the payload for topic message
type TopicPayload struct {
	GameID string `json:"gameId"`
	Topic  string `json:"topic"`
	Poem   string `json:"poem"`
}

// GamePayload is the payload for game message
type GamePayload struct {
	GameID string `json:"gameId"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// GameListPayload is the payload for game_list message
type GameListPayload struct {
	Games        []domain.View       `json:"games"`
	Entitlements domain.Entitlements `json:"entitlements"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
