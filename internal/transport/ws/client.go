package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"haikuslam/internal/app"
	"haikuslam/internal/domain"
	"haikuslam/internal/transport"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Size of the send channel buffer
	sendBufferSize = 64

	// Time one command may take
	commandTimeout = 10 * time.Second
)

// Client is one authenticated WebSocket connection. Every command is answered
// on the same connection only.
type Client struct {
	conn    *websocket.Conn
	service *app.Service
	user    domain.User
	send    chan []byte
	done    chan struct{}
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, service *app.Service, user domain.User, logger *slog.Logger) *Client {
	return &Client{
		conn:    conn,
		service: service,
		user:    user,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		logger:  logger.With("playerID", user.ID),
	}
}

// Send queues a message for the write pump
func (c *Client) Send(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, message dropped")
	}
	return nil
}

// Close closes the connection once
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps and blocks until the
// connection ends
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		c.handleMessage(ctx, message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage runs one command and replies to it
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", transport.CodeInvalidMessage, "Invalid message format")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch msg.Type {
	case MsgWrite:
		var p WritePayload
		if !c.decode(msg, &p) || !c.require(msg, p.GameID, "gameId") {
			return
		}
		view, err := c.service.Write(ctx, c.user.ID, p.GameID, p.Poem)
		c.replyView(msg, view, err)
	case MsgVote:
		var p VotePayload
		if !c.decode(msg, &p) || !c.require(msg, p.GameID, "gameId") || !c.require(msg, p.BallotID, "ballotId") {
			return
		}
		view, err := c.service.Vote(ctx, c.user.ID, p.GameID, p.BallotID)
		c.replyView(msg, view, err)
	case MsgTopic:
		var p TopicPayload
		if !c.decode(msg, &p) || !c.require(msg, p.GameID, "gameId") {
			return
		}
		view, err := c.service.SubmitTopic(ctx, c.user.ID, p.GameID, p.Topic, p.Poem)
		c.replyView(msg, view, err)
	case MsgGame:
		var p GamePayload
		if !c.decode(msg, &p) || !c.require(msg, p.GameID, "gameId") {
			return
		}
		view, err := c.service.Game(ctx, c.user.ID, p.GameID)
		c.replyView(msg, view, err)
	case MsgList:
		games, ent, err := c.service.ListGames(ctx, c.user.ID)
		if err != nil {
			c.replyError(msg.RequestID, err)
			return
		}
		_ = c.Send(NewServerMessage(MsgGameList, msg.RequestID, &GameListPayload{Games: games, Entitlements: ent}))
	case MsgPing:
		_ = c.Send(NewServerMessage(MsgPong, msg.RequestID, nil))
	default:
		c.sendError(msg.RequestID, transport.CodeInvalidMessage, "Unknown message type")
	}
}

func (c *Client) decode(msg ClientMessage, into any) bool {
	if len(msg.Payload) == 0 {
		c.sendError(msg.RequestID, transport.CodeInvalidMessage, "Payload is required")
		return false
	}
	if err := json.Unmarshal(msg.Payload, into); err != nil {
		c.sendError(msg.RequestID, transport.CodeInvalidMessage, "Invalid payload")
		return false
	}
	return true
}

func (c *Client) require(msg ClientMessage, value, field string) bool {
	if strings.TrimSpace(value) == "" {
		c.sendError(msg.RequestID, transport.CodeInvalidMessage, field+" is required")
		return false
	}
	return true
}

func (c *Client) replyView(msg ClientMessage, view domain.View, err error) {
	if err != nil {
		c.replyError(msg.RequestID, err)
		return
	}
	_ = c.Send(NewServerMessage(MsgGameView, msg.RequestID, view))
}

func (c *Client) replyError(requestID string, err error) {
	f := transport.Classify(err)
	if f.Code == transport.CodeInternalError || f.Code == transport.CodeUnavailable {
		c.logger.Error("websocket command failed", "error", err)
	}
	c.sendError(requestID, f.Code, f.Message)
}

// sendError sends an error message to the client
func (c *Client) sendError(requestID, code, message string) {
	_ = c.Send(NewServerMessage(MsgError, requestID, &ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// sendConnected greets the client after the upgrade
func (c *Client) sendConnected() {
	_ = c.Send(NewServerMessage(MsgConnected, "", &ConnectedPayload{
		PlayerID: c.user.ID,
		Name:     c.user.Name,
	}))
}
