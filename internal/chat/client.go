package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 * 1024
	requestTimeout = 15 * time.Second
)

var clientIDCounter atomic.Uint64

// Session is what a connected client may do on behalf of its user
type Session interface {
	EnsureActiveMember(ctx context.Context, groupID, userID string) (*models.ChatGroupMember, error)
	CreateMessage(ctx context.Context, groupID, userID, body, replyToID string) (*Message, error)
}

// Frame is an inbound websocket frame
type Frame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	Body      string `json:"body,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// Ack answers a frame that carried a request id
type Ack struct {
	RequestID string      `json:"request_id,omitempty"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Message   interface{} `json:"message,omitempty"`
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id      uint64
	userID  string
	hub     *Hub
	conn    *websocket.Conn
	session Session
	send    chan Event
	logger  *zap.Logger
}

// NewClient creates a client for an authenticated user
func NewClient(hub *Hub, conn *websocket.Conn, session Session, userID string) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		userID:  userID,
		hub:     hub,
		conn:    conn,
		session: session,
		send:    make(chan Event, 64),
		logger:  hub.logger.With(zap.String("user_id", userID)),
	}
}

// Start registers the client and begins reading and writing
func (c *Client) Start() {
	select {
	case c.hub.Register <- c:
	case <-c.hub.done:
		_ = c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// handle executes one inbound frame and returns the ack to send, if any
func (c *Client) handle(ctx context.Context, frame Frame) *Event {
	switch frame.Type {
	case EventPing:
		return &Event{Type: EventPong}

	case EventJoin:
		if _, err := c.session.EnsureActiveMember(ctx, frame.GroupID, c.userID); err != nil {
			return c.ack(frame, err, nil)
		}
		c.hub.Join(c, frame.GroupID)
		return c.ack(frame, nil, nil)

	case EventLeave:
		c.hub.Leave(c, frame.GroupID)
		return c.ack(frame, nil, nil)

	case EventSend:
		message, err := c.session.CreateMessage(ctx, frame.GroupID, c.userID, frame.Body, frame.ReplyToID)
		if err != nil {
			return c.ack(frame, err, nil)
		}
		return c.ack(frame, nil, message)

	default:
		return c.ack(frame, apperr.Validation("unknown event type %q", frame.Type), nil)
	}
}

func (c *Client) ack(frame Frame, err error, message interface{}) *Event {
	ack := Ack{RequestID: frame.RequestID, Status: "ok", Message: message}
	if err != nil {
		ack.Status = "error"
		ack.Error = err.Error()
		ack.Kind = apperr.KindOf(err).String()
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			ack.Error = appErr.Message
		}
	}
	return &Event{Type: EventAck, Data: ack}
}

// readPump pumps frames from the websocket connection to the session
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected websocket close", zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.enqueue(Event{Type: EventAck, Data: Ack{Status: "error", Error: "malformed frame", Kind: apperr.KindValidation.String()}})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		reply := c.handle(ctx, frame)
		cancel()

		if reply != nil {
			c.enqueue(*reply)
		}
	}
}

// enqueue offers an event without blocking the read loop
func (c *Client) enqueue(event Event) {
	c.hub.sendTo(c, event)
}

// writePump pumps events from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug("Failed to write websocket event", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
