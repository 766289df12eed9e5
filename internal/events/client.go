package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout    = 10 * time.Second
	keepAlive       = 30 * time.Second
	maxInboundBytes = 4 * 1024 // clients only send status requests
	outboxSize      = 64
)

// Client is one websocket subscriber to an editor's session events.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	log      *slog.Logger
	EditorID string
	ClientID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, editorID, clientID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		log:      slog.With("editor", editorID, "client", clientID),
		EditorID: editorID,
		ClientID: clientID,
		send:     make(chan []byte, outboxSize),
	}
}

// Serve runs the connection until either side closes it. Outbound events
// are written on a second goroutine; inbound requests are handled here.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		c.writeLoop(ctx)
		cancel()
	}()
	c.readLoop(ctx)

	c.hub.Unregister(c)
	c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(maxInboundBytes)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if !expectedClose(err) && ctx.Err() == nil {
				c.log.Debug("websocket read", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(errorMessage(c.EditorID, "malformed message"))
			continue
		}
		// the connection decides who is asking and about which editor
		msg.ClientID, msg.EditorID = c.ClientID, c.EditorID
		c.hub.handleMessage(c, &msg)
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				// hub dropped us; let the peer know why
				c.conn.Close(websocket.StatusGoingAway, "editor closed")
				return
			}
			if err := c.write(ctx, data); err != nil {
				c.log.Debug("websocket write", "error", err)
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}

func expectedClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}

// Send queues msg without blocking. Messages to a full or closed client
// are dropped.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("encode message", "type", msg.Type, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("outbox full, dropping message", "type", msg.Type)
	}
}

// close ends the write loop once the queued messages are written.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
