package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

type Client struct {
	id            string
	conn          *websocket.Conn
	send          chan []byte
	hub           *Hub
	subMu         sync.RWMutex
	subscribeAll  bool
	subscriptions map[string]struct{}
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:            uuid.NewString(),
		conn:          conn,
		send:          make(chan []byte, 256),
		hub:           hub,
		subscribeAll:  true,
		subscriptions: make(map[string]struct{}),
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(32768)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				slog.Debug("websocket read ended", "client", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid websocket message", "client", c.id, "error", err)
			c.hub.SendError(c, "invalid message format")
			continue
		}

		switch msg.Type {
		case TypePairingSubmit:
			c.hub.handlePairing(c, msg.App, msg.Code)
		case TypeRun:
			c.hub.handleRun(c, msg.Command, msg.Args)
		case TypeTerminalInput:
			if msg.TerminalID != "" && msg.Keys != "" {
				c.hub.handleTerminalInput(msg.TerminalID, msg.Keys)
			}
		case TypeTerminalResize:
			if msg.TerminalID != "" && msg.Cols > 0 && msg.Rows > 0 {
				c.hub.handleTerminalResize(msg.TerminalID, msg.Cols, msg.Rows)
			}
		case TypeSubscribe:
			c.subscribe(msg.TerminalID)
		default:
			c.hub.SendError(c, "unknown message type: "+msg.Type)
		}
	}
}

// subscribe narrows terminal output to the given terminal. An empty id
// restores the default of receiving everything.
func (c *Client) subscribe(terminalID string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if terminalID == "" {
		c.subscribeAll = true
		c.subscriptions = make(map[string]struct{})
		return
	}
	c.subscribeAll = false
	c.subscriptions[terminalID] = struct{}{}
}

func (c *Client) wantsTerminal(terminalID string) bool {
	if terminalID == "" {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if c.subscribeAll {
		return true
	}
	_, ok := c.subscriptions[terminalID]
	return ok
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}
