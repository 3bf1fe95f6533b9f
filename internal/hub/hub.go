package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

const defaultBatchInterval = 100 * time.Millisecond

// Hub fans status, terminal and notification events out to websocket
// clients (the pairing page and any attached viewers) and routes their
// requests back to the application.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan hubBroadcast
	token      string
	mu         sync.RWMutex

	snapMu   sync.RWMutex
	status   *StatusMessage
	sessions []SessionInfo

	handlerMu    sync.RWMutex
	onPairing    func(app, code string) error
	onRun        func(name string, args []string) error
	onTermInput  func(terminalID, keys string)
	onTermResize func(terminalID string, cols, rows int)
	rateLimiter  *RateLimiter
	running      atomic.Bool
}

func New(token string) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan hubBroadcast, 256),
		token:      token,
	}
	h.rateLimiter = NewRateLimiter(defaultBatchInterval, func(_ string, msg OutputMessage) {
		h.sendOutput(msg)
	})
	return h
}

func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.rateLimiter.FlushAll()
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			for _, data := range h.snapshotMessages() {
				select {
				case c.send <- data:
				default:
				}
			}
			go c.writePump(ctx)
			go c.readPump(ctx)
			slog.Info("websocket client connected", "client", c.id, "total", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
			slog.Info("websocket client disconnected", "client", c.id, "total", h.ClientCount())

		case b := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				if !c.wantsTerminal(b.terminalID) {
					continue
				}
				select {
				case c.send <- b.data:
				default:
					slog.Warn("websocket send buffer full, dropping message", "client", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	select {
	case h.register <- newClient(conn, h):
	default:
		slog.Warn("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

// snapshotMessages returns the state a newly connected client starts from.
func (h *Hub) snapshotMessages() [][]byte {
	h.snapMu.RLock()
	defer h.snapMu.RUnlock()

	var out [][]byte
	if h.status != nil {
		if data, err := json.Marshal(h.status); err == nil {
			out = append(out, data)
		}
	}
	list := h.sessions
	if list == nil {
		list = []SessionInfo{}
	}
	if data, err := json.Marshal(SessionsMessage{Type: TypeSessions, List: list}); err == nil {
		out = append(out, data)
	}
	return out
}

func (h *Hub) BroadcastStatus(msg StatusMessage) {
	msg.Type = TypeStatus
	h.snapMu.Lock()
	h.status = &msg
	h.snapMu.Unlock()
	h.publish("", msg)
}

func (h *Hub) BroadcastSessions(list []SessionInfo) {
	if list == nil {
		list = []SessionInfo{}
	}
	h.snapMu.Lock()
	h.sessions = list
	h.snapMu.Unlock()
	h.publish("", SessionsMessage{Type: TypeSessions, List: list})
}

// BroadcastOutput queues terminal output; batches are flushed per terminal.
func (h *Hub) BroadcastOutput(terminalID, text string) {
	msg := OutputMessage{
		Type:       TypeTerminalOutput,
		TerminalID: terminalID,
		Text:       text,
		Ts:         time.Now().UnixMilli(),
	}
	h.rateLimiter.Add(msg)
}

func (h *Hub) sendOutput(msg OutputMessage) {
	h.publish(msg.TerminalID, msg)
}

func (h *Hub) BroadcastShow(terminalID, name string, preserveFocus bool) {
	h.publish("", ShowMessage{
		Type:          TypeTerminalShow,
		TerminalID:    terminalID,
		Name:          name,
		PreserveFocus: preserveFocus,
	})
}

func (h *Hub) Notify(level, text string, actions ...string) {
	h.publish("", NotificationMessage{
		Type:    TypeNotification,
		Level:   level,
		Text:    text,
		Actions: actions,
	})
}

func (h *Hub) BroadcastProgress(msg ProgressMessage) {
	msg.Type = TypeProgress
	h.publish("", msg)
}

func (h *Hub) publish(terminalID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal websocket message", "error", err)
		return
	}
	select {
	case h.broadcast <- hubBroadcast{data: data, terminalID: terminalID}:
	default:
		slog.Warn("broadcast channel full, dropping message")
	}
}

func (h *Hub) SendError(c *Client, message string) {
	h.sendTo(c, ErrorMessage{Type: TypeError, Message: message})
}

func (h *Hub) sendTo(c *Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal websocket message", "error", err)
		return
	}
	// send is closed under h.mu once the client is unregistered.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SetOnPairing(fn func(app, code string) error) {
	h.handlerMu.Lock()
	h.onPairing = fn
	h.handlerMu.Unlock()
}

func (h *Hub) SetOnRun(fn func(name string, args []string) error) {
	h.handlerMu.Lock()
	h.onRun = fn
	h.handlerMu.Unlock()
}

func (h *Hub) SetOnTerminalInput(fn func(terminalID, keys string)) {
	h.handlerMu.Lock()
	h.onTermInput = fn
	h.handlerMu.Unlock()
}

func (h *Hub) SetOnTerminalResize(fn func(terminalID string, cols, rows int)) {
	h.handlerMu.Lock()
	h.onTermResize = fn
	h.handlerMu.Unlock()
}

func (h *Hub) handlePairing(c *Client, app, code string) {
	h.handlerMu.RLock()
	fn := h.onPairing
	h.handlerMu.RUnlock()

	res := PairingResultMessage{Type: TypePairingResult, OK: true}
	if fn == nil {
		res = PairingResultMessage{Type: TypePairingResult, Error: "pairing is not available"}
	} else if err := fn(app, code); err != nil {
		res = PairingResultMessage{Type: TypePairingResult, Error: err.Error()}
	}
	h.sendTo(c, res)
}

func (h *Hub) handleRun(c *Client, name string, args []string) {
	h.handlerMu.RLock()
	fn := h.onRun
	h.handlerMu.RUnlock()

	if fn == nil {
		h.SendError(c, "commands are not available")
		return
	}
	if err := fn(name, args); err != nil {
		h.SendError(c, err.Error())
	}
}

func (h *Hub) handleTerminalInput(terminalID, keys string) {
	h.handlerMu.RLock()
	fn := h.onTermInput
	h.handlerMu.RUnlock()
	if fn != nil {
		fn(terminalID, keys)
	}
}

func (h *Hub) handleTerminalResize(terminalID string, cols, rows int) {
	h.handlerMu.RLock()
	fn := h.onTermResize
	h.handlerMu.RUnlock()
	if fn != nil {
		fn(terminalID, cols, rows)
	}
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.running.Load() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		slog.Warn("unregister channel full, forcing close", "client", c.id)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
