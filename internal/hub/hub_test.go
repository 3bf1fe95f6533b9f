package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"nhooyr.io/websocket"
)

const testToken = "test-token"

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	h := New(testToken)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return h, fmt.Sprintf("ws://%s/ws?token=%s", server.URL[len("http://"):], testToken)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

// readUntil skips messages until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readMessage(t, conn)
		if msg["type"] == typ {
			return msg
		}
	}
	t.Fatalf("no %q message received", typ)
	return nil
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	data, _ := json.Marshal(msg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitForClientCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", h.ClientCount(), want)
}

func TestTokenAuthentication(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"valid token", testToken, http.StatusSwitchingProtocols},
		{"invalid token", "wrong-token", http.StatusUnauthorized},
		{"missing token", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(testToken)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go h.Run(ctx)

			server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
			defer server.Close()

			url := fmt.Sprintf("ws://%s/ws", server.URL[len("http://"):])
			if tt.token != "" {
				url += "?token=" + tt.token
			}
			dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
			conn, resp, err := websocket.Dial(dialCtx, url, nil)
			dialCancel()

			if resp != nil && resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusSwitchingProtocols && err != nil {
				t.Fatalf("expected connection, got %v", err)
			}
			if conn != nil {
				conn.Close(websocket.StatusNormalClosure, "")
			}
		})
	}
}

func TestNewClientReceivesSnapshot(t *testing.T) {
	h, url := startHub(t)
	h.BroadcastStatus(StatusMessage{State: "connected", Icon: "check", Text: "Connected to Claw"})
	h.BroadcastSessions([]SessionInfo{{Role: "primary", TerminalID: "t1", Label: "Claw"}})

	conn := dial(t, url)

	status := readMessage(t, conn)
	if status["type"] != TypeStatus || status["state"] != "connected" {
		t.Fatalf("first message = %v, want connected status", status)
	}
	sessions := readMessage(t, conn)
	want := map[string]any{
		"type": TypeSessions,
		"list": []any{map[string]any{"role": "primary", "terminal_id": "t1", "label": "Claw"}},
	}
	if diff := cmp.Diff(want, sessions); diff != "" {
		t.Errorf("sessions snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestClientLifecycle(t *testing.T) {
	h, url := startHub(t)
	if h.ClientCount() != 0 {
		t.Fatalf("expected no clients, got %d", h.ClientCount())
	}
	conn := dial(t, url)
	waitForClientCount(t, h, 1)
	conn.Close(websocket.StatusNormalClosure, "")
	waitForClientCount(t, h, 0)
}

func TestPairingSubmitRepliesWithResult(t *testing.T) {
	h, url := startHub(t)

	var mu sync.Mutex
	var got []string
	h.SetOnPairing(func(app, code string) error {
		mu.Lock()
		got = append(got, app+":"+code)
		mu.Unlock()
		if code == "bad" {
			return errors.New("invalid pairing code")
		}
		return nil
	})

	conn := dial(t, url)
	readUntil(t, conn, TypeSessions)

	writeMessage(t, conn, ClientMessage{Type: TypePairingSubmit, App: "telegram", Code: "AB12"})
	ok := readUntil(t, conn, TypePairingResult)
	if ok["ok"] != true {
		t.Errorf("pairing result = %v, want ok", ok)
	}

	writeMessage(t, conn, ClientMessage{Type: TypePairingSubmit, App: "telegram", Code: "bad"})
	fail := readUntil(t, conn, TypePairingResult)
	if fail["ok"] == true || fail["error"] != "invalid pairing code" {
		t.Errorf("pairing result = %v, want error", fail)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"telegram:AB12", "telegram:bad"}, got); diff != "" {
		t.Errorf("pairing calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPairingWithoutHandler(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)
	writeMessage(t, conn, ClientMessage{Type: TypePairingSubmit, App: "slack", Code: "X"})
	res := readUntil(t, conn, TypePairingResult)
	if res["ok"] == true {
		t.Errorf("pairing without handler reported ok")
	}
}

func TestRunErrorIsReported(t *testing.T) {
	h, url := startHub(t)
	h.SetOnRun(func(name string, args []string) error {
		return fmt.Errorf("unknown command %q", name)
	})
	conn := dial(t, url)
	writeMessage(t, conn, ClientMessage{Type: TypeRun, Command: "dance"})
	res := readUntil(t, conn, TypeError)
	if res["message"] != `unknown command "dance"` {
		t.Errorf("error message = %v", res["message"])
	}
}

func TestUnknownMessageType(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)
	writeMessage(t, conn, ClientMessage{Type: "bogus"})
	res := readUntil(t, conn, TypeError)
	if res["message"] != "unknown message type: bogus" {
		t.Errorf("error message = %v", res["message"])
	}
}

func TestTerminalInputAndResizeRouting(t *testing.T) {
	h, url := startHub(t)

	inputs := make(chan string, 1)
	resizes := make(chan string, 1)
	h.SetOnTerminalInput(func(id, keys string) { inputs <- id + ":" + keys })
	h.SetOnTerminalResize(func(id string, cols, rows int) { resizes <- fmt.Sprintf("%s:%dx%d", id, cols, rows) })

	conn := dial(t, url)
	writeMessage(t, conn, ClientMessage{Type: TypeTerminalInput, TerminalID: "t1", Keys: "q"})
	writeMessage(t, conn, ClientMessage{Type: TypeTerminalResize, TerminalID: "t1", Cols: 100, Rows: 40})

	select {
	case got := <-inputs:
		if got != "t1:q" {
			t.Errorf("input = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("terminal input not routed")
	}
	select {
	case got := <-resizes:
		if got != "t1:100x40" {
			t.Errorf("resize = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("terminal resize not routed")
	}
}

func TestShowAndNotificationFanOut(t *testing.T) {
	h, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	waitForClientCount(t, h, 2)

	h.BroadcastShow("t1", "Claw", true)
	h.Notify("info", "Claw Status Command Sent")

	for i, conn := range []*websocket.Conn{a, b} {
		show := readUntil(t, conn, TypeTerminalShow)
		if show["terminal_id"] != "t1" || show["preserve_focus"] != true {
			t.Errorf("client %d show = %v", i, show)
		}
		note := readUntil(t, conn, TypeNotification)
		if note["text"] != "Claw Status Command Sent" || note["level"] != "info" {
			t.Errorf("client %d notification = %v", i, note)
		}
	}
}

func TestOutputRespectsSubscription(t *testing.T) {
	h, url := startHub(t)

	conn := dial(t, url)
	readUntil(t, conn, TypeSessions)
	writeMessage(t, conn, ClientMessage{Type: TypeSubscribe, TerminalID: "t2"})
	// Give the read pump time to apply the subscription.
	time.Sleep(100 * time.Millisecond)

	h.BroadcastOutput("t1", "ignored")
	h.BroadcastOutput("t2", "wanted")

	msg := readUntil(t, conn, TypeTerminalOutput)
	if msg["terminal_id"] != "t2" || msg["text"] != "wanted" {
		t.Errorf("output = %v, want t2 output only", msg)
	}
}

func TestRateLimiterBatchesPerTerminal(t *testing.T) {
	var mu sync.Mutex
	flushed := map[string]string{}
	rl := NewRateLimiter(time.Hour, func(id string, msg OutputMessage) {
		mu.Lock()
		flushed[id] += msg.Text
		mu.Unlock()
	})

	rl.Add(OutputMessage{TerminalID: "t1", Text: "open", Ts: 1})
	rl.Add(OutputMessage{TerminalID: "t1", Text: "claw", Ts: 2})
	rl.Add(OutputMessage{TerminalID: "t2", Text: "tui", Ts: 3})
	rl.FlushAll()

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(map[string]string{"t1": "openclaw", "t2": "tui"}, flushed); diff != "" {
		t.Errorf("flushed mismatch (-want +got):\n%s", diff)
	}
}

func TestRateLimiterFlushesAfterInterval(t *testing.T) {
	done := make(chan OutputMessage, 1)
	rl := NewRateLimiter(20*time.Millisecond, func(_ string, msg OutputMessage) { done <- msg })
	rl.Add(OutputMessage{TerminalID: "t1", Text: "x", Ts: 7})

	select {
	case msg := <-done:
		if msg.Type != TypeTerminalOutput || msg.Text != "x" || msg.Ts != 7 {
			t.Errorf("flushed = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch not flushed")
	}
}

func TestOutputIsBatchedPerTerminal(t *testing.T) {
	h, url := startHub(t)

	conn := dial(t, url)
	readUntil(t, conn, TypeSessions)
	writeMessage(t, conn, ClientMessage{Type: TypeSubscribe, TerminalID: "t1"})
	time.Sleep(100 * time.Millisecond)

	h.BroadcastOutput("t1", "open")
	h.BroadcastOutput("t1", "claw")

	msg := readUntil(t, conn, TypeTerminalOutput)
	if msg["terminal_id"] != "t1" || msg["text"] != "openclaw" {
		t.Errorf("output = %v, want one batched message", msg)
	}
}
