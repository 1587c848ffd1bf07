package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/agentchat/internal/errors"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fakeBackend is a minimal socket server for connection tests
type fakeBackend struct {
	t  *testing.T
	mu sync.Mutex

	conns    []*websocket.Conn
	received []envelope

	// dropFirst closes the first accepted connection immediately,
	// simulating an involuntary server-side drop
	dropFirst bool
	accepted  int
}

func (b *fakeBackend) handler(w http.ResponseWriter, r *http.Request) {
	ws, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.accepted++
	drop := b.dropFirst && b.accepted == 1
	b.conns = append(b.conns, ws)
	b.mu.Unlock()

	if drop {
		_ = ws.Close()
		return
	}

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		b.mu.Lock()
		b.received = append(b.received, env)
		b.mu.Unlock()
	}
}

func (b *fakeBackend) push(t *testing.T, event string, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		t.Fatal("no connection to push to")
	}
	ws := b.conns[len(b.conns)-1]
	frame := `{"event":"` + event + `","data":` + data + `}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("push failed: %v", err)
	}
}

func (b *fakeBackend) lastReceived() (envelope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.received) == 0 {
		return envelope{}, false
	}
	return b.received[len(b.received)-1], true
}

func newTestConn(serverURL string, opts ...Option) *Conn {
	base := "http" + strings.TrimPrefix(serverURL, "http")
	all := append([]Option{
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
		WithHandshakeTimeout(2 * time.Second),
	}, opts...)
	return NewConn(base, all...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestConn_ConnectAndEmit(t *testing.T) {
	backend := &fakeBackend{t: t}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	conn := newTestConn(srv.URL)
	defer conn.Disconnect()

	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	if !conn.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}

	// Idempotent while connected
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() failed: %v", err)
	}

	payload := map[string]any{"messages": []map[string]string{{"role": "user", "content": "hello"}}}
	if err := conn.Emit("chat_request", payload); err != nil {
		t.Fatalf("Emit() failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		env, ok := backend.lastReceived()
		return ok && env.Event == "chat_request"
	}, "server to receive chat_request")

	env, _ := backend.lastReceived()
	if !gjson.GetBytes(env.Data, "messages.0.content").Exists() {
		t.Errorf("emitted payload lost its data: %s", env.Data)
	}
}

func TestConn_EmitWhileDisconnected(t *testing.T) {
	conn := NewConn("http://localhost:1")

	err := conn.Emit("chat_request", map[string]string{})
	if err == nil {
		t.Fatal("Emit() should fail while disconnected")
	}
	if !errors.Is(err, apierrors.ErrNotConnected) {
		t.Errorf("Emit() error = %v, want ErrNotConnected semantics", err)
	}
}

func TestConn_InboundDispatchOrder(t *testing.T) {
	backend := &fakeBackend{t: t}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	conn := newTestConn(srv.URL)
	defer conn.Disconnect()

	var mu sync.Mutex
	var tokens []string
	conn.Router().Register("chat_token", func(data gjson.Result) {
		mu.Lock()
		tokens = append(tokens, data.Get("token").String())
		mu.Unlock()
	})

	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	backend.push(t, "chat_token", `{"token":"a"}`)
	backend.push(t, "heartbeat", `{"status":"working"}`)
	backend.push(t, "chat_token", `{"token":"b"}`)
	backend.push(t, "chat_token", `{"token":"c"}`)

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tokens) == 3
	}, "all tokens to arrive")

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(tokens, ""); got != "abc" {
		t.Errorf("tokens assembled as %q, want %q", got, "abc")
	}
}

func TestConn_DisconnectClearsRegistrations(t *testing.T) {
	backend := &fakeBackend{t: t}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	conn := newTestConn(srv.URL)
	conn.Router().Register("chat_token", func(gjson.Result) {})

	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	conn.Disconnect()

	waitFor(t, 2*time.Second, func() bool {
		return conn.Phase() == Disconnected
	}, "phase to reach Disconnected")

	if conn.Router().Registered("chat_token") {
		t.Error("registrations must not survive a manual disconnect")
	}

	// Idempotent
	conn.Disconnect()
	if conn.Phase() != Disconnected {
		t.Errorf("Phase() = %v after repeated Disconnect, want Disconnected", conn.Phase())
	}
}

func TestConn_AutoReconnectAfterDrop(t *testing.T) {
	backend := &fakeBackend{t: t, dropFirst: true}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	conn := newTestConn(srv.URL)
	defer conn.Disconnect()

	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	// First connection is dropped server-side; the manager must come back
	// on its own and reset the attempt counter.
	waitFor(t, 5*time.Second, func() bool {
		backend.mu.Lock()
		accepted := backend.accepted
		backend.mu.Unlock()
		return accepted >= 2 && conn.IsConnected()
	}, "automatic reconnect")

	if got := conn.ReconnectAttempt(); got != 0 {
		t.Errorf("ReconnectAttempt() = %d after successful reconnect, want 0", got)
	}

	// Registrations survive an automatic reconnect (only manual
	// disconnects clear them)
	conn.Router().Register("chat_token", func(gjson.Result) {})
	if !conn.Router().Registered("chat_token") {
		t.Error("registration lost")
	}
}

func TestConn_ReconnectBackoffBound(t *testing.T) {
	backend := &fakeBackend{t: t}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))

	conn := newTestConn(srv.URL, WithMaxReconnectAttempts(5), WithHandshakeTimeout(200*time.Millisecond))

	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	// Kill the server; every redial now fails
	srv.CloseClientConnections()
	srv.Close()

	waitFor(t, 10*time.Second, func() bool {
		return conn.Phase() == Failed
	}, "reconnect exhaustion")

	if got := conn.ReconnectAttempt(); got != 5 {
		t.Errorf("ReconnectAttempt() = %d at exhaustion, want 5", got)
	}

	// No further automatic attempts once Failed
	time.Sleep(100 * time.Millisecond)
	if conn.Phase() != Failed {
		t.Errorf("Phase() = %v, want Failed to persist", conn.Phase())
	}

	// Manual Connect is still honored after exhaustion (it fails against
	// the dead server but is not refused)
	err := conn.Connect(context.Background())
	if err == nil {
		t.Error("Connect() against a dead server should fail")
	}
	if conn.Phase() != Disconnected {
		t.Errorf("Phase() = %v after failed manual Connect, want Disconnected", conn.Phase())
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws"},
		{"https://chat.example.com", "wss://chat.example.com/ws"},
		{"http://localhost:8000/", "ws://localhost:8000/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			if got := socketURL(tt.base); got != tt.want {
				t.Errorf("socketURL(%q) = %q, want %q", tt.base, got, tt.want)
			}
		})
	}
}
