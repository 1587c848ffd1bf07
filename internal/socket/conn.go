// Package socket owns the persistent channel to the Agent Chat backend:
// connection lifecycle, reconnection with backoff, and routing of named
// inbound events.
package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/agentchat/internal/errors"
	"github.com/diogo/agentchat/internal/models"
)

// Phase describes the connection lifecycle state
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	Reconnecting
	// Failed means automatic reconnection is exhausted; a manual Connect
	// is required to leave this state.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Timeouts are generous: backend generation latency can run into tens of
// seconds and must not look like a dead connection.
const (
	defaultHandshakeTimeout = 45 * time.Second
	defaultWriteWait        = 10 * time.Second
	defaultPongWait         = 60 * time.Second

	defaultBackoffStep = time.Second
	defaultBackoffCap  = 5 * time.Second
	defaultMaxAttempts = 5

	writeBufferDepth = 32
)

// envelope is the JSON frame carried on the websocket
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is the connection manager. It exclusively owns the transport handle
// and the phase; collaborators observe both through methods and the
// OnPhaseChange callback, never by mutating them directly.
type Conn struct {
	url string
	log *slog.Logger

	handshakeTimeout time.Duration
	writeWait        time.Duration
	pongWait         time.Duration
	backoffStep      time.Duration
	backoffCap       time.Duration
	maxAttempts      int

	router *Router

	mu             sync.Mutex
	phase          Phase
	ws             *websocket.Conn
	writeCh        chan envelope
	stop           chan struct{}
	gen            int
	attempt        int
	manualClose    bool
	reconnectTimer *time.Timer
	phaseListeners []func(Phase)
}

// Option configures the connection
type Option func(*Conn)

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(c *Conn) { c.log = log }
}

// WithHandshakeTimeout overrides the dial handshake timeout
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Conn) { c.handshakeTimeout = d }
}

// WithPongWait overrides the liveness read deadline
func WithPongWait(d time.Duration) Option {
	return func(c *Conn) { c.pongWait = d }
}

// WithBackoff overrides the reconnect backoff curve
func WithBackoff(step, limit time.Duration) Option {
	return func(c *Conn) {
		c.backoffStep = step
		c.backoffCap = limit
	}
}

// WithMaxReconnectAttempts overrides the automatic retry cap
func WithMaxReconnectAttempts(n int) Option {
	return func(c *Conn) { c.maxAttempts = n }
}

// NewConn creates a connection manager for the given base endpoint. The
// websocket path is resolved against it and the scheme rewritten to ws(s).
func NewConn(baseURL string, opts ...Option) *Conn {
	c := &Conn{
		url:              socketURL(baseURL),
		log:              slog.Default(),
		handshakeTimeout: defaultHandshakeTimeout,
		writeWait:        defaultWriteWait,
		pongWait:         defaultPongWait,
		backoffStep:      defaultBackoffStep,
		backoffCap:       defaultBackoffCap,
		maxAttempts:      defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.router = NewRouter(c.log)
	return c
}

// socketURL rewrites an http(s) base into the ws(s) socket endpoint
func socketURL(base string) string {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return base
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + models.PathSocket
	return u.String()
}

// Router exposes the event router bound to this connection
func (c *Conn) Router() *Router {
	return c.router
}

// Phase returns the last-known lifecycle state
func (c *Conn) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// IsConnected reports whether the transport is currently usable
func (c *Conn) IsConnected() bool {
	return c.Phase() == Connected
}

// ReconnectAttempt returns the current retry counter
func (c *Conn) ReconnectAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// OnPhaseChange registers an observer for lifecycle transitions. Observers
// run outside the connection lock but must not block.
func (c *Conn) OnPhaseChange(fn func(Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phaseListeners = append(c.phaseListeners, fn)
}

// setPhaseLocked updates the phase and returns the listeners to notify
// once the lock is released
func (c *Conn) setPhaseLocked(p Phase) []func(Phase) {
	if c.phase == p {
		return nil
	}
	c.phase = p
	return append([]func(Phase){}, c.phaseListeners...)
}

func notify(listeners []func(Phase), p Phase) {
	for _, fn := range listeners {
		fn(p)
	}
}

// Connect establishes the channel. It is idempotent: a no-op while already
// connected or connecting. A manual Connect also clears reconnect
// exhaustion.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == Connected || c.phase == Connecting {
		c.mu.Unlock()
		return nil
	}
	c.manualClose = false
	c.attempt = 0
	c.stopReconnectTimerLocked()
	listeners := c.setPhaseLocked(Connecting)
	c.mu.Unlock()
	notify(listeners, Connecting)

	if err := c.dial(ctx); err != nil {
		c.mu.Lock()
		listeners = c.setPhaseLocked(Disconnected)
		c.mu.Unlock()
		notify(listeners, Disconnected)
		return apierrors.NewSocketError("dial", c.url, err)
	}
	return nil
}

// Disconnect tears the channel down locally and clears all event
// registrations. No automatic reconnection follows a manual disconnect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.manualClose = true
	c.stopReconnectTimerLocked()
	ws := c.ws
	var listeners []func(Phase)
	if ws == nil {
		listeners = c.setPhaseLocked(Disconnected)
	}
	c.mu.Unlock()
	notify(listeners, Disconnected)

	if ws != nil {
		// The read loop observes the close error and finishes teardown
		_ = ws.Close()
	}
	c.router.Clear()
}

// Emit sends one named event over the channel. Fails with ErrNotConnected
// semantics when the channel is down so callers can fail over.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apierrors.NewSocketError("emit", "marshal payload", err)
	}

	c.mu.Lock()
	if c.phase != Connected || c.writeCh == nil {
		c.mu.Unlock()
		return apierrors.NewSocketError("emit", "not connected", nil)
	}
	ch := c.writeCh
	c.mu.Unlock()

	select {
	case ch <- envelope{Event: event, Data: data}:
		return nil
	default:
		return apierrors.NewSocketError("emit", "write buffer full", nil)
	}
}

// dial performs the handshake and, on success, installs the transport and
// starts the read and write loops
func (c *Conn) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.manualClose {
		// Disconnect raced the dial; drop the fresh transport
		c.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	c.ws = ws
	c.gen++
	gen := c.gen
	c.attempt = 0
	c.writeCh = make(chan envelope, writeBufferDepth)
	c.stop = make(chan struct{})
	writeCh, stop := c.writeCh, c.stop
	listeners := c.setPhaseLocked(Connected)
	c.mu.Unlock()
	notify(listeners, Connected)

	_ = ws.SetReadDeadline(time.Now().Add(c.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	go c.writeLoop(ws, writeCh, stop)
	go c.readLoop(ws, gen)

	c.log.Debug("socket connected", "url", c.url)
	return nil
}

// writeLoop serializes all writes to the transport: outbound events and
// keepalive pings
func (c *Conn) writeLoop(ws *websocket.Conn, writeCh chan envelope, stop chan struct{}) {
	pingEvery := c.pongWait * 9 / 10
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case out := <-writeCh:
			if err := ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := ws.WriteJSON(out); err != nil {
				c.log.Warn("socket write failed", "event", out.Event, "error", err)
				_ = ws.Close()
				return
			}
		case <-ticker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = ws.Close()
				return
			}
		}
	}
}

// readLoop consumes frames and dispatches them in arrival order. Dispatch
// is synchronous so downstream handlers observe transport ordering.
func (c *Conn) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.handleDrop(gen, err)
			return
		}

		parsed := gjson.ParseBytes(raw)
		event := parsed.Get("event").String()
		if event == "" {
			c.log.Warn("dropping frame without event name")
			continue
		}
		c.router.Dispatch(event, parsed.Get("data"))
	}
}

// handleDrop reconciles a transport loss with the lifecycle state. A
// manual disconnect ends here; an involuntary drop schedules a bounded
// reconnect.
func (c *Conn) handleDrop(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		// A newer connection superseded this one
		c.mu.Unlock()
		return
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	c.writeCh = nil

	if c.manualClose {
		listeners := c.setPhaseLocked(Disconnected)
		c.mu.Unlock()
		notify(listeners, Disconnected)
		return
	}

	c.log.Warn("socket dropped", "error", cause, "attempt", c.attempt)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer for the next attempt, or
// gives up once the cap is reached. Releases c.mu.
func (c *Conn) scheduleReconnectLocked() {
	if c.attempt >= c.maxAttempts {
		listeners := c.setPhaseLocked(Failed)
		c.mu.Unlock()
		notify(listeners, Failed)
		c.log.Warn("reconnect attempts exhausted", "max", c.maxAttempts)
		return
	}
	c.attempt++
	delay := time.Duration(c.attempt) * c.backoffStep
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	listeners := c.setPhaseLocked(Reconnecting)
	c.reconnectTimer = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()
	notify(listeners, Reconnecting)
	c.log.Debug("reconnect scheduled", "attempt", c.attempt, "delay", delay)
}

// redial runs one reconnect attempt off the backoff timer
func (c *Conn) redial() {
	c.mu.Lock()
	if c.manualClose || c.phase != Reconnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.handshakeTimeout)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		c.mu.Lock()
		c.scheduleReconnectLocked()
	}
}

func (c *Conn) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}
