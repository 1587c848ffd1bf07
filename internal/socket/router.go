package socket

import (
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"
)

// Handler consumes the data payload of one named inbound event. Handlers
// run on the connection's read loop, in transport delivery order.
type Handler func(data gjson.Result)

// Router maps inbound event names to at most one handler each. Registering
// twice for the same name replaces the earlier handler, so collaborators
// that re-run their setup never receive duplicate deliveries.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *slog.Logger
}

// NewRouter creates an empty router
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// Register attaches handler to event, replacing any previous registration
func (r *Router) Register(event string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handler == nil {
		delete(r.handlers, event)
		return
	}
	r.handlers[event] = handler
}

// Clear drops every registration. Called on manual disconnect; a later
// Connect requires callers to re-register.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
}

// Dispatch delivers one event synchronously. Unknown events are logged and
// skipped, never fatal.
func (r *Router) Dispatch(event string, data gjson.Result) {
	r.mu.RLock()
	handler, ok := r.handlers[event]
	r.mu.RUnlock()

	if !ok {
		r.log.Debug("no handler for event", "event", event)
		return
	}
	handler(data)
}

// Registered reports whether event currently has a handler
func (r *Router) Registered(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[event]
	return ok
}
