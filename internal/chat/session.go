// Package chat implements the streaming conversation session: the state
// machine that assembles token fragments into one in-flight message, the
// outbound request correlator, and the fallback to the REST path.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/agentchat/internal/errors"
	"github.com/diogo/agentchat/internal/models"
	"github.com/diogo/agentchat/internal/socket"
)

// Socket is the persistent-channel seam the session drives
type Socket interface {
	Emit(event string, payload any) error
	IsConnected() bool
	Router() *socket.Router
}

// Fallback is the non-streaming request/response collaborator
type Fallback interface {
	Chat(ctx context.Context, messages []models.ChatMessage, model string) (*models.ChatResponse, error)
}

// errorBubblePrefix prefixes the separate bot message appended when an
// exchange fails
const errorBubblePrefix = "Sorry, I encountered an error: "

// Session owns one conversation and at most one in-flight exchange.
//
// Invariant: at most one message has Streaming=true at any instant; token
// and image events are attributed to that message while it exists. Inbound
// events run on the socket read loop and are serialized by s.mu, so
// handler execution preserves transport order.
type Session struct {
	sock     Socket
	fallback Fallback
	log      *slog.Logger

	mu   sync.Mutex
	conv *Conversation

	model        string
	streaming    bool
	stallTimeout time.Duration

	// Exchange state; zero values mean Idle
	exchangeID string
	current    *models.Message
	watchdog   *time.Timer
	lastError  string

	onUpdate    func()
	onHeartbeat func(status string)
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithModel sets the default model identifier
func WithModel(model string) SessionOption {
	return func(s *Session) { s.model = model }
}

// WithStreaming toggles the streaming path; when disabled every request
// uses the fallback collaborator
func WithStreaming(enabled bool) SessionOption {
	return func(s *Session) { s.streaming = enabled }
}

// WithStallTimeout arms a watchdog that force-fails an exchange receiving
// no event for d. Zero disables it.
func WithStallTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.stallTimeout = d }
}

// WithSessionLogger sets the logger
func WithSessionLogger(log *slog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithOnUpdate registers the collaborator callback fired after every
// conversation mutation. It runs outside the session lock.
func WithOnUpdate(fn func()) SessionOption {
	return func(s *Session) { s.onUpdate = fn }
}

// WithOnHeartbeat registers the liveness callback; the backend emits
// heartbeats while a long generation is still in progress
func WithOnHeartbeat(fn func(status string)) SessionOption {
	return func(s *Session) { s.onHeartbeat = fn }
}

// NewSession creates a session over the given socket and fallback client
func NewSession(sock Socket, fallback Fallback, opts ...SessionOption) *Session {
	s := &Session{
		sock:      sock,
		fallback:  fallback,
		log:       slog.Default(),
		conv:      NewConversation(),
		model:     models.DefaultModel.Name,
		streaming: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind registers the session's inbound event handlers on the socket's
// router. Registration replaces any earlier handler per event, so calling
// Bind repeatedly (e.g. after a manual reconnect) is safe and never causes
// duplicate deliveries.
func (s *Session) Bind() {
	r := s.sock.Router()
	r.Register(models.EventChatStart, s.handleStart)
	r.Register(models.EventChatToken, s.handleToken)
	r.Register(models.EventChatComplete, s.handleComplete)
	r.Register(models.EventChatError, s.handleError)
	r.Register(models.EventChatImage, s.handleImage)
	r.Register(models.EventHeartbeat, s.handleHeartbeat)
}

// Messages returns a point-in-time copy of the conversation
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Snapshot()
}

// InFlight reports whether an exchange is currently streaming
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// LastError returns the most recent exchange failure message, if any
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// ClearError resets the error banner state
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// Model returns the default model identifier
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel changes the default model identifier
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
}

// SendText submits one text-only user turn. With the channel up and
// streaming enabled it opens a streaming exchange; otherwise it runs the
// fallback call. Transport unavailability is always recovered via the
// fallback, never surfaced to the caller.
func (s *Session) SendText(ctx context.Context, text, model string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apierrors.ErrEmptyMessage
	}
	if model == "" {
		model = s.Model()
	}

	s.appendAndNotify(models.NewUserMessage(text, nil))

	wire := []models.ChatMessage{{Role: "user", Content: text}}

	if s.streamingAvailable() {
		payload := models.ChatRequest{Messages: wire, Model: model}
		err := s.openExchange(models.EventChatRequest, &payload.ExchangeID, &payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, apierrors.ErrExchangeActive) {
			return err
		}
		s.log.Debug("streaming emit failed, using fallback")
	}

	return s.runFallback(ctx, wire, model)
}

// SendMultimodal submits a user turn with attachments. Every attachment
// must already have a durable RemoteURL; image-kind attachments become
// model-consumable inputs, other kinds attach for display only. Empty text
// is replaced with a default instruction so the model never receives an
// empty prompt.
func (s *Session) SendMultimodal(ctx context.Context, text string, attachments []models.FileAttachment, model string) error {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return apierrors.ErrEmptyMessage
	}
	for _, att := range attachments {
		if att.RemoteURL == "" {
			return apierrors.NewUploadError(att.DisplayName, "attachment has no resolved URL", nil)
		}
	}
	if text == "" {
		text = models.DefaultImagePrompt
	}
	if model == "" {
		model = models.DefaultVisionModel.Name
	}

	s.appendAndNotify(models.NewUserMessage(text, attachments))

	// Image entries precede the text entry in the content array
	var content []models.ContentPart
	var fileURLs []string
	for _, att := range attachments {
		if att.Kind != models.AttachmentImage {
			continue
		}
		content = append(content, models.ImagePart(att.RemoteURL))
		fileURLs = append(fileURLs, att.RemoteURL)
	}
	content = append(content, models.TextPart(text))

	if s.streamingAvailable() {
		payload := models.MultimodalChatRequest{
			Messages: []models.MultimodalMessage{{Role: "user", Content: content}},
			FileURLs: fileURLs,
			Model:    model,
		}
		err := s.openExchange(models.EventMultimodalChatRequest, &payload.ExchangeID, &payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, apierrors.ErrExchangeActive) {
			return err
		}
		s.log.Debug("multimodal streaming emit failed, using fallback")
	}

	wire := []models.ChatMessage{{Role: "user", Content: text}}
	return s.runFallback(ctx, wire, model)
}

func (s *Session) streamingAvailable() bool {
	s.mu.Lock()
	enabled := s.streaming
	s.mu.Unlock()
	return enabled && s.sock.IsConnected()
}

// openExchange creates the streaming placeholder, then emits the request.
// The placeholder exists before the emit so a fast first token cannot race
// past it; on emit failure the placeholder is rolled back and the error
// returned for fallback handling.
//
// exchangeID points into the payload so the identifier reaches the wire;
// the same value correlates inbound terminal events.
func (s *Session) openExchange(event string, exchangeID *string, payload any) error {
	s.mu.Lock()
	if s.current != nil {
		// Single-flight is the caller's contract; refuse rather than
		// ever allowing two streaming messages
		s.mu.Unlock()
		return apierrors.ErrExchangeActive
	}
	id := uuid.NewString()
	*exchangeID = id
	placeholder := models.NewStreamingPlaceholder()
	s.exchangeID = id
	s.current = placeholder
	s.conv.Append(placeholder)
	s.armWatchdogLocked()
	s.mu.Unlock()
	s.notifyUpdate()

	if err := s.sock.Emit(event, payload); err != nil {
		s.mu.Lock()
		s.rollbackPlaceholderLocked(placeholder)
		s.mu.Unlock()
		s.notifyUpdate()
		return err
	}
	return nil
}

// rollbackPlaceholderLocked removes a placeholder whose request never made
// it onto the wire
func (s *Session) rollbackPlaceholderLocked(placeholder *models.Message) {
	s.stopWatchdogLocked()
	s.exchangeID = ""
	s.current = nil
	for i := len(s.conv.messages) - 1; i >= 0; i-- {
		if s.conv.messages[i] == placeholder {
			s.conv.messages = append(s.conv.messages[:i], s.conv.messages[i+1:]...)
			break
		}
	}
}

// runFallback performs the plain request/response call and appends exactly
// one complete bot message; no streaming placeholder is ever created on
// this path
func (s *Session) runFallback(ctx context.Context, wire []models.ChatMessage, model string) error {
	resp, err := s.fallback.Chat(ctx, wire, model)
	if err != nil {
		s.log.Warn("fallback request failed", "error", err)
		s.failWithMessage(err.Error())
		return nil
	}

	s.mu.Lock()
	s.conv.Append(models.NewBotMessage(resp.Response, resp.Model))
	s.mu.Unlock()
	s.notifyUpdate()
	return nil
}

// ---- inbound event handlers ----

// matchesExchangeLocked applies the correlation rule: an event carrying an
// exchangeId must match the in-flight exchange; events without one are
// attributed to the current exchange for compatibility with backends that
// do not echo the identifier.
func (s *Session) matchesExchangeLocked(data gjson.Result) bool {
	id := data.Get("exchangeId").String()
	return id == "" || id == s.exchangeID
}

func (s *Session) handleStart(data gjson.Result) {
	s.mu.Lock()
	if s.current != nil && s.matchesExchangeLocked(data) {
		s.armWatchdogLocked()
	}
	s.mu.Unlock()
	s.log.Debug("generation started")
}

func (s *Session) handleToken(data gjson.Result) {
	token := data.Get("token").String()
	if token == "" {
		return
	}

	s.mu.Lock()
	if s.current == nil || !s.matchesExchangeLocked(data) {
		// Terminal event already landed; a late token must not resurrect
		// or corrupt a finalized message
		s.mu.Unlock()
		s.log.Debug("discarding stale token")
		return
	}
	s.current.Text += token
	s.armWatchdogLocked()
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) handleComplete(data gjson.Result) {
	s.mu.Lock()
	if s.current == nil || !s.matchesExchangeLocked(data) {
		s.mu.Unlock()
		return
	}
	s.current.Streaming = false
	s.current.Model = data.Get("model").String()
	s.finishExchangeLocked()
	s.mu.Unlock()
	s.notifyUpdate()
}

// handleError ends the exchange on a backend failure. The partial message
// is kept with whatever text arrived; a separate error bubble is appended.
func (s *Session) handleError(data gjson.Result) {
	message := data.Get("message").String()
	if message == "" {
		message = "unknown error"
	}

	s.mu.Lock()
	if !s.matchesExchangeLocked(data) {
		s.mu.Unlock()
		return
	}
	if s.current != nil {
		s.current.Streaming = false
		s.finishExchangeLocked()
	}
	s.lastError = message
	s.conv.Append(models.NewBotMessage(errorBubblePrefix+message, ""))
	s.mu.Unlock()
	s.notifyUpdate()
}

// handleImage attaches a generated file to the streaming message, or to
// the most recently completed bot message when it arrives late
func (s *Session) handleImage(data gjson.Result) {
	url := data.Get("url").String()
	if url == "" {
		s.log.Warn("chat_image event without url")
		return
	}

	s.mu.Lock()
	target := s.current
	if target == nil {
		target = s.conv.LastBot()
	}
	if target == nil {
		s.mu.Unlock()
		s.log.Debug("no message to attach image to", "url", url)
		return
	}
	target.Attachments = append(target.Attachments, models.FileAttachment{
		ID:          uuid.NewString(),
		Kind:        models.AttachmentImage,
		DisplayName: path.Base(url),
		RemoteURL:   url,
	})
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) handleHeartbeat(data gjson.Result) {
	s.mu.Lock()
	if s.current != nil {
		s.armWatchdogLocked()
	}
	fn := s.onHeartbeat
	s.mu.Unlock()

	if fn != nil {
		fn(data.Get("status").String())
	}
}

// ---- exchange bookkeeping ----

// finishExchangeLocked returns the tracked exchange to Idle
func (s *Session) finishExchangeLocked() {
	s.stopWatchdogLocked()
	s.exchangeID = ""
	s.current = nil
}

// armWatchdogLocked (re)starts the stall timer for the current exchange
func (s *Session) armWatchdogLocked() {
	if s.stallTimeout <= 0 {
		return
	}
	s.stopWatchdogLocked()
	id := s.exchangeID
	s.watchdog = time.AfterFunc(s.stallTimeout, func() { s.stallExchange(id) })
}

func (s *Session) stopWatchdogLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

// stallExchange force-fails an exchange whose terminal event never
// arrived, so no message stays Streaming forever
func (s *Session) stallExchange(exchangeID string) {
	s.mu.Lock()
	if s.current == nil || s.exchangeID != exchangeID {
		s.mu.Unlock()
		return
	}
	s.log.Warn("exchange stalled, force-failing", "exchange", exchangeID)
	s.current.Streaming = false
	s.finishExchangeLocked()
	s.lastError = "response timed out"
	s.conv.Append(models.NewBotMessage(errorBubblePrefix+"response timed out", ""))
	s.mu.Unlock()
	s.notifyUpdate()
}

// failWithMessage records a failure that happened outside the streaming
// path (fallback errors) as a visible bot bubble plus banner state
func (s *Session) failWithMessage(message string) {
	s.mu.Lock()
	s.lastError = message
	s.conv.Append(models.NewBotMessage(errorBubblePrefix+message, ""))
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) appendAndNotify(m *models.Message) {
	s.mu.Lock()
	s.conv.Append(m)
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) notifyUpdate() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}
