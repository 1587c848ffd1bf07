package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// AttachmentKind classifies a file attachment
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentOther    AttachmentKind = "other"
)

// FileAttachment references binary content associated with a message.
// RemoteURL is the durable upload location; PreviewURL may point at a
// local-only resource until the upload resolves.
type FileAttachment struct {
	ID          string
	Kind        AttachmentKind
	DisplayName string
	RemoteURL   string
	PreviewURL  string
}

// Message is one turn in the conversation.
//
// Text grows append-only while Streaming is true and is frozen once a
// terminal event lands. Attachments may still grow afterwards: the backend
// can deliver generated images after the completion event.
type Message struct {
	ID          string
	Sender      Sender
	Text        string
	Timestamp   time.Time
	Streaming   bool
	Model       string
	Attachments []FileAttachment
}

// NewUserMessage creates a finished user turn
func NewUserMessage(text string, attachments []FileAttachment) *Message {
	return &Message{
		ID:          uuid.NewString(),
		Sender:      SenderUser,
		Text:        text,
		Timestamp:   time.Now(),
		Attachments: attachments,
	}
}

// NewBotMessage creates a finished bot turn (fallback path, error bubbles)
func NewBotMessage(text, model string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Sender:    SenderBot,
		Text:      text,
		Timestamp: time.Now(),
		Model:     model,
	}
}

// NewStreamingPlaceholder creates the empty bot message a streaming
// exchange accumulates tokens into
func NewStreamingPlaceholder() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Sender:    SenderBot,
		Timestamp: time.Now(),
		Streaming: true,
	}
}

// KindForMIME maps an upload MIME type onto an attachment kind
func KindForMIME(mimeType string) AttachmentKind {
	switch {
	case len(mimeType) >= 6 && mimeType[:6] == "image/":
		return AttachmentImage
	case mimeType == "application/pdf",
		mimeType == "application/msword",
		mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mimeType == "text/plain":
		return AttachmentDocument
	default:
		return AttachmentOther
	}
}
