package chat

import "github.com/diogo/agentchat/internal/models"

// Conversation is the ordered message list for one session. It does no
// locking of its own: the owning Session serializes all access.
type Conversation struct {
	messages []*models.Message
}

// NewConversation creates an empty conversation
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a message to the end of the conversation
func (c *Conversation) Append(m *models.Message) {
	c.messages = append(c.messages, m)
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message, or nil
func (c *Conversation) Last() *models.Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// LastBot returns the most recent bot message, or nil. Late chat_image
// events attach here once streaming has ended.
func (c *Conversation) LastBot() *models.Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Sender == models.SenderBot {
			return c.messages[i]
		}
	}
	return nil
}

// Snapshot returns value copies of every message, safe to read while the
// session keeps mutating the originals
func (c *Conversation) Snapshot() []models.Message {
	out := make([]models.Message, len(c.messages))
	for i, m := range c.messages {
		cp := *m
		if len(m.Attachments) > 0 {
			cp.Attachments = append([]models.FileAttachment(nil), m.Attachments...)
		}
		out[i] = cp
	}
	return out
}
