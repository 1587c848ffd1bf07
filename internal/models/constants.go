// Package models contains data types and constants for the Agent Chat API.
package models

// API paths, resolved against the configured base endpoint
const (
	PathSocket = "/ws"
	PathChat   = "/chat/"
	PathUpload = "/upload/"
	PathHealth = "/api/health"
)

// Outbound socket events (client -> server)
const (
	EventChatRequest           = "chat_request"
	EventMultimodalChatRequest = "multimodal_chat_request"
)

// Inbound socket events (server -> client)
const (
	EventChatStart    = "chat_start"
	EventChatToken    = "chat_token"
	EventChatComplete = "chat_complete"
	EventChatError    = "chat_error"
	EventChatImage    = "chat_image"
	EventHeartbeat    = "heartbeat"
)

// Model represents an available backend model
type Model struct {
	Name   string
	Vision bool
}

// Available models
var (
	// ModelUnspecified lets the server pick its default
	ModelUnspecified = Model{Name: ""}

	Model20Flash = Model{Name: "gemini-2.0-flash"}

	Model15Pro = Model{Name: "gemini-1.5-pro"}

	Model20ProVision = Model{Name: "gemini-2.0-pro-vision", Vision: true}

	// DefaultModel matches the backend's default
	DefaultModel = Model20Flash

	// DefaultVisionModel is used when attachments are sent without an
	// explicit model choice
	DefaultVisionModel = Model20ProVision
)

// DefaultImagePrompt is substituted when the user attaches images without
// any accompanying text, so the model always receives an instruction.
const DefaultImagePrompt = "What do you see in this image?"

// AllModels returns a list of all known models
func AllModels() []Model {
	return []Model{Model20Flash, Model15Pro, Model20ProVision}
}

// ModelFromName returns a Model by its name
func ModelFromName(name string) Model {
	for _, m := range AllModels() {
		if m.Name == name {
			return m
		}
	}
	return Model{Name: name}
}
