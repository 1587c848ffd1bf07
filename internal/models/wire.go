package models

// ChatMessage is one role-tagged turn in an outbound payload
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload of the chat_request event and of the REST
// fallback call
type ChatRequest struct {
	Messages   []ChatMessage `json:"messages"`
	Model      string        `json:"model,omitempty"`
	ExchangeID string        `json:"exchangeId,omitempty"`
}

// ChatResponse is the REST fallback response
type ChatResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

// ContentPart is one entry of a multimodal message's content array.
// Type is "text" or "image_url".
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference inside a content part
type ImageURL struct {
	URL string `json:"url"`
}

// MultimodalMessage is one turn whose content mixes text and images
type MultimodalMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// MultimodalChatRequest is the payload of the multimodal_chat_request event
type MultimodalChatRequest struct {
	Messages   []MultimodalMessage `json:"messages"`
	FileURLs   []string            `json:"fileUrls"`
	Model      string              `json:"model,omitempty"`
	ExchangeID string              `json:"exchangeId,omitempty"`
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image_url content part
func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

// UploadResponse is returned by the upload collaborator
type UploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}
