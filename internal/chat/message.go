// Package chat defines the canonical message model shared by all provider
// adapters and the dispatch service.
//
// DESIGN: Every provider speaks its own wire format (OpenAI content parts,
// Anthropic content blocks, Gemini parts). Everything inside this service
// uses the types here; translation happens at the adapter boundary only.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType tags one MessageContent variant.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImageURL ContentType = "image_url"
	ContentFileURL  ContentType = "file_url"
)

// MessageContent is one typed unit of message content. Exactly the fields
// for its Type are set; ordering within a message is significant.
type MessageContent struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *ImageRef   `json:"image_url,omitempty"`
	FileURL  *FileRef    `json:"file_url,omitempty"`
	MIMEType string      `json:"mime_type,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	FileSize int64       `json:"file_size,omitempty"` // bytes
}

// ImageRef points at an image, either a remote URL or a data: URL.
type ImageRef struct {
	URL string `json:"url"`
}

// FileRef points at an uploaded file.
type FileRef struct {
	URL string `json:"url"`
}

// Message is the canonical conversation turn. Immutable once persisted;
// the only permitted mutation is replacing the trailing pending assistant
// placeholder with its finalized version.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   []MessageContent `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

// FileAttachment is produced by the upload layer and consumed read-only
// by adapters. Size is in bytes.
type FileAttachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	IsImage  bool   `json:"is_image"`
}

// TextContent wraps a raw string into a single text content item.
func TextContent(text string) MessageContent {
	return MessageContent{Type: ContentText, Text: text}
}

// ImageContent builds an image content item for the given URL.
func ImageContent(url string) MessageContent {
	return MessageContent{Type: ContentImageURL, ImageURL: &ImageRef{URL: url}}
}

// FileContent builds a file content item from an attachment.
func FileContent(a FileAttachment) MessageContent {
	return MessageContent{
		Type:     ContentFileURL,
		FileURL:  &FileRef{URL: a.URL},
		MIMEType: a.MIMEType,
		FileName: a.Name,
		FileSize: a.Size,
	}
}

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(role Role, content ...MessageContent) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewTextMessage creates a message holding a single text item.
func NewTextMessage(role Role, text string) *Message {
	return NewMessage(role, TextContent(text))
}

// Text concatenates all text items of the message, joined by newlines.
// Image and file items contribute nothing.
func (m *Message) Text() string {
	var out string
	for _, c := range m.Content {
		if c.Type != ContentText {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

// LastUserIndex returns the index of the most recent user turn, or -1.
// Attachments and multi-modal encoding apply to this turn only.
func LastUserIndex(messages []*Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
