package content

import (
	openai "github.com/sashabaranov/go-openai"
)

// AnthropicBlock is one content block in the Anthropic Messages API.
type AnthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *AnthropicSource `json:"source,omitempty"`
}

// AnthropicSource carries inline base64 image bytes.
type AnthropicSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// GeminiPart is one content part in the Gemini generateContent API.
type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

// GeminiInlineData carries inline base64 media bytes.
type GeminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ToOpenAIParts shapes prepared items into OpenAI-style content parts.
// Images become image_url parts holding a data: URL.
func ToOpenAIParts(items []Prepared) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case KindImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: item.DataURL(),
				},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: item.Text,
			})
		}
	}
	return parts
}

// ToAnthropicBlocks shapes prepared items into Anthropic content blocks.
// Images become source.base64 blocks.
func ToAnthropicBlocks(items []Prepared) []AnthropicBlock {
	blocks := make([]AnthropicBlock, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case KindImage:
			blocks = append(blocks, AnthropicBlock{
				Type: "image",
				Source: &AnthropicSource{
					Type:      "base64",
					MediaType: item.ImageMIME,
					Data:      item.ImageB64,
				},
			})
		default:
			blocks = append(blocks, AnthropicBlock{Type: "text", Text: item.Text})
		}
	}
	return blocks
}

// ToGeminiParts shapes prepared items into Gemini parts. Images become
// native inlineData parts rather than the stringified placeholders the
// product shipped with historically.
func ToGeminiParts(items []Prepared) []GeminiPart {
	parts := make([]GeminiPart, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case KindImage:
			parts = append(parts, GeminiPart{
				InlineData: &GeminiInlineData{
					MIMEType: item.ImageMIME,
					Data:     item.ImageB64,
				},
			})
		default:
			parts = append(parts, GeminiPart{Text: item.Text})
		}
	}
	return parts
}
