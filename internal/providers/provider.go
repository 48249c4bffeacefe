// Package providers implements the vendor adapters behind the chat
// dispatch.
//
// DESIGN: A closed set of provider variants (OpenAI-compatible, Anthropic,
// Gemini, Anthropic-on-Bedrock) behind one Adapter interface. Each adapter
// owns authentication, request shaping, multi-modal encoding (delegated to
// the content normalizer), the outbound call, and response extraction.
// Adapters never retry; retry policy belongs to the caller. Adapters never
// touch persisted state.
//
// FLOW per Generate call:
//  1. Build the vendor message list: system prompt first, prior turns,
//     injected context as system-scoped entries.
//  2. Normalize multi-modal content for the most recent user turn only.
//  3. Issue the vendor call with a bounded token budget and a context
//     deadline.
//  4. Extract assistant text, run it through the post-processor, and stamp
//     the returned canonical Message.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/omnichat/gateway/internal/chat"
)

const (
	// DefaultTimeout bounds each vendor call when config leaves it unset.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxTokens is the response token budget when config leaves it
	// unset.
	DefaultMaxTokens = 4096

	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500
)

// Request carries everything an adapter needs for one generation.
type Request struct {
	// Messages is the conversation history, oldest first. The most recent
	// user turn is the only one that receives multi-modal encoding.
	Messages []*chat.Message

	// SystemPrompt is placed before the conversation in the vendor's role
	// vocabulary.
	SystemPrompt string

	// Context holds injected context items (e.g. web search results),
	// appended as additional system-scoped entries.
	Context []string

	// Files are attachments for the most recent user turn.
	Files []chat.FileAttachment
}

// Adapter is the uniform generate-response contract every vendor backend
// satisfies. Implementations are safe for concurrent use.
type Adapter interface {
	// Name returns the vendor identifier (e.g. "openai", "anthropic").
	Name() string

	// Generate performs one chat completion and returns the cleaned
	// assistant message. The returned message always carries a fresh
	// timestamp; ids follow vendor reuse rules (see each adapter).
	Generate(ctx context.Context, req Request) (*chat.Message, error)
}

// ProviderError reports a failed vendor call (transport error, non-2xx
// response, or malformed payload).
type ProviderError struct {
	Vendor string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider call failed: %v", e.Vendor, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UnexpectedResponseFormatError reports a vendor response with no usable
// text block.
type UnexpectedResponseFormatError struct {
	Vendor string
}

func (e *UnexpectedResponseFormatError) Error() string {
	return fmt.Sprintf("%s returned a response with no text content", e.Vendor)
}

// mergeAttachments appends content items for attachments not already
// present in the turn's items. Callers pass the most recent user turn.
func mergeAttachments(items []chat.MessageContent, files []chat.FileAttachment) []chat.MessageContent {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		switch item.Type {
		case chat.ContentImageURL:
			seen[item.ImageURL.URL] = true
		case chat.ContentFileURL:
			seen[item.FileURL.URL] = true
		}
	}

	merged := items
	for _, f := range files {
		if seen[f.URL] {
			continue
		}
		if f.IsImage {
			merged = append(merged, chat.ImageContent(f.URL))
		} else {
			merged = append(merged, chat.FileContent(f))
		}
	}
	return merged
}

// timeoutContext applies the per-call deadline, defaulting when config
// leaves it unset.
func timeoutContext(ctx context.Context, configured time.Duration) (context.Context, context.CancelFunc) {
	if configured <= 0 {
		configured = DefaultTimeout
	}
	return context.WithTimeout(ctx, configured)
}

// tokenBudget resolves the response token budget.
func tokenBudget(configured int) int {
	if configured > 0 {
		return configured
	}
	return DefaultMaxTokens
}

// truncateErrBody trims vendor error bodies for error messages.
func truncateErrBody(body string) string {
	if len(body) > maxErrorBodyLen {
		return body[:maxErrorBodyLen] + "... (truncated)"
	}
	return body
}
