// Package content converts canonical message content into each provider's
// wire format.
//
// DESIGN: Every vendor demands a different multi-modal shape (OpenAI
// image_url parts, Anthropic source.base64 blocks, Gemini inline_data
// parts). This package keeps that variance out of the adapters: Prepare
// performs all remote fetching and encoding once, and the To*-shaping
// methods emit wire-ready blocks for one provider each.
//
// FLOW per message:
//  1. Prepare(ctx, items): fetch referenced images concurrently, base64
//     encode them; inline text-like file contents; describe other files.
//  2. ToOpenAIParts / ToAnthropicBlocks / ToGeminiParts: pure shaping of
//     the prepared items into the vendor's content schema.
//
// Image fetch failures are fatal for the message (ImageFetchError).
// File fetch failures degrade to an "Unable to retrieve file" placeholder.
package content

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/omnichat/gateway/internal/chat"
)

const (
	// maxFetchBytes bounds any single image or file download (10MB).
	maxFetchBytes = 10 * 1024 * 1024

	// defaultFetchTimeout bounds each content fetch.
	defaultFetchTimeout = 15 * time.Second

	// defaultInlineTokenBudget caps inlined file text per attachment.
	defaultInlineTokenBudget = 4000

	// fallbackCharsPerToken approximates the cap when no BPE encoding is
	// available (tiktoken needs its vocabulary file).
	fallbackCharsPerToken = 4

	tokenEncoding = "cl100k_base"
)

// Kind tags one prepared content item.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Prepared is one provider-neutral content item with all remote data
// already fetched and encoded. Ordering mirrors the source items.
type Prepared struct {
	Kind      Kind
	Text      string // KindText
	ImageB64  string // KindImage: base64 payload, no data: prefix
	ImageMIME string // KindImage: e.g. image/png
}

// DataURL renders the image as a data: URL for providers that take one.
func (p Prepared) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", p.ImageMIME, p.ImageB64)
}

// Normalizer prepares message content for provider consumption.
// Construct with NewNormalizer; safe for concurrent use.
type Normalizer struct {
	client      *http.Client
	tokenBudget int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithHTTPClient overrides the fetch client (testing, pooling).
func WithHTTPClient(c *http.Client) Option {
	return func(n *Normalizer) { n.client = c }
}

// WithInlineTokenBudget overrides the per-file inline token cap.
func WithInlineTokenBudget(tokens int) Option {
	return func(n *Normalizer) { n.tokenBudget = tokens }
}

// NewNormalizer creates a Normalizer with default fetch limits.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		client:      &http.Client{Timeout: defaultFetchTimeout},
		tokenBudget: defaultInlineTokenBudget,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Prepare resolves all content items into provider-neutral prepared items.
// Image fetches for the message are issued concurrently and awaited
// jointly; the caller must not contact the vendor before Prepare returns.
func (n *Normalizer) Prepare(ctx context.Context, items []chat.MessageContent) ([]Prepared, error) {
	prepared := make([]Prepared, len(items))

	var wg sync.WaitGroup
	errs := make([]error, len(items))

	for i, item := range items {
		switch item.Type {
		case chat.ContentText:
			prepared[i] = Prepared{Kind: KindText, Text: item.Text}

		case chat.ContentImageURL:
			wg.Add(1)
			go func(i int, item chat.MessageContent) {
				defer wg.Done()
				p, err := n.prepareImage(ctx, item.ImageURL.URL)
				if err != nil {
					errs[i] = err
					return
				}
				prepared[i] = p
			}(i, item)

		case chat.ContentFileURL:
			// File inlining degrades on failure, so sequential is fine.
			prepared[i] = n.prepareFile(ctx, item)

		default:
			prepared[i] = Prepared{Kind: KindText, Text: ""}
		}
	}

	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return prepared, nil
}

// prepareImage fetches and base64-encodes one image. Data URLs are decoded
// in place without a network round trip.
func (n *Normalizer) prepareImage(ctx context.Context, url string) (Prepared, error) {
	if mime, payload, ok := parseDataURL(url); ok {
		return Prepared{Kind: KindImage, ImageB64: payload, ImageMIME: mime}, nil
	}

	data, mime, err := n.fetch(ctx, url)
	if err != nil {
		return Prepared{}, &ImageFetchError{URL: url, Err: err}
	}
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = guessImageMIME(url)
	}
	return Prepared{
		Kind:      KindImage,
		ImageB64:  base64.StdEncoding.EncodeToString(data),
		ImageMIME: mime,
	}, nil
}

// prepareFile inlines text-like file contents or a descriptive placeholder.
// Never fails: fetch errors produce the unavailable placeholder instead.
func (n *Normalizer) prepareFile(ctx context.Context, item chat.MessageContent) Prepared {
	if !isTextMIME(item.MIMEType) {
		return Prepared{Kind: KindText, Text: describeFile(item)}
	}

	data, _, err := n.fetch(ctx, item.FileURL.URL)
	if err != nil {
		return Prepared{
			Kind: KindText,
			Text: fmt.Sprintf("Unable to retrieve file: %s", item.FileName),
		}
	}

	text := n.capTokens(string(data))
	return Prepared{
		Kind: KindText,
		Text: fmt.Sprintf("File content (%s, %s):\n%s", item.FileName, item.MIMEType, text),
	}
}

// fetch downloads a URL with the size limit applied. Returns body bytes
// and the Content-Type header value (parameters stripped).
func (n *Normalizer) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, "", err
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return data, mime, nil
}

// capTokens truncates text to the inline token budget. Falls back to a
// character approximation when the BPE vocabulary is unavailable.
func (n *Normalizer) capTokens(text string) string {
	n.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err == nil {
			n.enc = enc
		}
	})

	if n.enc == nil {
		limit := n.tokenBudget * fallbackCharsPerToken
		if len(text) > limit {
			return text[:limit]
		}
		return text
	}

	tokens := n.enc.Encode(text, nil, nil)
	if len(tokens) <= n.tokenBudget {
		return text
	}
	return n.enc.Decode(tokens[:n.tokenBudget])
}

// isTextMIME reports whether a MIME type is safe to fetch and inline.
func isTextMIME(mime string) bool {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "text/"):
		return true
	case mime == "application/json", mime == "application/csv",
		mime == "application/xml", mime == "application/x-yaml":
		return true
	}
	return false
}

// describeFile renders the placeholder for files that are never fetched.
func describeFile(item chat.MessageContent) string {
	return fmt.Sprintf("[Attached file: %s (%s, %d KB)]", item.FileName, item.MIMEType, item.FileSize/1024)
}

// parseDataURL splits a data: URL into MIME type and base64 payload.
func parseDataURL(url string) (mime, payload string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", "", false
	}
	return rest[:semi], rest[semi+len(";base64,"):], true
}

// guessImageMIME infers a MIME type from the URL extension when the server
// does not send a usable Content-Type.
func guessImageMIME(url string) string {
	lower := strings.ToLower(url)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
