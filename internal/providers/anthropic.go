package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/omnichat/gateway/internal/chat"
	"github.com/omnichat/gateway/internal/content"
	"github.com/omnichat/gateway/internal/postprocess"
)

const (
	// anthropicVersion is the Anthropic API version header value.
	anthropicVersion = "2023-06-01"

	// bedrockAnthropicVersion is the anthropic_version body field for
	// Bedrock-hosted Anthropic models.
	bedrockAnthropicVersion = "bedrock-2023-05-31"

	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
)

// AnthropicConfig configures the Anthropic Messages API backend.
type AnthropicConfig struct {
	APIKey    string
	Endpoint  string // defaults to the public Messages API
	Model     string
	MaxTokens int
	Timeout   time.Duration

	// Bedrock switches the adapter to AWS Bedrock hosting: requests carry
	// the bedrock anthropic_version and no API key header; authentication
	// is SigV4 signing done by HTTPClient's transport.
	Bedrock bool

	// HTTPClient overrides the default client. Required for Bedrock (pass
	// a client wrapping BedrockSigningTransport); useful in tests.
	HTTPClient *http.Client
}

// AnthropicAdapter serves the Anthropic Messages API, directly or through
// AWS Bedrock.
type AnthropicAdapter struct {
	cfg        AnthropicConfig
	client     *http.Client
	normalizer *content.Normalizer
	processor  *postprocess.Processor
}

// anthropicRequest is the Messages API request body.
type anthropicRequest struct {
	Model            string             `json:"model,omitempty"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	AnthropicVersion string             `json:"anthropic_version,omitempty"`
}

// anthropicMessage is one conversation turn. Content is either a plain
// string or a block array; json.RawMessage keeps both shapes.
type anthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// anthropicResponse is the Messages API response body.
type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewAnthropicAdapter creates an adapter for one Anthropic model.
func NewAnthropicAdapter(cfg AnthropicConfig, n *content.Normalizer, p *postprocess.Processor) *AnthropicAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultAnthropicEndpoint
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{} // timeout via context, not client
	}
	return &AnthropicAdapter{cfg: cfg, client: client, normalizer: n, processor: p}
}

// Name returns the vendor identifier.
func (a *AnthropicAdapter) Name() string {
	if a.cfg.Bedrock {
		return "bedrock"
	}
	return "anthropic"
}

// Generate performs one Messages API call. The vendor's msg_ response id
// is reused as the message id when structurally valid.
func (a *AnthropicAdapter) Generate(ctx context.Context, req Request) (*chat.Message, error) {
	ctx, cancel := timeoutContext(ctx, a.cfg.Timeout)
	defer cancel()

	body, err := a.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	respBody, err := a.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &ProviderError{Vendor: a.Name(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	// Claude returns typed blocks; concatenate text blocks in order,
	// newline-joined.
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, &UnexpectedResponseFormatError{Vendor: a.Name()}
	}

	log.Debug().
		Str("provider", a.Name()).
		Str("model", a.cfg.Model).
		Int64("input_tokens", gjson.GetBytes(respBody, "usage.input_tokens").Int()).
		Int64("output_tokens", gjson.GetBytes(respBody, "usage.output_tokens").Int()).
		Msg("chat completion finished")

	text := a.processor.Clean(strings.Join(parts, "\n"))
	msg := chat.NewTextMessage(chat.RoleAssistant, text)
	if strings.HasPrefix(resp.ID, "msg_") {
		msg.ID = resp.ID
	}
	return msg, nil
}

// buildRequest assembles the Messages API body. Anthropic has no system
// role among conversation turns: the system prompt, any system turns in
// history, and injected context all fold into the top-level system field.
func (a *AnthropicAdapter) buildRequest(ctx context.Context, req Request) ([]byte, error) {
	system := []string{}
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}

	lastUser := chat.LastUserIndex(req.Messages)
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for i, msg := range req.Messages {
		if msg.Role == chat.RoleSystem {
			system = append(system, msg.Text())
			continue
		}

		if i == lastUser {
			items := mergeAttachments(msg.Content, req.Files)
			prepared, err := a.normalizer.Prepare(ctx, items)
			if err != nil {
				return nil, err
			}
			blocks, err := json.Marshal(content.ToAnthropicBlocks(prepared))
			if err != nil {
				return nil, err
			}
			messages = append(messages, anthropicMessage{Role: "user", Content: blocks})
			continue
		}

		text, err := json.Marshal(msg.Text())
		if err != nil {
			return nil, err
		}
		role := "user"
		if msg.Role == chat.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, anthropicMessage{Role: role, Content: text})
	}

	system = append(system, req.Context...)

	body := anthropicRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    strings.Join(system, "\n\n"),
		Messages:  messages,
	}
	if a.cfg.Bedrock {
		body.AnthropicVersion = bedrockAnthropicVersion
		body.Model = "" // Bedrock encodes the model in the endpoint path
	}
	return json.Marshal(body)
}

// post issues the vendor call and returns the raw response body.
func (a *AnthropicAdapter) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Vendor: a.Name(), Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if !a.cfg.Bedrock {
		httpReq.Header.Set("x-api-key", a.cfg.APIKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Vendor: a.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &ProviderError{Vendor: a.Name(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Vendor: a.Name(),
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, truncateErrBody(string(respBody))),
		}
	}
	return respBody, nil
}

var _ Adapter = (*AnthropicAdapter)(nil)
