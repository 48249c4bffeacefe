package providers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/omnichat/gateway/internal/chat"
	"github.com/omnichat/gateway/internal/content"
	"github.com/omnichat/gateway/internal/postprocess"
)

// OpenAIConfig configures an OpenAI-compatible backend. BaseURL may point
// at any endpoint speaking the Chat Completions protocol.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration // 0 uses DefaultTimeout
}

// OpenAIAdapter serves OpenAI-compatible chat completion backends.
type OpenAIAdapter struct {
	client     *openai.Client
	model      string
	maxTokens  int
	timeout    time.Duration
	normalizer *content.Normalizer
	processor  *postprocess.Processor
}

// NewOpenAIAdapter creates an adapter for one OpenAI-compatible model.
func NewOpenAIAdapter(cfg OpenAIConfig, n *content.Normalizer, p *postprocess.Processor) *OpenAIAdapter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		maxTokens:  tokenBudget(cfg.MaxTokens),
		timeout:    cfg.Timeout,
		normalizer: n,
		processor:  p,
	}
}

// Name returns the vendor identifier.
func (a *OpenAIAdapter) Name() string { return "openai" }

// Generate performs one chat completion. The returned message id is always
// regenerated; OpenAI completion ids are not message ids.
func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) (*chat.Message, error) {
	ctx, cancel := timeoutContext(ctx, a.timeout)
	defer cancel()

	messages, err := a.buildMessages(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		Messages:  messages,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, &ProviderError{Vendor: a.Name(), Err: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &UnexpectedResponseFormatError{Vendor: a.Name()}
	}

	log.Debug().
		Str("provider", a.Name()).
		Str("model", a.model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion finished")

	text := a.processor.Clean(resp.Choices[0].Message.Content)
	return chat.NewTextMessage(chat.RoleAssistant, text), nil
}

// buildMessages assembles the vendor message list: system prompt, prior
// turns, injected context as trailing system entries. Only the most recent
// user turn gets multi-modal parts.
func (a *OpenAIAdapter) buildMessages(ctx context.Context, req Request) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+len(req.Context)+1)

	if req.SystemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	lastUser := chat.LastUserIndex(req.Messages)
	for i, msg := range req.Messages {
		if i == lastUser {
			items := mergeAttachments(msg.Content, req.Files)
			prepared, err := a.normalizer.Prepare(ctx, items)
			if err != nil {
				return nil, err
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: content.ToOpenAIParts(prepared),
			})
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Text(),
		})
	}

	for _, item := range req.Context {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: item,
		})
	}

	return out, nil
}

func openAIRole(r chat.Role) string {
	switch r {
	case chat.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case chat.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

var _ Adapter = (*OpenAIAdapter)(nil)
