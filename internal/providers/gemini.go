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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig configures the Google Generative AI backend.
type GeminiConfig struct {
	APIKey    string
	BaseURL   string // defaults to the public v1beta API
	Model     string
	MaxTokens int
	Timeout   time.Duration

	// HTTPClient overrides the default client (testing, pooling).
	HTTPClient *http.Client
}

// GeminiAdapter serves the Gemini generateContent API with native
// multi-modal parts.
type GeminiAdapter struct {
	cfg        GeminiConfig
	client     *http.Client
	normalizer *content.Normalizer
	processor  *postprocess.Processor
}

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string               `json:"role,omitempty"`
	Parts []content.GeminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

// geminiResponse is the generateContent response body.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewGeminiAdapter creates an adapter for one Gemini model.
func NewGeminiAdapter(cfg GeminiConfig, n *content.Normalizer, p *postprocess.Processor) *GeminiAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{} // timeout via context, not client
	}
	return &GeminiAdapter{cfg: cfg, client: client, normalizer: n, processor: p}
}

// Name returns the vendor identifier.
func (a *GeminiAdapter) Name() string { return "gemini" }

// Generate performs one generateContent call. Gemini response ids are not
// reusable; the message id is always regenerated.
func (a *GeminiAdapter) Generate(ctx context.Context, req Request) (*chat.Message, error) {
	ctx, cancel := timeoutContext(ctx, a.cfg.Timeout)
	defer cancel()

	body, err := a.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(a.cfg.BaseURL, "/"), a.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Vendor: a.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)

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

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{Vendor: a.Name(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	// Gemini returns candidate parts; concatenate text parts in order,
	// space-joined.
	var parts []string
	if len(parsed.Candidates) > 0 {
		for _, part := range parsed.Candidates[0].Content.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
	}
	if len(parts) == 0 {
		return nil, &UnexpectedResponseFormatError{Vendor: a.Name()}
	}

	log.Debug().
		Str("provider", a.Name()).
		Str("model", a.cfg.Model).
		Int64("prompt_tokens", gjson.GetBytes(respBody, "usageMetadata.promptTokenCount").Int()).
		Int64("candidate_tokens", gjson.GetBytes(respBody, "usageMetadata.candidatesTokenCount").Int()).
		Msg("chat completion finished")

	text := a.processor.Clean(strings.Join(parts, " "))
	return chat.NewTextMessage(chat.RoleAssistant, text), nil
}

// buildRequest assembles the generateContent body. Gemini has no system
// turns: the system prompt, system history turns, and injected context all
// fold into systemInstruction parts.
func (a *GeminiAdapter) buildRequest(ctx context.Context, req Request) ([]byte, error) {
	var systemParts []content.GeminiPart
	if req.SystemPrompt != "" {
		systemParts = append(systemParts, content.GeminiPart{Text: req.SystemPrompt})
	}

	lastUser := chat.LastUserIndex(req.Messages)
	contents := make([]geminiContent, 0, len(req.Messages))
	for i, msg := range req.Messages {
		if msg.Role == chat.RoleSystem {
			systemParts = append(systemParts, content.GeminiPart{Text: msg.Text()})
			continue
		}

		if i == lastUser {
			items := mergeAttachments(msg.Content, req.Files)
			prepared, err := a.normalizer.Prepare(ctx, items)
			if err != nil {
				return nil, err
			}
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: content.ToGeminiParts(prepared),
			})
			continue
		}

		role := "user"
		if msg.Role == chat.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []content.GeminiPart{{Text: msg.Text()}},
		})
	}

	for _, item := range req.Context {
		systemParts = append(systemParts, content.GeminiPart{Text: item})
	}

	body := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: a.cfg.MaxTokens,
		},
	}
	if len(systemParts) > 0 {
		body.SystemInstruction = &geminiContent{Parts: systemParts}
	}
	return json.Marshal(body)
}

var _ Adapter = (*GeminiAdapter)(nil)
