package providers

// Gemini adapter tests run against a local fake generateContent endpoint.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/gateway/internal/chat"
	"github.com/omnichat/gateway/internal/content"
	"github.com/omnichat/gateway/internal/postprocess"
)

func newGeminiAdapter(t *testing.T, handler http.HandlerFunc) *GeminiAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiAdapter(GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "gemini-1.5-flash",
		MaxTokens:  1024,
		Timeout:    5 * time.Second,
		HTTPClient: srv.Client(),
	}, content.NewNormalizer(), postprocess.New())
}

func geminiTextResponse(texts ...string) map[string]any {
	parts := make([]map[string]any, 0, len(texts))
	for _, tx := range texts {
		parts = append(parts, map[string]any{"text": tx})
	}
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": parts},
		}},
		"usageMetadata": map[string]int{"promptTokenCount": 7, "candidatesTokenCount": 4},
	}
}

// TestGemini_JoinsPartsWithSpace verifies candidate text parts concatenate
// in order, space-joined.
func TestGemini_JoinsPartsWithSpace(t *testing.T) {
	a := newGeminiAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-flash:generateContent"))
		json.NewEncoder(w).Encode(geminiTextResponse("Hello", "world."))
	})

	msg, err := a.Generate(context.Background(), Request{
		Messages: []*chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", msg.Text())
	assert.NotEmpty(t, msg.ID)
}

// TestGemini_SystemInstructionAndRoles verifies the system prompt and
// context fold into systemInstruction, and assistant turns map to the
// "model" role.
func TestGemini_SystemInstructionAndRoles(t *testing.T) {
	var got geminiRequest
	a := newGeminiAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(geminiTextResponse("ok"))
	})

	_, err := a.Generate(context.Background(), Request{
		Messages: []*chat.Message{
			chat.NewTextMessage(chat.RoleUser, "question"),
			chat.NewTextMessage(chat.RoleAssistant, "answer"),
			chat.NewTextMessage(chat.RoleUser, "follow-up"),
		},
		SystemPrompt: "Base prompt.",
		Context:      []string{"Search: blue sky"},
	})
	require.NoError(t, err)

	require.NotNil(t, got.SystemInstruction)
	require.Len(t, got.SystemInstruction.Parts, 2)
	assert.Equal(t, "Base prompt.", got.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "Search: blue sky", got.SystemInstruction.Parts[1].Text)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "user", got.Contents[2].Role)
}

// TestGemini_NoCandidatesIsFormatError verifies an empty candidate list
// fails with UnexpectedResponseFormatError.
func TestGemini_NoCandidatesIsFormatError(t *testing.T) {
	a := newGeminiAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := a.Generate(context.Background(), Request{
		Messages: []*chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")},
	})
	require.Error(t, err)

	var formatErr *UnexpectedResponseFormatError
	assert.True(t, errors.As(err, &formatErr))
}

// TestGemini_NonOKStatusIsProviderError verifies non-2xx responses fail
// with a ProviderError naming the vendor.
func TestGemini_NonOKStatusIsProviderError(t *testing.T) {
	a := newGeminiAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, http.StatusTooManyRequests)
	})

	_, err := a.Generate(context.Background(), Request{
		Messages: []*chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")},
	})
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "gemini", provErr.Vendor)
}
