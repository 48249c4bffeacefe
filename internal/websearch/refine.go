package websearch

import (
	"context"
	"strings"

	"github.com/omnichat/gateway/internal/chat"
	"github.com/omnichat/gateway/internal/providers"
)

// refinementPrompt instructs the model to rewrite a chat query into a
// standalone web search query.
const refinementPrompt = "Rewrite the user's message as a short, specific web search query. " +
	"Reply with the query only: no quotes, no explanation."

// Refiner turns a raw user query into a search query.
type Refiner interface {
	Refine(ctx context.Context, raw string) (string, error)
}

// LLMRefiner refines queries through a provider adapter.
type LLMRefiner struct {
	adapter providers.Adapter
}

// NewLLMRefiner creates a refiner backed by the given adapter.
func NewLLMRefiner(adapter providers.Adapter) *LLMRefiner {
	return &LLMRefiner{adapter: adapter}
}

// Refine asks the LLM for a sharper search query. Failures wrap into
// SearchRefinementError; callers fall back to the raw query.
func (r *LLMRefiner) Refine(ctx context.Context, raw string) (string, error) {
	msg, err := r.adapter.Generate(ctx, providers.Request{
		Messages:     []*chat.Message{chat.NewTextMessage(chat.RoleUser, raw)},
		SystemPrompt: refinementPrompt,
	})
	if err != nil {
		return "", &SearchRefinementError{Err: err}
	}

	refined := strings.TrimSpace(strings.Trim(strings.TrimSpace(msg.Text()), `"`))
	if refined == "" {
		return "", &SearchRefinementError{Err: errEmptyRefinement}
	}
	return refined, nil
}

var errEmptyRefinement = &emptyRefinementError{}

type emptyRefinementError struct{}

func (*emptyRefinementError) Error() string { return "refinement produced an empty query" }
