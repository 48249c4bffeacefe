package models

import (
	"fmt"
	"strings"

	"github.com/omnichat/gateway/internal/providers"
)

// Adapters holds the constructed provider adapters the catalog wires
// model entries to. Nil adapters disable their models.
type Adapters struct {
	OpenAI    providers.Adapter
	Anthropic providers.Adapter
	Gemini    providers.Adapter
	Bedrock   providers.Adapter
}

// DefaultCatalog returns the standard model table. One entry per supported
// model; entries whose adapter is not configured are omitted so the
// registry reflects what the deployment can actually serve.
func DefaultCatalog(a Adapters) []*Config {
	var table []*Config

	if a.OpenAI != nil {
		table = append(table,
			&Config{
				ID:                        "gpt-4o-mini",
				Name:                      "GPT-4o mini",
				Description:               "Fast, inexpensive general-purpose model",
				AcceptsFiles:              true,
				AcceptsCustomInstructions: true,
				Handler:                   a.OpenAI,
				SystemPrompt:              assistantPrompt,
			},
			&Config{
				ID:                        "gpt-4o",
				Name:                      "GPT-4o",
				Description:               "Flagship multi-modal model",
				AcceptsFiles:              true,
				AcceptsCustomInstructions: true,
				Handler:                   a.OpenAI,
				SystemPrompt:              assistantPrompt,
			},
		)
	}

	if a.Anthropic != nil {
		table = append(table, &Config{
			ID:                        "claude-3-5-sonnet",
			Name:                      "Claude 3.5 Sonnet",
			Description:               "Strong reasoning and long-context model",
			AcceptsFiles:              true,
			AcceptsCustomInstructions: true,
			Handler:                   a.Anthropic,
			SystemPrompt:              assistantPrompt,
		})
	}

	if a.Bedrock != nil {
		table = append(table, &Config{
			ID:           "claude-3-5-sonnet-bedrock",
			Name:         "Claude 3.5 Sonnet (Bedrock)",
			Description:  "Claude 3.5 Sonnet served through AWS Bedrock",
			AcceptsFiles: true,
			Handler:      a.Bedrock,
			SystemPrompt: basicPrompt,
		})
	}

	if a.Gemini != nil {
		table = append(table, &Config{
			ID:           "gemini-1.5-flash",
			Name:         "Gemini 1.5 Flash",
			Description:  "Fast Google model with native multi-modal input",
			AcceptsFiles: true,
			Handler:      a.Gemini,
			SystemPrompt: basicPrompt,
		})
	}

	return table
}

// basicPrompt ignores custom instructions for models that do not accept
// them.
func basicPrompt(ctx PromptContext) string {
	ctx.CustomInstructions = ""
	return assistantPrompt(ctx)
}

// assistantPrompt is the shared system prompt. Time and date are given as
// placeholder tokens the post-processor substitutes with real clock
// values, because the model will otherwise guess.
func assistantPrompt(ctx PromptContext) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer concisely and accurately. ")
	b.WriteString("When asked about the current time or date, respond with the ")
	b.WriteString("literal tokens {{current_time}} and {{current_date}} instead of guessing.")

	if ctx.UserName != "" {
		fmt.Fprintf(&b, "\nThe user's name is %s.", ctx.UserName)
	}
	if ctx.CustomInstructions != "" {
		fmt.Fprintf(&b, "\nUser instructions: %s", ctx.CustomInstructions)
	}
	if !ctx.Now.IsZero() {
		fmt.Fprintf(&b, "\nKnowledge note: today is %s.", ctx.Now.Format("January 2, 2006"))
	}
	return b.String()
}
