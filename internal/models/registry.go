// Package models maps model identifiers to their adapters, capabilities,
// and system-prompt generators.
//
// DESIGN: A closed configuration table built once at startup; lookups are
// O(1) by id. No reflection. Unknown ids resolve to nil handlers, never a
// panic: callers treat nil as "unsupported model" and surface a user-facing
// error. Per-user availability filtering is external policy layered on top
// of List; the registry holds no subscription knowledge.
package models

import (
	"fmt"
	"time"

	"github.com/omnichat/gateway/internal/providers"
)

// PromptContext carries the caller state system-prompt generators may use.
type PromptContext struct {
	UserName           string
	CustomInstructions string
	Now                time.Time
}

// Config describes one supported model. ID is the unique lookup key across
// the whole system.
type Config struct {
	ID                        string
	Name                      string
	Description               string
	AcceptsFiles              bool
	AcceptsCustomInstructions bool
	Handler                   providers.Adapter
	SystemPrompt              func(PromptContext) string
}

// Registry resolves model ids to configs.
type Registry struct {
	byID    map[string]*Config
	ordered []*Config
}

// NewRegistry builds a registry from a static config table. Duplicate ids
// are a construction error; ids must never collide.
func NewRegistry(configs ...*Config) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Config, len(configs))}
	for _, cfg := range configs {
		if cfg.ID == "" {
			return nil, fmt.Errorf("model config with empty id")
		}
		if _, exists := r.byID[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate model id %q", cfg.ID)
		}
		if cfg.Handler == nil {
			return nil, fmt.Errorf("model %q has no handler", cfg.ID)
		}
		r.byID[cfg.ID] = cfg
		r.ordered = append(r.ordered, cfg)
	}
	return r, nil
}

// Resolve returns the config for a model id.
func (r *Registry) Resolve(id string) (*Config, bool) {
	cfg, ok := r.byID[id]
	return cfg, ok
}

// List returns all configured models in declaration order.
func (r *Registry) List() []*Config {
	out := make([]*Config, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Handler returns the adapter for a model id, or nil for an unknown id.
func (r *Registry) Handler(id string) providers.Adapter {
	cfg, ok := r.byID[id]
	if !ok {
		return nil
	}
	return cfg.Handler
}

// AcceptsFiles reports whether the model takes file attachments. Unknown
// ids report false.
func (r *Registry) AcceptsFiles(id string) bool {
	cfg, ok := r.byID[id]
	return ok && cfg.AcceptsFiles
}

// SystemPrompt renders the model's system prompt for the given context.
// Unknown ids render empty.
func (r *Registry) SystemPrompt(id string, ctx PromptContext) string {
	cfg, ok := r.byID[id]
	if !ok || cfg.SystemPrompt == nil {
		return ""
	}
	return cfg.SystemPrompt(ctx)
}
