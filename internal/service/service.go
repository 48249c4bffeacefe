// Package service implements the chat dispatch operation: it ties the
// model registry, the session store, and the web-search augmentation
// together around a single SendMessage call.
//
// FLOW per SendMessage:
//  1. Resolve the model id; unknown ids fail with ErrUnknownModel before
//     any state is touched.
//  2. Load the session, or create one when no id is given.
//  3. Build the user message (text plus attachment content items) and the
//     system prompt, gathering search augmentation as context items.
//  4. Append the user message and a pending assistant placeholder, then
//     dispatch to the adapter.
//  5. Replace the placeholder in place with the finalized reply, or with a
//     system-role error notice when the provider fails.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnichat/gateway/internal/chat"
	"github.com/omnichat/gateway/internal/models"
	"github.com/omnichat/gateway/internal/providers"
	"github.com/omnichat/gateway/internal/store"
	"github.com/omnichat/gateway/internal/websearch"
)

// ErrUnknownModel is returned when the requested model id is not in the
// registry. Safe to show to end users.
var ErrUnknownModel = errors.New("unsupported model")

// titleRuneLimit bounds auto-generated session titles.
const titleRuneLimit = 50

// providerFailureNotice is stored in place of the assistant reply when
// generation fails, so the history records the failed turn.
const providerFailureNotice = "The assistant could not produce a response. Please try again."

// Capabilities are the per-request feature toggles the caller may set.
type Capabilities struct {
	WebSearch  bool `json:"web_search"`
	DeepSearch bool `json:"deep_search"`
}

// SendRequest is one inbound dispatch call.
type SendRequest struct {
	Content            string                `json:"content"`
	SessionID          string                `json:"session_id"`
	UserID             string                `json:"user_id"`
	UserName           string                `json:"user_name"`
	CustomInstructions string                `json:"custom_instructions"`
	Model              string                `json:"model"`
	UserLocation       string                `json:"user_location"`
	ContextItems       []string              `json:"context_items"`
	FileAttachments    []chat.FileAttachment `json:"file_attachments"`
	Capabilities       Capabilities          `json:"capabilities"`
}

// SendResponse reports the outcome of a dispatch call.
type SendResponse struct {
	SessionID    string        `json:"session_id"`
	Message      *chat.Message `json:"message"`
	TitleUpdated bool          `json:"title_updated"`
	Title        string        `json:"title,omitempty"`
}

// Searcher is the slice of the web-search augmentation the service uses.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
	DeepSearch(ctx context.Context, query string) ([]websearch.Result, error)
	Location(ctx context.Context, query string) (string, error)
}

// ChatService orchestrates one generation per call. Safe for concurrent
// use; per-session serialization is the caller's concern.
type ChatService struct {
	registry *models.Registry
	store    store.SessionStore
	searcher Searcher
	now      func() time.Time
}

// Option configures a ChatService.
type Option func(*ChatService)

// WithSearcher enables web-search augmentation.
func WithSearcher(s Searcher) Option {
	return func(c *ChatService) { c.searcher = s }
}

// WithClock overrides the service clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(c *ChatService) { c.now = now }
}

// New creates a ChatService over a registry and a session store.
func New(registry *models.Registry, sessions store.SessionStore, opts ...Option) *ChatService {
	c := &ChatService{
		registry: registry,
		store:    sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage runs one user turn end to end. On provider failure the
// session still records the turn: the placeholder becomes a system-role
// notice and the provider error is returned wrapped.
func (c *ChatService) SendMessage(ctx context.Context, req SendRequest) (*SendResponse, error) {
	cfg, ok := c.registry.Resolve(req.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}

	sess, created, err := c.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	userMsg := c.buildUserMessage(req, cfg)
	contextItems := c.gatherContext(ctx, req)
	systemPrompt := c.registry.SystemPrompt(req.Model, models.PromptContext{
		UserName:           req.UserName,
		CustomInstructions: req.CustomInstructions,
		Now:                c.now(),
	})

	history := append(sess.Messages, userMsg)

	if err := c.store.AppendMessage(ctx, sess.ID, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	placeholder := chat.NewTextMessage(chat.RoleAssistant, "")
	if err := c.store.AppendMessage(ctx, sess.ID, placeholder); err != nil {
		return nil, fmt.Errorf("failed to persist assistant placeholder: %w", err)
	}

	resp := &SendResponse{SessionID: sess.ID}
	if created {
		title := deriveTitle(req.Content)
		if err := c.store.SetTitle(ctx, sess.ID, title); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to set session title")
		} else {
			resp.TitleUpdated = true
			resp.Title = title
		}
	}

	// Adapters merge Files into the vendor payload, so a model that does
	// not accept them must not see them here either.
	var files []chat.FileAttachment
	if cfg.AcceptsFiles {
		files = req.FileAttachments
	}

	reply, genErr := cfg.Handler.Generate(ctx, providers.Request{
		Messages:     history,
		SystemPrompt: systemPrompt,
		Context:      contextItems,
		Files:        files,
	})
	if genErr != nil {
		notice := chat.NewTextMessage(chat.RoleSystem, providerFailureNotice)
		if replaceErr := c.store.ReplaceMessage(ctx, sess.ID, placeholder.ID, notice); replaceErr != nil {
			genErr = errors.Join(genErr, fmt.Errorf("failed to record failure notice: %w", replaceErr))
		}
		return nil, fmt.Errorf("generation with %q failed: %w", req.Model, genErr)
	}

	if err := c.store.ReplaceMessage(ctx, sess.ID, placeholder.ID, reply); err != nil {
		return nil, fmt.Errorf("failed to persist assistant reply: %w", err)
	}

	resp.Message = reply
	return resp, nil
}

// resolveSession loads an existing session or creates a fresh one.
func (c *ChatService) resolveSession(ctx context.Context, id string) (sess *store.Session, created bool, err error) {
	if id == "" {
		sess, err = c.store.CreateSession(ctx, "")
		if err != nil {
			return nil, false, fmt.Errorf("failed to create session: %w", err)
		}
		return sess, true, nil
	}
	sess, err = c.store.GetSession(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session %q: %w", id, err)
	}
	return sess, false, nil
}

// buildUserMessage wraps the raw content string and appends attachment
// content items. Models that do not accept files get text only; the
// attachments are dropped with a warning rather than failing the turn.
func (c *ChatService) buildUserMessage(req SendRequest, cfg *models.Config) *chat.Message {
	items := []chat.MessageContent{chat.TextContent(req.Content)}
	if len(req.FileAttachments) > 0 && !cfg.AcceptsFiles {
		log.Warn().
			Str("model", cfg.ID).
			Int("attachments", len(req.FileAttachments)).
			Msg("model does not accept files, attachments dropped")
	} else {
		for _, f := range req.FileAttachments {
			if f.IsImage {
				items = append(items, chat.ImageContent(f.URL))
			} else {
				items = append(items, chat.FileContent(f))
			}
		}
	}
	return chat.NewMessage(chat.RoleUser, items...)
}

// gatherContext combines caller-supplied context items with web-search
// augmentation. Search failures degrade to an unaugmented turn.
func (c *ChatService) gatherContext(ctx context.Context, req SendRequest) []string {
	items := append([]string(nil), req.ContextItems...)
	if c.searcher == nil || (!req.Capabilities.WebSearch && !req.Capabilities.DeepSearch) {
		return items
	}

	// A caller-supplied location scopes the query to the resolved place
	// name. Lookup failures fall back to the unscoped query.
	query := req.Content
	if req.UserLocation != "" {
		loc, lerr := c.searcher.Location(ctx, req.UserLocation)
		if lerr != nil {
			log.Warn().Err(lerr).Str("location", req.UserLocation).Msg("location lookup failed, searching unscoped")
		} else {
			query = fmt.Sprintf("%s near %s", query, loc)
		}
	}

	var (
		results []websearch.Result
		err     error
	)
	if req.Capabilities.DeepSearch {
		results, err = c.searcher.DeepSearch(ctx, query)
	} else {
		results, err = c.searcher.Search(ctx, query)
	}
	if err != nil {
		log.Warn().Err(err).Msg("search augmentation failed, continuing without it")
		return items
	}
	if len(results) > 0 {
		items = append(items, websearch.FormatForContext(query, results))
	}
	return items
}

// deriveTitle takes the leading runes of the first user message.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleRuneLimit {
		return content
	}
	return string(runes[:titleRuneLimit])
}
