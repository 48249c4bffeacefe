package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnichat/gateway/internal/monitoring"
	"github.com/omnichat/gateway/internal/providers"
	"github.com/omnichat/gateway/internal/service"
	"github.com/omnichat/gateway/internal/store"
)

// handleMessages serves POST /v1/messages: one dispatch call.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if log.Debug().Enabled() {
		log.Debug().
			Str("id", monitoring.RequestIDFromContext(r.Context())).
			Str("body", monitoring.RedactString(string(body))).
			Msg("dispatch request")
	}

	var req service.SendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		s.writeError(w, "content is required", http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		s.writeError(w, "model is required", http.StatusBadRequest)
		return
	}

	resp, err := s.dispatcher.SendMessage(r.Context(), req)
	if err != nil {
		s.dispatchError(w, r, err)
		return
	}
	s.writeJSON(w, resp, http.StatusOK)
}

// dispatchError maps service errors to HTTP statuses.
func (s *Server) dispatchError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := monitoring.RequestIDFromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrUnknownModel):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrSessionNotFound):
		s.writeError(w, "session not found", http.StatusNotFound)
	default:
		var provErr *providers.ProviderError
		if errors.As(err, &provErr) {
			log.Error().Err(err).Str("id", requestID).Str("vendor", provErr.Vendor).Msg("provider failure")
			s.writeError(w, "upstream provider failed", http.StatusBadGateway)
			return
		}
		log.Error().Err(err).Str("id", requestID).Msg("dispatch failed")
		s.writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// modelInfo is one catalog entry in the models listing.
type modelInfo struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	Description               string `json:"description,omitempty"`
	AcceptsFiles              bool   `json:"accepts_files"`
	AcceptsCustomInstructions bool   `json:"accepts_custom_instructions"`
}

// handleModels serves GET /v1/models: the configured catalog.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	configs := s.registry.List()
	infos := make([]modelInfo, 0, len(configs))
	for _, cfg := range configs {
		infos = append(infos, modelInfo{
			ID:                        cfg.ID,
			Name:                      cfg.Name,
			Description:               cfg.Description,
			AcceptsFiles:              cfg.AcceptsFiles,
			AcceptsCustomInstructions: cfg.AcceptsCustomInstructions,
		})
	}
	s.writeJSON(w, map[string][]modelInfo{"models": infos}, http.StatusOK)
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, healthResponse{Status: "ok", Time: time.Now().UTC()}, http.StatusOK)
}
