// Package server exposes the chat dispatch over HTTP.
//
// ROUTES:
//   - POST /v1/messages  one dispatch call (send message, get reply)
//   - GET  /v1/models    configured model catalog
//   - GET  /health       liveness probe
//
// Middleware chain (applied in order):
//  1. panicRecovery:     catch panics, return 500, log stack trace
//  2. rateLimit:         per-IP token bucket rate limiting
//  3. loggingMiddleware: log request/response with timing
//  4. security:          security headers, CORS
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnichat/gateway/internal/config"
	"github.com/omnichat/gateway/internal/models"
	"github.com/omnichat/gateway/internal/service"
)

const (
	// HeaderRequestID carries the request id in and out.
	HeaderRequestID = "X-Request-ID"

	// MaxRateLimitBuckets caps the per-IP bucket map size.
	MaxRateLimitBuckets = 10000

	// maxRequestBody bounds inbound dispatch payloads (1MB).
	maxRequestBody = 1 << 20
)

// Dispatcher is the slice of the chat service the server calls.
type Dispatcher interface {
	SendMessage(ctx context.Context, req service.SendRequest) (*service.SendResponse, error)
}

// Server is the HTTP front of the gateway.
type Server struct {
	dispatcher  Dispatcher
	registry    *models.Registry
	rateLimiter *rateLimiter
	httpServer  *http.Server
}

// New builds a Server over the dispatch service and the model registry.
func New(cfg config.ServerConfig, dispatcher Dispatcher, registry *models.Registry) *Server {
	s := &Server{
		dispatcher: dispatcher,
		registry:   registry,
	}
	if cfg.RateLimitRPS > 0 {
		s.rateLimiter = newRateLimiter(cfg.RateLimitRPS)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", s.handleMessages)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.chain(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the full middleware-wrapped handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// chain applies the middleware stack outermost first.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.security(h)
	h = s.loggingMiddleware(h)
	h = s.rateLimit(h)
	h = s.panicRecovery(h)
	return h
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, msg string, status int) {
	s.writeJSON(w, errorResponse{Error: msg}, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// healthResponse reports liveness.
type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
