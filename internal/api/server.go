// Package api implements the HTTP and WebSocket API.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hearthd/hearth/internal/buildinfo"
	"github.com/hearthd/hearth/internal/conversation"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/resilience"
	"github.com/hearthd/hearth/internal/smarthome"
	"github.com/hearthd/hearth/internal/tools"
)

// Chatter processes one user message against session history.
// Implemented by llm.Orchestrator.
type Chatter interface {
	Chat(ctx context.Context, message string, history []conversation.Message) (*llm.ChatResult, error)
	Ping(ctx context.Context) error
}

// Transcriber converts spoken audio into text. Speech recognition
// itself lives outside this process; configure an implementation to
// enable audio input.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format, language string) (text, detectedLanguage string, err error)
}

// Synthesizer renders text as WAV audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	writeJSON(w, status, map[string]any{"error": message}, logger)
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	chatter  Chatter
	sessions *conversation.Manager
	store    *smarthome.Store
	registry *tools.Registry
	logger   *slog.Logger
	server   *http.Server

	// Optional speech collaborators; audio requests are rejected with
	// a structured error when unset.
	transcriber Transcriber
	synthesizer Synthesizer
}

// NewServer creates a new API server.
func NewServer(address string, port int, chatter Chatter, sessions *conversation.Manager, store *smarthome.Store, registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		chatter:  chatter,
		sessions: sessions,
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// SetTranscriber enables audio input on the WebSocket and voice endpoints.
func (s *Server) SetTranscriber(t Transcriber) { s.transcriber = t }

// SetSynthesizer enables spoken audio in responses.
func (s *Server) SetSynthesizer(sy Synthesizer) { s.synthesizer = sy }

// Handler builds the route table. Exposed for tests; Start wraps it
// with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

// Start begins serving HTTP requests until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.withLogging(s.Handler()),
		ReadTimeout: 30 * time.Second,
		// No write timeout: WebSocket connections are long-lived.
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown", "error", err)
		}
	}()

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "Hearth",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info(), s.logger)
}

// handleHealth reports liveness plus the upstream circuit breaker
// state, so monitoring can tell "assistant up" from "hub reachable".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	breakerState := s.store.Client().Breaker().State()

	status := "healthy"
	if breakerState == resilience.StateOpen {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": buildinfo.Version,
		"smart_home": map[string]any{
			"circuit_breaker": string(breakerState),
		},
		"sessions":    s.sessions.Active(),
		"tts_enabled": s.synthesizer != nil,
		"stt_enabled": s.transcriber != nil,
	}, s.logger)
}

// chatRequest is the POST /chat body.
type chatRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id"`
	IncludeAudio bool   `json:"include_audio"`
}

// chatResponse is the POST /chat reply.
type chatResponse struct {
	Response  string       `json:"response"`
	SessionID string       `json:"session_id"`
	Actions   []llm.Action `json:"actions"`
	Audio     string       `json:"audio,omitempty"` // base64 WAV
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", s.logger)
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required", s.logger)
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	result, err := s.chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.logger.Error("chat failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error(), s.logger)
		return
	}

	resp := chatResponse{
		Response:  result.Response,
		SessionID: req.SessionID,
		Actions:   result.Actions,
	}
	if req.IncludeAudio {
		resp.Audio = s.synthesize(r.Context(), result.Response)
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}

// chat runs one exchange and records it in the session.
func (s *Server) chat(ctx context.Context, sessionID, message string) (*llm.ChatResult, error) {
	history := s.sessions.History(sessionID)
	result, err := s.chatter.Chat(ctx, message, history)
	if err != nil {
		return nil, err
	}
	s.sessions.AddExchange(sessionID, message, result.Response)
	return result, nil
}

// synthesize renders spoken audio when a synthesizer is configured.
// Failures degrade to a text-only response.
func (s *Server) synthesize(ctx context.Context, text string) string {
	if s.synthesizer == nil || text == "" {
		return ""
	}
	audio, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warn("speech synthesis failed", "error", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(audio)
}

// handleDevices lists all devices, in the same shape the model sees.
// Mainly for debugging.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	result := s.registry.Execute(r.Context(), "get_all_devices", map[string]any{})
	if !result.Ok() {
		data, _ := json.Marshal(result)
		s.logger.Error("device list failed", "result", string(data))
		writeJSON(w, http.StatusBadGateway, result, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, s.logger)
}
