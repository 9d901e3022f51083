package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hearthd/hearth/internal/llm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The assistant runs on a trusted home network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsInbound is a client frame.
//
// Protocol:
//   - {"type": "text", "message": "...", "include_audio": false}
//   - {"type": "audio", "data": "<base64>", "format": "wav", "language": "en"}
//   - {"type": "ping"}
type wsInbound struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	IncludeAudio bool   `json:"include_audio,omitempty"`
	Data         string `json:"data,omitempty"`
	Format       string `json:"format,omitempty"`
	Language     string `json:"language,omitempty"`
}

// wsOutbound is a server frame: "response", "transcript", "pong",
// or "error".
type wsOutbound struct {
	Type       string       `json:"type"`
	Transcript string       `json:"transcript,omitempty"`
	Text       string       `json:"text,omitempty"`
	Language   string       `json:"language,omitempty"`
	Response   string       `json:"response,omitempty"`
	Audio      string       `json:"audio,omitempty"`
	Actions    []llm.Action `json:"actions,omitempty"`
	Message    string       `json:"message,omitempty"` // error detail
}

// wsSession is one WebSocket connection. Each connection gets its own
// conversation session, dropped on disconnect.
type wsSession struct {
	conn      *websocket.Conn
	sessionID string
	server    *Server
	logger    *slog.Logger
	writeMu   sync.Mutex
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	session := &wsSession{
		conn:      conn,
		sessionID: sessionID,
		server:    s,
		logger:    s.logger.With("session_id", sessionID),
	}

	session.logger.Info("websocket client connected")
	defer func() {
		conn.Close()
		s.sessions.Remove(sessionID)
		session.logger.Info("websocket client disconnected")
	}()

	session.run()
}

func (ws *wsSession) run() {
	for {
		var msg wsInbound
		if err := ws.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				ws.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		switch msg.Type {
		case "text":
			ws.handleText(msg)
		case "audio":
			ws.handleAudio(msg)
		case "ping":
			ws.send(wsOutbound{Type: "pong"})
		default:
			ws.send(wsOutbound{Type: "error", Message: "Unknown message type: " + msg.Type})
		}
	}
}

func (ws *wsSession) handleText(msg wsInbound) {
	if msg.Message == "" {
		ws.send(wsOutbound{Type: "error", Message: "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := ws.server.chat(ctx, ws.sessionID, msg.Message)
	if err != nil {
		ws.logger.Error("chat failed", "error", err)
		ws.send(wsOutbound{Type: "error", Message: err.Error()})
		return
	}

	out := wsOutbound{
		Type:       "response",
		Transcript: msg.Message,
		Response:   result.Response,
		Actions:    result.Actions,
	}
	if msg.IncludeAudio {
		out.Audio = ws.server.synthesize(ctx, result.Response)
	}
	ws.send(out)
}

func (ws *wsSession) handleAudio(msg wsInbound) {
	if ws.server.transcriber == nil {
		ws.send(wsOutbound{Type: "error", Message: "speech recognition is not configured"})
		return
	}

	audio, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		ws.send(wsOutbound{Type: "error", Message: "invalid base64 audio data"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	format := msg.Format
	if format == "" {
		format = "wav"
	}
	text, language, err := ws.server.transcriber.Transcribe(ctx, audio, format, msg.Language)
	if err != nil {
		ws.logger.Error("transcription failed", "error", err)
		ws.send(wsOutbound{Type: "error", Message: err.Error()})
		return
	}

	// Send the transcript right away so the client can show it while
	// the model thinks.
	ws.send(wsOutbound{Type: "transcript", Text: text, Language: language})

	result, err := ws.server.chat(ctx, ws.sessionID, text)
	if err != nil {
		ws.logger.Error("chat failed", "error", err)
		ws.send(wsOutbound{Type: "error", Message: err.Error()})
		return
	}

	ws.send(wsOutbound{
		Type:       "response",
		Transcript: text,
		Response:   result.Response,
		Actions:    result.Actions,
		Audio:      ws.server.synthesize(ctx, result.Response),
	})
}

func (ws *wsSession) send(msg wsOutbound) {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteJSON(msg); err != nil {
		ws.logger.Debug("websocket write failed", "error", err)
	}
}
