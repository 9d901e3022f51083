package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/conversation"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/smarthome"
	"github.com/hearthd/hearth/internal/tools"
)

// fakeChatter echoes the message back and records the history it saw.
type fakeChatter struct {
	mu        sync.Mutex
	histories [][]conversation.Message
	result    *llm.ChatResult
	err       error
}

func (f *fakeChatter) Chat(_ context.Context, message string, history []conversation.Message) (*llm.ChatResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histories = append(f.histories, history)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &llm.ChatResult{
		Response:    "echo: " + message,
		ToolCalls:   []llm.ToolCallView{},
		ToolResults: []llm.ToolResult{},
		Actions:     []llm.Action{},
	}, nil
}

func (f *fakeChatter) Ping(context.Context) error { return nil }

func (f *fakeChatter) seenHistories() [][]conversation.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]conversation.Message, len(f.histories))
	copy(out, f.histories)
	return out
}

func newTestServer(t *testing.T, chatter Chatter) (*Server, *httptest.Server) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/devices":
			json.NewEncoder(w).Encode([]smarthome.Device{
				{ID: "d1", Name: "Desk Lamp", Type: "Bulb"},
			})
		case "/rooms":
			json.NewEncoder(w).Encode([]smarthome.Room{})
		case "/groups":
			json.NewEncoder(w).Encode([]smarthome.Group{})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(upstream.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := smarthome.NewClient(config.SmartHomeConfig{
		URL:              upstream.URL,
		RequestTimeout:   5 * time.Second,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		RetryBaseDelay:   time.Millisecond,
	}, logger)
	store := smarthome.NewStore(client)
	registry := tools.NewRegistry(store, tools.MidpointTilt{}, logger)
	sessions := conversation.NewManager(10, 5*time.Minute)

	srv := NewServer("", 0, chatter, sessions, store, registry, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, &fakeChatter{})

	var body map[string]any
	if status := getJSON(t, ts.URL+"/health", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
	sh, _ := body["smart_home"].(map[string]any)
	if sh["circuit_breaker"] != "closed" {
		t.Errorf("circuit_breaker = %v", sh["circuit_breaker"])
	}
}

func TestRootAndVersion(t *testing.T) {
	_, ts := newTestServer(t, &fakeChatter{})

	var root map[string]any
	getJSON(t, ts.URL+"/", &root)
	if root["name"] != "Hearth" {
		t.Errorf("name = %v", root["name"])
	}

	var version map[string]any
	getJSON(t, ts.URL+"/version", &version)
	if version["version"] == nil {
		t.Error("version missing")
	}
}

func TestChatCreatesSession(t *testing.T) {
	chatter := &fakeChatter{}
	srv, ts := newTestServer(t, chatter)

	var resp chatResponse
	status := postJSON(t, ts.URL+"/chat", chatRequest{Message: "hello"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.Response != "echo: hello" {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.SessionID == "" {
		t.Fatal("session_id missing from response")
	}

	history := srv.sessions.History(resp.SessionID)
	if len(history) != 2 {
		t.Fatalf("stored history = %d messages, want 2", len(history))
	}
	if history[0].Content != "hello" || history[1].Content != "echo: hello" {
		t.Errorf("stored history = %+v", history)
	}
}

func TestChatSessionContinuity(t *testing.T) {
	chatter := &fakeChatter{}
	_, ts := newTestServer(t, chatter)

	var first chatResponse
	postJSON(t, ts.URL+"/chat", chatRequest{Message: "first"}, &first)

	var second chatResponse
	postJSON(t, ts.URL+"/chat", chatRequest{Message: "second", SessionID: first.SessionID}, &second)
	if second.SessionID != first.SessionID {
		t.Errorf("session_id changed: %q != %q", second.SessionID, first.SessionID)
	}

	histories := chatter.seenHistories()
	if len(histories) != 2 {
		t.Fatalf("chatter called %d times", len(histories))
	}
	if len(histories[0]) != 0 {
		t.Errorf("first call history = %+v, want empty", histories[0])
	}
	if len(histories[1]) != 2 {
		t.Errorf("second call history = %d messages, want 2", len(histories[1]))
	}
}

func TestChatValidation(t *testing.T) {
	_, ts := newTestServer(t, &fakeChatter{})

	var out map[string]any
	if status := postJSON(t, ts.URL+"/chat", chatRequest{}, &out); status != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", status)
	}

	resp, err := http.Post(ts.URL+"/chat", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", resp.StatusCode)
	}
}

func TestChatErrorSurfacesAs500(t *testing.T) {
	chatter := &fakeChatter{err: context.DeadlineExceeded}
	_, ts := newTestServer(t, chatter)

	var out map[string]any
	if status := postJSON(t, ts.URL+"/chat", chatRequest{Message: "hi"}, &out); status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if out["error"] == nil {
		t.Error("error field missing")
	}
}

func TestDevices(t *testing.T) {
	_, ts := newTestServer(t, &fakeChatter{})

	var body map[string]any
	if status := getJSON(t, ts.URL+"/devices", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v", body["count"])
	}
}
