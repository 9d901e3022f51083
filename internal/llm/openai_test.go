package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthd/hearth/internal/config"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(
		config.OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini"},
		config.LLMConfig{MaxTokens: 512, Temperature: 0.5},
		nil,
	)
	if err != nil {
		t.Fatalf("NewOpenAIClient() error: %v", err)
	}
	client.baseURL = server.URL
	return client
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(config.OpenAIConfig{Model: "gpt-4o-mini"}, config.LLMConfig{}, nil)
	if err == nil {
		t.Fatal("NewOpenAIClient() error = nil, want missing-key error")
	}
}

func TestOpenAIChatRequestShape(t *testing.T) {
	var captured map[string]any
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"finish_reason": "stop", "message": {"role": "assistant", "content": "hi"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2}
		}`))
	})

	resp, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hello"}}, nil, 0)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Message.Content != "hi" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 10 || resp.OutputTokens != 2 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}

	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", captured["model"])
	}
	if captured["max_tokens"] != float64(512) {
		t.Errorf("max_tokens = %v", captured["max_tokens"])
	}
	if captured["temperature"] != 0.5 {
		t.Errorf("temperature = %v", captured["temperature"])
	}
}

func TestOpenAIChatParsesToolCalls(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{"finish_reason": "tool_calls", "message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call-abc",
					"type": "function",
					"function": {"name": "control_device", "arguments": "{\"device_name\": \"Desk Lamp\", \"on\": true}"}
				}]
			}}]
		}`))
	})

	resp, err := client.Chat(context.Background(), nil, nil, 0)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "call-abc" || tc.Function.Name != "control_device" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Function.Arguments["on"] != true {
		t.Errorf("arguments = %v", tc.Function.Arguments)
	}
}

func TestOpenAIChatSkipsUnparsableArguments(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{"message": {
				"role": "assistant",
				"tool_calls": [{"id": "x", "type": "function", "function": {"name": "bad", "arguments": "not json"}}]
			}}]
		}`))
	})

	resp, err := client.Chat(context.Background(), nil, nil, 0)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if len(resp.Message.ToolCalls) != 0 {
		t.Errorf("tool calls = %+v, want none", resp.Message.ToolCalls)
	}
}

func TestConvertToOpenAI(t *testing.T) {
	messages := []Message{
		{Role: "assistant", Content: "", ToolCalls: []ToolCall{
			NewToolCall("call-1", "control_device", map[string]any{"on": true}),
		}},
		{Role: "tool", ToolCallID: "call-1", Name: "control_device", Content: `{"success":true}`},
	}

	wire := convertToOpenAI(messages)
	if len(wire) != 2 {
		t.Fatalf("wire messages = %d, want 2", len(wire))
	}

	assistant := wire[0]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant tool calls = %d", len(assistant.ToolCalls))
	}
	tc := assistant.ToolCalls[0]
	if tc.Type != "function" || tc.ID != "call-1" {
		t.Errorf("tool call = %+v", tc)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not string-encoded JSON: %v", err)
	}
	if args["on"] != true {
		t.Errorf("arguments = %v", args)
	}

	toolMsg := wire[1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call-1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	if toolMsg.Content != `{"success":true}` {
		t.Errorf("tool content = %q", toolMsg.Content)
	}
}

func TestOpenAIChatNoChoices(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	if _, err := client.Chat(context.Background(), nil, nil, 0); err == nil {
		t.Fatal("Chat() error = nil, want no-choices error")
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid key"}}`, http.StatusUnauthorized)
	})

	if _, err := client.Chat(context.Background(), nil, nil, 0); err == nil {
		t.Fatal("Chat() error = nil, want API error")
	}
}
