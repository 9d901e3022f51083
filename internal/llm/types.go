// Package llm provides LLM provider clients and tool-call orchestration.
package llm

import "time"

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
	Name       string     `json:"name,omitempty"`         // Tool name on tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"` // Provider-assigned ID (required by Anthropic and OpenAI for result correlation)
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// NewToolCall builds a ToolCall without the struct-literal noise of the
// anonymous Function type.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	var tc ToolCall
	tc.ID = id
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

// ChatResponse is the unified response from any LLM provider.
// All fields use proper Go types; wire format conversion happens
// at provider boundaries (local.go, openai.go, anthropic.go).
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message
	Done      bool

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int

	// Timing (populated when available)
	TotalDuration time.Duration
	EvalDuration  time.Duration
}

// ToolCallView is the caller-facing shape of an executed tool call.
type ToolCallView struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult pairs a tool call with its decoded result payload.
type ToolResult struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    map[string]any `json:"result"`
}

// Success reports whether the result payload claims success.
func (r ToolResult) Success() bool {
	ok, _ := r.Result["success"].(bool)
	return ok
}

// Action summarizes one successful state change for API consumers.
type Action struct {
	Device  any  `json:"device"` // device, room, or group name
	Action  any  `json:"action"`
	Success bool `json:"success"`
}

// ChatResult is the orchestrator's answer to one user message.
type ChatResult struct {
	Response    string         `json:"response"`
	ToolCalls   []ToolCallView `json:"tool_calls"`
	ToolResults []ToolResult   `json:"tool_results"`
	Actions     []Action       `json:"actions"`
}
