package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hearthd/hearth/internal/conversation"
	"github.com/hearthd/hearth/internal/resilience"
	"github.com/hearthd/hearth/internal/snapshot"
	"github.com/hearthd/hearth/internal/tools"
)

// Orchestrator runs the tool-calling loop shared by all providers:
// build the contextual system prompt, let the model answer or call
// tools, execute the calls, and ask the model for a short spoken
// confirmation grounded in the results.
type Orchestrator struct {
	client   Client
	registry *tools.Registry
	context  *snapshot.Service
	dedup    *resilience.Deduplicator
	logger   *slog.Logger
}

// NewOrchestrator wires a provider client to the tool registry and
// context snapshot service.
func NewOrchestrator(client Client, registry *tools.Registry, context *snapshot.Service, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:   client,
		registry: registry,
		context:  context,
		dedup:    resilience.NewDeduplicator(resilience.DefaultDedupWindow, logger),
		logger:   logger.With("component", "orchestrator"),
	}
}

// Ping reports whether the underlying provider is reachable.
func (o *Orchestrator) Ping(ctx context.Context) error {
	return o.client.Ping(ctx)
}

// Chat processes one user message against the session history and
// returns the spoken response plus a record of any tool activity.
func (o *Orchestrator) Chat(ctx context.Context, userMessage string, history []conversation.Message) (*ChatResult, error) {
	messages := o.buildMessages(ctx, userMessage, history)

	resp, err := o.client.Chat(ctx, messages, o.registry.Specs(), 0)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	toolCalls := resp.Message.ToolCalls
	if len(toolCalls) == 0 {
		toolCalls = ExtractToolCalls(resp.Message.Content)
	}
	toolCalls = o.known(toolCalls)

	if len(toolCalls) == 0 {
		return formatResult(ScrubToolCalls(resp.Message.Content), nil, nil), nil
	}

	results := o.executeToolCalls(ctx, toolCalls)

	// Ask for a short confirmation grounded in the tool results.
	messages = append(messages, Message{
		Role:      "assistant",
		Content:   resp.Message.Content,
		ToolCalls: toolCalls,
	})
	for i, r := range results {
		messages = append(messages, Message{
			Role:       "tool",
			Content:    marshalResult(r.Result),
			ToolCallID: toolCalls[i].ID,
			Name:       r.Tool,
		})
	}
	messages = append(messages, Message{Role: "user", Content: followupInstruction(results)})

	followup, err := o.client.Chat(ctx, messages, nil, followupMaxTokens)
	if err != nil {
		// The actions already ran; surface them with a stock line
		// rather than failing the whole exchange.
		o.logger.Warn("follow-up generation failed", "error", err)
		return formatResult("Done.", toolCalls, results), nil
	}

	final := ScrubToolCalls(followup.Message.Content)
	if final == "" {
		final = ScrubToolCalls(resp.Message.Content)
	}
	return formatResult(final, toolCalls, results), nil
}

// buildMessages assembles system prompt + history + the new user turn.
func (o *Orchestrator) buildMessages(ctx context.Context, userMessage string, history []conversation.Message) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: o.systemPrompt(ctx)})
	for _, m := range history {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	return append(messages, Message{Role: "user", Content: userMessage})
}

// systemPrompt renders persona, tool guidance, and the current home
// state. A snapshot fetch failure degrades to an empty context block;
// the model can still hold a conversation without it.
func (o *Orchestrator) systemPrompt(ctx context.Context) string {
	contextJSON := "{}"
	if snap := o.context.Structured(ctx); snap != nil {
		if data, err := json.MarshalIndent(snap, "", "  "); err == nil {
			contextJSON = string(data)
		}
	}

	return fmt.Sprintf("%s\n\n%s\n\n<context>\n%s\n</context>\n\n%s",
		systemPrompt, toolInstructions, contextJSON, contextAdmonition)
}

// known drops tool calls whose name is not registered.
func (o *Orchestrator) known(calls []ToolCall) []ToolCall {
	kept := calls[:0]
	for _, tc := range calls {
		if !o.registry.Has(tc.Function.Name) {
			o.logger.Warn("unknown tool name", "tool", tc.Function.Name)
			continue
		}
		kept = append(kept, tc)
	}
	return kept
}

// executeToolCalls runs each call through the registry, skipping exact
// repeats inside the dedup window (models sometimes emit the same call
// twice in one response). Context caches are invalidated afterwards
// since device state may have changed.
func (o *Orchestrator) executeToolCalls(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))

	for _, tc := range calls {
		name, args := tc.Function.Name, tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}

		if o.dedup.IsDuplicate(resilience.Key(name, args)) {
			o.logger.Info("skipping duplicate tool call", "tool", name)
			results = append(results, ToolResult{
				Tool:      name,
				Arguments: args,
				Result: map[string]any{
					"success": true,
					"skipped": true,
					"reason":  "duplicate request",
				},
			})
			continue
		}

		o.logger.Info("executing tool", "tool", name, "args", args)
		results = append(results, ToolResult{
			Tool:      name,
			Arguments: args,
			Result:    o.executeTool(ctx, name, args),
		})
	}

	o.context.Invalidate()
	return results
}

// executeTool runs one call and decodes the typed result into the
// generic payload shape. Panics become failed results so one bad tool
// cannot take down the exchange.
func (o *Orchestrator) executeTool(ctx context.Context, name string, args map[string]any) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("tool panicked", "tool", name, "panic", r)
			result = map[string]any{"success": false, "error": fmt.Sprintf("internal error: %v", r)}
		}
	}()

	data, err := json.Marshal(o.registry.Execute(ctx, name, args))
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}
	return decoded
}

func marshalResult(result map[string]any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"success":false,"error":"unencodable result"}`
	}
	return string(data)
}

// followupInstruction picks the confirmation prompt: any success means
// confirm, total failure means explain.
func followupInstruction(results []ToolResult) string {
	for _, r := range results {
		if r.Success() {
			return followupSuccess
		}
	}
	return followupFailure
}

// formatResult shapes the caller-facing payload. Actions carry only
// successful state changes, identified by whichever of device, room,
// or group the result names.
func formatResult(response string, calls []ToolCall, results []ToolResult) *ChatResult {
	out := &ChatResult{
		Response:    response,
		ToolCalls:   make([]ToolCallView, 0, len(calls)),
		ToolResults: results,
		Actions:     []Action{},
	}
	if out.ToolResults == nil {
		out.ToolResults = []ToolResult{}
	}

	for _, tc := range calls {
		out.ToolCalls = append(out.ToolCalls, ToolCallView{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	for _, r := range results {
		if !r.Success() {
			continue
		}
		target := r.Result["device"]
		if target == nil {
			target = r.Result["room"]
		}
		if target == nil {
			target = r.Result["group"]
		}
		out.Actions = append(out.Actions, Action{
			Device:  target,
			Action:  r.Result["action"],
			Success: true,
		})
	}
	return out
}
