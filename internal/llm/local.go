package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/httpkit"
)

// generationMu serializes generation requests to the local runtime.
// The on-device accelerator handles one generation at a time; parallel
// requests thrash it. Held only around the HTTP call.
var generationMu sync.Mutex

// OllamaClient talks to an Ollama-compatible local runtime.
type OllamaClient struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewOllamaClient creates a client for the local provider.
func NewOllamaClient(cfg config.LocalConfig, gen config.LLMConfig, logger *slog.Logger) *OllamaClient {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL:     baseURL,
		model:       cfg.Model,
		maxTokens:   gen.MaxTokens,
		temperature: gen.Temperature,
		logger:      logger.With("provider", "local"),
		// Large local models take a while to load and generate.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(5 * time.Minute)),
	}
}

// Ollama wire types.

type ollamaRequest struct {
	Model    string           `json:"model"`
	Messages []ollamaMessage  `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Options  *ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model     string        `json:"model"`
	CreatedAt time.Time     `json:"created_at"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
}

// Chat sends a non-streaming chat request to the local runtime.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, tools []map[string]any, maxTokens int) (*ChatResponse, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	req := ollamaRequest{
		Model:    c.model,
		Messages: convertToOllama(messages),
		Stream:   false,
		Tools:    tools,
		Options: &ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  maxTokens,
		},
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	generationMu.Lock()
	resp, err := c.httpClient.Do(httpReq)
	generationMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		return nil, fmt.Errorf("ollama API error %d: %s", resp.StatusCode, errBody)
	}

	var wire ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Info("generation complete",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"eval_count", wire.EvalCount,
	)

	out := &ChatResponse{
		Model:     wire.Model,
		CreatedAt: wire.CreatedAt,
		Message: Message{
			Role:      wire.Message.Role,
			Content:   wire.Message.Content,
			ToolCalls: wire.Message.ToolCalls,
		},
		Done:          wire.Done,
		InputTokens:   wire.PromptEvalCount,
		OutputTokens:  wire.EvalCount,
		TotalDuration: time.Duration(wire.TotalDuration),
		EvalDuration:  time.Duration(wire.EvalDuration),
	}

	// Local models often emit tool calls as text instead of using the
	// native field.
	if len(out.Message.ToolCalls) == 0 && out.Message.Content != "" {
		if parsed := ExtractToolCalls(out.Message.Content); len(parsed) > 0 {
			out.Message.ToolCalls = parsed
			out.Message.Content = ""
		}
	}

	return out, nil
}

// convertToOllama renders neutral messages in Ollama's wire shape.
// Tool results are wrapped with the tool name so the model can match
// result to call without provider-assigned IDs.
func convertToOllama(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content, ToolCalls: m.ToolCalls}
		if m.Role == "tool" && m.Name != "" {
			wrapped, err := json.Marshal(map[string]any{
				"name":    m.Name,
				"content": json.RawMessage(m.Content),
			})
			if err == nil {
				om.Content = string(wrapped)
			}
		}
		out = append(out, om)
	}
	return out
}

// Ping checks if the local runtime is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}
	return nil
}
