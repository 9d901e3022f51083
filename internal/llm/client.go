package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hearthd/hearth/internal/config"
)

// Client is the interface that all LLM providers implement.
// Messages use the neutral [Message] shape; each provider converts to
// its own wire format. maxTokens overrides the configured generation
// limit when positive (used for short follow-up turns).
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []Message, tools []map[string]any, maxTokens int) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// NewClient constructs the provider selected by cfg.LLM.Provider.
// Cloud providers fail here, before any network call, when their API
// key is missing.
func NewClient(cfg *config.Config, logger *slog.Logger) (Client, error) {
	switch cfg.LLM.Provider {
	case "local":
		return NewOllamaClient(cfg.Local, cfg.LLM, logger), nil
	case "openai":
		return NewOpenAIClient(cfg.OpenAI, cfg.LLM, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.Anthropic, cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (expected local, openai, or anthropic)", cfg.LLM.Provider)
	}
}
