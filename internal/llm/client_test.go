package llm

import (
	"testing"

	"github.com/hearthd/hearth/internal/config"
)

func TestNewClientProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantType string
		wantErr  bool
	}{
		{
			name:     "local",
			mutate:   func(c *config.Config) { c.LLM.Provider = "local" },
			wantType: "*llm.OllamaClient",
		},
		{
			name: "openai with key",
			mutate: func(c *config.Config) {
				c.LLM.Provider = "openai"
				c.OpenAI.APIKey = "k"
			},
			wantType: "*llm.OpenAIClient",
		},
		{
			name:    "openai without key",
			mutate:  func(c *config.Config) { c.LLM.Provider = "openai" },
			wantErr: true,
		},
		{
			name: "anthropic with key",
			mutate: func(c *config.Config) {
				c.LLM.Provider = "anthropic"
				c.Anthropic.APIKey = "k"
			},
			wantType: "*llm.AnthropicClient",
		},
		{
			name:    "anthropic without key",
			mutate:  func(c *config.Config) { c.LLM.Provider = "anthropic" },
			wantErr: true,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *config.Config) { c.LLM.Provider = "bard" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			client, err := NewClient(cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewClient() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() error: %v", err)
			}

			var gotType string
			switch client.(type) {
			case *OllamaClient:
				gotType = "*llm.OllamaClient"
			case *OpenAIClient:
				gotType = "*llm.OpenAIClient"
			case *AnthropicClient:
				gotType = "*llm.AnthropicClient"
			}
			if gotType != tt.wantType {
				t.Errorf("client type = %s, want %s", gotType, tt.wantType)
			}
		})
	}
}
