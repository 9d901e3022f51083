// Package config handles Hearth configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/hearth/config.yaml, /etc/hearth/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hearth", "config.yaml"))
	}

	paths = append(paths, "/etc/hearth/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Hearth configuration.
type Config struct {
	Listen       ListenConfig       `yaml:"listen"`
	SmartHome    SmartHomeConfig    `yaml:"smarthome"`
	LLM          LLMConfig          `yaml:"llm"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	Local        LocalConfig        `yaml:"local"`
	Conversation ConversationConfig `yaml:"conversation"`
	LogLevel     string             `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// SmartHomeConfig defines the upstream smart-home API connection and
// the resilience tuning for calls against it.
type SmartHomeConfig struct {
	URL string `yaml:"url"`

	// RequestTimeout bounds a single upstream request. Retries and the
	// backoff ceiling bound the overall call, not a caller deadline.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`

	// TiltProfile selects the tilting-blind openness mapping:
	// "midpoint" (fully open = mid-scale, close downward) or
	// "linear" (openness maps 1:1 onto the actuator scale).
	TiltProfile string `yaml:"tilt_profile"`
}

// LLMConfig selects the provider and shared generation settings.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // local, openai, anthropic
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// OpenAIConfig defines OpenAI API settings.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// LocalConfig defines the on-device model runtime settings.
type LocalConfig struct {
	URL   string `yaml:"url"` // Ollama-compatible runtime (default http://localhost:11434)
	Model string `yaml:"model"`
}

// ConversationConfig defines session history limits.
type ConversationConfig struct {
	MaxHistory int           `yaml:"max_history"` // messages kept per session
	SessionTTL time.Duration `yaml:"session_ttl"` // idle time before a session expires
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 3002},
		SmartHome: SmartHomeConfig{
			URL:              "http://localhost:3001/api",
			RequestTimeout:   10 * time.Second,
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			MaxRetries:       3,
			RetryBaseDelay:   500 * time.Millisecond,
			TiltProfile:      "midpoint",
		},
		LLM: LLMConfig{
			Provider:    "local",
			MaxTokens:   512,
			Temperature: 0.5,
		},
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic: AnthropicConfig{Model: "claude-haiku-4-5-20251001"},
		Local: LocalConfig{
			URL:   "http://localhost:11434",
			Model: "qwen2.5:14b",
		},
		Conversation: ConversationConfig{
			MaxHistory: 10,
			SessionTTL: 5 * time.Minute,
		},
	}
}
