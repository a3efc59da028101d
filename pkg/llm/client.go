// Package llm provides a small client for chat completion services. OpenAI,
// DeepSeek and local Ollama servers share the OpenAI protocol; Claude and
// Gemini have their own request shapes behind the same Client interface.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	OpenAI   Provider = "openai"
	DeepSeek Provider = "deepseek"
	Ollama   Provider = "ollama"
	Claude   Provider = "claude"
	Gemini   Provider = "gemini"
)

var defaultBaseURLs = map[Provider]string{
	OpenAI:   "https://api.openai.com/v1",
	DeepSeek: "https://api.deepseek.com/v1",
	Ollama:   "http://localhost:11434/v1",
	Claude:   "https://api.anthropic.com/v1",
	Gemini:   "https://generativelanguage.googleapis.com/v1beta",
}

var defaultModels = map[Provider]string{
	OpenAI:   "gpt-4o-mini",
	DeepSeek: "deepseek-chat",
	Ollama:   "llama3.2",
	Claude:   "claude-3-5-haiku-20241022",
	Gemini:   "gemini-2.0-flash",
}

// Config holds configuration for an LLM client.
type Config struct {
	Provider    Provider      `yaml:"provider" json:"provider" env:"LLM_PROVIDER"`
	Model       string        `yaml:"model" json:"model" env:"LLM_MODEL"`
	APIKey      string        `yaml:"api_key" json:"api_key" env:"LLM_API_KEY"`
	BaseURL     string        `yaml:"base_url" json:"base_url" env:"LLM_BASE_URL"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    DeepSeek,
		Model:       defaultModels[DeepSeek],
		Timeout:     60 * time.Second,
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

// Client is the unified interface for LLM interactions.
type Client interface {
	// Generate sends a prompt and returns the LLM response.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Provider returns the name of the provider.
	Provider() Provider

	// Close releases any resources held by the client.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request holds the parameters for an LLM generation request.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response holds the result of an LLM generation.
type Response struct {
	Content      string  `json:"content"`
	FinishReason string  `json:"finish_reason,omitempty"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	Cost         float64 `json:"cost"`
	Model        string  `json:"model"`
	LatencyMs    int64   `json:"latency_ms"`
}

// NewClient creates a new LLM client based on the provided config.
func NewClient(cfg Config) (Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = DeepSeek
	}
	base, ok := defaultBaseURLs[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = base
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.APIKey == "" && cfg.Provider != Ollama {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	switch cfg.Provider {
	case Claude:
		return newClaudeClient(cfg), nil
	case Gemini:
		return newGeminiClient(cfg), nil
	default:
		return newChatClient(cfg), nil
	}
}
