package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient_InvalidProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "invalid", APIKey: "test"})
	if err == nil {
		t.Fatal("expected error for invalid provider")
	}
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	for _, p := range []Provider{OpenAI, DeepSeek, Claude, Gemini} {
		_, err := NewClient(Config{Provider: p})
		if err == nil {
			t.Fatalf("expected error for %s without API key", p)
		}
	}
}

func TestNewClient_OllamaNeedsNoKey(t *testing.T) {
	client, err := NewClient(Config{Provider: Ollama})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
	if client.Provider() != Ollama {
		t.Fatalf("expected Ollama provider, got %s", client.Provider())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != DeepSeek {
		t.Fatalf("expected deepseek, got %s", cfg.Provider)
	}
	if cfg.Model != "deepseek-chat" {
		t.Fatalf("expected deepseek-chat, got %s", cfg.Model)
	}
	if cfg.Temperature != 0.7 || cfg.MaxTokens != 500 {
		t.Fatalf("unexpected generation knobs: %+v", cfg)
	}
}

func TestGenerate_SendsChatRequest(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"deepseek-chat","choices":[{"message":{"role":"assistant","content":"<think>hmm</think> Trends emerged."},"finish_reason":"stop"}],"usage":{"prompt_tokens":1000,"completion_tokens":500}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{Provider: DeepSeek, APIKey: "sk-test", BaseURL: srv.URL, MaxTokens: 500, Temperature: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Generate(context.Background(), &Request{
		System:   "You are an analyst.",
		Messages: []Message{{Role: "user", Content: "titles"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if auth != "Bearer sk-test" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("expected system+user messages, got %+v", got.Messages)
	}
	if got.MaxTokens != 500 || got.Temperature != 0.7 || got.Stream {
		t.Errorf("unexpected knobs: %+v", got)
	}
	if resp.Content != "Trends emerged." {
		t.Errorf("expected think tags stripped, got %q", resp.Content)
	}
	if resp.Cost <= 0 {
		t.Errorf("expected positive cost for deepseek-chat, got %f", resp.Cost)
	}
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{Provider: OpenAI, APIKey: "bad", BaseURL: srv.URL})
	_, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil || !strings.Contains(err.Error(), "invalid key") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{Provider: Ollama, BaseURL: srv.URL})
	if _, err := client.Generate(context.Background(), &Request{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewClient_ProviderDefaults(t *testing.T) {
	tests := []struct {
		provider Provider
		model    string
	}{
		{Claude, "claude-3-5-haiku-20241022"},
		{Gemini, "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			client, err := NewClient(Config{Provider: tt.provider, APIKey: "k"})
			if err != nil {
				t.Fatal(err)
			}
			if client.Provider() != tt.provider {
				t.Errorf("provider = %s", client.Provider())
			}
			var cfg Config
			switch c := client.(type) {
			case *claudeClient:
				cfg = c.cfg
			case *geminiClient:
				cfg = c.cfg
			default:
				t.Fatalf("unexpected client type %T", client)
			}
			if cfg.Model != tt.model || cfg.BaseURL != defaultBaseURLs[tt.provider] {
				t.Errorf("unexpected defaults %+v", cfg)
			}
		})
	}
}

func TestClaudeGenerate(t *testing.T) {
	var got claudeRequest
	var key, version string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		key = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"claude-3-5-haiku-20241022","stop_reason":"end_turn","content":[{"type":"text","text":"Research on "},{"type":"text","text":"language delay grew."}],"usage":{"input_tokens":1000,"output_tokens":200}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{Provider: Claude, APIKey: "ck", BaseURL: srv.URL, MaxTokens: 500, Temperature: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Generate(context.Background(), &Request{
		System:   "You are an analyst.",
		Messages: []Message{{Role: "user", Content: "titles"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if key != "ck" || version != anthropicVersion {
		t.Errorf("unexpected headers %q %q", key, version)
	}
	if got.System != "You are an analyst." || len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("system prompt must travel outside messages: %+v", got)
	}
	if got.MaxTokens != 500 || got.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("unexpected knobs %+v", got)
	}
	if resp.Content != "Research on language delay grew." || resp.FinishReason != "end_turn" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Cost <= 0 {
		t.Errorf("expected positive cost, got %f", resp.Cost)
	}
}

func TestClaudeGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{Provider: Claude, APIKey: "bad", BaseURL: srv.URL})
	_, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil || !strings.Contains(err.Error(), "invalid x-api-key") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestGeminiGenerate(t *testing.T) {
	var got geminiRequest
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" Apraxia studies dominated. "}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":800,"candidatesTokenCount":100}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{Provider: Gemini, APIKey: "gk", BaseURL: srv.URL, MaxTokens: 500})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Generate(context.Background(), &Request{
		System:   "You are an analyst.",
		Messages: []Message{{Role: "user", Content: "titles"}, {Role: "assistant", Content: "ok"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if path != "/models/gemini-2.0-flash:generateContent" || key != "gk" {
		t.Errorf("unexpected request %q key=%q", path, key)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "You are an analyst." {
		t.Errorf("missing system instruction: %+v", got)
	}
	if len(got.Contents) != 2 || got.Contents[1].Role != "model" {
		t.Errorf("assistant turns must map to model: %+v", got.Contents)
	}
	if got.GenerationConfig.MaxOutputTokens != 500 || got.GenerationConfig.ThinkingConfig == nil {
		t.Errorf("unexpected generation config %+v", got.GenerationConfig)
	}
	if resp.Content != "Apraxia studies dominated." || resp.TokensIn != 800 || resp.Model != "gemini-2.0-flash" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestGeminiGenerate_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{Provider: Gemini, APIKey: "k", BaseURL: srv.URL})
	if _, err := client.Generate(context.Background(), &Request{}); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestEstimateCost(t *testing.T) {
	cost := EstimateCost("gpt-4o-mini", 1000, 500)
	expected := 0.00015 + 0.0003
	if cost < expected*0.9 || cost > expected*1.1 {
		t.Fatalf("cost %f not in expected range around %f", cost, expected)
	}
	if EstimateCost("llama3.2", 1000, 500) != 0 {
		t.Fatal("expected 0 cost for local model")
	}
}

func TestStripThinkTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no tags", "Hello world", "Hello world"},
		{"with think tags", "<think>reasoning here</think>Actual response", "Actual response"},
		{"multiline think", "<think>\nstep 1\nstep 2\n</think>\nFinal answer", "Final answer"},
		{"empty content", "", ""},
		{"only think", "<think>only thinking</think>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripThinkTags(tt.input)
			if got != tt.expected {
				t.Errorf("stripThinkTags(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
