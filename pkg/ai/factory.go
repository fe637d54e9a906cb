package ai

import (
	"fmt"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "claude", "ollama" or "auto"

	// Claude config
	AnthropicAPIKey string
	ClassifierModel string
	PromptModel     string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"
}

// NewClassifier creates a Classifier based on the config.
// This is the factory function - switch AI provider by changing cfg.Provider.
func NewClassifier(cfg Config) (Classifier, error) {
	switch cfg.Provider {
	case ProviderClaude:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Claude provider")
		}
		return NewClaudeService(cfg.AnthropicAPIKey, cfg.ClassifierModel, cfg.PromptModel), nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	case ProviderAuto:
		if cfg.AnthropicAPIKey == "" {
			return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil
		}
		claude := NewClaudeService(cfg.AnthropicAPIKey, cfg.ClassifierModel, cfg.PromptModel)
		ollama := NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
		return NewFallbackService(claude, ollama), nil

	default:
		// Default to Claude if an API key is available, otherwise Ollama
		if cfg.AnthropicAPIKey != "" {
			return NewClaudeService(cfg.AnthropicAPIKey, cfg.ClassifierModel, cfg.PromptModel), nil
		}
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	}
}
