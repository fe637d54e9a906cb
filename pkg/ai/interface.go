package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Classification is the verdict for one email body against one rule prompt.
type Classification struct {
	Matched    bool   `json:"matched"`
	Confidence int    `json:"confidence"` // 0-100
	Reasoning  string `json:"reasoning,omitempty"`
	Raw        string `json:"-"` // full model response, kept for the audit trail
}

// Classifier is the interface for LLM-backed email classification.
// Implement this interface to add new providers (Claude, Ollama, etc.)
type Classifier interface {
	// Classify answers whether the email body matches the rule's system prompt.
	Classify(ctx context.Context, emailBody, systemPrompt string) (*Classification, error)
	// CompilePrompt converts a natural-language rule description into a
	// system prompt a boolean classifier can reliably answer.
	CompilePrompt(ctx context.Context, description string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderClaude ProviderType = "claude"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

// ClampConfidence forces a confidence value into [0,100].
func ClampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// parseClassification parses a model response as a classification verdict.
// The response is untrusted: JSON is extracted from surrounding text and
// every field is validated before use.
func parseClassification(text string) (*Classification, error) {
	responseText := strings.TrimSpace(text)

	// Clean up markdown code blocks if present
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
	}
	responseText = strings.TrimSpace(responseText)

	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no JSON object in classifier response: %q", text)
	}
	responseText = responseText[jsonStart : jsonEnd+1]

	var raw struct {
		Matched    bool     `json:"matched"`
		Confidence *float64 `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response: %v", err)
	}

	confidence := 0
	if raw.Confidence != nil {
		confidence = ClampConfidence(int(*raw.Confidence))
	}

	return &Classification{
		Matched:    raw.Matched,
		Confidence: confidence,
		Reasoning:  raw.Reasoning,
		Raw:        text,
	}, nil
}
