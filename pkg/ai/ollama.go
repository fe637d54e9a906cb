package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaService implements Classifier using an Ollama local LLM
type OllamaService struct {
	baseURL string
	model   string
}

// NewOllamaService creates a new Ollama-backed classifier
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaService{
		baseURL: baseURL,
		model:   model,
	}
}

// Classify implements Classifier
func (o *OllamaService) Classify(ctx context.Context, emailBody, systemPrompt string) (*Classification, error) {
	prompt := fmt.Sprintf(`%s

Email Body:
---
%s
---

Rule to evaluate:
%s

Does this email match the rule? Respond with JSON only.`, classifierSystemPrompt, emailBody, systemPrompt)

	text, err := o.generate(ctx, prompt, 0)
	if err != nil {
		return nil, err
	}

	return parseClassification(text)
}

// CompilePrompt implements Classifier
func (o *OllamaService) CompilePrompt(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf(`%s

Convert this user rule into a system prompt. Respond with the system prompt text only, no preamble:

%s`, promptCompilerSystemPrompt, description)

	text, err := o.generate(ctx, prompt, 0.3)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}

func (o *OllamaService) generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	url := o.baseURL + "/api/generate"

	payload := map[string]interface{}{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": temperature,
			"num_predict": 500,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Response, nil
}
