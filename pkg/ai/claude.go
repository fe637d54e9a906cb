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

const anthropicVersion = "2023-06-01"

// classifierSystemPrompt instructs the model to answer with bare JSON only.
const classifierSystemPrompt = `You are an email classifier. Analyze emails and determine if they match specific criteria.

You must respond with ONLY valid JSON in this exact format:
{
  "matched": true or false,
  "confidence": number between 0-100,
  "reasoning": "brief explanation of why this matched or didn't match"
}

Do not include any text before or after the JSON.`

const promptCompilerSystemPrompt = `You are a prompt engineer. Convert user's natural language email filtering rules into precise system prompts for an AI email classifier.

The system prompt should be:
- Clear and unambiguous
- Focused on identifying specific email characteristics
- Written in a way that can return a boolean match decision

Examples:
User: "Cold sales emails"
Output: "Is this email an unsolicited sales outreach (cold email) trying to sell a product or service? Consider indicators like: mentions of products/services, asks for meetings, sender from sales role, marketing language."

User: "Newsletters I don't read"
Output: "Is this email a newsletter or promotional content? Look for: bulk email indicators, unsubscribe links, marketing language, promotional offers, not personally addressed."`

// ClaudeService implements Classifier using the Anthropic Messages API
type ClaudeService struct {
	apiKey          string
	baseURL         string
	classifierModel string
	promptModel     string
	httpClient      *http.Client
}

// NewClaudeService creates a new Claude-backed classifier.
// classifierModel should be a fast model; promptModel a stronger one for
// instruction following during prompt compilation.
func NewClaudeService(apiKey, classifierModel, promptModel string) *ClaudeService {
	if classifierModel == "" {
		classifierModel = "claude-3-5-haiku-20241022"
	}
	if promptModel == "" {
		promptModel = "claude-sonnet-4-5-20250929"
	}
	return &ClaudeService{
		apiKey:          apiKey,
		baseURL:         "https://api.anthropic.com",
		classifierModel: classifierModel,
		promptModel:     promptModel,
		httpClient:      &http.Client{},
	}
}

// NewClaudeServiceWithBaseURL is used by tests to point at a stub server.
func NewClaudeServiceWithBaseURL(apiKey, classifierModel, promptModel, baseURL string) *ClaudeService {
	svc := NewClaudeService(apiKey, classifierModel, promptModel)
	svc.baseURL = strings.TrimSuffix(baseURL, "/")
	return svc
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Classify implements Classifier. Temperature is zero so repeated
// classification of the same email is reproducible.
func (c *ClaudeService) Classify(ctx context.Context, emailBody, systemPrompt string) (*Classification, error) {
	userMessage := fmt.Sprintf(`Email Body:
---
%s
---

Rule to evaluate:
%s

Does this email match the rule? Respond with JSON only.`, emailBody, systemPrompt)

	text, err := c.complete(ctx, claudeRequest{
		Model:       c.classifierModel,
		MaxTokens:   500,
		Temperature: 0,
		System:      classifierSystemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		return nil, err
	}

	return parseClassification(text)
}

// CompilePrompt implements Classifier. Single call, no retries; a failure
// surfaces directly to the caller.
func (c *ClaudeService) CompilePrompt(ctx context.Context, description string) (string, error) {
	text, err := c.complete(ctx, claudeRequest{
		Model:       c.promptModel,
		MaxTokens:   500,
		Temperature: 0.3,
		System:      promptCompilerSystemPrompt,
		Messages: []claudeMessage{{
			Role:    "user",
			Content: fmt.Sprintf("Convert this user rule into a system prompt:\n\n%s", description),
		}},
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}

func (c *ClaudeService) complete(ctx context.Context, payload claudeRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result claudeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", result.Error.Message)
	}
	if len(result.Content) == 0 || result.Content[0].Type != "text" {
		return "", fmt.Errorf("unexpected response type from model")
	}

	return result.Content[0].Text, nil
}
