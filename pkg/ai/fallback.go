package ai

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
)

// FallbackService routes classification to Claude first and falls back to a
// local Ollama model when Claude is unreachable or out of quota.
type FallbackService struct {
	claude Classifier
	ollama Classifier
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(claude, ollama Classifier) *FallbackService {
	return &FallbackService{
		claude: claude,
		ollama: ollama,
	}
}

// IsConnectionError reports whether the error looks like a network/transport
// failure rather than a provider-level rejection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(net.Error); ok {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"dial tcp",
		"eof",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"overloaded",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// Classify tries Claude first, falls back to Ollama on connection or quota errors
func (f *FallbackService) Classify(ctx context.Context, emailBody, systemPrompt string) (*Classification, error) {
	if f.claude != nil {
		result, err := f.claude.Classify(ctx, emailBody, systemPrompt)
		if err == nil {
			return result, nil
		}
		if !IsConnectionError(err) && !isQuotaError(err) {
			return nil, err
		}
		log.Printf("[AI] Claude classification failed: %v, falling back to Ollama", err)
	}

	if f.ollama != nil {
		return f.ollama.Classify(ctx, emailBody, systemPrompt)
	}

	return nil, fmt.Errorf("no AI provider available for classification")
}

// CompilePrompt tries Claude first for instruction following quality
func (f *FallbackService) CompilePrompt(ctx context.Context, description string) (string, error) {
	if f.claude != nil {
		result, err := f.claude.CompilePrompt(ctx, description)
		if err == nil {
			return result, nil
		}
		if !IsConnectionError(err) && !isQuotaError(err) {
			return "", err
		}
		log.Printf("[AI] Claude prompt compilation failed: %v, falling back to Ollama", err)
	}

	if f.ollama != nil {
		return f.ollama.CompilePrompt(ctx, description)
	}

	return "", fmt.Errorf("no AI provider available for prompt compilation")
}
