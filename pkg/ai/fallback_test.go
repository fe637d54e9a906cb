package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClassifier returns canned results for fallback routing tests
type stubClassifier struct {
	classification *Classification
	prompt         string
	err            error
	calls          int
}

func (s *stubClassifier) Classify(ctx context.Context, emailBody, systemPrompt string) (*Classification, error) {
	s.calls++
	return s.classification, s.err
}

func (s *stubClassifier) CompilePrompt(ctx context.Context, description string) (string, error) {
	s.calls++
	return s.prompt, s.err
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:11434: connection refused"), expected: true},
		{name: "no such host", err: errors.New("lookup api.anthropic.com: no such host"), expected: true},
		{name: "context deadline", err: context.DeadlineExceeded, expected: true},
		{name: "provider rejection", err: errors.New("anthropic API error (400): invalid model"), expected: false},
		{name: "parse failure", err: errors.New("no JSON object in classifier response"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsConnectionError(tt.err))
		})
	}
}

func TestFallbackClassifyUsesClaudeWhenHealthy(t *testing.T) {
	claude := &stubClassifier{classification: &Classification{Matched: true, Confidence: 80}}
	ollama := &stubClassifier{classification: &Classification{Matched: false}}

	svc := NewFallbackService(claude, ollama)
	result, err := svc.Classify(context.Background(), "body", "rule")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, 0, ollama.calls)
}

func TestFallbackClassifyFallsBackOnConnectionError(t *testing.T) {
	claude := &stubClassifier{err: errors.New("dial tcp: connection refused")}
	ollama := &stubClassifier{classification: &Classification{Matched: true, Confidence: 60}}

	svc := NewFallbackService(claude, ollama)
	result, err := svc.Classify(context.Background(), "body", "rule")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, 1, claude.calls)
	assert.Equal(t, 1, ollama.calls)
}

func TestFallbackClassifyDoesNotFallBackOnProviderError(t *testing.T) {
	claude := &stubClassifier{err: errors.New("anthropic API error (400): bad request")}
	ollama := &stubClassifier{classification: &Classification{Matched: true}}

	svc := NewFallbackService(claude, ollama)
	_, err := svc.Classify(context.Background(), "body", "rule")
	require.Error(t, err)
	assert.Equal(t, 0, ollama.calls)
}

func TestFallbackCompilePromptFallsBackOnQuotaError(t *testing.T) {
	claude := &stubClassifier{err: errors.New("anthropic API error (429): rate limit exceeded")}
	ollama := &stubClassifier{prompt: "Is this email spam?"}

	svc := NewFallbackService(claude, ollama)
	prompt, err := svc.CompilePrompt(context.Background(), "spam")
	require.NoError(t, err)
	assert.Equal(t, "Is this email spam?", prompt)
}
