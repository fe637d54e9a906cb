package usecase

import (
	"context"

	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
	"github.com/devspinn/dtown-email/internal/rule/dto"
)

// TestOutcome is the dry-run verdict for one email
type TestOutcome struct {
	EmailID    string `json:"email_id"`
	Subject    string `json:"subject"`
	From       string `json:"from"`
	Matched    bool   `json:"matched"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TestResult is a full dry run of one rule over recent emails. Nothing is
// labeled, archived, or recorded in the audit trail.
type TestResult struct {
	RuleID   string        `json:"rule_id"`
	RuleName string        `json:"rule_name"`
	Tested   int           `json:"tested"`
	Matched  int           `json:"matched"`
	Outcomes []TestOutcome `json:"outcomes"`
}

// RuleUsecase defines the interface for rule management
type RuleUsecase interface {
	CreateRule(ctx context.Context, userID string, req *dto.CreateRuleRequest) (*ruledomain.Rule, error)
	ListRules(userID string) ([]*ruledomain.Rule, error)
	GetRule(userID, ruleID string) (*ruledomain.Rule, error)
	UpdateRule(ctx context.Context, userID, ruleID string, req *dto.UpdateRuleRequest) (*ruledomain.Rule, error)
	// ToggleRule flips the active flag
	ToggleRule(userID, ruleID string) (*ruledomain.Rule, error)
	DeleteRule(userID, ruleID string) error

	// CompilePrompt previews the classifier prompt compiled from a
	// natural-language description
	CompilePrompt(ctx context.Context, description string) (string, error)
	// TestRule syncs, then classifies the most recent limit cached emails
	// against the rule without executing any action
	TestRule(ctx context.Context, userID, ruleID string, limit int) (*TestResult, error)
	// ApplyToEmails executes the rule's action against exactly the selected
	// emails, bypassing classification. Returns how many succeeded.
	ApplyToEmails(ctx context.Context, userID, ruleID string, emailIDs []string) (int, error)
}
