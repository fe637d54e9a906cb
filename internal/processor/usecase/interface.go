package usecase

import (
	"context"

	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
	processordomain "github.com/devspinn/dtown-email/internal/processor/domain"
	"github.com/devspinn/dtown-email/internal/processor/repository"
	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
)

// RuleOutcome is the per-rule result of evaluating one email
type RuleOutcome struct {
	RuleID      string `json:"rule_id"`
	RuleName    string `json:"rule_name"`
	Matched     bool   `json:"matched"`
	Confidence  *int   `json:"confidence,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
	ActionTaken string `json:"action_taken,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Outcome summarizes one email evaluation
type Outcome struct {
	EmailID     string        `json:"email_id"`
	ThreadMuted bool          `json:"thread_muted"` // mute shortcut taken, no classification ran
	Rules       []RuleOutcome `json:"rules"`
}

// BatchOutcome summarizes a full inbox pass
type BatchOutcome struct {
	Synced    int `json:"synced"` // messages newly cached by the pre-pass sync
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
	Failed    int `json:"failed"`
}

// ProcessorUsecase is the rule evaluation engine: it classifies cached
// emails against the user's active rules and executes the resulting
// provider actions.
type ProcessorUsecase interface {
	// ProcessEmail evaluates one cached email against the active rule
	// snapshot and executes actions for matched rules in priority order
	ProcessEmail(ctx context.Context, userID, emailID string) (*Outcome, error)
	// ProcessInbox syncs, then evaluates every unprocessed cached email.
	// Messages sharing a thread are evaluated sequentially oldest-first.
	ProcessInbox(ctx context.Context, userID string, maxMessages int) (*BatchOutcome, error)

	// ExecuteAction runs a rule's action against one email, bypassing
	// classification. Used by manual rule application.
	ExecuteAction(ctx context.Context, creds emaildomain.Credentials, email *emaildomain.Email, rule *ruledomain.Rule) error

	// ListExecutions returns the audit trail joined with email and rule
	// context, newest first
	ListExecutions(userID string, filter repository.ExecutionFilter, limit, offset int) ([]*processordomain.ExecutionRecord, int64, error)
}
