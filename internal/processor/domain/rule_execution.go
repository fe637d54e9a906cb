package domain

import (
	"time"

	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
)

// RuleExecution is one audit row for one (email, rule) evaluation attempt.
// The table is append-only: rows are created, never updated or deleted,
// except through the cascade when a parent email or rule is removed.
type RuleExecution struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	EmailID      string    `json:"email_id" gorm:"index;not null"`
	RuleID       string    `json:"rule_id" gorm:"index;not null"`
	Matched      bool      `json:"matched" gorm:"not null"`
	Confidence   *int      `json:"confidence,omitempty"` // 0-100; nil for manual application
	Reasoning    string    `json:"reasoning,omitempty"`
	ActionTaken  string    `json:"action_taken,omitempty"` // action type actually executed, if any
	LLMResponse  string    `json:"llm_response,omitempty"` // raw classifier output for debugging
	ErrorMessage string    `json:"error_message,omitempty"`
	ExecutedAt   time.Time `json:"executed_at" gorm:"index"`

	Email emaildomain.Email `json:"-" gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE"`
	Rule  ruledomain.Rule   `json:"-" gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE"`
}

// ExecutionRecord is an audit row joined with its email and rule context,
// as returned by the listing surface.
type ExecutionRecord struct {
	RuleExecution
	EmailSubject string `json:"email_subject"`
	EmailFrom    string `json:"email_from"`
	RuleName     string `json:"rule_name"`
}
