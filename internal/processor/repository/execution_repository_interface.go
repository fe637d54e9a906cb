package repository

import (
	processordomain "github.com/devspinn/dtown-email/internal/processor/domain"
)

// ExecutionFilter narrows the audit listing
type ExecutionFilter struct {
	RuleID  string
	EmailID string
	Matched *bool
}

// ExecutionRepository persists the append-only audit trail. There is no
// update or delete: a row, once written, is immutable.
type ExecutionRepository interface {
	Create(execution *processordomain.RuleExecution) error
	// ListByUser returns audit rows joined with email and rule context,
	// newest first
	ListByUser(userID string, filter ExecutionFilter, limit, offset int) ([]*processordomain.ExecutionRecord, int64, error)
	// ListByEmail returns all audit rows for one email, oldest first
	ListByEmail(emailID string) ([]*processordomain.RuleExecution, error)
}
