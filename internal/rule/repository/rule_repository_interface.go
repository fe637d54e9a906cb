package repository

import (
	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
)

// RuleRepository defines the interface for rule persistence
type RuleRepository interface {
	Create(rule *ruledomain.Rule) error
	FindByID(id string) (*ruledomain.Rule, error)
	// ListByUser returns all rules ordered by priority, then creation order
	ListByUser(userID string) ([]*ruledomain.Rule, error)
	// ListActiveByUser returns the active-rule snapshot in evaluation order
	ListActiveByUser(userID string) ([]*ruledomain.Rule, error)
	Update(rule *ruledomain.Rule) error
	Delete(userID, id string) error
}
