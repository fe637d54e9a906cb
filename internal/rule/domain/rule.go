package domain

import (
	"fmt"
	"time"

	authdomain "github.com/devspinn/dtown-email/internal/auth/domain"
)

// ActionType is the closed set of actions a rule can take. Every action
// implies a label, so ActionValue is required for all of them.
type ActionType string

const (
	ActionLabel           ActionType = "LABEL"
	ActionLabelAndArchive ActionType = "LABEL_AND_ARCHIVE"
	ActionLabelAndMute    ActionType = "LABEL_AND_MUTE"
)

// ParseActionType validates an action type string
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionLabel, ActionLabelAndArchive, ActionLabelAndMute:
		return ActionType(s), nil
	default:
		return "", fmt.Errorf("unknown action type: %q", s)
	}
}

// Rule is a user-defined filtering criterion. The natural-language
// description is compiled into SystemPrompt, which is what the classifier
// actually evaluates. Rules apply in ascending Priority order; ties break by
// creation order.
type Rule struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"index;not null"`
	Name         string     `json:"name" gorm:"not null"`
	Description  string     `json:"description,omitempty"`
	SystemPrompt string     `json:"system_prompt" gorm:"not null"`
	ActionType   ActionType `json:"action_type" gorm:"not null"`
	ActionValue  string     `json:"action_value" gorm:"not null"` // label name, required for all action kinds
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	Priority     int        `json:"priority" gorm:"default:0"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	User authdomain.User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Validate enforces the rule invariants before persistence
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.SystemPrompt == "" {
		return fmt.Errorf("rule system prompt is required")
	}
	if _, err := ParseActionType(string(r.ActionType)); err != nil {
		return err
	}
	if r.ActionValue == "" {
		return fmt.Errorf("action value (label name) is required")
	}
	return nil
}
