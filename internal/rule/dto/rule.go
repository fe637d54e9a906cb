package dto

// CreateRuleRequest creates a rule. SystemPrompt may be omitted, in which
// case it is compiled from Description.
type CreateRuleRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
	ActionType   string `json:"action_type" binding:"required"`
	ActionValue  string `json:"action_value" binding:"required"`
	Priority     int    `json:"priority"`
}

// UpdateRuleRequest updates a rule. Nil fields are left unchanged. Changing
// Description without SystemPrompt recompiles the prompt.
type UpdateRuleRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	SystemPrompt *string `json:"system_prompt"`
	ActionType   *string `json:"action_type"`
	ActionValue  *string `json:"action_value"`
	Priority     *int    `json:"priority"`
	IsActive     *bool   `json:"is_active"`
}

// CompilePromptRequest previews the compiled prompt for a description
type CompilePromptRequest struct {
	Description string `json:"description" binding:"required"`
}

// TestRuleRequest runs a rule against recent emails without acting
type TestRuleRequest struct {
	Limit int `json:"limit"`
}

// ApplyRuleRequest applies a rule's action to selected emails
type ApplyRuleRequest struct {
	EmailIDs []string `json:"email_ids" binding:"required"`
}
