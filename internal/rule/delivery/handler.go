package delivery

import (
	"net/http"

	ruledto "github.com/devspinn/dtown-email/internal/rule/dto"
	"github.com/devspinn/dtown-email/internal/rule/usecase"

	"github.com/gin-gonic/gin"
)

// RuleHandler handles rule HTTP requests
type RuleHandler struct {
	ruleUsecase usecase.RuleUsecase
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(ruleUsecase usecase.RuleUsecase) *RuleHandler {
	return &RuleHandler{
		ruleUsecase: ruleUsecase,
	}
}

// ListRules returns the user's rules in priority order
// GET /api/rules
func (h *RuleHandler) ListRules(c *gin.Context) {
	userID := c.GetString("userID")

	rules, err := h.ruleUsecase.ListRules(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// CreateRule creates a new rule, compiling the classifier prompt from the
// description when none is supplied
// POST /api/rules
func (h *RuleHandler) CreateRule(c *gin.Context) {
	userID := c.GetString("userID")

	var req ruledto.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.ruleUsecase.CreateRule(c.Request.Context(), userID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// UpdateRule updates a rule
// PUT /api/rules/:id
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	userID := c.GetString("userID")
	ruleID := c.Param("id")

	var req ruledto.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.ruleUsecase.UpdateRule(c.Request.Context(), userID, ruleID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rule)
}

// ToggleRule flips a rule's active flag
// PATCH /api/rules/:id/toggle
func (h *RuleHandler) ToggleRule(c *gin.Context) {
	userID := c.GetString("userID")
	ruleID := c.Param("id")

	rule, err := h.ruleUsecase.ToggleRule(userID, ruleID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule deletes a rule and its audit rows
// DELETE /api/rules/:id
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	userID := c.GetString("userID")
	ruleID := c.Param("id")

	if err := h.ruleUsecase.DeleteRule(userID, ruleID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
}

// CompilePrompt previews the compiled classifier prompt for a description
// POST /api/rules/compile
func (h *RuleHandler) CompilePrompt(c *gin.Context) {
	var req ruledto.CompilePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prompt, err := h.ruleUsecase.CompilePrompt(c.Request.Context(), req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"system_prompt": prompt})
}

// TestRule dry-runs a rule against recent emails
// POST /api/rules/:id/test
func (h *RuleHandler) TestRule(c *gin.Context) {
	userID := c.GetString("userID")
	ruleID := c.Param("id")

	var req ruledto.TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.ruleUsecase.TestRule(c.Request.Context(), userID, ruleID, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ApplyRule applies a rule's action to selected emails without classifying
// POST /api/rules/:id/apply
func (h *RuleHandler) ApplyRule(c *gin.Context) {
	userID := c.GetString("userID")
	ruleID := c.Param("id")

	var req ruledto.ApplyRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied, err := h.ruleUsecase.ApplyToEmails(c.Request.Context(), userID, ruleID, req.EmailIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"applied": applied})
}
