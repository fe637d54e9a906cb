package delivery

import (
	"net/http"
	"strconv"

	"github.com/devspinn/dtown-email/internal/processor/repository"
	"github.com/devspinn/dtown-email/internal/processor/usecase"

	"github.com/gin-gonic/gin"
)

// ProcessorHandler handles rule evaluation HTTP requests
type ProcessorHandler struct {
	processorUsecase usecase.ProcessorUsecase
}

// NewProcessorHandler creates a new ProcessorHandler
func NewProcessorHandler(processorUsecase usecase.ProcessorUsecase) *ProcessorHandler {
	return &ProcessorHandler{
		processorUsecase: processorUsecase,
	}
}

// ProcessInbox syncs and evaluates every unprocessed cached email
// POST /api/emails/process?max=
func (h *ProcessorHandler) ProcessInbox(c *gin.Context) {
	userID := c.GetString("userID")

	maxMessages, _ := strconv.Atoi(c.DefaultQuery("max", "0"))

	result, err := h.processorUsecase.ProcessInbox(c.Request.Context(), userID, maxMessages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProcessEmail evaluates one cached email
// POST /api/emails/:id/process
func (h *ProcessorHandler) ProcessEmail(c *gin.Context) {
	userID := c.GetString("userID")
	emailID := c.Param("id")

	outcome, err := h.processorUsecase.ProcessEmail(c.Request.Context(), userID, emailID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ListExecutions returns the audit trail, newest first
// GET /api/executions?rule_id=&email_id=&matched=&limit=&offset=
func (h *ProcessorHandler) ListExecutions(c *gin.Context) {
	userID := c.GetString("userID")

	filter := repository.ExecutionFilter{
		RuleID:  c.Query("rule_id"),
		EmailID: c.Query("email_id"),
	}
	if matched := c.Query("matched"); matched != "" {
		value, err := strconv.ParseBool(matched)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "matched must be a boolean"})
			return
		}
		filter.Matched = &value
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	executions, total, err := h.processorUsecase.ListExecutions(userID, filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"executions": executions,
		"total":      total,
	})
}
