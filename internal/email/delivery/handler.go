package delivery

import (
	"net/http"
	"strconv"

	"github.com/devspinn/dtown-email/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

// EmailHandler handles email HTTP requests
type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

// ListEmails returns cached emails newest first
// GET /api/emails?limit=&offset=
func (h *EmailHandler) ListEmails(c *gin.Context) {
	userID := c.GetString("userID")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	emails, total, err := h.emailUsecase.ListEmails(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"emails": emails,
		"total":  total,
	})
}

// GetEmail returns one cached email
// GET /api/emails/:id
func (h *EmailHandler) GetEmail(c *gin.Context) {
	userID := c.GetString("userID")
	emailID := c.Param("id")

	email, err := h.emailUsecase.GetEmail(userID, emailID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, email)
}

// SyncEmails mirrors recent provider messages into the cache
// POST /api/emails/sync?max=
func (h *EmailHandler) SyncEmails(c *gin.Context) {
	userID := c.GetString("userID")

	maxMessages, _ := strconv.Atoi(c.DefaultQuery("max", "0"))

	result, err := h.emailUsecase.SyncEmails(c.Request.Context(), userID, maxMessages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
