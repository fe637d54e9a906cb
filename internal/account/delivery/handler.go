package delivery

import (
	"net/http"

	"github.com/devspinn/dtown-email/internal/account/usecase"

	"github.com/gin-gonic/gin"
)

// connectGoogleRequest carries the OAuth authorization code
type connectGoogleRequest struct {
	Code string `json:"code" binding:"required"`
}

// connectIMAPRequest carries host credentials for an IMAP account
type connectIMAPRequest struct {
	Email    string `json:"email" binding:"required"`
	Host     string `json:"host" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AccountHandler handles email account HTTP requests
type AccountHandler struct {
	accountUsecase usecase.AccountUsecase
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountUsecase usecase.AccountUsecase) *AccountHandler {
	return &AccountHandler{
		accountUsecase: accountUsecase,
	}
}

// ListAccounts returns the user's connected accounts
// GET /api/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID := c.GetString("userID")

	accounts, err := h.accountUsecase.ListAccounts(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// GoogleAuthURL returns the OAuth consent URL
// GET /api/accounts/google/url
func (h *AccountHandler) GoogleAuthURL(c *gin.Context) {
	userID := c.GetString("userID")

	c.JSON(http.StatusOK, gin.H{"url": h.accountUsecase.GoogleAuthURL(userID)})
}

// ConnectGoogle exchanges an OAuth code and stores the account
// POST /api/accounts/google/connect
func (h *AccountHandler) ConnectGoogle(c *gin.Context) {
	userID := c.GetString("userID")

	var req connectGoogleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accountUsecase.ConnectGoogle(c.Request.Context(), userID, req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

// ConnectIMAP stores a host-credential account
// POST /api/accounts/imap/connect
func (h *AccountHandler) ConnectIMAP(c *gin.Context) {
	userID := c.GetString("userID")

	var req connectIMAPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accountUsecase.ConnectIMAP(c.Request.Context(), userID, req.Email, req.Host, req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

// Disconnect removes a connected account
// DELETE /api/accounts/:id
func (h *AccountHandler) Disconnect(c *gin.Context) {
	userID := c.GetString("userID")
	accountID := c.Param("id")

	if err := h.accountUsecase.Disconnect(userID, accountID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account disconnected"})
}

// Watch enables Gmail push notifications for the account
// POST /api/accounts/:id/watch
func (h *AccountHandler) Watch(c *gin.Context) {
	userID := c.GetString("userID")
	accountID := c.Param("id")

	if err := h.accountUsecase.Watch(c.Request.Context(), userID, accountID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Watch enabled"})
}

// StopWatch disables Gmail push notifications for the account
// DELETE /api/accounts/:id/watch
func (h *AccountHandler) StopWatch(c *gin.Context) {
	userID := c.GetString("userID")
	accountID := c.Param("id")

	if err := h.accountUsecase.StopWatch(c.Request.Context(), userID, accountID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Watch disabled"})
}
