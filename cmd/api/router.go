package api

import (
	"net/http"

	accountdelivery "github.com/devspinn/dtown-email/internal/account/delivery"
	accountusecase "github.com/devspinn/dtown-email/internal/account/usecase"
	"github.com/devspinn/dtown-email/internal/auth/delivery"
	authusecase "github.com/devspinn/dtown-email/internal/auth/usecase"
	emaildelivery "github.com/devspinn/dtown-email/internal/email/delivery"
	emailusecase "github.com/devspinn/dtown-email/internal/email/usecase"
	processordelivery "github.com/devspinn/dtown-email/internal/processor/delivery"
	processorusecase "github.com/devspinn/dtown-email/internal/processor/usecase"
	ruledelivery "github.com/devspinn/dtown-email/internal/rule/delivery"
	ruleusecase "github.com/devspinn/dtown-email/internal/rule/usecase"
	"github.com/devspinn/dtown-email/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUc authusecase.AuthUsecase,
	accountUc accountusecase.AccountUsecase,
	emailUc emailusecase.EmailUsecase,
	ruleUc ruleusecase.RuleUsecase,
	processorUc processorusecase.ProcessorUsecase,
	cfg *config.Config,
) {
	authHandler := delivery.NewAuthHandler(authUc)
	accountHandler := accountdelivery.NewAccountHandler(accountUc)
	emailHandler := emaildelivery.NewEmailHandler(emailUc)
	ruleHandler := ruledelivery.NewRuleHandler(ruleUc)
	processorHandler := processordelivery.NewProcessorHandler(processorUc)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUc), authHandler.Me)
		}

		// Account routes (protected)
		accounts := api.Group("/accounts")
		accounts.Use(delivery.AuthMiddleware(authUc))
		{
			accounts.GET("", accountHandler.ListAccounts)
			accounts.GET("/google/url", accountHandler.GoogleAuthURL)
			accounts.POST("/google/connect", accountHandler.ConnectGoogle)
			accounts.POST("/imap/connect", accountHandler.ConnectIMAP)
			accounts.DELETE("/:id", accountHandler.Disconnect)
			accounts.POST("/:id/watch", accountHandler.Watch)
			accounts.DELETE("/:id/watch", accountHandler.StopWatch)
		}

		// Rule routes (protected)
		rules := api.Group("/rules")
		rules.Use(delivery.AuthMiddleware(authUc))
		{
			rules.GET("", ruleHandler.ListRules)
			rules.POST("", ruleHandler.CreateRule)
			rules.POST("/compile", ruleHandler.CompilePrompt)
			rules.PUT("/:id", ruleHandler.UpdateRule)
			rules.PATCH("/:id/toggle", ruleHandler.ToggleRule)
			rules.DELETE("/:id", ruleHandler.DeleteRule)
			rules.POST("/:id/test", ruleHandler.TestRule)
			rules.POST("/:id/apply", ruleHandler.ApplyRule)
		}

		// Email routes (protected)
		emails := api.Group("/emails")
		emails.Use(delivery.AuthMiddleware(authUc))
		{
			emails.GET("", emailHandler.ListEmails)
			emails.POST("/sync", emailHandler.SyncEmails)
			emails.POST("/process", processorHandler.ProcessInbox)
			emails.GET("/:id", emailHandler.GetEmail)
			emails.POST("/:id/process", processorHandler.ProcessEmail)
		}

		// Audit trail (protected)
		api.GET("/executions", delivery.AuthMiddleware(authUc), processorHandler.ListExecutions)
	}
}
