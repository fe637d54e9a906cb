package api

import (
	accountusecase "github.com/devspinn/dtown-email/internal/account/usecase"
	authusecase "github.com/devspinn/dtown-email/internal/auth/usecase"
	emailusecase "github.com/devspinn/dtown-email/internal/email/usecase"
	processorusecase "github.com/devspinn/dtown-email/internal/processor/usecase"
	ruleusecase "github.com/devspinn/dtown-email/internal/rule/usecase"
	"github.com/devspinn/dtown-email/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase      authusecase.AuthUsecase
	accountUsecase   accountusecase.AccountUsecase
	emailUsecase     emailusecase.EmailUsecase
	ruleUsecase      ruleusecase.RuleUsecase
	processorUsecase processorusecase.ProcessorUsecase
	config           *config.Config
}

func NewHandler(
	authUc authusecase.AuthUsecase,
	accountUc accountusecase.AccountUsecase,
	emailUc emailusecase.EmailUsecase,
	ruleUc ruleusecase.RuleUsecase,
	processorUc processorusecase.ProcessorUsecase,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authUsecase:      authUc,
		accountUsecase:   accountUc,
		emailUsecase:     emailUc,
		ruleUsecase:      ruleUc,
		processorUsecase: processorUc,
		config:           cfg,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.accountUsecase, h.emailUsecase, h.ruleUsecase, h.processorUsecase, h.config)

	return r.Run(addr)
}
