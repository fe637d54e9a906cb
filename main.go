package main

import (
	"context"
	"log"
	"os"
	"strings"

	api "github.com/devspinn/dtown-email/cmd/api"
	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"
	accountRepo "github.com/devspinn/dtown-email/internal/account/repository"
	accountUsecase "github.com/devspinn/dtown-email/internal/account/usecase"
	authdomain "github.com/devspinn/dtown-email/internal/auth/domain"
	authRepo "github.com/devspinn/dtown-email/internal/auth/repository"
	authUsecase "github.com/devspinn/dtown-email/internal/auth/usecase"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
	emailRepo "github.com/devspinn/dtown-email/internal/email/repository"
	emailUsecase "github.com/devspinn/dtown-email/internal/email/usecase"
	"github.com/devspinn/dtown-email/internal/notification"
	processordomain "github.com/devspinn/dtown-email/internal/processor/domain"
	processorRepo "github.com/devspinn/dtown-email/internal/processor/repository"
	processorUsecase "github.com/devspinn/dtown-email/internal/processor/usecase"
	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
	ruleRepo "github.com/devspinn/dtown-email/internal/rule/repository"
	ruleUsecase "github.com/devspinn/dtown-email/internal/rule/usecase"
	"github.com/devspinn/dtown-email/pkg/ai"
	"github.com/devspinn/dtown-email/pkg/config"
	"github.com/devspinn/dtown-email/pkg/database"
	"github.com/devspinn/dtown-email/pkg/gmail"
	"github.com/devspinn/dtown-email/pkg/imap"
)

func main() {
	// Load configuration
	cfg := config.Load()
	cfg.MustValidate()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&accountdomain.EmailAccount{},
		&emaildomain.Email{},
		&ruledomain.Rule{},
		&processordomain.RuleExecution{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	accountRepository := accountRepo.NewAccountRepository(db)
	emailRepository := emailRepo.NewEmailRepository(db)
	ruleRepository := ruleRepo.NewRuleRepository(db)
	executionRepository := processorRepo.NewExecutionRepository(db)

	// Initialize mail gateways
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.MutedLabel)
	imapService := imap.NewService()

	// Initialize the classifier
	classifier, err := ai.NewClassifier(ai.Config{
		Provider:        ai.ProviderType(cfg.AIProvider),
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		ClassifierModel: cfg.ClassifierModel,
		PromptModel:     cfg.PromptModel,
		OllamaBaseURL:   cfg.OllamaBaseURL,
		OllamaModel:     cfg.OllamaModel,
	})
	if err != nil {
		log.Fatal("Failed to initialize classifier:", err)
	}
	log.Printf("Classifier initialized with provider: %s", cfg.AIProvider)

	// Initialize use cases (dependency injection)
	authUc := authUsecase.NewAuthUsecase(userRepository, cfg)
	accountUc := accountUsecase.NewAccountUsecase(accountRepository, gmailService, cfg)
	emailUc := emailUsecase.NewEmailUsecase(emailRepository, accountRepository, accountUc, gmailService, imapService, cfg)
	processorUc := processorUsecase.NewProcessorUsecase(emailRepository, ruleRepository, executionRepository, accountUc, emailUc, gmailService, classifier, cfg)
	ruleUc := ruleUsecase.NewRuleUsecase(ruleRepository, emailRepository, executionRepository, accountUc, emailUc, processorUc, classifier, cfg)

	// Initialize Notification Service (Pub/Sub)
	// Only start if project ID is configured
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, accountRepository, processorUc)
		if err != nil {
			log.Printf("Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("GOOGLE_PROJECT_ID not configured, notification service disabled")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(authUc, accountUc, emailUc, ruleUc, processorUc, cfg)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := handler.Start(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
