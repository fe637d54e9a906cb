package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	DatabaseURL      string
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleProjectID    string
	GooglePubSubTopic  string
	GoogleCredentials  string

	AIProvider       string
	AnthropicAPIKey  string
	ClassifierModel  string
	PromptModel      string
	OllamaBaseURL    string
	OllamaModel      string
	ClassifyTimeout  time.Duration
	ClassifyParallel int

	ProcessedLabel  string
	MutedLabel      string
	DefaultSyncSize int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:  getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: getDuration("JWT_REFRESH_EXPIRY", 168*time.Hour),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/accounts/google/callback"),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:  getEnv("GOOGLE_PUBSUB_TOPIC", "gmail-updates"),
		GoogleCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		AIProvider:       getEnv("AI_PROVIDER", "claude"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		ClassifierModel:  getEnv("CLASSIFIER_MODEL", "claude-3-5-haiku-20241022"),
		PromptModel:      getEnv("PROMPT_MODEL", "claude-sonnet-4-5-20250929"),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3"),
		ClassifyTimeout:  getDuration("CLASSIFY_TIMEOUT", 30*time.Second),
		ClassifyParallel: getInt("CLASSIFY_PARALLEL", 5),

		ProcessedLabel:  getEnv("PROCESSED_LABEL", "prcsd-dtown"),
		MutedLabel:      getEnv("MUTED_LABEL", "muted-dtown"),
		DefaultSyncSize: getInt("DEFAULT_SYNC_SIZE", 50),
	}
}

// ClassifyWorkers returns the classification fan-out width, never below 1.
// A zero-width semaphore would deadlock every classification pass.
func (c *Config) ClassifyWorkers() int {
	if c.ClassifyParallel < 1 {
		return 1
	}
	return c.ClassifyParallel
}

// MustValidate checks configuration that is required at startup.
func (c *Config) MustValidate() {
	if c.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if c.AIProvider == "claude" && c.AnthropicAPIKey == "" {
		log.Fatal("ANTHROPIC_API_KEY is required when AI_PROVIDER=claude")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
