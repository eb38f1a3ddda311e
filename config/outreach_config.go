package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "outreach"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Storage
	DatabaseURL string
	RedisURL    string
	MongoDBURL  string
	MongoDBName string

	// UniPile (LinkedIn automation)
	UniPileBaseURL   string
	UniPileAPIKey    string
	UniPileAccountID string

	// Mailgun
	MailgunBaseURL  string
	MailgunDomain   string
	MailgunAPIKey   string
	SendFromAddress string

	// N8N
	N8NWebhookBaseURL string

	// LLM
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Rate limiting
	DailyActionLimit int

	// Send worker
	WorkerID           string
	SendWorkerCount    int
	SendBatchSize      int
	SendPollInterval   time.Duration
	SendAttemptTimeout time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Storage
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "outreach"),

		// UniPile
		UniPileBaseURL:   getEnv("UNIPILE_BASE_URL", "https://api.unipile.com/v1"),
		UniPileAPIKey:    getEnv("UNIPILE_API_KEY", ""),
		UniPileAccountID: getEnv("UNIPILE_ACCOUNT_ID", ""),

		// Mailgun
		MailgunBaseURL:  getEnv("MAILGUN_BASE_URL", "https://api.mailgun.net/v3"),
		MailgunDomain:   getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:   getEnv("MAILGUN_API_KEY", ""),
		SendFromAddress: getEnv("SEND_FROM_ADDRESS", ""),

		// N8N
		N8NWebhookBaseURL: getEnv("N8N_WEBHOOK_BASE_URL", ""),

		// LLM
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),

		// Rate limiting
		DailyActionLimit: getEnvInt("DAILY_ACTION_LIMIT", 20),

		// Send worker
		WorkerID:           getEnv("WORKER_ID", generateWorkerID()),
		SendWorkerCount:    getEnvInt("SEND_WORKER_COUNT", 4),
		SendBatchSize:      getEnvInt("SEND_BATCH_SIZE", 5),
		SendPollInterval:   time.Duration(getEnvInt("SEND_POLL_INTERVAL_SEC", 15)) * time.Second,
		SendAttemptTimeout: time.Duration(getEnvInt("SEND_ATTEMPT_TIMEOUT_SEC", 30)) * time.Second,

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// FromAddress is the outbound From identity: explicit if configured,
// otherwise derived from the sending domain.
func (c *Config) FromAddress() string {
	if c.SendFromAddress != "" {
		return c.SendFromAddress
	}
	if c.MailgunDomain != "" {
		return "outreach@" + c.MailgunDomain
	}
	return ""
}
