package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	UseMemoryQueue     bool
	WorkerCount        int
	WorkerMetricsPort  string
	DatabaseURL        string
	BrandProfilePath   string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	AdminJWTSecret     string

	// Session state
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// Language model
	LLMProvider         string
	LLMFallbackProvider string
	LLMModelID          string
	LLMMaxTokens        int
	LLMTimeout          time.Duration
	AnthropicAPIKey     string
	GeminiAPIKey        string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	LeadQueueURL        string
	ArchiveBucket       string
	ArchiveScrubPII     bool

	// Spreadsheet webhook
	SheetsWebhookURL    string
	SheetsWebhookSecret string
	SheetsMaxElapsed    time.Duration

	// Push notifications (Pushover-compatible)
	PushAPIURL string
	PushToken  string
	PushUser   string

	// Email notifications
	EmailProvider         string
	SendGridAPIKey        string
	EmailFromAddress      string
	EmailFromName         string
	NotifyEmailRecipients []string

	// SMS gateway
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	NotifySMSRecipients []string
	SendVisitorSMS      bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first; real environment variables win.
func Load() *Config {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		WorkerMetricsPort:  getEnv("WORKER_METRICS_PORT", "9090"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		BrandProfilePath:   getEnv("BRAND_PROFILE_PATH", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ""))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMModelID:          getEnv("LLM_MODEL_ID", ""),
		LLMMaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 300),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 12*time.Second),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		LeadQueueURL:        getEnv("LEAD_QUEUE_URL", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
		ArchiveScrubPII:     getEnvAsBool("ARCHIVE_SCRUB_PII", true),

		SheetsWebhookURL:    getEnv("SHEETS_WEBHOOK_URL", ""),
		SheetsWebhookSecret: getEnv("SHEETS_WEBHOOK_SECRET", ""),
		SheetsMaxElapsed:    getEnvAsDuration("SHEETS_MAX_ELAPSED", 30*time.Second),

		PushAPIURL: getEnv("PUSH_API_URL", "https://api.pushover.net/1/messages.json"),
		PushToken:  getEnv("PUSH_TOKEN", ""),
		PushUser:   getEnv("PUSH_USER", ""),

		EmailProvider:         strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:        getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Lead Assistant"),
		NotifyEmailRecipients: getEnvAsList("NOTIFY_EMAIL_RECIPIENTS", nil),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		NotifySMSRecipients: getEnvAsList("NOTIFY_SMS_RECIPIENTS", nil),
		SendVisitorSMS:      getEnvAsBool("SEND_VISITOR_SMS", false),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
