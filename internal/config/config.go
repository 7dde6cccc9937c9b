package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"

	RouterKeyword = "keyword"
	RouterLLM     = "llm"

	LeadPolicyGuided     = "guided"
	LeadPolicySequential = "sequential"

	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendDynamoDB = "dynamodb"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFile            string
	CORSAllowedOrigins []string
	ChatRateLimit      float64
	ChatRateBurst      int
	AdminJWTSecret     string

	// Completion provider
	LLMProvider      string
	LLMFallback      string
	LLMTimeout       time.Duration
	BedrockModelID   string
	GeminiAPIKey     string
	GeminiModelID    string
	OpenAIAPIKey     string
	OpenAIModel      string
	RouterStrategy   string
	LeadFlowPolicy   string
	KnowledgeSource  string
	SessionBackend   string
	SessionTTL       time.Duration
	SessionsTable    string
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	DatabaseURL      string
	AWSRegion        string
	AWSAccessKeyID   string
	AWSSecretKey     string
	AWSEndpoint      string
	NotifyTimeout    time.Duration
	NotifyEmailTo    string
	LeadQueueURL     string
	AMQPURL          string
	AMQPExchange     string
	AMQPRoutingKey   string
	DiscordWebhook   string
	EmailProvider    string
	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string
	SESConfigSet     string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		ChatRateLimit:      getEnvAsFloat("CHAT_RATE_LIMIT", 2),
		ChatRateBurst:      getEnvAsInt("CHAT_RATE_BURST", 10),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		LLMProvider:      strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderOpenAI))),
		LLMFallback:      strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMTimeout:       getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("MODEL_NAME", "gpt-4.1-mini"),
		RouterStrategy:   strings.ToLower(getEnv("ROUTER_STRATEGY", RouterKeyword)),
		LeadFlowPolicy:   strings.ToLower(getEnv("LEAD_FLOW_POLICY", LeadPolicyGuided)),
		KnowledgeSource:  getEnv("KNOWLEDGE_SOURCE", "knowledge/company.md"),
		SessionBackend:   strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMemory)),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SessionsTable:    getEnv("SESSIONS_TABLE", "chat_sessions"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpoint:      getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		NotifyTimeout:    getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
		NotifyEmailTo:    getEnv("LEAD_NOTIFY_EMAIL", ""),
		LeadQueueURL:     getEnv("LEAD_QUEUE_URL", ""),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "support.leads"),
		AMQPRoutingKey:   getEnv("AMQP_ROUTING_KEY", "lead.captured"),
		DiscordWebhook:   getEnv("DISCORD_WEBHOOK_URL", ""),
		EmailProvider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "")),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Support Agent"),
		SESConfigSet:     getEnv("SES_CONFIGURATION_SET", ""),
	}
}

// Validate rejects strategy names the bootstrap cannot wire.
func (c *Config) Validate() error {
	if !oneOf(c.LLMProvider, ProviderBedrock, ProviderGemini, ProviderOpenAI) {
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.LLMFallback != "" && !oneOf(c.LLMFallback, ProviderBedrock, ProviderGemini, ProviderOpenAI) {
		return fmt.Errorf("config: unknown LLM_FALLBACK_PROVIDER %q", c.LLMFallback)
	}
	if !oneOf(c.RouterStrategy, RouterKeyword, RouterLLM) {
		return fmt.Errorf("config: unknown ROUTER_STRATEGY %q", c.RouterStrategy)
	}
	if !oneOf(c.LeadFlowPolicy, LeadPolicyGuided, LeadPolicySequential) {
		return fmt.Errorf("config: unknown LEAD_FLOW_POLICY %q", c.LeadFlowPolicy)
	}
	if !oneOf(c.SessionBackend, SessionBackendMemory, SessionBackendRedis, SessionBackendDynamoDB) {
		return fmt.Errorf("config: unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("config: NOTIFY_TIMEOUT must be positive")
	}
	return nil
}

func oneOf(value string, options ...string) bool {
	for _, opt := range options {
		if value == opt {
			return true
		}
	}
	return false
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
