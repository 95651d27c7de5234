package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion          string
	ConversationsTable string
	MappingBucket      string
	EventBusName       string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Model configuration
	DefaultModelID   string
	DefaultMaxTokens int

	// State tokens
	StateTokenSecret string
	StateTokenIssuer string
	StateTokenTTL    time.Duration

	// Rate limiting
	RateLimitQuota  int
	RateLimitWindow time.Duration
	IPFloodQuota    int

	// Conversation state
	ConversationTTL time.Duration

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),

		ConversationsTable: getEnv("CONVERSATIONS_TABLE", "picasso-conversations"),
		MappingBucket:      getEnv("MAPPING_BUCKET", "picasso-tenant-mappings"),
		EventBusName:       getEnv("EVENT_BUS_NAME", "picasso-events"),

		// Lambda configuration
		IsLambda:           os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "",
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// Model configuration
		DefaultModelID:   getEnv("DEFAULT_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		DefaultMaxTokens: getEnvInt("DEFAULT_MAX_TOKENS", 1024),

		// State tokens
		StateTokenSecret: getEnv("STATE_TOKEN_SECRET", ""),
		StateTokenIssuer: getEnv("STATE_TOKEN_ISSUER", "picasso"),
		StateTokenTTL:    getEnvDuration("STATE_TOKEN_TTL", 30*time.Minute),

		// Rate limiting
		RateLimitQuota:  getEnvInt("RATE_LIMIT_QUOTA", 10),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		IPFloodQuota:    getEnvInt("IP_FLOOD_QUOTA", 120),

		// Conversation state
		ConversationTTL: getEnvDuration("CONVERSATION_TTL", 24*time.Hour),

		// Logging and features
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.StateTokenSecret == "" {
			return fmt.Errorf("STATE_TOKEN_SECRET is required in production")
		}
		if c.ConversationsTable == "" {
			return fmt.Errorf("CONVERSATIONS_TABLE is required")
		}
		if c.MappingBucket == "" {
			return fmt.Errorf("MAPPING_BUCKET is required")
		}
	}
	if c.RateLimitQuota <= 0 {
		return fmt.Errorf("RATE_LIMIT_QUOTA must be positive, got %d", c.RateLimitQuota)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
