package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Conversational-flow endpoints. The variant is chosen per request by the
	// visitor's login state.
	FlowNewCustomerURL      string
	FlowExistingCustomerURL string

	// TopProz backend REST API (zip lookup, profiles, leads, uploads).
	CRMBaseURL string

	// Outbound HTTP behavior for both clients.
	HTTPTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// TranscriptTTL bounds how long a session's transcript mirror survives
	// for reconnect history replay.
	TranscriptTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FlowNewCustomerURL:      getEnv("FLOW_NEW_CUSTOMER_URL", "https://ai-top-proz-backend.onrender.com/chatbot/newCustomerFlow"),
		FlowExistingCustomerURL: getEnv("FLOW_EXISTING_CUSTOMER_URL", "https://ai-top-proz-backend.onrender.com/chatbot/existingCustomerFlow"),

		CRMBaseURL: getEnv("CRM_BASE_URL", "https://testapi.topproz.com"),

		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TranscriptTTL: getEnvAsDuration("TRANSCRIPT_TTL", 24*time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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
