// Package config loads runtime configuration from environment variables and
// the optional business profile YAML.
package config

import "os"

// Config holds process configuration.
type Config struct {
	LogLevel       string
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseURL    string
	RedisAddr      string // empty disables the shared limiter
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	OTLPEndpoint   string
	ProfilePath    string // business profile YAML, optional
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	driver := os.Getenv("DATABASE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Default to a local file database
		dbURL = "file:steward.db?_pragma=busy_timeout(5000)"
	}

	llmURL := os.Getenv("LLM_BASE_URL")
	if llmURL == "" {
		llmURL = "http://localhost:1234/v1"
	}

	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Config{
		LogLevel:       logLevel,
		DatabaseDriver: driver,
		DatabaseURL:    dbURL,
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		LLMBaseURL:     llmURL,
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMModel:       model,
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		ProfilePath:    os.Getenv("BUSINESS_PROFILE"),
	}
}
