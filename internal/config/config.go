// Package config loads application settings from the environment and the
// target schema from a YAML or JSON file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendMongo  = "mongo"
)

// Reasoning service providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all configuration for the application,
// typically loaded from environment variables.
type Config struct {
	CacheBackend    string
	SQLDialect      string
	SQLConnString   string
	MongoConnString string
	MongoDatabase   string
	RedisAddr       string

	LLMProvider        string
	LLMAPIKey          string
	LLMModel           string
	LLMBaseURL         string
	InputPricePerMTok  float64
	OutputPricePerMTok float64
	CostCeilingUSD     float64

	StrategyDeadline time.Duration
	LogLevel         string
	LogFile          string
}

// LoadConfig loads application settings from environment variables
// (which should be populated by the .env file in main.go).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		CacheBackend:    strings.ToLower(getenv("CACHE_BACKEND", BackendMemory)),
		SQLDialect:      strings.ToLower(getenv("SQL_DIALECT", "sqlserver")),
		SQLConnString:   os.Getenv("SQL_CONNECTION_STRING"),
		MongoConnString: os.Getenv("MONGO_CONNECTION_STRING"),
		MongoDatabase:   getenv("MONGO_DATABASE", "fieldmapper"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		LLMProvider:     strings.ToLower(getenv("LLM_PROVIDER", ProviderNone)),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMModel:        os.Getenv("LLM_MODEL"),
		LLMBaseURL:      os.Getenv("LLM_BASE_URL"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.InputPricePerMTok, err = getFloat("LLM_INPUT_PRICE_PER_MTOK", 0.15); err != nil {
		return nil, err
	}
	if cfg.OutputPricePerMTok, err = getFloat("LLM_OUTPUT_PRICE_PER_MTOK", 0.60); err != nil {
		return nil, err
	}
	if cfg.CostCeilingUSD, err = getFloat("COST_CEILING_USD", 0.001); err != nil {
		return nil, err
	}
	if cfg.StrategyDeadline, err = getDuration("STRATEGY_DEADLINE", 10*time.Second); err != nil {
		return nil, err
	}

	switch cfg.CacheBackend {
	case BackendMemory:
	case BackendSQL:
		if cfg.SQLConnString == "" {
			return nil, errors.New("SQL_CONNECTION_STRING environment variable not set")
		}
	case BackendMongo:
		if cfg.MongoConnString == "" {
			return nil, errors.New("MONGO_CONNECTION_STRING environment variable not set")
		}
	default:
		return nil, fmt.Errorf("CACHE_BACKEND %q is not one of memory, sql, mongo", cfg.CacheBackend)
	}

	switch cfg.LLMProvider {
	case ProviderNone:
	case ProviderOpenAI, ProviderGemini:
		if cfg.LLMAPIKey == "" {
			return nil, errors.New("LLM_API_KEY environment variable not set")
		}
		if cfg.LLMModel == "" {
			cfg.LLMModel = defaultModel(cfg.LLMProvider)
		}
	default:
		return nil, fmt.Errorf("LLM_PROVIDER %q is not one of none, openai, gemini", cfg.LLMProvider)
	}

	if cfg.CostCeilingUSD < 0 {
		return nil, fmt.Errorf("COST_CEILING_USD must not be negative, got %v", cfg.CostCeilingUSD)
	}
	return cfg, nil
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.0-flash"
	}
	return "gpt-4o-mini"
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
