// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis connection settings shared by the job queue
// and the lead event stream.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// HTTPConfig provides settings for the health HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
}

// AIConfig provides settings for the AI responder client.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetDefaultModel() string
	GetPremiumModel() string
	GetAITimeout() time.Duration
}

// QueueConfig provides settings for the turn job queue.
type QueueConfig interface {
	RedisConfig
	GetQueueConcurrency() int
	GetQueueMaxRetry() int
	GetQueueBacklogThreshold() int
	GetQueueRetention() time.Duration
}

// StreamConfig provides settings for the lead event stream consumer.
type StreamConfig interface {
	RedisConfig
	GetLeadStreamKey() string
	GetLeadStreamGroup() string
	GetLeadStreamConsumer() string
}

// BreakerConfig provides settings for the AI circuit breaker.
type BreakerConfig interface {
	GetBreakerFailureThreshold() int
	GetBreakerResetTimeout() time.Duration
	GetBreakerHalfOpenSuccesses() int
}

// ConversationConfig provides conversation policy settings.
type ConversationConfig interface {
	IsAdaptiveConversationsEnabled() bool
	GetDefaultMaxTurns() int
	GetMaxTurnsCap() int
	GetHighValuePriceThreshold() float64
	GetMetricsInterval() time.Duration
	GetShutdownTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	RedisURL                 string
	RedisTLSInsecure         bool
	GeminiAPIKey             string
	DefaultModel             string
	PremiumModel             string
	AITimeout                time.Duration
	QueueConcurrency         int
	QueueMaxRetry            int
	QueueBacklogThreshold    int
	QueueRetention           time.Duration
	LeadStreamKey            string
	LeadStreamGroup          string
	LeadStreamConsumer       string
	BreakerFailureThreshold  int
	BreakerResetTimeout      time.Duration
	BreakerHalfOpenSuccesses int
	AdaptiveConversations    bool
	DefaultMaxTurns          int
	MaxTurnsCap              int
	HighValuePriceThreshold  float64
	MetricsInterval          time.Duration
	ShutdownTimeout          time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string { return c.HTTPAddr }

// AIConfig implementation
func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetDefaultModel() string { return c.DefaultModel }
func (c *Config) GetPremiumModel() string { return c.PremiumModel }
func (c *Config) GetAITimeout() time.Duration { return c.AITimeout }

// QueueConfig implementation
func (c *Config) GetQueueConcurrency() int { return c.QueueConcurrency }
func (c *Config) GetQueueMaxRetry() int { return c.QueueMaxRetry }
func (c *Config) GetQueueBacklogThreshold() int { return c.QueueBacklogThreshold }
func (c *Config) GetQueueRetention() time.Duration { return c.QueueRetention }

// StreamConfig implementation
func (c *Config) GetLeadStreamKey() string { return c.LeadStreamKey }
func (c *Config) GetLeadStreamGroup() string { return c.LeadStreamGroup }
func (c *Config) GetLeadStreamConsumer() string { return c.LeadStreamConsumer }

// BreakerConfig implementation
func (c *Config) GetBreakerFailureThreshold() int { return c.BreakerFailureThreshold }
func (c *Config) GetBreakerResetTimeout() time.Duration { return c.BreakerResetTimeout }
func (c *Config) GetBreakerHalfOpenSuccesses() int { return c.BreakerHalfOpenSuccesses }

// ConversationConfig implementation
func (c *Config) IsAdaptiveConversationsEnabled() bool { return c.AdaptiveConversations }
func (c *Config) GetDefaultMaxTurns() int { return c.DefaultMaxTurns }
func (c *Config) GetMaxTurnsCap() int { return c.MaxTurnsCap }
func (c *Config) GetHighValuePriceThreshold() float64 { return c.HighValuePriceThreshold }
func (c *Config) GetMetricsInterval() time.Duration { return c.MetricsInterval }
func (c *Config) GetShutdownTimeout() time.Duration { return c.ShutdownTimeout }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		DefaultModel:             getEnv("AI_DEFAULT_MODEL", "gemini-2.0-flash"),
		PremiumModel:             getEnv("AI_PREMIUM_MODEL", "gemini-2.5-pro"),
		AITimeout:                mustDuration(getEnv("AI_TIMEOUT", "30s")),
		QueueConcurrency:         mustInt(getEnv("QUEUE_CONCURRENCY", "10")),
		QueueMaxRetry:            mustInt(getEnv("QUEUE_MAX_RETRY", "3")),
		QueueBacklogThreshold:    mustInt(getEnv("QUEUE_BACKLOG_THRESHOLD", "100")),
		QueueRetention:           mustDuration(getEnv("QUEUE_RETENTION", "24h")),
		LeadStreamKey:            getEnv("LEAD_STREAM_KEY", "leads:new"),
		LeadStreamGroup:          getEnv("LEAD_STREAM_GROUP", "conversation-orchestrator"),
		LeadStreamConsumer:       getEnv("LEAD_STREAM_CONSUMER", "orchestrator-1"),
		BreakerFailureThreshold:  mustInt(getEnv("BREAKER_FAILURE_THRESHOLD", "5")),
		BreakerResetTimeout:      mustDuration(getEnv("BREAKER_RESET_TIMEOUT", "60s")),
		BreakerHalfOpenSuccesses: mustInt(getEnv("BREAKER_HALF_OPEN_SUCCESSES", "2")),
		AdaptiveConversations:    strings.EqualFold(getEnv("ADAPTIVE_CONVERSATIONS", "false"), "true"),
		DefaultMaxTurns:          mustInt(getEnv("CONVERSATION_DEFAULT_MAX_TURNS", "2")),
		MaxTurnsCap:              mustInt(getEnv("CONVERSATION_MAX_TURNS_CAP", "10")),
		HighValuePriceThreshold:  mustFloat(getEnv("HIGH_VALUE_PRICE_THRESHOLD", "50000")),
		MetricsInterval:          mustDuration(getEnv("METRICS_INTERVAL", "30s")),
		ShutdownTimeout:          mustDuration(getEnv("SHUTDOWN_TIMEOUT", "30s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.QueueConcurrency < 1 {
		return nil, fmt.Errorf("QUEUE_CONCURRENCY must be at least 1")
	}
	if cfg.DefaultMaxTurns < 1 {
		return nil, fmt.Errorf("CONVERSATION_DEFAULT_MAX_TURNS must be at least 1")
	}
	if cfg.BreakerFailureThreshold < 1 || cfg.BreakerHalfOpenSuccesses < 1 {
		return nil, fmt.Errorf("circuit breaker thresholds must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}
