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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerSecond() float64
	GetRateLimitBurst() int
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetAsynqMaxRetry() int
	GetAsynqTaskTimeout() time.Duration
}

// EmailConfig provides SMTP settings for outgoing email.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketOpportunityAttachments() string
	IsMinIOEnabled() bool
}

// PipelineConfig provides settings for the opportunity pipeline.
type PipelineConfig interface {
	GetPipelinePolicyFile() string
	GetPipelineTxTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                               string
	HTTPAddr                          string
	DatabaseURL                       string
	JWTAccessSecret                   string
	CORSAllowAll                      bool
	CORSOrigins                       []string
	CORSAllowCreds                    bool
	RateLimitPerSecond                float64
	RateLimitBurst                    int
	AppBaseURL                        string
	RedisURL                          string
	RedisTLSInsecure                  bool
	AsynqQueueName                    string
	AsynqConcurrency                  int
	AsynqMaxRetry                     int
	AsynqTaskTimeout                  time.Duration
	EmailEnabled                      bool
	SMTPHost                          string
	SMTPPort                          int
	SMTPUsername                      string
	SMTPPassword                      string
	EmailFromName                     string
	EmailFromAddress                  string
	MinIOEndpoint                     string
	MinIOAccessKey                    string
	MinIOSecretKey                    string
	MinIOUseSSL                       bool
	MinIOMaxFileSize                  int64
	MinioBucketOpportunityAttachments string
	PipelinePolicyFile                string
	PipelineTxTimeout                 time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string            { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool          { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string       { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool        { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerSecond() float64 { return c.RateLimitPerSecond }
func (c *Config) GetRateLimitBurst() int         { return c.RateLimitBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetAsynqMaxRetry() int              { return c.AsynqMaxRetry }
func (c *Config) GetAsynqTaskTimeout() time.Duration { return c.AsynqTaskTimeout }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketOpportunityAttachments() string {
	return c.MinioBucketOpportunityAttachments
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// PipelineConfig implementation
func (c *Config) GetPipelinePolicyFile() string       { return c.PipelinePolicyFile }
func (c *Config) GetPipelineTxTimeout() time.Duration { return c.PipelineTxTimeout }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                               getEnv("APP_ENV", "development"),
		HTTPAddr:                          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                       getEnv("DATABASE_URL", ""),
		JWTAccessSecret:                   getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:                      corsAllowAll,
		CORSOrigins:                       corsOrigins,
		CORSAllowCreds:                    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitPerSecond:                mustFloat(getEnv("RATE_LIMIT_PER_SECOND", "10")),
		RateLimitBurst:                    mustInt(getEnv("RATE_LIMIT_BURST", "20")),
		AppBaseURL:                        getEnv("APP_BASE_URL", "http://localhost:4200"),
		RedisURL:                          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:                  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:                    getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:                  mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		AsynqMaxRetry:                     mustInt(getEnv("ASYNQ_MAX_RETRY", "3")),
		AsynqTaskTimeout:                  mustDuration(getEnv("ASYNQ_TASK_TIMEOUT", "30s")),
		EmailEnabled:                      emailEnabled && smtpHost != "",
		SMTPHost:                          smtpHost,
		SMTPPort:                          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:                      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:                      getEnv("SMTP_PASSWORD", ""),
		EmailFromName:                     getEnv("EMAIL_FROM_NAME", "Sales CRM"),
		EmailFromAddress:                  getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:                     getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:                    getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:                    getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                       strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:                  mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "52428800")),
		MinioBucketOpportunityAttachments: getEnv("MINIO_BUCKET_OPPORTUNITY_ATTACHMENTS", "opportunity-attachments"),
		PipelinePolicyFile:                getEnv("PIPELINE_POLICY_FILE", ""),
		PipelineTxTimeout:                 mustDuration(getEnv("PIPELINE_TX_TIMEOUT", "10s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
