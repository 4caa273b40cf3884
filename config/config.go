// Package config loads the receipt engine's configuration from environment
// variables. It provides the generic environment loading and validation
// utilities plus typed loaders for each subsystem: object storage, the
// query cache, query concurrency, and service identity.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// StorageConfig contains object-store connection configuration
type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // set for MinIO or another S3-compatible backend
	AccessKey string
	SecretKey string
	// UsePathStyle is required by most S3-compatible backends other than AWS
	UsePathStyle bool
	// Pushdown enables server-side predicate evaluation; backends without
	// S3 Select support should leave this off so every scan uses the
	// client-side filter directly
	Pushdown bool
	// PresignTTL is loaded from PRESIGN_TTL but not passed on by the engine:
	// GetSignedPDFURL takes its TTL from the caller, and the S3 presigner
	// falls back to storage.DefaultPresignTTL when that is <= 0
	PresignTTL time.Duration
}

// LoadStorageConfig loads object-store configuration from environment
func LoadStorageConfig(prefix string) StorageConfig {
	env := NewEnvConfig(prefix)
	return StorageConfig{
		Bucket:       env.GetString("BUCKET", ""),
		Region:       env.GetString("REGION", "us-east-1"),
		Endpoint:     env.GetString("ENDPOINT", ""),
		AccessKey:    env.GetString("ACCESS_KEY", ""),
		SecretKey:    env.GetString("SECRET_KEY", ""),
		UsePathStyle: env.GetBool("USE_PATH_STYLE", false),
		Pushdown:     env.GetBool("PUSHDOWN", true),
		PresignTTL:   env.GetDuration("PRESIGN_TTL", 1*time.Hour),
	}
}

// CacheConfig contains query-cache configuration
type CacheConfig struct {
	Enabled bool
	MaxSize int
	TTL     time.Duration
	// RedisURL opts into the shared out-of-process cache tier; empty keeps
	// the default in-process cache
	RedisURL string
}

// LoadCacheConfig loads query-cache configuration from environment
func LoadCacheConfig(prefix string) CacheConfig {
	env := NewEnvConfig(prefix)
	return CacheConfig{
		Enabled:  env.GetBool("ENABLED", true),
		MaxSize:  env.GetInt("MAX_SIZE", 100),
		TTL:      env.GetDuration("TTL", 300*time.Second),
		RedisURL: env.GetString("REDIS_URL", ""),
	}
}

// QueryConfig contains query-engine configuration
type QueryConfig struct {
	// Concurrency bounds how many index parts are scanned in parallel
	Concurrency int
}

// LoadQueryConfig loads query-engine configuration from environment
func LoadQueryConfig(prefix string) QueryConfig {
	env := NewEnvConfig(prefix)
	return QueryConfig{
		Concurrency: env.GetInt("CONCURRENCY", 5),
	}
}

// ServiceConfig contains common service configuration
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", "receiptengine"),
		Version:     env.GetString("VERSION", "0.0.1"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
	}
}

// RequireString validates that a string field is not empty
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt validates that an integer field is within range
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// RequirePositiveInt validates that an integer field is positive
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireURL validates that a string is a valid URL
func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		v.errors = append(v.errors, fmt.Sprintf("%s must be a valid URL (http:// or https://)", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// ErrorString returns all validation errors as a single string
func (v *Validator) ErrorString() string {
	if len(v.errors) == 0 {
		return ""
	}
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns error if invalid
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// EngineConfig contains everything needed to construct the receipt engine
type EngineConfig struct {
	Storage StorageConfig
	Cache   CacheConfig
	Query   QueryConfig
	Service ServiceConfig
}

// LoadEngineConfig loads and validates the full engine configuration. All
// variables share the given prefix, e.g. prefix "RECEIPT" reads
// RECEIPT_STORAGE_BUCKET, RECEIPT_CACHE_TTL, RECEIPT_QUERY_CONCURRENCY and
// RECEIPT_LOG_LEVEL.
func LoadEngineConfig(prefix string) (*EngineConfig, error) {
	cfg := &EngineConfig{
		Storage: LoadStorageConfig(prefix + "_STORAGE"),
		Cache:   LoadCacheConfig(prefix + "_CACHE"),
		Query:   LoadQueryConfig(prefix + "_QUERY"),
		Service: LoadServiceConfig(prefix),
	}

	validator := NewValidator()
	validator.RequireString("Storage.Bucket", cfg.Storage.Bucket)
	validator.RequireOneOf("Service.Environment", cfg.Service.Environment,
		[]string{"development", "staging", "production"})
	validator.RequireOneOf("Service.LogLevel", cfg.Service.LogLevel,
		[]string{"debug", "info", "warn", "error"})
	validator.RequireInt("Query.Concurrency", cfg.Query.Concurrency, 1, 64)
	if cfg.Cache.Enabled {
		validator.RequirePositiveInt("Cache.MaxSize", cfg.Cache.MaxSize)
	}
	if cfg.Cache.RedisURL != "" && !strings.HasPrefix(cfg.Cache.RedisURL, "redis://") &&
		!strings.HasPrefix(cfg.Cache.RedisURL, "rediss://") {
		return nil, fmt.Errorf("configuration validation failed: Cache.RedisURL must be a redis:// or rediss:// URL")
	}
	if err := validator.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
