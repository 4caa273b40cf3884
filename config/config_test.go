package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvConfigPrefixedLookup(t *testing.T) {
	t.Setenv("RCPT_BUCKET", "receipts-prod")

	env := NewEnvConfig("RCPT")
	assert.Equal(t, "receipts-prod", env.GetString("BUCKET", "fallback"))
	assert.Equal(t, "fallback", env.GetString("MISSING", "fallback"))
}

func TestEnvConfigTypedGetters(t *testing.T) {
	t.Setenv("CONCURRENCY", "8")
	t.Setenv("PUSHDOWN", "false")
	t.Setenv("TTL", "90s")
	t.Setenv("BAD_INT", "not-a-number")

	env := NewEnvConfig("")
	assert.Equal(t, 8, env.GetInt("CONCURRENCY", 5))
	assert.Equal(t, 5, env.GetInt("BAD_INT", 5))
	assert.False(t, env.GetBool("PUSHDOWN", true))
	assert.Equal(t, 90*time.Second, env.GetDuration("TTL", time.Minute))
	assert.Equal(t, time.Minute, env.GetDuration("MISSING", time.Minute))
}

func TestLoadStorageConfigDefaults(t *testing.T) {
	cfg := LoadStorageConfig("NOPREFIX_TEST")
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.True(t, cfg.Pushdown)
	assert.Equal(t, 1*time.Hour, cfg.PresignTTL)
}

func TestLoadEngineConfig(t *testing.T) {
	t.Setenv("RCPT_STORAGE_BUCKET", "receipts")
	t.Setenv("RCPT_STORAGE_ENDPOINT", "http://minio:9000")
	t.Setenv("RCPT_STORAGE_USE_PATH_STYLE", "true")
	t.Setenv("RCPT_CACHE_MAX_SIZE", "250")
	t.Setenv("RCPT_QUERY_CONCURRENCY", "10")

	cfg, err := LoadEngineConfig("RCPT")
	require.NoError(t, err)

	assert.Equal(t, "receipts", cfg.Storage.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Storage.Endpoint)
	assert.True(t, cfg.Storage.UsePathStyle)
	assert.Equal(t, 250, cfg.Cache.MaxSize)
	assert.Equal(t, 10, cfg.Query.Concurrency)
	assert.Equal(t, "receiptengine", cfg.Service.Name)
}

func TestLoadEngineConfigRequiresBucket(t *testing.T) {
	_, err := LoadEngineConfig("UNSET_PREFIX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Storage.Bucket")
}

func TestLoadEngineConfigRejectsBadRedisURL(t *testing.T) {
	t.Setenv("RCPTX_STORAGE_BUCKET", "receipts")
	t.Setenv("RCPTX_CACHE_REDIS_URL", "http://not-redis")

	_, err := LoadEngineConfig("RCPTX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cache.RedisURL")
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.RequireString("name", "")
	v.RequireInt("concurrency", 100, 1, 64)
	v.RequireOneOf("level", "verbose", []string{"debug", "info"})

	assert.False(t, v.IsValid())
	assert.Len(t, v.Errors(), 3)
	require.Error(t, v.Validate())

	ok := NewValidator()
	ok.RequireString("name", "receipts")
	ok.RequirePositiveInt("size", 10)
	assert.NoError(t, ok.Validate())
}
