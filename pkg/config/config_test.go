package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Default(t *testing.T) {
	t.Run("Should return valid default configuration", func(t *testing.T) {
		cfg := Default()
		require.NotNil(t, cfg)

		assert.Equal(t, "live-memory", cfg.Server.Name)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.False(t, cfg.Server.Debug)

		assert.Equal(t, "us-east-1", cfg.S3.RegionName)

		assert.Equal(t, 100_000, cfg.LLM.MaxTokens)
		assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.0001)

		assert.Equal(t, 600*time.Second, cfg.Consolidation.Timeout)
		assert.Equal(t, 500, cfg.Consolidation.MaxNotes)

		assert.Equal(t, "", cfg.GC.Schedule)
		assert.Equal(t, 7, cfg.GC.MaxAgeDays)
	})
}

func TestManager_Load_EnvOverridesDefault(t *testing.T) {
	t.Run("Should layer env provider over defaults", func(t *testing.T) {
		t.Setenv("S3_ENDPOINT_URL", "https://ecs.example.com")
		t.Setenv("ACCESS_KEY_ID", "ak")
		t.Setenv("SECRET_ACCESS_KEY", "sk")
		t.Setenv("BUCKET_NAME", "live-memory-bucket")
		t.Setenv("LLMAAS_API_URL", "https://llm.example.com/v1")
		t.Setenv("MODEL", "gpt-4o-mini")
		t.Setenv("PORT", "9090")
		t.Setenv("MAX_NOTES", "250")
		t.Setenv("CONSOLIDATION_TIMEOUT", "120s")
		t.Setenv("GC_SCHEDULE", "@every 6h")
		t.Setenv("GC_MAX_AGE_DAYS", "14")

		m := NewManager()
		cfg, err := m.Load(NewDefaultProvider(), NewEnvProvider())
		require.NoError(t, err)

		assert.Equal(t, "https://ecs.example.com", cfg.S3.EndpointURL)
		assert.Equal(t, "live-memory-bucket", cfg.S3.BucketName)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 250, cfg.Consolidation.MaxNotes)
		assert.Equal(t, 120*time.Second, cfg.Consolidation.Timeout)
		assert.Equal(t, "@every 6h", cfg.GC.Schedule)
		assert.Equal(t, 14, cfg.GC.MaxAgeDays)
		// Untouched defaults still present.
		assert.Equal(t, "us-east-1", cfg.S3.RegionName)
	})

	t.Run("Should reject invalid port", func(t *testing.T) {
		t.Setenv("S3_ENDPOINT_URL", "https://ecs.example.com")
		t.Setenv("ACCESS_KEY_ID", "ak")
		t.Setenv("SECRET_ACCESS_KEY", "sk")
		t.Setenv("BUCKET_NAME", "bucket")
		t.Setenv("LLMAAS_API_URL", "https://llm.example.com/v1")
		t.Setenv("MODEL", "gpt-4o-mini")
		t.Setenv("PORT", "70000")

		m := NewManager()
		_, err := m.Load(NewDefaultProvider(), NewEnvProvider())
		require.Error(t, err)
	})
}

func TestEnvProvider_Type(t *testing.T) {
	t.Run("Should report SourceEnv", func(t *testing.T) {
		assert.Equal(t, SourceEnv, NewEnvProvider().Type())
	})
}
