package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, EngineConfig{}, cfg.Engine)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, HistoryConfig{}, cfg.History)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEmpty(t, cfg.Log.OutputPaths)
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.APIKeys)
	assert.False(t, cfg.JWT.Enabled())
	assert.InDelta(t, 10, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 20, cfg.RateLimitBurst)
}

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	assert.Equal(t, 3*time.Minute, cfg.RunTimeout)
	assert.Equal(t, time.Minute, cfg.NodeTimeout)
	assert.Zero(t, cfg.MaxConcurrency)
	assert.False(t, cfg.DeterministicOrder)
}

func TestDefaultLLMConfig(t *testing.T) {
	cfg := DefaultLLMConfig()
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.InDelta(t, 0.7, cfg.Temperature, 0.001)
	assert.Empty(t, cfg.APIKey)
}

func TestDefaultHistoryConfig(t *testing.T) {
	cfg := DefaultHistoryConfig()
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, 500, cfg.MaxRecords)
	assert.Equal(t, 7*24*time.Hour, cfg.TTL)
	assert.Equal(t, "wellness:runs:", cfg.KeyPrefix)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "wellness.db", cfg.DSN())
}

func TestDefaultLogAndTelemetry(t *testing.T) {
	log := DefaultLogConfig()
	assert.Equal(t, "info", log.Level)
	assert.Equal(t, "json", log.Format)
	assert.Equal(t, []string{"stderr"}, log.OutputPaths)

	tel := DefaultTelemetryConfig()
	assert.False(t, tel.Enabled)
	assert.Equal(t, "mental-wellness-agent", tel.ServiceName)
}
