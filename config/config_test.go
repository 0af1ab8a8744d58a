package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"STATE_STORE", "DEFAULT_MIN_BALANCE", "DEFAULT_SESSION_DURATION",
		"MAX_CAS_RETRIES", "STORE_TIMEOUT", "GATE_TOKEN_DECIMALS", "SWEEP_INTERVAL",
		"ENABLE_SWEEP", "ENABLE_METRICS", "METRICS_PORT", "RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, StateStoreRedis, cfg.StateStore)
	assert.Equal(t, int64(100), cfg.DefaultMinBalance)
	assert.Equal(t, 5*time.Minute, cfg.DefaultSessionDuration)
	assert.Equal(t, 3, cfg.MaxCASRetries)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 18, cfg.GateTokenDecimals)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.True(t, cfg.EnableSweep)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STATE_STORE", StateStoreMemory)
	t.Setenv("DEFAULT_MIN_BALANCE", "250")
	t.Setenv("DEFAULT_SESSION_DURATION", "90s")
	t.Setenv("MAX_CAS_RETRIES", "5")
	t.Setenv("ENABLE_SWEEP", "false")
	t.Setenv("BALANCE_ORACLE_URL", "https://oracle.internal")

	cfg := LoadConfig()

	assert.Equal(t, StateStoreMemory, cfg.StateStore)
	assert.Equal(t, int64(250), cfg.DefaultMinBalance)
	assert.Equal(t, 90*time.Second, cfg.DefaultSessionDuration)
	assert.Equal(t, 5, cfg.MaxCASRetries)
	assert.False(t, cfg.EnableSweep)
	assert.Equal(t, "https://oracle.internal", cfg.BalanceOracleURL)
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("AUX_TEST_INT", "many")
	t.Setenv("AUX_TEST_BOOL", "perhaps")
	t.Setenv("AUX_TEST_DURATION", "soon")

	assert.Equal(t, 7, getEnvAsInt("AUX_TEST_INT", 7))
	assert.True(t, getEnvAsBool("AUX_TEST_BOOL", true))
	assert.Equal(t, 3*time.Second, getEnvAsDuration("AUX_TEST_DURATION", "3s"))
}
