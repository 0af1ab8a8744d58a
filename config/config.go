package config

import (
	"os"
	"strconv"
	"time"
)

const (
	StateStoreRedis  = "redis"
	StateStoreMemory = "memory"
)

type Config struct {
	// Server configuration; the listen address is pocketbase's serve --http flag
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// StateStore selects where AuxState records live: "redis" or "memory".
	StateStore string

	// Station defaults, used when a station record leaves a field unset
	DefaultMinBalance      int64
	DefaultSessionDuration time.Duration

	// Optimistic concurrency
	MaxCASRetries int
	StoreTimeout  time.Duration

	// Balance oracle
	BalanceOracleURL    string
	BalanceOracleAPIKey string
	GateTokenAddress    string
	GateTokenDecimals   int
	OracleTimeout       time.Duration

	// Expiry sweep
	EnableSweep   bool
	SweepInterval time.Duration

	// Abuse protection
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		StateStore: getEnv("STATE_STORE", StateStoreRedis),

		// Stations
		DefaultMinBalance:      int64(getEnvAsInt("DEFAULT_MIN_BALANCE", 100)),
		DefaultSessionDuration: getEnvAsDuration("DEFAULT_SESSION_DURATION", "5m"),

		// Concurrency
		MaxCASRetries: getEnvAsInt("MAX_CAS_RETRIES", 3),
		StoreTimeout:  getEnvAsDuration("STORE_TIMEOUT", "2s"),

		// Oracle
		BalanceOracleURL:    getEnv("BALANCE_ORACLE_URL", ""),
		BalanceOracleAPIKey: getEnv("BALANCE_ORACLE_API_KEY", ""),
		GateTokenAddress:    getEnv("GATE_TOKEN_ADDRESS", ""),
		GateTokenDecimals:   getEnvAsInt("GATE_TOKEN_DECIMALS", 18),
		OracleTimeout:       getEnvAsDuration("ORACLE_TIMEOUT", "3s"),

		// Sweep
		EnableSweep:   getEnvAsBool("ENABLE_SWEEP", true),
		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", "15s"),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
