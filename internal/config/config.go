package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Soroban   SorobanConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig

	RedisAddr     string
	RedisPassword string
}

// SorobanConfig configures the ledger gateway.
type SorobanConfig struct {
	RPCURL            string
	ContractID        string
	NetworkPassphrase string
	PollAttempts      int
	PollInterval      time.Duration
}

// AuthConfig configures wallet login and token issuance.
type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	ChallengeTTL time.Duration
}

// RateLimitConfig tunes the redis token buckets guarding the abuse-prone
// endpoints. Limiting is active only when REDIS_ADDR is set.
type RateLimitConfig struct {
	ChallengeRate   float64
	ChallengeBurst  int
	ContributeRate  float64
	ContributeBurst int
	SubmitLockTTL   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "cotravel"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "cotravel"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Soroban: SorobanConfig{
			RPCURL:            getenv("SOROBAN_RPC_URL", "https://soroban-testnet.stellar.org"),
			ContractID:        strings.TrimSpace(getenv("CONTRACT_ID", "")),
			NetworkPassphrase: getenv("SOROBAN_NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),
			PollAttempts:      getenvInt("SOROBAN_POLL_ATTEMPTS", 60),
			PollInterval:      getenvDuration("SOROBAN_POLL_INTERVAL", time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			TokenTTL:     getenvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
			ChallengeTTL: getenvDuration("AUTH_CHALLENGE_TTL", 5*time.Minute),
		},

		RateLimit: RateLimitConfig{
			ChallengeRate:   getenvFloat("RATE_LIMIT_CHALLENGE_RATE", 1),
			ChallengeBurst:  getenvInt("RATE_LIMIT_CHALLENGE_BURST", 5),
			ContributeRate:  getenvFloat("RATE_LIMIT_CONTRIBUTE_RATE", 0.5),
			ContributeBurst: getenvInt("RATE_LIMIT_CONTRIBUTE_BURST", 3),
			SubmitLockTTL:   getenvDuration("RATE_LIMIT_SUBMIT_LOCK_TTL", 30*time.Second),
		},

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
	}

	return cfg
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
