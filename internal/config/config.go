package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	LogMode         string
	ShutdownTimeout time.Duration

	// Database
	DBDriver      string // "postgres" or "sqlite"
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	SQLitePath    string
	TxMaxAttempts int

	JWTSecret   string
	TokenTTL    time.Duration
	AdminEmails []string // accounts registered with these emails get the admin role

	// Stats cache; empty RedisAddr disables it.
	RedisAddr     string
	StatsCacheTTL time.Duration

	// Question generation
	AnthropicAPIKey string
	AnthropicModel  string
	MockGenerator   bool
	UseCLIGenerator bool
	CLIPath         string
}

// devJWTSecret signs tokens only when LOG_MODE is dev and JWT_SECRET is unset.
const devJWTSecret = "quizsets-dev-signing-key"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside dev mode")

// Load reads .env and the environment. Outside dev mode it fails when
// JWT_SECRET is unset, since any token signed with the dev key would pass.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		LogMode:         getEnv("LOG_MODE", "dev"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "quiz_user"),
		DBPassword:      getEnv("DB_PASSWORD", "quiz_password"),
		DBName:          getEnv("DB_NAME", "quizsets"),
		DBSSLMode:       getEnv("DB_SSLMODE", "disable"),
		SQLitePath:      getEnv("SQLITE_PATH", "quizsets.db"),
		TxMaxAttempts:   getInt("TX_MAX_ATTEMPTS", 3),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:        getDuration("TOKEN_TTL", 72*time.Hour),
		AdminEmails:     getList("ADMIN_EMAILS"),
		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		StatsCacheTTL:   getDuration("STATS_CACHE_TTL", 5*time.Minute),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		MockGenerator:   os.Getenv("MOCK_GENERATOR") == "true",
		UseCLIGenerator: os.Getenv("USE_CLI_GENERATOR") == "true",
		CLIPath:         getEnv("CLAUDE_CLI_PATH", "claude"),
	}

	if cfg.JWTSecret == "" {
		if cfg.LogMode != "dev" {
			return nil, ErrMissingJWTSecret
		}
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
