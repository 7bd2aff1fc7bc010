package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	Port           string
	AllowedOrigins string
	Environment    string
	Debug          bool
	InstanceID     string
	SendBuffer     int
}

func Load() *Config {
	return &Config{
		DatabaseURL:    getEnv("DATABASE_URL", "kanban.db"),
		RedisURL:       getEnv("REDIS_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Port:           getEnv("PORT", "3001"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		Environment:    strings.ToLower(getEnv("ENVIRONMENT", "development")),
		Debug:          getBool("DEBUG", false),
		InstanceID:     getEnv("INSTANCE_ID", uuid.NewString()),
		SendBuffer:     getInt("WS_SEND_BUFFER", 64),
	}
}

// IsPostgres reports whether DatabaseURL points at PostgreSQL rather than a SQLite file.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres")
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
