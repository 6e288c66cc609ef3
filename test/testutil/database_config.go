package testutil

import (
	"os"
	"strconv"

	"github.com/pthm/easyrls/internal/cli"
)

// DatabaseConfig names an external database to run the integration tests
// against instead of a container.
type DatabaseConfig struct {
	URL string
}

// GetDatabaseConfig reads DATABASE_URL, or the DATABASE_HOST family of
// variables. An empty URL means a container is started.
func GetDatabaseConfig() DatabaseConfig {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return DatabaseConfig{URL: url}
	}

	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return DatabaseConfig{}
	}

	cfg := cli.Config{Database: cli.DatabaseConfig{
		Host:     host,
		Port:     getEnvInt("DATABASE_PORT", 5432),
		Name:     getEnv("DATABASE_NAME", "postgres"),
		User:     getEnv("DATABASE_USER", "postgres"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		SSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
	}}
	dsn, err := cfg.DSN()
	if err != nil {
		return DatabaseConfig{}
	}
	return DatabaseConfig{URL: dsn}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
