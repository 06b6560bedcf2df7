package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "your-secret-key-change-this-in-production"

type Config struct {
	Env          string
	Port         string
	GinMode      string
	JWTSecret    string
	StoreDriver  string
	MongoURI     string
	MongoDB      string
	SQLitePath   string
	ChatChannel  string
	StoreTimeout time.Duration
	HistoryLimit int
	CORSOrigins  []string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️ Could not read .env: %v", err)
	}

	cfg := &Config{
		Env:          getEnv("ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
		MongoURI:     getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:      getEnv("MONGODB_DATABASE", "opsdash"),
		SQLitePath:   getEnv("SQLITE_PATH", "opsdash.db"),
		ChatChannel:  getEnv("CHAT_CHANNEL", "global"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		HistoryLimit: getEnvInt("HISTORY_LIMIT", 100),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
		}),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = devJWTSecret
	}

	switch cfg.StoreDriver {
	case "mongo", "sqlite", "memory":
	default:
		return nil, errors.New("STORE_DRIVER must be one of mongo, sqlite, memory")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
