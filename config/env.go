package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Redis   RedisConfig
	DB      DBConfig
	Server  ServerConfig
	Auth    AuthConfig
	Kitchen KitchenConfig
}

type DBConfig struct {
	DSN string
}

type ServerConfig struct {
	HTTPPort       string
	GRPCPort       string
	RateLimit      string
	HealthInterval time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type KitchenConfig struct {
	HistoryLimit int
	CacheTTL     time.Duration
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv reads the process environment without touching .env files.
func FromEnv() Config {
	return Config{
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		DB: DBConfig{
			DSN: getEnv("POS_DSN", ""),
		},
		Server: ServerConfig{
			HTTPPort:       getEnv("HTTP_PORT", "8080"),
			GRPCPort:       getEnv("GRPC_PORT", "50053"),
			RateLimit:      getEnv("RATE_LIMIT", "100-M"),
			HealthInterval: getEnvDuration("HEALTH_INTERVAL", 15*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Kitchen: KitchenConfig{
			HistoryLimit: getEnvInt("KITCHEN_HISTORY_LIMIT", 20),
			CacheTTL:     getEnvDuration("KITCHEN_CACHE_TTL", 5*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
