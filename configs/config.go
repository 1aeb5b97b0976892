package configs

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSecret = "dailyforge-dev-secret"

type Config struct {
	Env         string
	AppPort     int
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBNameTest  string
	DBSSLMode   string
	RedisHost   string
	RedisPort   int
	RedisPass   string
	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins string
	RateLimit   int
	LogDir      string
	CacheTTL    time.Duration
	RecentCron  string
}

func LoadConfig() Config {
	// Muat file .env
	if err := godotenv.Load(); err != nil {
		// Hanya log jika tidak dalam mode test
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	cfg := Config{
		Env:         getEnv("GO_ENV", "development"),
		AppPort:     getEnvInt("APP_PORT", 3004),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DBNameTest:  os.Getenv("DB_NAME_TEST"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		RedisHost:   getEnv("REDIS_HOST", "localhost"),
		RedisPort:   getEnvInt("REDIS_PORT", 6379),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTTTL:      time.Duration(getEnvInt("JWT_TTL_HOURS", 168)) * time.Hour,
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		RateLimit:   getEnvInt("RATE_LIMIT_MAX", 100),
		LogDir:      getEnv("LOG_DIR", "logs"),
		CacheTTL:    time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		RecentCron:  getEnv("RECENT_ROOMS_CRON", "@every 5m"),
	}
	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = devSecret
	}
	return cfg
}

// IsDevelopment reports whether insecure defaults are acceptable.
func (c Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "test"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
