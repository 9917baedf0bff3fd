package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every runtime setting of the SuperHuman API.
type Config struct {
	Port        string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	TokenExpiry time.Duration
	LogLevel    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// StreakTimezone is the single calendar used for every day boundary.
	StreakTimezone *time.Location

	CoachAPIKey  string
	CoachAPIURL  string
	CoachModel   string
	CoachTimeout time.Duration

	ReconcileSchedule string
	CORSOrigins       []string

	// SMTP settings for the welcome email. An empty SMTPHost disables mail.
	SMTPHost     string
	SMTPPort     string
	SMTPSender   string
	SMTPPassword string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using process environment")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "superhuman"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenExpiry:       getEnvAsDuration("TOKEN_EXPIRY", 24*time.Hour),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		StreakTimezone:    getEnvAsLocation("STREAK_TIMEZONE", time.UTC),
		CoachAPIKey:       os.Getenv("COACH_API_KEY"),
		CoachAPIURL:       getEnv("COACH_API_URL", "https://api.openai.com/v1/chat/completions"),
		CoachModel:        getEnv("COACH_MODEL", "gpt-3.5-turbo"),
		CoachTimeout:      getEnvAsDuration("COACH_TIMEOUT", 15*time.Second),
		ReconcileSchedule: getEnvRaw("RECONCILE_SCHEDULE", "30 3 * * *"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPSender:        os.Getenv("SMTP_SENDER"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
	}

	return cfg
}

// UseMemoryStore reports whether no MongoDB URI was configured.
func (c *Config) UseMemoryStore() bool {
	return c.MongoURI == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRaw distinguishes an unset variable from one explicitly set to "".
func getEnvRaw(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logrus.Warnf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logrus.Warnf("Invalid duration value for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsLocation(key string, defaultValue *time.Location) *time.Location {
	name := os.Getenv(key)
	if name == "" {
		return defaultValue
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logrus.Warnf("Unknown timezone for %s: %s, using default: %s", key, name, defaultValue)
		return defaultValue
	}
	return loc
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
