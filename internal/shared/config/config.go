package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueBackend   string
	QueueName      string
	SQSQueueURL    string
	JobMaxAttempts int
	JobBackoffBase time.Duration

	MLServiceURL    string
	MLServiceAPIKey string
	MLModelVersion  string
	MLTimeout       time.Duration

	SessionTTL time.Duration
	PairingTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		DatabaseURL:     dbURL,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QueueBackend:   normalizeQueueBackend(getEnv("QUEUE_BACKEND", "redis")),
		QueueName:      getEnv("QUEUE_NAME", "ml_queue"),
		SQSQueueURL:    getEnv("PCOS_SQS_QUEUE_URL", ""),
		JobMaxAttempts: getEnvInt("JOB_MAX_ATTEMPTS", 5),
		JobBackoffBase: getEnvMillis("JOB_BACKOFF_BASE_MS", 5000),

		MLServiceURL:    getEnv("ML_SERVICE_URL", ""),
		MLServiceAPIKey: getEnv("ML_SERVICE_API_KEY", ""),
		MLModelVersion:  getEnv("ML_MODEL_VERSION", "v1.1.2"),
		MLTimeout:       getEnvMillis("ML_TIMEOUT_MS", 8000),

		SessionTTL: getEnvSeconds("SESSION_TTL_SECONDS", 300),
		PairingTTL: getEnvSeconds("PAIRING_TTL_SECONDS", 300),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvMillis(key string, defMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defMillis)) * time.Millisecond
}

func getEnvSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defSeconds)) * time.Second
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "redis"
	}
}
