package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the service needs. It is assembled once at
// startup and passed by value into each component, so nothing reads the
// environment after Load returns.
type Config struct {
	Environment string
	LogLevel    string
	Port        string

	DatabasePath string

	// Transcription job service (Replicate-style predictions API).
	ReplicateAPIURL string
	ReplicateAPIKey string
	WhisperVersion  string

	// LLM completion service (OpenRouter-style chat completions).
	OpenRouterAPIURL string
	OpenRouterAPIKey string
	Model            string

	// Optional status-event publishing.
	AMQPURL   string
	AMQPQueue string

	HTTPTimeout time.Duration

	// Job polling.
	PollInterval  time.Duration
	MaxPolls      int
	ProgressEvery int

	// Analysis.
	MinTranscriptChars     int
	LowConfidenceThreshold float64
}

// Load reads the environment and fills in defaults. Callers load .env first
// (godotenv in main) if they want file-based config.
func Load() Config {
	return Config{
		Environment: envOr("ENVIRONMENT", "local"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		Port:        envOr("PORT", "8080"),

		DatabasePath: envOr("DATABASE_PATH", "data/calls.db"),

		ReplicateAPIURL: envOr("REPLICATE_API_URL", "https://api.replicate.com/v1/predictions"),
		ReplicateAPIKey: os.Getenv("REPLICATE_API_KEY"),
		WhisperVersion:  envOr("WHISPER_VERSION", "4d50797290df275329f202e48c76360b3f22b08d28c196cbc54600319435f8d2"),

		OpenRouterAPIURL: envOr("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		Model:            envOr("LLM_MODEL", "google/gemini-3-flash-preview"),

		AMQPURL:   os.Getenv("AMQP_URL"),
		AMQPQueue: envOr("AMQP_QUEUE_NAME", "call-status-events"),

		HTTPTimeout: envDurationOr("HTTP_TIMEOUT", 120*time.Second),

		PollInterval:  envDurationOr("POLL_INTERVAL", 5*time.Second),
		MaxPolls:      envIntOr("MAX_POLLS", 120),
		ProgressEvery: envIntOr("POLL_PROGRESS_EVERY", 12),

		MinTranscriptChars:     envIntOr("MIN_TRANSCRIPT_CHARS", 50),
		LowConfidenceThreshold: 50,
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envIntOr(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDurationOr(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
