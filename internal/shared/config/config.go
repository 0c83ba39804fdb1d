package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// HTTPConfig holds the intake gateway settings.
type HTTPConfig struct {
	Addr       string
	AllowedIPs []string // IPs or CIDR ranges allowed to post events
}

// BackendConfig holds the backend API connection settings.
type BackendConfig struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

// VerifierConfig holds the verification agent connection settings.
type VerifierConfig struct {
	BaseURL string
	Timeout time.Duration // Per-document verification budget
}

// QueueConfig holds the batch processing and retry policy.
type QueueConfig struct {
	ProcessInterval time.Duration // Wall-clock cadence between batch passes
	PassTimeout     time.Duration // Hard ceiling on one pass
	BatchSize       int
	MaxAttempts     int
	StaleAfter      time.Duration // Lease on a claimed event before reclaim
	BackoffBase     time.Duration
	BackoffCap      time.Duration
}

// TelegramConfig holds the optional ops alert channel. Empty token disables it.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// Config holds all configuration for the application.
type Config struct {
	AppEnv      string
	DatabaseURL string
	HTTP        HTTPConfig
	Backend     BackendConfig
	Verifier    VerifierConfig
	Queue       QueueConfig
	Telegram    TelegramConfig
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {

	// 1. Load .env file into the process environment.
	// If .env is not found we just proceed, relying on OS-set env vars.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	// 2. Explicitly bind viper keys to env var names
	bindings := map[string]string{
		"app.env":            "APP_ENV",
		"database.url":       "DATABASE_URL",
		"http.addr":          "HTTP_ADDR",
		"http.allowed_ips":   "ALLOWED_IPS",
		"backend.base_url":   "BACKEND_BASE_URL",
		"backend.email":      "BACKEND_EMAIL",
		"backend.password":   "BACKEND_PASSWORD",
		"backend.timeout":    "BACKEND_TIMEOUT",
		"verifier.base_url":  "VERIFIER_BASE_URL",
		"verifier.timeout":   "VERIFY_TIMEOUT",
		"queue.interval":     "PROCESS_INTERVAL",
		"queue.pass_timeout": "PASS_TIMEOUT",
		"queue.batch_size":   "BATCH_SIZE",
		"queue.max_attempts": "MAX_ATTEMPTS",
		"queue.stale_after":  "QUEUE_STALE_AFTER",
		"queue.backoff":      "QUEUE_RETRY_BACKOFF",
		"queue.backoff_cap":  "QUEUE_RETRY_BACKOFF_CAP",
		"telegram.token":     "TELEGRAM_BOT_TOKEN",
		"telegram.chat_id":   "TELEGRAM_CHAT_ID",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	// 3. Set defaults
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("backend.timeout", "30s")
	viper.SetDefault("verifier.timeout", "90s")
	viper.SetDefault("queue.interval", "2h")
	viper.SetDefault("queue.pass_timeout", "30m")
	viper.SetDefault("queue.batch_size", 100)
	viper.SetDefault("queue.max_attempts", 3)
	viper.SetDefault("queue.stale_after", "30m")
	viper.SetDefault("queue.backoff", "1m")
	viper.SetDefault("queue.backoff_cap", "1h")

	// 4. Get values directly from viper
	cfg := Config{
		AppEnv:      viper.GetString("app.env"),
		DatabaseURL: viper.GetString("database.url"),
		HTTP: HTTPConfig{
			Addr:       viper.GetString("http.addr"),
			AllowedIPs: splitList(viper.GetString("http.allowed_ips")),
		},
		Backend: BackendConfig{
			BaseURL:  viper.GetString("backend.base_url"),
			Email:    viper.GetString("backend.email"),
			Password: viper.GetString("backend.password"),
			Timeout:  viper.GetDuration("backend.timeout"),
		},
		Verifier: VerifierConfig{
			BaseURL: viper.GetString("verifier.base_url"),
			Timeout: viper.GetDuration("verifier.timeout"),
		},
		Queue: QueueConfig{
			ProcessInterval: viper.GetDuration("queue.interval"),
			PassTimeout:     viper.GetDuration("queue.pass_timeout"),
			BatchSize:       viper.GetInt("queue.batch_size"),
			MaxAttempts:     viper.GetInt("queue.max_attempts"),
			StaleAfter:      viper.GetDuration("queue.stale_after"),
			BackoffBase:     viper.GetDuration("queue.backoff"),
			BackoffCap:      viper.GetDuration("queue.backoff_cap"),
		},
		Telegram: TelegramConfig{
			BotToken: viper.GetString("telegram.token"),
			ChatID:   viper.GetInt64("telegram.chat_id"),
		},
	}

	// 5. Validation
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set in environment or .env file")
	}
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is not set in environment or .env file")
	}
	if cfg.Backend.Email == "" || cfg.Backend.Password == "" {
		return nil, errors.New("BACKEND_EMAIL and BACKEND_PASSWORD must both be set")
	}
	if cfg.Verifier.BaseURL == "" {
		return nil, errors.New("VERIFIER_BASE_URL is not set in environment or .env file")
	}
	if cfg.Queue.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.Queue.BatchSize)
	}
	if cfg.Queue.MaxAttempts <= 0 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID == 0 {
		return nil, errors.New("TELEGRAM_CHAT_ID must be set when TELEGRAM_BOT_TOKEN is")
	}

	return &cfg, nil
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
