package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the WagerProof control plane.
type Config struct {
	Port      int
	Version   string
	Model     ModelConfig
	Scores    ScoresConfig
	Grading   GradingConfig
	Telemetry TelemetryConfig
}

// ModelConfig configures the external model provider.
type ModelConfig struct {
	Kind     string // "openai", "anthropic", or any OpenAI-compatible endpoint
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// ScoresConfig configures the final-scores feed.
type ScoresConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// GradingConfig configures the scheduled grading sweep.
type GradingConfig struct {
	Enabled  bool
	Schedule string // cron expression
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("WAGERPROOF_PORT", 8080),
		Version: envStr("WAGERPROOF_VERSION", "0.2.0"),
		Model: ModelConfig{
			Kind:     envStr("MODEL_PROVIDER_KIND", "openai"),
			Endpoint: envStr("MODEL_PROVIDER_ENDPOINT", ""),
			Model:    envStr("MODEL_PROVIDER_MODEL", "gpt-4o-mini"),
			APIKey:   envStr("MODEL_PROVIDER_API_KEY", ""),
			Timeout:  envDur("MODEL_PROVIDER_TIMEOUT", 60*time.Second),
		},
		Scores: ScoresConfig{
			Endpoint: envStr("SCORES_FEED_ENDPOINT", ""),
			APIKey:   envStr("SCORES_FEED_API_KEY", ""),
			Timeout:  envDur("SCORES_FEED_TIMEOUT", 15*time.Second),
		},
		Grading: GradingConfig{
			Enabled:  envBool("GRADING_ENABLED", true),
			Schedule: envStr("GRADING_SCHEDULE", "*/15 * * * *"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "wagerproof-server"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
