package gemini

import (
	"fmt"
	"time"

	"github.com/alt-coder/brainyflow-go/llm/internal/env"
	"google.golang.org/genai"
)

// Config configures the Gemini client.
type Config struct {
	APIKey      string  `validate:"required"`
	Model       string  `validate:"required"`
	Temperature float32 `validate:"gte=0,lte=1"`
	Backend     genai.Backend
	BaseURL     string // optional endpoint override

	// RateLimit caps requests per RateLimitInterval; 0 disables limiting.
	RateLimit         int           `validate:"gte=0"`
	RateLimitInterval time.Duration `validate:"required_with=RateLimit,gte=0"`
}

// Environment variables read by NewConfigFromEnv.
const (
	EnvAPIKey            = "GOOGLE_API_KEY"
	EnvModel             = "CHAT_MODEL"
	EnvTemperature       = "CHAT_TEMPERATURE"
	EnvBaseURL           = "GEMINI_BASE_URL"
	EnvRateLimit         = "GEMINI_RATE_LIMIT"
	EnvRateLimitInterval = "GEMINI_RATE_LIMIT_INTERVAL_SECONDS"
)

var fieldNames = map[string]string{
	"APIKey":            EnvAPIKey,
	"Model":             "model name",
	"Temperature":       "temperature",
	"RateLimit":         "rateLimit",
	"RateLimitInterval": "rateLimitInterval",
}

// NewConfigFromEnv reads the Gemini API settings, defaulting to
// gemini-2.0-flash at temperature 0.7.
func NewConfigFromEnv() (*Config, error) {
	c := &Config{
		Model:             "gemini-2.0-flash",
		Temperature:       0.7,
		Backend:           genai.BackendGeminiAPI,
		RateLimitInterval: time.Minute,
	}
	err := env.Load(
		env.String(EnvAPIKey, &c.APIKey),
		env.String(EnvModel, &c.Model),
		env.Float32(EnvTemperature, &c.Temperature),
		env.String(EnvBaseURL, &c.BaseURL),
		env.Int(EnvRateLimit, &c.RateLimit),
		env.Seconds(EnvRateLimitInterval, &c.RateLimitInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if err := env.Validate(c, fieldNames); err != nil {
		return fmt.Errorf("invalid gemini config: %w", err)
	}
	return nil
}
