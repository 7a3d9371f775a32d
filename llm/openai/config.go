package openai

import (
	"fmt"
	"time"

	"github.com/alt-coder/brainyflow-go/llm/internal/env"
)

// Config configures the OpenAI chat completion client. Any OpenAI-compatible
// endpoint works through BaseURL.
type Config struct {
	APIKey      string  `validate:"required"`
	Model       string  `validate:"required"`
	Temperature float32 `validate:"gte=0,lte=2"`
	BaseURL     string
	OrgID       string

	// RateLimit caps requests per RateLimitInterval; 0 disables limiting.
	RateLimit         int           `validate:"gte=0"`
	RateLimitInterval time.Duration `validate:"required_with=RateLimit,gte=0"`

	MaxTokens        int     `validate:"gte=0"` // 0 leaves it to the model
	TopP             float32 `validate:"gte=0,lte=1"`
	FrequencyPenalty float32 `validate:"gte=-2,lte=2"`
	PresencePenalty  float32 `validate:"gte=-2,lte=2"`
}

// Environment variables read by NewConfigFromEnv.
const (
	EnvAPIKey            = "OPENAI_API_KEY"
	EnvModel             = "OPENAI_MODEL"
	EnvTemperature       = "OPENAI_TEMPERATURE"
	EnvBaseURL           = "OPENAI_BASE_URL"
	EnvOrgID             = "OPENAI_ORG_ID"
	EnvRateLimit         = "OPENAI_RATE_LIMIT"
	EnvRateLimitInterval = "OPENAI_RATE_LIMIT_INTERVAL_SECONDS"
	EnvMaxTokens         = "OPENAI_MAX_TOKENS"
	EnvTopP              = "OPENAI_TOP_P"
	EnvFrequencyPenalty  = "OPENAI_FREQUENCY_PENALTY"
	EnvPresencePenalty   = "OPENAI_PRESENCE_PENALTY"
)

var fieldNames = map[string]string{
	"APIKey":            EnvAPIKey,
	"Model":             "model name",
	"Temperature":       "temperature",
	"RateLimit":         "rateLimit",
	"RateLimitInterval": "rateLimitInterval",
	"MaxTokens":         "maxTokens",
	"TopP":              "topP",
	"FrequencyPenalty":  "frequencyPenalty",
	"PresencePenalty":   "presencePenalty",
}

// DefaultConfig returns the defaults NewConfigFromEnv starts from.
func DefaultConfig() *Config {
	return &Config{
		Model:             "gpt-4o",
		Temperature:       0.7,
		BaseURL:           "https://api.openai.com/v1",
		RateLimitInterval: time.Minute,
		TopP:              1.0,
	}
}

// NewConfigFromEnv overlays the OPENAI_* variables on DefaultConfig and
// validates the result.
func NewConfigFromEnv() (*Config, error) {
	c := DefaultConfig()
	err := env.Load(
		env.String(EnvAPIKey, &c.APIKey),
		env.String(EnvModel, &c.Model),
		env.Float32(EnvTemperature, &c.Temperature),
		env.String(EnvBaseURL, &c.BaseURL),
		env.String(EnvOrgID, &c.OrgID),
		env.Int(EnvRateLimit, &c.RateLimit),
		env.Seconds(EnvRateLimitInterval, &c.RateLimitInterval),
		env.Int(EnvMaxTokens, &c.MaxTokens),
		env.Float32(EnvTopP, &c.TopP),
		env.Float32(EnvFrequencyPenalty, &c.FrequencyPenalty),
		env.Float32(EnvPresencePenalty, &c.PresencePenalty),
	)
	if err != nil {
		return nil, fmt.Errorf("openai config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if err := env.Validate(c, fieldNames); err != nil {
		return fmt.Errorf("invalid openai config: %w", err)
	}
	return nil
}
