// Package providers builds an llm.Provider by name for programs that pick the
// backend at runtime.
package providers

import (
	"context"
	"fmt"
	"slices"

	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/llm/gemini"
	"github.com/alt-coder/brainyflow-go/llm/openai"
	"go.uber.org/zap"
)

const (
	Mock   = "mock"
	OpenAI = "openai"
	Gemini = "gemini"
)

// Names lists the supported provider names.
func Names() []string {
	return []string{Gemini, Mock, OpenAI}
}

// Spec selects a provider. Credentials and tuning come from the provider's
// environment variables; Model overrides the configured model when set.
type Spec struct {
	Name  string
	Model string
}

// New builds the provider named in spec.
func New(ctx context.Context, spec Spec, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", spec.Name))

	switch spec.Name {
	case Mock, "":
		return llm.NewMockProvider(Mock), nil

	case OpenAI:
		config, err := openai.NewConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if spec.Model != "" {
			config.Model = spec.Model
		}
		client, err := openai.NewClient(config, openai.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return client, nil

	case Gemini:
		config, err := gemini.NewConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if spec.Model != "" {
			config.Model = spec.Model
		}
		client, err := gemini.NewClient(ctx, config, gemini.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown provider %q (want one of %v)", spec.Name, Names())
	}
}

// Valid reports whether name is a supported provider.
func Valid(name string) bool {
	return slices.Contains(Names(), name)
}
