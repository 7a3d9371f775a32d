package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alt-coder/brainyflow-go/llm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Client implements llm.Provider for Google's Gemini models.
// It makes a single request per call; retries belong to the calling node.
type Client struct {
	genaiClient *genai.Client
	config      *Config
	limiter     *rate.Limiter
	tools       []*genai.Tool
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client with the provided configuration
func NewClient(ctx context.Context, config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: config.Backend,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = config.BaseURL
	}
	genaiClient, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	client := &Client{
		genaiClient: genaiClient,
		config:      config,
		logger:      zap.NewNop(),
	}
	if config.RateLimit > 0 {
		every := rate.Every(config.RateLimitInterval / time.Duration(config.RateLimit))
		client.limiter = rate.NewLimiter(every, config.RateLimit)
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewClientFromEnv creates a new Gemini client using environment variables
func NewClientFromEnv(ctx context.Context, opts ...Option) (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return NewClient(ctx, config, opts...)
}

// Name returns the provider name
func (c *Client) Name() string {
	return "gemini"
}

// BindTools returns a copy of the client that declares tools as functions.
func (c *Client) BindTools(tools []llm.ToolSpec) llm.Provider {
	cp := *c
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	cp.tools = []*genai.Tool{{FunctionDeclarations: decls}}
	return &cp
}

// CallLLM implements the generic interface, converting messages internally
func (c *Client) CallLLM(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	result := llm.Message{}
	if len(messages) == 0 {
		return result, errors.New("no messages to send")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return result, err
		}
	}

	contents, system := convertMessages(messages)
	temperature := c.config.Temperature
	genConfig := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		SystemInstruction: system,
		Tools:             c.tools,
	}

	response, err := c.genaiClient.Models.GenerateContent(ctx, c.config.Model, contents, genConfig)
	if err != nil {
		c.logger.Debug("generate content failed", zap.String("model", c.config.Model), zap.Error(err))
		return result, fmt.Errorf("failed to generate content: %w", err)
	}
	if response.UsageMetadata != nil {
		c.logger.Debug("generate content",
			zap.String("model", c.config.Model),
			zap.Int32("prompt_tokens", response.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", response.UsageMetadata.CandidatesTokenCount))
	}

	for _, call := range response.FunctionCalls() {
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:   call.ID,
			Name: call.Name,
			Args: call.Args,
		})
	}
	result.Role = llm.RoleAssistant
	result.Content = response.Text()
	return result, nil
}

// convertMessages converts generic messages to Gemini contents. System
// messages are folded into the system instruction.
func convertMessages(messages []llm.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content

	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})
			continue
		}

		content := &genai.Content{Role: getRole(msg.Role)}
		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}
		if len(msg.Media) > 0 {
			content.Parts = append(content.Parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: msg.MimeType,
					Data:     msg.Media,
				},
			})
		}
		for _, call := range msg.ToolCalls {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args},
			})
		}
		for _, res := range msg.ToolResults {
			key := "output"
			if res.IsError {
				key = "error"
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       res.CallID,
					Name:     res.Name,
					Response: map[string]any{key: res.Content},
				},
			})
		}
		if len(content.Parts) == 0 {
			continue
		}
		contents = append(contents, content)
	}

	return contents, system
}

func getRole(role string) string {
	switch role {
	case llm.RoleAssistant:
		return genai.RoleModel
	default:
		return genai.RoleUser
	}
}
