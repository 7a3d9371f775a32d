package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client implements llm.Provider for OpenAI-compatible chat completion APIs.
// It makes a single request per call; retries belong to the calling node.
type Client struct {
	client  *openai.Client
	config  *Config
	limiter *rate.Limiter
	tools   []openai.Tool
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new OpenAI client with the provided configuration
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Create OpenAI client configuration
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	client := &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: zap.NewNop(),
	}
	// Token bucket holding a full window's worth of requests
	if config.RateLimit > 0 {
		every := rate.Every(config.RateLimitInterval / time.Duration(config.RateLimit))
		client.limiter = rate.NewLimiter(every, config.RateLimit)
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewClientFromEnv creates a new OpenAI client using environment variables
func NewClientFromEnv(opts ...Option) (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return NewClient(config, opts...)
}

// Name returns the provider name
func (c *Client) Name() string {
	return "openai"
}

// BindTools returns a copy of the client that advertises tools as functions.
func (c *Client) BindTools(tools []llm.ToolSpec) llm.Provider {
	cp := *c
	cp.tools = make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		cp.tools = append(cp.tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return &cp
}

// CallLLM implements the generic interface, converting messages internally
func (c *Client) CallLLM(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	result := llm.Message{}
	if len(messages) == 0 {
		return result, errors.New("no messages to send")
	}

	// Apply rate limiting if enabled
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return result, err
		}
	}

	// Convert messages to OpenAI format
	openaiMessages, err := convertMessages(messages)
	if err != nil {
		return result, fmt.Errorf("failed to convert messages: %w", err)
	}

	request := openai.ChatCompletionRequest{
		Model:            c.config.Model,
		Messages:         openaiMessages,
		Temperature:      c.config.Temperature,
		MaxTokens:        c.config.MaxTokens,
		FrequencyPenalty: c.config.FrequencyPenalty,
		PresencePenalty:  c.config.PresencePenalty,
		Tools:            c.tools,
	}
	if c.config.TopP != 1.0 {
		request.TopP = c.config.TopP
	}

	response, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		c.logger.Debug("chat completion failed", zap.String("model", c.config.Model), zap.Error(err))
		return result, fmt.Errorf("chat completion: %w", err)
	}

	if len(response.Choices) == 0 {
		return result, fmt.Errorf("no choices returned from OpenAI API")
	}
	c.logger.Debug("chat completion",
		zap.String("model", response.Model),
		zap.Int("prompt_tokens", response.Usage.PromptTokens),
		zap.Int("completion_tokens", response.Usage.CompletionTokens))

	// Convert response back to generic format
	choice := response.Choices[0]
	result.Role = llm.RoleAssistant
	result.Content = choice.Message.Content

	for _, toolCall := range choice.Message.ToolCalls {
		if toolCall.Type != openai.ToolTypeFunction {
			continue
		}
		var args map[string]any
		if toolCall.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				return result, fmt.Errorf("failed to parse tool arguments: %w", err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:   toolCall.ID,
			Name: toolCall.Function.Name,
			Args: args,
		})
	}

	return result, nil
}

// convertMessages converts generic messages to OpenAI format. Tool results
// become one tool message each, placed where the carrying message was.
func convertMessages(messages []llm.Message) ([]openai.ChatCompletionMessage, error) {
	var openaiMessages []openai.ChatCompletionMessage

	for _, msg := range messages {
		for _, toolResult := range msg.ToolResults {
			openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    toolResult.Content,
				ToolCallID: toolResult.CallID,
				Name:       toolResult.Name,
			})
		}
		if msg.Role == llm.RoleTool {
			continue
		}

		openaiMsg := openai.ChatCompletionMessage{
			Role: msg.Role,
		}

		if len(msg.Media) > 0 {
			// Multi-part content with image
			imageURL := fmt.Sprintf("data:%s;base64,%s", msg.MimeType, base64.StdEncoding.EncodeToString(msg.Media))
			openaiMsg.MultiContent = []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: msg.Content,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    imageURL,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			}
		} else {
			openaiMsg.Content = msg.Content
		}

		for _, toolCall := range msg.ToolCalls {
			args, err := json.Marshal(toolCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
			}
			openaiMsg.ToolCalls = append(openaiMsg.ToolCalls, openai.ToolCall{
				ID:   toolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      toolCall.Name,
					Arguments: string(args),
				},
			})
		}

		openaiMessages = append(openaiMessages, openaiMsg)
	}

	return openaiMessages, nil
}
