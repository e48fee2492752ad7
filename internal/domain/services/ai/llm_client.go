package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"smishguard/pkg/logger"
)

// LLMClient provides single-turn chat completions against an OpenAI-compatible endpoint
type LLMClient struct {
	client *openai.Client
	logger *logger.Logger
	config LLMConfig
}

// LLMConfig holds LLM client configuration
type LLMConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	Timeout      time.Duration
}

// Completion is the text returned by one chat completion
type Completion struct {
	Content      string
	Choices      int
	Model        string
	FinishReason string
	TotalTokens  int
}

// NewLLMClient creates a new LLM client
func NewLLMClient(cfg LLMConfig, log *logger.Logger) *LLMClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Model == "" {
		cfg.Model = "HuggingFaceTB/SmolLM3-3B:hf-inference"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &LLMClient{
		client: openai.NewClientWithConfig(clientConfig),
		logger: log.WithComponent("llm-client"),
		config: cfg,
	}
}

// Model returns the configured model name
func (c *LLMClient) Model() string {
	return c.config.Model
}

// Complete sends prompt as a single user message. Errors from go-openai are returned
// wrapped so callers can inspect *openai.APIError and *openai.RequestError.
func (c *LLMClient) Complete(ctx context.Context, prompt string) (*Completion, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if c.config.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.config.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("model", c.config.Model).Msg("chat completion failed")
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	completion := &Completion{
		Choices:     len(resp.Choices),
		Model:       resp.Model,
		TotalTokens: resp.Usage.TotalTokens,
	}
	if len(resp.Choices) > 0 {
		completion.Content = resp.Choices[0].Message.Content
		completion.FinishReason = string(resp.Choices[0].FinishReason)
	}

	c.logger.Debug().
		Str("model", c.config.Model).
		Int("tokens", completion.TotalTokens).
		Dur("duration", time.Since(startTime)).
		Msg("chat completion received")

	return completion, nil
}
