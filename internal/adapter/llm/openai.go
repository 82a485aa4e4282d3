package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/domain"
	"ragbench/internal/retry"
)

// OpenAIClient generates text with the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	opts    Options
}

func NewOpenAIClient(apiKey, model string, opts Options) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, domain.NewConfigError("OPENAI_API_KEY", "", "environment variable is not set")
	}
	config := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	config.HTTPClient = httpapi.NewHTTPClient(opts.Timeout)

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		limiter: httpapi.NewLimiter(opts.RequestsPerSecond),
		opts:    opts,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if c.opts.MaxTokens > 0 {
		req.MaxCompletionTokens = c.opts.MaxTokens
	}

	return call(ctx, domain.LLMOpenAI, c.model, c.opts, func(ctx context.Context) (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", retry.Permanent(err)
		}
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", permanentUnlessTransient(httpapi.Classify(ctx, domain.LLMOpenAI, "generate", err))
		}
		if len(resp.Choices) == 0 {
			return "", retry.Permanent(domain.Protocol(domain.LLMOpenAI, "generate", 0, errors.New("response has no choices")))
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", retry.Permanent(domain.Protocol(domain.LLMOpenAI, "generate", 0, errors.New("empty completion")))
		}
		return text, nil
	})
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}
