package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/domain"
	"ragbench/internal/retry"
)

const defaultMaxTokens = 1024

// AnthropicClient generates text with the Anthropic Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	opts    Options
}

func NewAnthropicClient(apiKey, model string, opts Options) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, domain.NewConfigError("ANTHROPIC_API_KEY", "", "environment variable is not set")
	}
	// Retries are ours; the SDK's would multiply them.
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpapi.NewHTTPClient(opts.Timeout)),
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}

	return &AnthropicClient{
		client:  anthropic.NewClient(options...),
		model:   model,
		limiter: httpapi.NewLimiter(opts.RequestsPerSecond),
		opts:    opts,
	}, nil
}

func (c *AnthropicClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	maxTokens := c.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	return call(ctx, domain.LLMAnthropic, c.model, c.opts, func(ctx context.Context) (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", retry.Permanent(err)
		}
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", permanentUnlessTransient(httpapi.Classify(ctx, domain.LLMAnthropic, "generate", err))
		}
		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			return "", retry.Permanent(domain.Protocol(domain.LLMAnthropic, "generate", 0, errors.New("response has no text content")))
		}
		return text, nil
	})
}

func (c *AnthropicClient) ModelName() string {
	return c.model
}
