package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/domain"
	"ragbench/internal/metrics"
	"ragbench/internal/port"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	jinaBaseURL   = "https://api.jina.ai/v1"
)

// openAICompatible embeds through any endpoint speaking the OpenAI
// embeddings API.
type openAICompatible struct {
	provider   string
	model      string
	dimensions int // requested output size; 0 leaves it to the model
	client     *openai.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

// NewOpenAI returns an OpenAI embedder.
func NewOpenAI(apiKey, model string, opts Options) (*Embedder, error) {
	return newOpenAICompatible(domain.ProviderOpenAI, "OPENAI_API_KEY", apiKey, model, openAIBaseURL, 0, opts)
}

// NewJina returns a Jina embedder using Jina's OpenAI-compatible endpoint.
func NewJina(apiKey, model string, opts Options) (*Embedder, error) {
	return newOpenAICompatible(domain.ProviderJina, "JINA_API_KEY", apiKey, model, jinaBaseURL, 1024, opts)
}

func newOpenAICompatible(provider, keyVar, apiKey, model, baseURL string, dimensions int, opts Options) (*Embedder, error) {
	if apiKey == "" {
		return nil, domain.NewConfigError(keyVar, "", "environment variable is not set")
	}
	dimension := Dimension(model)
	if dimension == 0 {
		return nil, domain.NewConfigError("embedding model", model, "unknown dimension")
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	config.HTTPClient = httpapi.NewHTTPClient(opts.Timeout)

	backend := &openAICompatible{
		provider:   provider,
		model:      model,
		dimensions: dimensions,
		client:     openai.NewClientWithConfig(config),
		limiter:    httpapi.NewLimiter(opts.RequestsPerSecond),
		metrics:    opts.Metrics,
	}
	return New(provider, model, dimension, opts.BatchSize, backend.embed, opts.Metrics), nil
}

func (o *openAICompatible) embed(ctx context.Context, texts []string, _ port.InputType) ([][]float32, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dimensions,
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordProviderCall(o.provider, "embed", status, time.Since(start).Seconds())
	if err != nil {
		return nil, httpapi.Classify(ctx, o.provider, "embed", err)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, domain.Protocol(o.provider, "embed", 0, fmt.Errorf("embedding index %d out of range", data.Index))
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}
