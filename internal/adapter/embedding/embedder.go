package embedding

import (
	"context"
	"fmt"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/metrics"
	"ragbench/internal/port"
)

// BatchFunc embeds one batch of texts with a provider.
type BatchFunc func(ctx context.Context, texts []string, input port.InputType) ([][]float32, error)

// Embedder splits input into provider-sized batches. A batch the provider
// fails on is replaced by zero vectors marked Degraded; only context
// cancellation aborts Embed.
type Embedder struct {
	provider  string
	model     string
	dimension int
	batchSize int
	embed     BatchFunc
	metrics   *metrics.Metrics
}

func New(provider, model string, dimension, batchSize int, fn BatchFunc, m *metrics.Metrics) *Embedder {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Embedder{
		provider:  provider,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
		embed:     fn,
		metrics:   m,
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string, input port.InputType) ([]port.Embedding, error) {
	out := make([]port.Embedding, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		vectors, err := e.embed(ctx, batch, input)
		if err == nil {
			err = e.check(batch, vectors)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warnw("embedding batch failed, substituting zero vectors",
				"provider", e.provider, "model", e.model, "input", string(input),
				"batch_start", i, "batch_size", len(batch), "error", err)
			e.metrics.RecordDegraded(e.provider, string(input), len(batch))
			for range batch {
				out = append(out, port.Embedding{Vector: make([]float32, e.dimension), Degraded: true})
			}
			continue
		}
		for _, v := range vectors {
			out = append(out, port.Embedding{Vector: v})
		}
	}
	return out, nil
}

func (e *Embedder) check(batch []string, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return domain.Protocol(e.provider, "embed", 0,
			fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(batch)))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return domain.Protocol(e.provider, "embed", 0,
				fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dimension))
		}
	}
	return nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) ModelName() string {
	return e.model
}

// Provider returns the provider name.
func (e *Embedder) Provider() string {
	return e.provider
}

// modelDimensions lists the output size of every supported model.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"jina-embeddings-v3":     1024,
	"voyage-3":               1024,
	"voyage-3-large":         1024,
}

// Dimension returns the vector size of model, or 0 when unknown.
func Dimension(model string) int {
	return modelDimensions[model]
}

// Options configure a provider embedder.
type Options struct {
	BaseURL   string
	BatchSize int
	httpapi.Options
}
