package embedding

import (
	"context"
	"fmt"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/domain"
	"ragbench/internal/port"
)

const voyageBaseURL = "https://api.voyageai.com/v1"

type voyageEmbedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type voyage struct {
	client *httpapi.Client
	model  string
}

// NewVoyage returns a Voyage AI embedder. Voyage distinguishes query and
// document inputs.
func NewVoyage(apiKey, model string, opts Options) (*Embedder, error) {
	if apiKey == "" {
		return nil, domain.NewConfigError("VOYAGE_API_KEY", "", "environment variable is not set")
	}
	dimension := Dimension(model)
	if dimension == 0 {
		return nil, domain.NewConfigError("embedding model", model, "unknown dimension")
	}
	baseURL := voyageBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	backend := &voyage{
		client: httpapi.New(domain.ProviderVoyage, baseURL, apiKey, opts.Options),
		model:  model,
	}
	return New(domain.ProviderVoyage, model, dimension, opts.BatchSize, backend.embed, opts.Metrics), nil
}

func (v *voyage) embed(ctx context.Context, texts []string, input port.InputType) ([][]float32, error) {
	var resp voyageEmbedResponse
	err := v.client.PostJSON(ctx, "embed", "/embeddings", voyageEmbedRequest{
		Input:     texts,
		Model:     v.model,
		InputType: string(input),
	}, &resp)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, domain.Protocol(domain.ProviderVoyage, "embed", 0, fmt.Errorf("embedding index %d out of range", data.Index))
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}
