package embedding

import (
	"context"

	"ragbench/internal/adapter/cache"
	"ragbench/internal/port"
)

// CachedEmbedder serves repeated query embeddings from a QueryCache.
// Document embeddings and degraded vectors are never cached.
type CachedEmbedder struct {
	inner port.Embedder
	cache *cache.QueryCache
}

func NewCachedEmbedder(inner port.Embedder, c *cache.QueryCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string, input port.InputType) ([]port.Embedding, error) {
	if input != port.InputQuery || e.cache == nil {
		return e.inner.Embed(ctx, texts, input)
	}

	model := e.inner.ModelName()
	out := make([]port.Embedding, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := e.cache.Get(model, text); ok {
			out[i] = port.Embedding{Vector: v}
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	embedded, err := e.inner.Embed(ctx, missTexts, input)
	if err != nil {
		return nil, err
	}
	for j, emb := range embedded {
		out[missIdx[j]] = emb
		if !emb.Degraded {
			e.cache.Put(model, missTexts[j], emb.Vector)
		}
	}
	return out, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}
