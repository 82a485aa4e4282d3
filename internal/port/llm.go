package port

import (
	"context"

	"ragbench/internal/domain"
)

// LLM represents a language model for text generation.
type LLM interface {
	// Generate returns the model's reply to a single user prompt. An empty
	// system prompt is omitted.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// QueryRewriter transforms a query before retrieval. Implementations must be
// safe for concurrent use.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// Reranker reorders retrieved candidates for a query.
type Reranker interface {
	// Rerank returns the candidate ids, most relevant first. The result is
	// a permutation of the input ids.
	Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]string, error)

	// ModelName returns the name of the reranking model.
	ModelName() string
}
