package port

import (
	"context"

	"ragbench/internal/domain"
)

// Indexer owns one collection: it populates it from a corpus and answers
// queries against it.
type Indexer interface {
	// Index populates the collection. It is a no-op when the collection
	// already holds data.
	Index(ctx context.Context, corpus domain.Corpus) error

	// Retrieve returns at most n chunk ids per query, best first.
	Retrieve(ctx context.Context, queries domain.Queries, n int) (domain.RetrievalResult, error)
}

// DegradationReporter is implemented by indexers that can substitute zero
// vectors for failed embeddings.
type DegradationReporter interface {
	Degradation() domain.Degradation
}

// Components are the collaborators of a single run.
type Components struct {
	Indexer  Indexer
	Rewriter QueryRewriter // nil when the run does not rewrite
	Reranker Reranker      // nil when the run does not rerank

	// Close releases resources held by the components. May be nil.
	Close func() error
}

// ComponentFactory builds the collaborators described by a RunConfig.
// Unknown method tags and missing credentials fail here.
type ComponentFactory interface {
	Build(ctx context.Context, cfg domain.RunConfig) (*Components, error)
}
