package port

import "context"

// InputType tells asymmetric embedding models which side of the search a
// text is on.
type InputType string

const (
	InputDocument InputType = "document"
	InputQuery    InputType = "query"
)

// Embedding is one vector. Degraded marks a zero vector substituted for a
// failed provider call.
type Embedding struct {
	Vector   []float32
	Degraded bool
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one embedding per input text, in input order.
	Embed(ctx context.Context, texts []string, input InputType) ([]Embedding, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore stores and searches embedding vectors.
type VectorStore interface {
	// Upsert adds or updates vectors in the store.
	Upsert(items []VectorItem) error

	// Search finds the k nearest vectors to the query.
	Search(query []float32, k int) ([]VectorResult, error)

	// Count returns the number of vectors in the store.
	Count() (int, error)
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID     string
	Vector []float32
}

// VectorResult represents a search result.
type VectorResult struct {
	ID    string
	Score float64 // Similarity score (higher is better)
}
