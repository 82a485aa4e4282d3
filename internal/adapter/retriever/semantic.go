package retriever

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ragbench/internal/adapter/store"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/port"
)

// DenseIndexer embeds chunks with a provider and searches them by cosine
// similarity.
type DenseIndexer struct {
	coll     *store.Collection
	embedder port.Embedder
	method   domain.EmbedMethod
	insert   InsertOptions
	search   SearchOptions

	vectorsOnce sync.Once
	vectors     port.VectorStore
	vectorsErr  error

	mu       sync.Mutex
	degraded domain.Degradation
}

func NewDenseIndexer(coll *store.Collection, embedder port.Embedder, method domain.EmbedMethod, insert InsertOptions, search SearchOptions) *DenseIndexer {
	return &DenseIndexer{
		coll:     coll,
		embedder: embedder,
		method:   method,
		insert:   insert,
		search:   search,
	}
}

func (r *DenseIndexer) paramsHash() string {
	return store.ComputeParamsHash(map[string]any{
		"model":     r.embedder.ModelName(),
		"dimension": r.embedder.Dimension(),
	})
}

func (r *DenseIndexer) vectorStore() (port.VectorStore, error) {
	r.vectorsOnce.Do(func() {
		vs, err := r.coll.Vectors(r.embedder.Dimension())
		if err != nil {
			r.vectorsErr = err
			return
		}
		r.vectors = vs
	})
	return r.vectors, r.vectorsErr
}

func (r *DenseIndexer) Index(ctx context.Context, corpus domain.Corpus) error {
	return populateOnce(ctx, r.coll, r.method.String(), r.paramsHash(), r.embedder.Dimension(), func(ctx context.Context) error {
		return r.populate(ctx, corpus)
	})
}

func (r *DenseIndexer) populate(ctx context.Context, corpus domain.Corpus) error {
	vs, err := r.vectorStore()
	if err != nil {
		return err
	}

	ids := corpus.IDs()
	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = corpus[id]
	}

	embeddings, err := r.embedDocuments(ctx, texts)
	if err != nil {
		return err
	}

	return bulkInsert(ctx, len(ids), r.insert, func(start, end int) error {
		chunks := make([]domain.Chunk, 0, end-start)
		items := make([]port.VectorItem, 0, end-start)
		for i := start; i < end; i++ {
			chunks = append(chunks, domain.Chunk{ID: ids[i], Text: texts[i]})
			items = append(items, port.VectorItem{ID: ids[i], Vector: embeddings[i].Vector})
		}
		if err := r.coll.PutChunks(chunks); err != nil {
			return err
		}
		return vs.Upsert(items)
	})
}

// embedDocuments embeds texts in insert-sized slices so progress can be
// reported, counting degraded chunks.
func (r *DenseIndexer) embedDocuments(ctx context.Context, texts []string) ([]port.Embedding, error) {
	progress := r.insert.progress()
	progress.Start(StageEmbed, len(texts))
	defer progress.Finish(StageEmbed)

	size := r.insert.batchSize()
	out := make([]port.Embedding, 0, len(texts))
	degraded := 0
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		embeddings, err := r.embedder.Embed(ctx, texts[start:end], port.InputDocument)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embeddings) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), end-start)
		}
		for _, e := range embeddings {
			if e.Degraded {
				degraded++
			}
		}
		out = append(out, embeddings...)
		progress.Add(StageEmbed, end-start)
	}

	if degraded > 0 {
		log.Warnw("indexed chunks with zero-vector embeddings",
			"collection", r.coll.Name(), "model", r.embedder.ModelName(), "count", degraded)
		r.mu.Lock()
		r.degraded.Chunks += degraded
		r.mu.Unlock()
	}
	return out, nil
}

func (r *DenseIndexer) Retrieve(ctx context.Context, queries domain.Queries, n int) (domain.RetrievalResult, error) {
	scored, err := r.searchScored(ctx, queries, n)
	if err != nil {
		return nil, err
	}
	return scoredIDs(scored), nil
}

// searchScored embeds every query in one pass, then fans the searches out.
func (r *DenseIndexer) searchScored(ctx context.Context, queries domain.Queries, n int) (map[string][]domain.ScoredChunk, error) {
	vs, err := r.vectorStore()
	if err != nil {
		return nil, err
	}

	ids := queries.IDs()
	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = queries[id]
	}
	embeddings, err := r.embedder.Embed(ctx, texts, port.InputQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed queries: %w", err)
	}
	if len(embeddings) != len(ids) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d queries", len(embeddings), len(ids))
	}

	vectors := make(map[string][]float32, len(ids))
	var degraded []string
	for i, id := range ids {
		vectors[id] = embeddings[i].Vector
		if embeddings[i].Degraded {
			degraded = append(degraded, id)
		}
	}
	if len(degraded) > 0 {
		log.Warnw("searching with zero-vector query embeddings",
			"collection", r.coll.Name(), "model", r.embedder.ModelName(), "count", len(degraded))
		r.mu.Lock()
		r.degraded.Queries = append(r.degraded.Queries, degraded...)
		r.mu.Unlock()
	}

	return searchAll(ctx, ids, r.search, func(ctx context.Context, id string) ([]domain.ScoredChunk, error) {
		results, err := vs.Search(vectors[id], n)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		scored := make([]domain.ScoredChunk, len(results))
		for i, res := range results {
			scored[i] = domain.ScoredChunk{Chunk: domain.Chunk{ID: res.ID}, Score: res.Score}
		}
		return scored, nil
	})
}

// Degradation reports zero-vector substitutions made by this indexer.
func (r *DenseIndexer) Degradation() domain.Degradation {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := domain.Degradation{Chunks: r.degraded.Chunks, Queries: append([]string(nil), r.degraded.Queries...)}
	sort.Strings(d.Queries)
	return d
}

func scoredIDs(scored map[string][]domain.ScoredChunk) domain.RetrievalResult {
	result := make(domain.RetrievalResult, len(scored))
	for qid, chunks := range scored {
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.Chunk.ID
		}
		result[qid] = ids
	}
	return result
}
