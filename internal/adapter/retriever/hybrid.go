package retriever

import (
	"context"
	"fmt"

	"ragbench/internal/adapter/store"
	"ragbench/internal/domain"
)

// HybridIndexer fuses BM25 and dense rankings of one collection with
// weighted Reciprocal Rank Fusion.
type HybridIndexer struct {
	coll       *store.Collection
	bm25       *BM25Indexer
	dense      *DenseIndexer
	method     domain.EmbedMethod
	rrfK       int     // RRF constant (typically 60)
	bm25Weight float64 // Weight for BM25 results (0-1)
}

// NewHybridIndexer combines indexers that share coll.
func NewHybridIndexer(coll *store.Collection, bm25 *BM25Indexer, dense *DenseIndexer, method domain.EmbedMethod, rrfK int, bm25Weight float64) *HybridIndexer {
	if rrfK <= 0 {
		rrfK = 60
	}
	if bm25Weight < 0 || bm25Weight > 1 {
		bm25Weight = 0.5
	}
	return &HybridIndexer{
		coll:       coll,
		bm25:       bm25,
		dense:      dense,
		method:     method,
		rrfK:       rrfK,
		bm25Weight: bm25Weight,
	}
}

func (r *HybridIndexer) Index(ctx context.Context, corpus domain.Corpus) error {
	hash := store.ComputeParamsHash([]string{r.bm25.paramsHash(), r.dense.paramsHash()})
	return populateOnce(ctx, r.coll, r.method.String(), hash, r.dense.embedder.Dimension(), func(ctx context.Context) error {
		if err := r.bm25.populate(ctx, corpus); err != nil {
			return fmt.Errorf("lexical index: %w", err)
		}
		if err := r.dense.populate(ctx, corpus); err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		return nil
	})
}

func (r *HybridIndexer) Retrieve(ctx context.Context, queries domain.Queries, n int) (domain.RetrievalResult, error) {
	// Get expanded candidate pool from both retrievers
	candidateK := max(n*3, 20)

	lexical, err := r.bm25.searchScored(ctx, queries, candidateK)
	if err != nil {
		return nil, err
	}
	semantic, err := r.dense.searchScored(ctx, queries, candidateK)
	if err != nil {
		return nil, err
	}

	fused := make(map[string][]domain.ScoredChunk, len(queries))
	for qid := range queries {
		results := r.rrfFuse(lexical[qid], semantic[qid])
		if len(results) > n {
			results = results[:n]
		}
		fused[qid] = results
	}
	return scoredIDs(fused), nil
}

func (r *HybridIndexer) Degradation() domain.Degradation {
	return r.dense.Degradation()
}

// rrfFuse combines results using Reciprocal Rank Fusion.
// RRF score = Σ weight/(k + rank) for each result list where the chunk appears.
func (r *HybridIndexer) rrfFuse(bm25Results, vectorResults []domain.ScoredChunk) []domain.ScoredChunk {
	rrfScores := make(map[string]float64)

	for rank, result := range bm25Results {
		rrfScores[result.Chunk.ID] += r.bm25Weight / float64(r.rrfK+rank+1)
	}

	vectorWeight := 1.0 - r.bm25Weight
	for rank, result := range vectorResults {
		rrfScores[result.Chunk.ID] += vectorWeight / float64(r.rrfK+rank+1)
	}

	fused := make([]domain.ScoredChunk, 0, len(rrfScores))
	for id, score := range rrfScores {
		fused = append(fused, domain.ScoredChunk{Chunk: domain.Chunk{ID: id}, Score: score})
	}
	sortScored(fused)
	return fused
}
