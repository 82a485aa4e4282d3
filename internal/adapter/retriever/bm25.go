package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"

	"ragbench/internal/adapter/analyzer"
	"ragbench/internal/adapter/store"
	"ragbench/internal/batch"
	"ragbench/internal/domain"
)

// BM25Indexer is the local lexical index: postings and corpus statistics
// live in a bbolt collection.
type BM25Indexer struct {
	coll     *store.Collection
	analyzer *analyzer.Analyzer
	stemming bool
	k1       float64
	b        float64
	insert   InsertOptions
	search   SearchOptions
}

// BM25Options configure scoring.
type BM25Options struct {
	Stemming bool
	K1       float64
	B        float64
}

func NewBM25Indexer(coll *store.Collection, opts BM25Options, insert InsertOptions, search SearchOptions) *BM25Indexer {
	if opts.K1 <= 0 {
		opts.K1 = 1.2
	}
	if opts.B < 0 || opts.B > 1 {
		opts.B = 0.75
	}
	return &BM25Indexer{
		coll:     coll,
		analyzer: analyzer.New(analyzer.Options{Stemming: opts.Stemming}),
		stemming: opts.Stemming,
		k1:       opts.K1,
		b:        opts.B,
		insert:   insert,
		search:   search,
	}
}

func (r *BM25Indexer) method() string {
	return domain.EmbedMethod{Kind: domain.EmbedSparse, Backend: domain.BackendBM25}.String()
}

func (r *BM25Indexer) paramsHash() string {
	return store.ComputeParamsHash(map[string]any{"stemming": r.stemming})
}

func (r *BM25Indexer) Index(ctx context.Context, corpus domain.Corpus) error {
	return populateOnce(ctx, r.coll, r.method(), r.paramsHash(), 0, func(ctx context.Context) error {
		return r.populate(ctx, corpus)
	})
}

func (r *BM25Indexer) populate(ctx context.Context, corpus domain.Corpus) error {
	ids := corpus.IDs()
	chunks := make([]domain.Chunk, len(ids))
	for i, id := range ids {
		chunks[i] = domain.Chunk{ID: id, Text: corpus[id], Tokens: r.analyzer.Terms(corpus[id])}
	}
	err := bulkInsert(ctx, len(chunks), r.insert, func(start, end int) error {
		return r.coll.PutChunks(chunks[start:end])
	})
	if err != nil {
		return err
	}
	_, err = r.coll.RecomputeStats()
	return err
}

func (r *BM25Indexer) Retrieve(ctx context.Context, queries domain.Queries, n int) (domain.RetrievalResult, error) {
	scored, err := r.searchScored(ctx, queries, n)
	if err != nil {
		return nil, err
	}
	return scoredIDs(scored), nil
}

func (r *BM25Indexer) searchScored(ctx context.Context, queries domain.Queries, n int) (map[string][]domain.ScoredChunk, error) {
	stats, err := r.coll.GetStats()
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus stats: %w", err)
	}
	return searchAll(ctx, queries.IDs(), r.search, func(ctx context.Context, id string) ([]domain.ScoredChunk, error) {
		return r.score(queries[id], n, stats)
	})
}

func (r *BM25Indexer) score(query string, n int, stats domain.Stats) ([]domain.ScoredChunk, error) {
	queryTokens := r.analyzer.Terms(query)
	if len(queryTokens) == 0 || stats.TotalChunks == 0 {
		return nil, nil
	}

	chunkScores := make(map[string]float64)
	chunkLengths := make(map[string]int)
	N := float64(stats.TotalChunks)

	for _, term := range queryTokens {
		postings, err := r.coll.GetPostings(term)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			continue
		}

		var unseen []string
		for _, p := range postings {
			if _, ok := chunkLengths[p.ChunkID]; !ok {
				unseen = append(unseen, p.ChunkID)
			}
		}
		if len(unseen) > 0 {
			lengths, err := r.coll.ChunkLengths(unseen)
			if err != nil {
				return nil, err
			}
			for id, l := range lengths {
				chunkLengths[id] = l
			}
		}

		df := float64(len(postings))
		idf := math.Log((N-df+0.5)/(df+0.5) + 1)
		for _, posting := range postings {
			dl := float64(chunkLengths[posting.ChunkID])
			tf := float64(posting.TF)
			chunkScores[posting.ChunkID] += idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/stats.AvgChunkLen))
		}
	}

	results := make([]domain.ScoredChunk, 0, len(chunkScores))
	for id, score := range chunkScores {
		results = append(results, domain.ScoredChunk{Chunk: domain.Chunk{ID: id}, Score: score})
	}
	sortScored(results)
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// sortScored orders by score, best first, breaking ties by id.
func sortScored(results []domain.ScoredChunk) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

// searchAll fans searches out in barrier-separated batches of query ids.
func searchAll[T any](ctx context.Context, ids []string, opts SearchOptions, search func(ctx context.Context, id string) (T, error)) (map[string]T, error) {
	items := make([]batch.Item[string, struct{}], len(ids))
	for i, id := range ids {
		items[i] = batch.Item[string, struct{}]{Key: id}
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	return batch.Map(ctx, items, func(ctx context.Context, id string, _ struct{}) (T, error) {
		return search(ctx, id)
	}, batch.Options[string, T]{BatchSize: batchSize, Workers: opts.Workers})
}
