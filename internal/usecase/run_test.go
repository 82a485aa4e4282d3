package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
	"ragbench/internal/metrics"
	"ragbench/internal/port"
)

type fakeIndexer struct {
	results    domain.RetrievalResult
	indexCalls int
	retrieved  domain.Queries
	indexErr   error
}

func (f *fakeIndexer) Index(context.Context, domain.Corpus) error {
	f.indexCalls++
	return f.indexErr
}

func (f *fakeIndexer) Retrieve(_ context.Context, queries domain.Queries, n int) (domain.RetrievalResult, error) {
	f.retrieved = queries
	out := make(domain.RetrievalResult, len(queries))
	for qid := range queries {
		ids := f.results[qid]
		if len(ids) > n {
			ids = ids[:n]
		}
		out[qid] = ids
	}
	return out, nil
}

type degradedIndexer struct {
	fakeIndexer
	degradation domain.Degradation
}

func (d *degradedIndexer) Degradation() domain.Degradation { return d.degradation }

type suffixRewriter struct {
	failOn string
}

func (r suffixRewriter) Rewrite(_ context.Context, query string) (string, error) {
	if query == r.failOn {
		return "", domain.Transient("openai", "generate", 503, errors.New("unavailable"))
	}
	return query + " expanded", nil
}

type fakeReranker struct {
	mu      sync.Mutex
	queries []string
	err     error
	drop    bool
}

func (r *fakeReranker) Rerank(_ context.Context, query string, candidates []domain.Candidate) ([]string, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]string, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		out = append(out, candidates[i].ID)
	}
	if r.drop && len(out) > 0 {
		out = out[1:]
	}
	return out, nil
}

func (r *fakeReranker) ModelName() string { return "fake-rerank" }

func capitalsDataset() *Dataset {
	return &Dataset{
		Corpus: domain.Corpus{
			"c1": "paris is the capital of france",
			"c2": "tokyo is the capital of japan",
		},
		Queries:     domain.Queries{"q1": "capital of france"},
		GroundTruth: domain.GroundTruth{"q1": "c1"},
	}
}

func capitalsConfig() domain.RunConfig {
	return domain.RunConfig{EmbedMethod: "sparse:bm25", Collection: "capitals", DataDir: "data"}
}

func TestRun_PersistsRecord(t *testing.T) {
	dir := t.TempDir()
	indexer := &fakeIndexer{results: domain.RetrievalResult{"q1": {"c1", "c2"}}}
	m := metrics.New()
	o := NewRunOrchestrator("run-1", capitalsConfig(), capitalsDataset(),
		&port.Components{Indexer: indexer}, RunOptions{Metrics: m})

	result, err := o.Run(context.Background(), 10, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Recall@1": 1, "Recall@5": 1, "Recall@10": 1}, result.Metrics)
	assert.Equal(t, 1, indexer.indexCalls)
	assert.Nil(t, result.Degraded)

	path := filepath.Join(dir, "out", "run-1.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n    \"results\": {"), "expected four-space indentation")
	assert.NotContains(t, string(raw), "degraded")

	rec, err := ReadRunRecord(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.Results.RunID)
	assert.Equal(t, capitalsConfig(), rec.Results.Config)

	entry := rec.Log["q1"]
	require.NotNil(t, entry)
	assert.Equal(t, "capital of france", entry.OriginalQuery)
	assert.Nil(t, entry.RewrittenQuery)
	assert.Equal(t, "c1", entry.ExpectedDocID)
	assert.Equal(t, []domain.DocRef{
		{DocID: "c1", Content: "paris is the capital of france"},
		{DocID: "c2", Content: "tokyo is the capital of japan"},
	}, entry.RetrievedResults)
	assert.Equal(t, []domain.DocRef{}, entry.RerankedResults)
	assert.Equal(t, map[string]bool{"Recall@1": true, "Recall@5": true, "Recall@10": true}, entry.Recall)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recall.WithLabelValues("run-1", "1")))
}

func TestRun_RewriteThenRerankWithOriginalQuery(t *testing.T) {
	dir := t.TempDir()
	indexer := &fakeIndexer{results: domain.RetrievalResult{"q1": {"c1", "c2"}}}
	reranker := &fakeReranker{}
	o := NewRunOrchestrator("run-2", capitalsConfig(), capitalsDataset(),
		&port.Components{Indexer: indexer, Rewriter: suffixRewriter{}, Reranker: reranker}, RunOptions{})

	result, err := o.Run(context.Background(), 10, dir)
	require.NoError(t, err)

	assert.Equal(t, domain.Queries{"q1": "capital of france expanded"}, indexer.retrieved)
	assert.Equal(t, []string{"capital of france"}, reranker.queries)
	assert.Equal(t, 0.0, result.Metrics["Recall@1"])
	assert.Equal(t, 1.0, result.Metrics["Recall@5"])

	rec, err := ReadRunRecord(filepath.Join(dir, "run-2.json"))
	require.NoError(t, err)
	entry := rec.Log["q1"]
	require.NotNil(t, entry.RewrittenQuery)
	assert.Equal(t, "capital of france expanded", *entry.RewrittenQuery)
	require.Len(t, entry.RerankedResults, 2)
	assert.Equal(t, "c2", entry.RerankedResults[0].DocID)
	assert.False(t, entry.Recall["Recall@1"])
}

func TestRun_RerankProtocolErrorWritesNoFile(t *testing.T) {
	dir := t.TempDir()
	indexer := &fakeIndexer{results: domain.RetrievalResult{"q1": {"c1", "c2"}}}
	reranker := &fakeReranker{err: domain.Protocol("voyage", "rerank", 200, errors.New("empty results"))}
	m := metrics.New()
	o := NewRunOrchestrator("run-3", capitalsConfig(), capitalsDataset(),
		&port.Components{Indexer: indexer, Reranker: reranker}, RunOptions{Metrics: m})

	_, err := o.Run(context.Background(), 10, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.NoFileExists(t, filepath.Join(dir, "run-3.json"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("error")))
}

func TestRun_RerankMustReturnPermutation(t *testing.T) {
	dir := t.TempDir()
	indexer := &fakeIndexer{results: domain.RetrievalResult{"q1": {"c1", "c2"}}}
	o := NewRunOrchestrator("run-4", capitalsConfig(), capitalsDataset(),
		&port.Components{Indexer: indexer, Reranker: &fakeReranker{drop: true}}, RunOptions{})

	_, err := o.Run(context.Background(), 10, dir)
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.NoFileExists(t, filepath.Join(dir, "run-4.json"))
}

func TestRun_RewriteFailureAbortsBeforeRetrieval(t *testing.T) {
	dir := t.TempDir()
	data := capitalsDataset()
	data.Queries["q2"] = "capital of japan"
	data.GroundTruth["q2"] = "c2"
	indexer := &fakeIndexer{}
	o := NewRunOrchestrator("run-5", capitalsConfig(), data,
		&port.Components{Indexer: indexer, Rewriter: suffixRewriter{failOn: "capital of japan"}},
		RunOptions{RewriteBatchSize: 1})

	_, err := o.Run(context.Background(), 10, dir)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Nil(t, indexer.retrieved)
	assert.NoFileExists(t, filepath.Join(dir, "run-5.json"))
}

func TestRun_IndexFailureAborts(t *testing.T) {
	dir := t.TempDir()
	indexer := &fakeIndexer{indexErr: domain.NewConfigError("collection", "capitals", "populated with dense:openai")}
	o := NewRunOrchestrator("run-6", capitalsConfig(), capitalsDataset(), &port.Components{Indexer: indexer}, RunOptions{})

	_, err := o.Run(context.Background(), 10, dir)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.NoFileExists(t, filepath.Join(dir, "run-6.json"))
}

func TestRun_MissingGroundTruthIsEvaluationError(t *testing.T) {
	dir := t.TempDir()
	data := capitalsDataset()
	data.Queries["q9"] = "capital of nowhere"
	indexer := &fakeIndexer{results: domain.RetrievalResult{"q1": {"c1"}, "q9": {"c2"}}}
	o := NewRunOrchestrator("run-7", capitalsConfig(), data, &port.Components{Indexer: indexer}, RunOptions{})

	_, err := o.Run(context.Background(), 10, dir)
	var evalErr *domain.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "q9", evalErr.QueryID)
	assert.NoFileExists(t, filepath.Join(dir, "run-7.json"))
}

func TestRun_TruncatesToNResults(t *testing.T) {
	dir := t.TempDir()
	indexer := &fakeIndexer{results: domain.RetrievalResult{"q1": {"c2", "c1"}}}
	o := NewRunOrchestrator("run-8", capitalsConfig(), capitalsDataset(), &port.Components{Indexer: indexer}, RunOptions{})

	result, err := o.Run(context.Background(), 1, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Metrics["Recall@10"])
}

func TestRun_MarksDegradedEmbeddings(t *testing.T) {
	dir := t.TempDir()
	indexer := &degradedIndexer{
		fakeIndexer: fakeIndexer{results: domain.RetrievalResult{"q1": {"c1"}}},
		degradation: domain.Degradation{Chunks: 2, Queries: []string{"q1"}},
	}
	o := NewRunOrchestrator("run-9", capitalsConfig(), capitalsDataset(), &port.Components{Indexer: indexer}, RunOptions{})

	result, err := o.Run(context.Background(), 10, dir)
	require.NoError(t, err)
	require.NotNil(t, result.Degraded)
	assert.Equal(t, 2, result.Degraded.Chunks)

	rec, err := ReadRunRecord(filepath.Join(dir, "run-9.json"))
	require.NoError(t, err)
	assert.True(t, rec.Log["q1"].DegradedQueryEmbedding)
	require.NotNil(t, rec.Results.Degraded)
	assert.Equal(t, []string{"q1"}, rec.Results.Degraded.Queries)
}

func TestRun_CancelledContextWritesNoFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	indexer := &fakeIndexer{results: domain.RetrievalResult{"q1": {"c1"}}}
	o := NewRunOrchestrator("run-10", capitalsConfig(), capitalsDataset(),
		&port.Components{Indexer: indexer, Rewriter: suffixRewriter{}}, RunOptions{})

	_, err := o.Run(ctx, 10, dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "run-10.json"))
}
