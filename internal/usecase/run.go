package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ragbench/internal/batch"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/metrics"
	"ragbench/internal/port"
)

// Progress stages reported by a run. Indexing stages are reported by the
// indexer itself.
const (
	StageIndex    = "index"
	StageRewrite  = "rewrite"
	StageRetrieve = "retrieve"
	StageRerank   = "rerank"
	StageEvaluate = "evaluate"
	StagePersist  = "persist"
)

// RunOptions tune the fan-out of a run.
type RunOptions struct {
	RewriteBatchSize int // default 100
	RerankBatchSize  int // default 5
	Workers          int // per batch; 0 = batch.DefaultWorkers()
	Progress         port.Progress
	Metrics          *metrics.Metrics
}

func (o RunOptions) withDefaults() RunOptions {
	if o.RewriteBatchSize <= 0 {
		o.RewriteBatchSize = 100
	}
	if o.RerankBatchSize <= 0 {
		o.RerankBatchSize = 5
	}
	if o.Progress == nil {
		o.Progress = port.NopProgress{}
	}
	return o
}

// RunOrchestrator evaluates one configuration: index, optional rewrite,
// retrieve, optional rerank, recall, persist.
type RunOrchestrator struct {
	runID    string
	config   domain.RunConfig
	data     *Dataset
	indexer  port.Indexer
	rewriter port.QueryRewriter
	reranker port.Reranker
	opts     RunOptions
}

// NewRunOrchestrator wires a run. Rewriter and Reranker in c may be nil.
func NewRunOrchestrator(runID string, cfg domain.RunConfig, data *Dataset, c *port.Components, opts RunOptions) *RunOrchestrator {
	return &RunOrchestrator{
		runID:    runID,
		config:   cfg,
		data:     data,
		indexer:  c.Indexer,
		rewriter: c.Rewriter,
		reranker: c.Reranker,
		opts:     opts.withDefaults(),
	}
}

// Run executes the pipeline and writes <outputDir>/<run id>.json. Any
// stage failure aborts the run before anything is written.
func (o *RunOrchestrator) Run(ctx context.Context, nResults int, outputDir string) (result *domain.RunResult, err error) {
	m := o.opts.Metrics
	defer func() {
		var recall map[string]float64
		if result != nil {
			recall = result.Metrics
		}
		m.RecordRun(o.runID, recall, err)
	}()

	log.Infow("starting run", "run_id", o.runID,
		"embed_method", o.config.EmbedMethod,
		"rewrite_method", o.config.RewriteMethod,
		"rerank_method", o.config.RerankMethod,
		"collection", o.config.Collection)

	if err := o.stage(StageIndex, func() error {
		return o.indexer.Index(ctx, o.data.Corpus)
	}); err != nil {
		return nil, fmt.Errorf("indexing failed: %w", err)
	}

	debugLog := o.newDebugLog()

	queries := o.data.Queries
	if o.rewriter != nil {
		if err := o.stage(StageRewrite, func() error {
			var err error
			queries, err = o.rewrite(ctx, debugLog)
			return err
		}); err != nil {
			return nil, fmt.Errorf("query rewriting failed: %w", err)
		}
	}

	var results domain.RetrievalResult
	if err := o.stage(StageRetrieve, func() error {
		var err error
		results, err = o.indexer.Retrieve(ctx, queries, nResults)
		return err
	}); err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	for qid, ids := range results {
		if entry, ok := debugLog[qid]; ok {
			entry.RetrievedResults = o.docRefs(ids)
		}
	}

	if o.reranker != nil {
		if err := o.stage(StageRerank, func() error {
			var err error
			results, err = o.rerank(ctx, results, debugLog)
			return err
		}); err != nil {
			return nil, fmt.Errorf("reranking failed: %w", err)
		}
	}

	var recall map[string]float64
	if err := o.stage(StageEvaluate, func() error {
		var err error
		recall, err = Recall(results, o.data.GroundTruth)
		return err
	}); err != nil {
		return nil, err
	}
	for qid, ids := range results {
		entry, ok := debugLog[qid]
		if !ok || entry.ExpectedDocID == "" {
			continue
		}
		entry.Recall = QueryRecall(ids, entry.ExpectedDocID)
	}

	result = &domain.RunResult{
		RunID:   o.runID,
		Config:  o.config,
		Metrics: recall,
	}
	if reporter, ok := o.indexer.(port.DegradationReporter); ok {
		if d := reporter.Degradation(); !d.Empty() {
			result.Degraded = &d
			for _, qid := range d.Queries {
				if entry, ok := debugLog[qid]; ok {
					entry.DegradedQueryEmbedding = true
				}
			}
			log.Warnw("run used zero-vector embeddings",
				"run_id", o.runID, "chunks", d.Chunks, "queries", len(d.Queries))
		}
	}

	path := RunRecordPath(outputDir, o.runID)
	if err := o.stage(StagePersist, func() error {
		return WriteRunRecord(path, &domain.RunRecord{Results: *result, Log: debugLog})
	}); err != nil {
		return nil, err
	}

	log.Infow("run complete", "run_id", o.runID, "path", path,
		"recall_at_1", recall[domain.RecallKey(1)],
		"recall_at_5", recall[domain.RecallKey(5)],
		"recall_at_10", recall[domain.RecallKey(10)])
	return result, nil
}

func (o *RunOrchestrator) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	o.opts.Metrics.RecordStage(name, elapsed.Seconds())
	if err == nil {
		log.Debugw("stage finished", "run_id", o.runID, "stage", name, "elapsed", elapsed)
	}
	return err
}

func (o *RunOrchestrator) newDebugLog() domain.DebugLog {
	debugLog := make(domain.DebugLog, len(o.data.Queries))
	for qid, text := range o.data.Queries {
		debugLog[qid] = &domain.DebugLogEntry{
			OriginalQuery:    text,
			RetrievedResults: []domain.DocRef{},
			RerankedResults:  []domain.DocRef{},
			ExpectedDocID:    o.data.GroundTruth[qid],
			Recall:           map[string]bool{},
		}
	}
	return debugLog
}

func (o *RunOrchestrator) docRefs(ids []string) []domain.DocRef {
	refs := make([]domain.DocRef, len(ids))
	for i, id := range ids {
		refs[i] = domain.DocRef{DocID: id, Content: o.data.Corpus[id]}
	}
	return refs
}

// rewrite transforms every query. Each entry of debugLog is written by
// the single callback that owns its query id.
func (o *RunOrchestrator) rewrite(ctx context.Context, debugLog domain.DebugLog) (domain.Queries, error) {
	ids := o.data.Queries.IDs()
	items := make([]batch.Item[string, string], len(ids))
	for i, id := range ids {
		items[i] = batch.Item[string, string]{Key: id, Value: o.data.Queries[id]}
	}

	progress := o.opts.Progress
	progress.Start(StageRewrite, len(items))
	defer progress.Finish(StageRewrite)

	rewritten, err := batch.Map(ctx, items,
		func(ctx context.Context, _ string, query string) (string, error) {
			return o.rewriter.Rewrite(ctx, query)
		},
		batch.Options[string, string]{
			BatchSize: o.opts.RewriteBatchSize,
			Workers:   o.opts.Workers,
			OnResult: func(qid, text string) {
				debugLog[qid].RewrittenQuery = &text
				progress.Add(StageRewrite, 1)
			},
		})
	if err != nil {
		return nil, err
	}
	return domain.Queries(rewritten), nil
}

// rerank reorders each query's candidates against its original text. The
// first failure is logged and recorded on its entry, then aborts the run.
func (o *RunOrchestrator) rerank(ctx context.Context, results domain.RetrievalResult, debugLog domain.DebugLog) (domain.RetrievalResult, error) {
	qids := make([]string, 0, len(results))
	for qid := range results {
		qids = append(qids, qid)
	}
	sort.Strings(qids)
	items := make([]batch.Item[string, []string], 0, len(results))
	for _, qid := range qids {
		items = append(items, batch.Item[string, []string]{Key: qid, Value: results[qid]})
	}

	progress := o.opts.Progress
	progress.Start(StageRerank, len(items))
	defer progress.Finish(StageRerank)

	reranked, err := batch.Map(ctx, items,
		func(ctx context.Context, qid string, ids []string) ([]string, error) {
			defer progress.Add(StageRerank, 1)
			ordered, err := o.rerankQuery(ctx, qid, ids)
			if err != nil {
				log.Errorw("reranking failed", "run_id", o.runID, "query_id", qid, "error", err)
				if entry, ok := debugLog[qid]; ok {
					entry.RerankError = err.Error()
				}
				return nil, err
			}
			return ordered, nil
		},
		batch.Options[string, []string]{
			BatchSize: o.opts.RerankBatchSize,
			Workers:   o.opts.Workers,
			OnResult: func(qid string, ids []string) {
				if entry, ok := debugLog[qid]; ok {
					entry.RerankedResults = o.docRefs(ids)
				}
			},
		})
	if err != nil {
		return nil, err
	}
	return domain.RetrievalResult(reranked), nil
}

func (o *RunOrchestrator) rerankQuery(ctx context.Context, qid string, ids []string) ([]string, error) {
	candidates := make([]domain.Candidate, len(ids))
	for i, id := range ids {
		candidates[i] = domain.Candidate{ID: id, Text: o.data.Corpus[id]}
	}
	ordered, err := o.reranker.Rerank(ctx, o.data.Queries[qid], candidates)
	if err != nil {
		return nil, err
	}
	if !domain.IsPermutation(ids, ordered) {
		return nil, domain.Protocol("reranker", "rerank", 0,
			fmt.Errorf("%s returned %v, not a permutation of %v", o.reranker.ModelName(), ordered, ids))
	}
	return ordered, nil
}

// RunRecordPath is where a run's record is persisted.
func RunRecordPath(outputDir, runID string) string {
	return filepath.Join(outputDir, runID+".json")
}

// WriteRunRecord writes rec as indented JSON, creating the directory. The
// file appears only once fully written.
func WriteRunRecord(path string, rec *domain.RunRecord) error {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// ReadRunRecord loads a persisted run.
func ReadRunRecord(path string) (*domain.RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec domain.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse run record %s: %w", path, err)
	}
	return &rec, nil
}
