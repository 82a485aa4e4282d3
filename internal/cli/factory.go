package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"ragbench/config"
	"ragbench/internal/adapter/cache"
	"ragbench/internal/adapter/embedding"
	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/adapter/llm"
	"ragbench/internal/adapter/retriever"
	"ragbench/internal/adapter/store"
	"ragbench/internal/domain"
	"ragbench/internal/metrics"
	"ragbench/internal/port"
	"ragbench/internal/retry"
)

const queryCacheTTL = time.Hour

// factory builds run components from config and credentials. The bbolt
// store and the Elasticsearch client are opened on first use and shared by
// every run of the process; Close releases them.
type factory struct {
	cfg      *config.Config
	creds    *config.Credentials
	metrics  *metrics.Metrics
	progress port.Progress
	cache    *cache.QueryCache

	mu    sync.Mutex
	store *store.BoltStore
	es    *elasticsearch.Client
}

func newFactory(cfg *config.Config, creds *config.Credentials, m *metrics.Metrics, progress port.Progress) *factory {
	var qc *cache.QueryCache
	if cfg.Index.QueryCacheSize > 0 {
		qc = cache.NewQueryCache(cfg.Index.QueryCacheSize, queryCacheTTL)
	}
	if progress == nil {
		progress = port.NopProgress{}
	}
	return &factory{cfg: cfg, creds: creds, metrics: m, progress: progress, cache: qc}
}

// Build parses the method tags of rc and wires the matching variants.
// Credentials are checked before the store is opened.
func (f *factory) Build(ctx context.Context, rc domain.RunConfig) (*port.Components, error) {
	embed, err := domain.ParseEmbedMethod(rc.EmbedMethod)
	if err != nil {
		return nil, err
	}
	rewrite, rewriting, err := domain.ParseRewriteMethod(rc.RewriteMethod)
	if err != nil {
		return nil, err
	}
	rerank, reranking, err := domain.ParseRerankMethod(rc.RerankMethod)
	if err != nil {
		return nil, err
	}
	if rc.Collection == "" {
		return nil, domain.NewConfigError("collection", "", "required")
	}

	c := &port.Components{}
	if rewriting {
		if c.Rewriter, err = f.rewriter(rewrite); err != nil {
			return nil, err
		}
	}
	if reranking {
		if c.Reranker, err = f.reranker(rerank); err != nil {
			return nil, err
		}
	}
	if c.Indexer, err = f.indexer(embed, rc.Collection); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *factory) httpOptions() httpapi.Options {
	return httpapi.Options{
		Timeout:           f.cfg.Providers.Timeout,
		RequestsPerSecond: f.cfg.Providers.RequestsPerSecond,
		Metrics:           f.metrics,
	}
}

func (f *factory) retryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = f.cfg.Providers.RetryAttempts
	if f.cfg.Providers.RetryInitialDelay > 0 {
		p.BaseDelay = f.cfg.Providers.RetryInitialDelay
	}
	return p
}

func (f *factory) insertOptions() retriever.InsertOptions {
	return retriever.InsertOptions{
		BatchSize:  f.cfg.Index.InsertBatchSize,
		MaxWorkers: f.cfg.Index.MaxInsertWorkers,
		Progress:   f.progress,
	}
}

func (f *factory) searchOptions() retriever.SearchOptions {
	return retriever.SearchOptions{
		BatchSize: f.cfg.Run.SearchBatch,
		Workers:   f.cfg.Run.Workers,
	}
}

func (f *factory) rewriter(m domain.RewriteMethod) (port.QueryRewriter, error) {
	model, err := f.llm(m)
	if err != nil {
		return nil, err
	}
	switch m.Kind {
	case domain.RewriteExpand:
		return retriever.NewExpandRewriter(model), nil
	case domain.RewriteHyDE:
		return retriever.NewHyDERewriter(model), nil
	}
	return nil, domain.NewConfigError("rewrite_method", m.String(), "unsupported rewrite type")
}

func (f *factory) llm(m domain.RewriteMethod) (port.LLM, error) {
	opts := llm.Options{
		BaseURL: f.cfg.BaseURL(m.Provider),
		Retry:   f.retryPolicy(),
		Options: f.httpOptions(),
	}
	switch m.Provider {
	case domain.LLMOpenAI:
		return llm.NewOpenAIClient(f.creds.OpenAIAPIKey, m.Model, opts)
	case domain.LLMAnthropic:
		return llm.NewAnthropicClient(f.creds.AnthropicAPIKey, m.Model, opts)
	}
	return nil, domain.NewConfigError("rewrite_method", m.String(), fmt.Sprintf("unknown llm provider %q", m.Provider))
}

func (f *factory) reranker(m domain.RerankMethod) (port.Reranker, error) {
	opts := retriever.RerankOptions{
		Retry:   f.retryPolicy(),
		Options: f.httpOptions(),
	}
	switch m.Kind {
	case domain.RerankVoyage:
		opts.BaseURL = f.cfg.BaseURL(domain.ProviderVoyage)
		return retriever.NewVoyageReranker(f.creds.VoyageAPIKey, m.Model, opts)
	case domain.RerankContextual:
		opts.BaseURL = f.cfg.BaseURL("contextual")
		return retriever.NewContextualReranker(f.creds.ContextualAPIKey, m.Model, opts)
	}
	return nil, domain.NewConfigError("rerank_method", m.String(), "unsupported rerank type")
}

func (f *factory) embedder(m domain.EmbedMethod) (port.Embedder, error) {
	opts := embedding.Options{
		BaseURL:   f.cfg.BaseURL(m.Provider),
		BatchSize: f.cfg.Index.EmbedBatchSize,
		Options:   f.httpOptions(),
	}
	var (
		e   *embedding.Embedder
		err error
	)
	switch m.Provider {
	case domain.ProviderOpenAI:
		e, err = embedding.NewOpenAI(f.creds.OpenAIAPIKey, m.Model, opts)
	case domain.ProviderJina:
		e, err = embedding.NewJina(f.creds.JinaAPIKey, m.Model, opts)
	case domain.ProviderVoyage:
		e, err = embedding.NewVoyage(f.creds.VoyageAPIKey, m.Model, opts)
	default:
		return nil, domain.NewConfigError("embed_method", m.String(), fmt.Sprintf("unknown embedding provider %q", m.Provider))
	}
	if err != nil {
		return nil, err
	}
	if f.cache == nil {
		return e, nil
	}
	return embedding.NewCachedEmbedder(e, f.cache), nil
}

func (f *factory) bm25(coll *store.Collection) *retriever.BM25Indexer {
	return retriever.NewBM25Indexer(coll, retriever.BM25Options{
		Stemming: f.cfg.Index.Stemming,
		K1:       f.cfg.Index.K1,
		B:        f.cfg.Index.B,
	}, f.insertOptions(), f.searchOptions())
}

func (f *factory) indexer(m domain.EmbedMethod, collection string) (port.Indexer, error) {
	switch m.Kind {
	case domain.EmbedDense:
		e, err := f.embedder(m)
		if err != nil {
			return nil, err
		}
		coll, err := f.collection(collection)
		if err != nil {
			return nil, err
		}
		return retriever.NewDenseIndexer(coll, e, m, f.insertOptions(), f.searchOptions()), nil

	case domain.EmbedSparse:
		switch m.Backend {
		case domain.BackendBM25:
			coll, err := f.collection(collection)
			if err != nil {
				return nil, err
			}
			return f.bm25(coll), nil
		case domain.BackendElasticsearch:
			es, err := f.elastic()
			if err != nil {
				return nil, err
			}
			coll, err := f.collection(collection)
			if err != nil {
				return nil, err
			}
			return retriever.NewElasticIndexer(es, coll, f.insertOptions(), f.searchOptions(), f.metrics), nil
		}
		return nil, domain.NewConfigError("embed_method", m.String(), fmt.Sprintf("unknown sparse backend %q", m.Backend))

	case domain.EmbedHybrid:
		e, err := f.embedder(m)
		if err != nil {
			return nil, err
		}
		coll, err := f.collection(collection)
		if err != nil {
			return nil, err
		}
		dense := retriever.NewDenseIndexer(coll, e, m, f.insertOptions(), f.searchOptions())
		return retriever.NewHybridIndexer(coll, f.bm25(coll), dense, m, f.cfg.Index.RRFK, f.cfg.Index.BM25Weight), nil
	}
	return nil, domain.NewConfigError("embed_method", m.String(), "unsupported embed type")
}

func (f *factory) collection(name string) (*store.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store == nil {
		st, err := store.NewBoltStore(f.cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}
		f.store = st
	}
	return f.store.Collection(name)
}

func (f *factory) elastic() (*elasticsearch.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.es == nil {
		es, err := retriever.NewElasticClient(f.creds.ElasticsearchURL, f.creds.ElasticsearchUsername, f.creds.ElasticsearchPassword)
		if err != nil {
			return nil, err
		}
		f.es = es
	}
	return f.es, nil
}

// Close releases the shared store.
func (f *factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store == nil {
		return nil
	}
	err := f.store.Close()
	f.store = nil
	return err
}
