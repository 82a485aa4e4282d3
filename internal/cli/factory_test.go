package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/config"
	"ragbench/internal/adapter/embedding"
	"ragbench/internal/adapter/retriever"
	"ragbench/internal/domain"
	"ragbench/internal/metrics"
)

func testFactory(t *testing.T, creds config.Credentials) *factory {
	t.Helper()
	c := config.DefaultConfig()
	c.Store.Path = filepath.Join(t.TempDir(), "index.db")
	f := newFactory(c, &creds, metrics.New(), nil)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFactoryBuildVariants(t *testing.T) {
	creds := config.Credentials{
		OpenAIAPIKey:     "sk-test",
		AnthropicAPIKey:  "ak-test",
		JinaAPIKey:       "jina-test",
		VoyageAPIKey:     "pa-test",
		ContextualAPIKey: "ctx-test",
		ElasticsearchURL: "http://localhost:9200",
	}
	f := testFactory(t, creds)
	ctx := context.Background()

	t.Run("sparse defaults to bm25", func(t *testing.T) {
		c, err := f.Build(ctx, domain.RunConfig{EmbedMethod: "sparse", Collection: "lexical"})
		require.NoError(t, err)
		assert.IsType(t, &retriever.BM25Indexer{}, c.Indexer)
		assert.Nil(t, c.Rewriter)
		assert.Nil(t, c.Reranker)
	})

	t.Run("elasticsearch", func(t *testing.T) {
		c, err := f.Build(ctx, domain.RunConfig{EmbedMethod: "sparse:elasticsearch", Collection: "es"})
		require.NoError(t, err)
		assert.IsType(t, &retriever.ElasticIndexer{}, c.Indexer)
	})

	t.Run("dense with rewrite and rerank", func(t *testing.T) {
		c, err := f.Build(ctx, domain.RunConfig{
			EmbedMethod:   "dense:jina",
			RewriteMethod: "hyde:anthropic",
			RerankMethod:  "contextual",
			Collection:    "dense",
		})
		require.NoError(t, err)
		assert.IsType(t, &retriever.DenseIndexer{}, c.Indexer)
		assert.IsType(t, &retriever.HyDERewriter{}, c.Rewriter)
		require.NotNil(t, c.Reranker)
		assert.Equal(t, "ctxl-rerank-v2-instruct-multilingual", c.Reranker.ModelName())
	})

	t.Run("hybrid with expand", func(t *testing.T) {
		c, err := f.Build(ctx, domain.RunConfig{
			EmbedMethod:   "hybrid:voyage",
			RewriteMethod: "expand:openai:gpt-4.1-mini",
			RerankMethod:  "voyage:rerank-2-lite",
			Collection:    "hybrid",
		})
		require.NoError(t, err)
		assert.IsType(t, &retriever.HybridIndexer{}, c.Indexer)
		assert.IsType(t, &retriever.ExpandRewriter{}, c.Rewriter)
		assert.Equal(t, "rerank-2-lite", c.Reranker.ModelName())
	})
}

func TestFactoryEmbedderUsesQueryCache(t *testing.T) {
	f := testFactory(t, config.Credentials{OpenAIAPIKey: "sk-test"})

	e, err := f.embedder(domain.EmbedMethod{Kind: domain.EmbedDense, Provider: domain.ProviderOpenAI, Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.IsType(t, &embedding.CachedEmbedder{}, e)
	assert.Equal(t, 1536, e.Dimension())

	f.cache = nil
	e, err = f.embedder(domain.EmbedMethod{Kind: domain.EmbedDense, Provider: domain.ProviderOpenAI, Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.IsType(t, &embedding.Embedder{}, e)
}

func TestFactoryConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		rc   domain.RunConfig
		key  string
	}{
		{
			name: "unknown embed type",
			rc:   domain.RunConfig{EmbedMethod: "colbert:openai", Collection: "c"},
			key:  "embed_method",
		},
		{
			name: "unsupported model",
			rc:   domain.RunConfig{EmbedMethod: "dense:openai:ada-002", Collection: "c"},
			key:  "embed_method",
		},
		{
			name: "unknown rewrite type",
			rc:   domain.RunConfig{EmbedMethod: "sparse", RewriteMethod: "paraphrase:openai", Collection: "c"},
			key:  "rewrite_method",
		},
		{
			name: "unknown rerank type",
			rc:   domain.RunConfig{EmbedMethod: "sparse", RerankMethod: "cohere", Collection: "c"},
			key:  "rerank_method",
		},
		{
			name: "missing collection",
			rc:   domain.RunConfig{EmbedMethod: "sparse"},
			key:  "collection",
		},
		{
			name: "missing embedding key",
			rc:   domain.RunConfig{EmbedMethod: "dense:openai", Collection: "c"},
			key:  "OPENAI_API_KEY",
		},
		{
			name: "missing llm key",
			rc:   domain.RunConfig{EmbedMethod: "sparse", RewriteMethod: "expand:anthropic", Collection: "c"},
			key:  "ANTHROPIC_API_KEY",
		},
		{
			name: "missing rerank key",
			rc:   domain.RunConfig{EmbedMethod: "sparse", RerankMethod: "voyage", Collection: "c"},
			key:  "VOYAGE_API_KEY",
		},
		{
			name: "missing elasticsearch url",
			rc:   domain.RunConfig{EmbedMethod: "sparse:elasticsearch", Collection: "c"},
			key:  "ELASTICSEARCH_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFactory(t, config.Credentials{})
			_, err := f.Build(context.Background(), tt.rc)

			var cerr *domain.ConfigError
			require.True(t, errors.As(err, &cerr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.key, cerr.Key)
			assert.Nil(t, f.store, "store must not be opened when building fails")
		})
	}
}

func TestFactorySharesStoreAcrossBuilds(t *testing.T) {
	f := testFactory(t, config.Credentials{})

	_, err := f.Build(context.Background(), domain.RunConfig{EmbedMethod: "sparse", Collection: "a"})
	require.NoError(t, err)
	first := f.store
	require.NotNil(t, first)

	_, err = f.Build(context.Background(), domain.RunConfig{EmbedMethod: "sparse:bm25", Collection: "b"})
	require.NoError(t, err)
	assert.Same(t, first, f.store)

	require.NoError(t, f.Close())
	assert.Nil(t, f.store)
	require.NoError(t, f.Close())
}

func TestBarProgress(t *testing.T) {
	var buf bytes.Buffer
	p := newBarProgress(&buf)

	p.Start("rerank", 3)
	p.Add("rerank", 2)
	p.Add("unknown", 1)
	p.Add("rerank", 1)
	p.Finish("rerank")
	p.Finish("rerank")

	assert.Contains(t, buf.String(), "rerank")
	assert.Empty(t, p.bars)

	p.Start("empty", 0)
	assert.Empty(t, p.bars)
}
