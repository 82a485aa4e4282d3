package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmbedMethod(t *testing.T) {
	tests := []struct {
		tag  string
		want EmbedMethod
	}{
		{"dense:openai:text-embedding-3-large", EmbedMethod{Kind: EmbedDense, Provider: "openai", Model: "text-embedding-3-large"}},
		{"dense:openai", EmbedMethod{Kind: EmbedDense, Provider: "openai", Model: "text-embedding-3-small"}},
		{"dense:jina", EmbedMethod{Kind: EmbedDense, Provider: "jina", Model: "jina-embeddings-v3"}},
		{"dense:voyage:voyage-3-large", EmbedMethod{Kind: EmbedDense, Provider: "voyage", Model: "voyage-3-large"}},
		{"hybrid:voyage", EmbedMethod{Kind: EmbedHybrid, Provider: "voyage", Model: "voyage-3"}},
		{"sparse", EmbedMethod{Kind: EmbedSparse, Backend: BackendBM25}},
		{" sparse:elasticsearch ", EmbedMethod{Kind: EmbedSparse, Backend: BackendElasticsearch}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseEmbedMethod(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEmbedMethod_Invalid(t *testing.T) {
	for _, tag := range []string{
		"",
		"colbert",
		"dense",
		"dense:cohere",
		"dense:openai:text-embedding-ada-002",
		"dense::text-embedding-3-small",
		"sparse:splade",
		"sparse:bm25:extra",
		"dense:openai:text-embedding-3-small:extra",
	} {
		t.Run(tag, func(t *testing.T) {
			_, err := ParseEmbedMethod(tag)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "embed_method", cfgErr.Key)
		})
	}
}

func TestParseRewriteMethod(t *testing.T) {
	m, ok, err := ParseRewriteMethod("expand:openai:gpt-4.1-mini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RewriteMethod{Kind: RewriteExpand, Provider: "openai", Model: "gpt-4.1-mini"}, m)

	m, ok, err = ParseRewriteMethod("hyde:anthropic")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4-5", m.Model)
	assert.Equal(t, "hyde:anthropic:claude-sonnet-4-5", m.String())

	_, ok, err = ParseRewriteMethod("")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, tag := range []string{"paraphrase:openai", "expand", "expand:gemini", "expand:openai:"} {
		_, _, err := ParseRewriteMethod(tag)
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr, tag)
	}
}

func TestParseRerankMethod(t *testing.T) {
	m, ok, err := ParseRerankMethod("voyage:rerank-2-lite")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RerankMethod{Kind: RerankVoyage, Model: "rerank-2-lite"}, m)

	m, ok, err = ParseRerankMethod("contextual")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RerankContextual, m.Kind)
	assert.NotEmpty(t, m.Model)

	_, ok, err = ParseRerankMethod("")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, tag := range []string{"cohere:rerank-v3", "voyage:a:b", "voyage:"} {
		_, _, err := ParseRerankMethod(tag)
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr, tag)
	}
}

func TestProviderErrorIs(t *testing.T) {
	err := Transient("voyage", "rerank", 503, errors.New("unavailable"))
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrProtocol)

	wrapped := Protocol("contextual", "rerank", 200, errors.New("empty results"))
	assert.ErrorIs(t, wrapped, ErrProtocol)
	assert.Contains(t, wrapped.Error(), "protocol")
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, ReasonTransient, ClassifyStatus(429))
	assert.Equal(t, ReasonTransient, ClassifyStatus(408))
	assert.Equal(t, ReasonTransient, ClassifyStatus(502))
	assert.Equal(t, ReasonProtocol, ClassifyStatus(400))
	assert.Equal(t, ReasonProtocol, ClassifyStatus(401))
}

func TestIsPermutation(t *testing.T) {
	assert.True(t, IsPermutation([]string{"a", "b", "c"}, []string{"c", "a", "b"}))
	assert.True(t, IsPermutation(nil, nil))
	assert.False(t, IsPermutation([]string{"a", "b"}, []string{"a", "a"}))
	assert.False(t, IsPermutation([]string{"a", "b"}, []string{"a"}))
	assert.False(t, IsPermutation([]string{"a", "b"}, []string{"a", "z"}))
}
