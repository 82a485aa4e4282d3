package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
)

func TestParseCredentials(t *testing.T) {
	creds, err := ParseCredentials(map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"VOYAGE_API_KEY": "pa-test",
	})
	require.NoError(t, err)
	assert.Equal(t, "sk-test", creds.OpenAIAPIKey)
	assert.Equal(t, "pa-test", creds.VoyageAPIKey)
	assert.Empty(t, creds.AnthropicAPIKey)
	assert.Equal(t, "http://localhost:9200", creds.ElasticsearchURL)
}

func TestLoadCredentialsDotenv(t *testing.T) {
	path := writeFile(t, ".env", "JINA_API_KEY=jina-from-file\nCONTEXTUAL_API_KEY=ctx-from-file\n")
	t.Setenv("CONTEXTUAL_API_KEY", "ctx-from-env")

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "jina-from-file", creds.JinaAPIKey)
	assert.Equal(t, "ctx-from-env", creds.ContextualAPIKey, "process environment wins over the dotenv file")
}

func TestLoadCredentialsMissingDotenv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ant")
	creds, err := LoadCredentials("/nonexistent/.env")
	require.NoError(t, err)
	assert.Equal(t, "ant", creds.AnthropicAPIKey)
}

func TestRequire(t *testing.T) {
	assert.NoError(t, Require("OPENAI_API_KEY", "x"))
	err := Require("OPENAI_API_KEY", "")
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Key)
}
