package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSweepJSON(t *testing.T) {
	path := writeFile(t, "sweep.json", `{
  "data_dir": "data/sample",
  "runs": [
    {"run_id": "bm25", "embed_method": "sparse", "collection": "bm25"},
    {"run_id": "dense-rr", "embed_method": "dense:openai", "collection": "oa", "rerank_method": "voyage"}
  ]
}`)
	sweep, err := LoadSweep(path, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "data/sample", sweep.DataDir)
	assert.Equal(t, "results/sweeps", sweep.OutputDir)
	require.Len(t, sweep.Runs, 2)
	assert.Equal(t, domain.RunConfig{
		EmbedMethod:  "dense:openai",
		RerankMethod: "voyage",
		Collection:   "oa",
		DataDir:      "data/sample",
	}, sweep.RunConfig(1))
}

func TestLoadSweepYAMLDefaults(t *testing.T) {
	path := writeFile(t, "sweep.yaml", `
output_dir: out
runs:
  - run_id: a
    embed_method: sparse
    collection: c
`)
	sweep, err := LoadSweep(path, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Data.Dir, sweep.DataDir)
	assert.Equal(t, "out", sweep.OutputDir)
}

func TestLoadSweepInvalid(t *testing.T) {
	tests := map[string]string{
		"no runs":       `{"runs": []}`,
		"missing id":    `{"runs": [{"embed_method": "sparse", "collection": "c"}]}`,
		"missing embed": `{"runs": [{"run_id": "a", "collection": "c"}]}`,
		"missing coll":  `{"runs": [{"run_id": "a", "embed_method": "sparse"}]}`,
		"duplicate id":  `{"runs": [{"run_id": "a", "embed_method": "sparse", "collection": "c"}, {"run_id": "a", "embed_method": "sparse", "collection": "d"}]}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSweep(writeFile(t, "sweep.json", content), DefaultConfig())
			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadSweepMissingFile(t *testing.T) {
	_, err := LoadSweep(filepath.Join(t.TempDir(), "nope.json"), DefaultConfig())
	assert.Error(t, err)
}
