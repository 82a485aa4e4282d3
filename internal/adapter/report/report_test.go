package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
)

func sampleRecord(runID string, recall1 float64) *domain.RunRecord {
	rewritten := "capital city of france <b>"
	return &domain.RunRecord{
		Results: domain.RunResult{
			RunID:   runID,
			Config:  domain.RunConfig{EmbedMethod: "sparse:bm25", Collection: "capitals", DataDir: "data"},
			Metrics: map[string]float64{"Recall@1": recall1, "Recall@5": 1, "Recall@10": 1},
		},
		Log: domain.DebugLog{
			"q1": {
				OriginalQuery:  "capital of france",
				RewrittenQuery: &rewritten,
				RetrievedResults: []domain.DocRef{
					{DocID: "c2", Content: "tokyo is the capital of japan"},
					{DocID: "c1", Content: "paris is the capital of france"},
				},
				RerankedResults: []domain.DocRef{},
				ExpectedDocID:   "c1",
				Recall:          map[string]bool{"Recall@1": false, "Recall@5": true, "Recall@10": true},
			},
		},
	}
}

func writeRecord(t *testing.T, path string, rec *domain.RunRecord) {
	t.Helper()
	data, err := json.MarshalIndent(rec, "", "    ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestWriteRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, sampleRecord("run-1", 0.5)))
	html := buf.String()

	assert.Contains(t, html, "<title>Run run-1</title>")
	assert.Contains(t, html, "0.5000")
	assert.Contains(t, html, "Recall@1: Fail")
	assert.Contains(t, html, "Recall@5: Pass")
	assert.Contains(t, html, "capital city of france &lt;b&gt;")
	assert.Contains(t, html, `class="doc expected"`)
	assert.Contains(t, html, "<dt>rerank_method</dt><dd>None</dd>")
	assert.NotContains(t, html, "zero vectors")
}

func TestWriteRun_Degraded(t *testing.T) {
	rec := sampleRecord("run-1", 0)
	rec.Results.Degraded = &domain.Degradation{Chunks: 3, Queries: []string{"q1"}}
	rec.Log["q1"].DegradedQueryEmbedding = true

	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, rec))
	assert.Contains(t, buf.String(), "3 chunks, 1 queries")
	assert.Contains(t, buf.String(), "zero-vector query embedding")
}

func TestWriteRunFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "run-1.json")
	writeRecord(t, jsonPath, sampleRecord("run-1", 1))

	htmlPath := filepath.Join(dir, "html", "run-1.html")
	require.NoError(t, WriteRunFile(jsonPath, htmlPath))
	data, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Run run-1")
}

func TestLoadRuns(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, filepath.Join(dir, "b.json"), sampleRecord("b", 0.2))
	writeRecord(t, filepath.Join(dir, "a.json"), sampleRecord("a", 0.8))
	writeRecord(t, filepath.Join(dir, "nested", "c.json"), sampleRecord("c", 0.1))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`{"hello": "world"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0o644))

	runs, err := LoadRuns(dir, "")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].Record.Results.RunID)
	assert.Equal(t, "b", runs[1].Record.Results.RunID)
	assert.Equal(t, 1, runs[0].Failed(1))
	assert.Equal(t, 0, runs[0].Failed(5))

	runs, err = LoadRuns(dir, "**/*.json")
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestLoadRuns_Empty(t *testing.T) {
	_, err := LoadRuns(t.TempDir(), "")
	assert.Error(t, err)
}

func TestWriteSweepFile(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, filepath.Join(dir, "low.json"), sampleRecord("low", 0.25))
	writeRecord(t, filepath.Join(dir, "high.json"), sampleRecord("high", 0.75))

	out := filepath.Join(dir, SweepFile)
	n, err := WriteSweepFile(dir, "", out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "2 runs from")
	assert.Contains(t, html, `<a href="#high">high</a>`)
	assert.Contains(t, html, "75.0%")
	assert.Equal(t, 1, strings.Count(html, `num best">75.0%`))
	assert.NotContains(t, html, `num best">25.0%`)
}
