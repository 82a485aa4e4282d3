package domain

import (
	"sort"
	"strconv"
)

// Corpus maps chunk id to chunk text.
type Corpus map[string]string

// Queries maps query id to query text.
type Queries map[string]string

// GroundTruth maps query id to the id of the one chunk that answers it.
type GroundTruth map[string]string

// RetrievalResult maps query id to chunk ids, best first.
type RetrievalResult map[string][]string

// IDs returns the corpus ids in sorted order.
func (c Corpus) IDs() []string {
	return sortedKeys(c)
}

// IDs returns the query ids in sorted order.
func (q Queries) IDs() []string {
	return sortedKeys(q)
}

func sortedKeys(m map[string]string) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Chunk struct {
	ID     string
	Tokens []string
	Text   string
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

type Posting struct {
	ChunkID string
	TF      int
}

type Stats struct {
	TotalChunks int
	AvgChunkLen float64
}

// Candidate is a retrieved chunk handed to a reranker.
type Candidate struct {
	ID   string
	Text string
}

// RunConfig describes how a run was produced. It is persisted verbatim.
type RunConfig struct {
	EmbedMethod   string `json:"embed_method" yaml:"embed_method"`
	RewriteMethod string `json:"rewrite_method,omitempty" yaml:"rewrite_method,omitempty"`
	RerankMethod  string `json:"rerank_method,omitempty" yaml:"rerank_method,omitempty"`
	Collection    string `json:"collection" yaml:"collection"`
	DataDir       string `json:"data_dir" yaml:"data_dir"`
}

// DocRef is one ranked chunk as recorded in the debug log.
type DocRef struct {
	DocID   string `json:"doc_id"`
	Content string `json:"content"`
}

// DebugLogEntry traces a single query through every stage of a run.
type DebugLogEntry struct {
	OriginalQuery          string          `json:"original_query"`
	RewrittenQuery         *string         `json:"rewritten_query"`
	RetrievedResults       []DocRef        `json:"retrieved_results"`
	RerankedResults        []DocRef        `json:"reranked_results"`
	ExpectedDocID          string          `json:"expected_doc_id"`
	Recall                 map[string]bool `json:"recall"`
	RerankError            string          `json:"rerank_error,omitempty"`
	DegradedQueryEmbedding bool            `json:"degraded_query_embedding,omitempty"`
}

// DebugLog is keyed by query id.
type DebugLog map[string]*DebugLogEntry

// Degradation counts embeddings that were replaced by zero vectors.
type Degradation struct {
	Chunks  int      `json:"chunks"`
	Queries []string `json:"queries,omitempty"`
}

// Empty reports whether nothing degraded.
func (d Degradation) Empty() bool {
	return d.Chunks == 0 && len(d.Queries) == 0
}

type RunResult struct {
	RunID    string             `json:"run_id"`
	Config   RunConfig          `json:"config"`
	Metrics  map[string]float64 `json:"metrics"`
	Degraded *Degradation       `json:"degraded,omitempty"`
}

// RunRecord is the on-disk shape of a finished run.
type RunRecord struct {
	Results RunResult `json:"results"`
	Log     DebugLog  `json:"log"`
}

// RecallKs are the cutoffs reported for every run.
var RecallKs = []int{1, 5, 10}

// RecallKey returns the metric name for cutoff k, e.g. "Recall@5".
func RecallKey(k int) string {
	return "Recall@" + strconv.Itoa(k)
}

// IsPermutation reports whether out holds exactly the ids of in, each once.
func IsPermutation(in, out []string) bool {
	if len(in) != len(out) {
		return false
	}
	seen := make(map[string]int, len(in))
	for _, id := range in {
		seen[id]++
	}
	for _, id := range out {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
