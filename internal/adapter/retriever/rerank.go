package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/metrics"
	"ragbench/internal/retry"
)

// Default reranker endpoints.
const (
	VoyageBaseURL     = "https://api.voyageai.com/v1"
	ContextualBaseURL = "https://api.app.contextual.ai/v1"
)

// RerankOptions configure an HTTP reranker.
type RerankOptions struct {
	BaseURL string
	Retry   retry.Policy
	httpapi.Options
}

func (o RerankOptions) policy() retry.Policy {
	if o.Retry.Attempts <= 0 {
		return retry.DefaultPolicy()
	}
	return o.Retry
}

type rerankScore struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// scoreFunc sends one rerank request and returns the raw scores.
type scoreFunc func(ctx context.Context, query string, documents []string) ([]rerankScore, error)

// HTTPReranker reorders candidates with a hosted rerank model. Transient
// failures are retried under the configured policy; malformed responses
// fail immediately.
type HTTPReranker struct {
	provider string
	model    string
	policy   retry.Policy
	metrics  *metrics.Metrics
	score    scoreFunc
}

type voyageRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k"`
}

type voyageRerankResponse struct {
	Data []rerankScore `json:"data"`
}

func NewVoyageReranker(apiKey, model string, opts RerankOptions) (*HTTPReranker, error) {
	if apiKey == "" {
		return nil, domain.NewConfigError("VOYAGE_API_KEY", "", "environment variable is not set")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = VoyageBaseURL
	}
	client := httpapi.New(domain.ProviderVoyage, baseURL, apiKey, opts.Options)
	return &HTTPReranker{
		provider: domain.ProviderVoyage,
		model:    model,
		policy:   opts.policy(),
		metrics:  opts.Metrics,
		score: func(ctx context.Context, query string, documents []string) ([]rerankScore, error) {
			var resp voyageRerankResponse
			err := client.PostJSON(ctx, "rerank", "/rerank", voyageRerankRequest{
				Query:     query,
				Documents: documents,
				Model:     model,
				TopK:      len(documents),
			}, &resp)
			return resp.Data, err
		},
	}, nil
}

type contextualRerankRequest struct {
	Query       string   `json:"query"`
	Documents   []string `json:"documents"`
	Model       string   `json:"model"`
	TopN        int      `json:"top_n"`
	Instruction string   `json:"instruction"`
	Metadata    []string `json:"metadata"`
}

type contextualRerankResponse struct {
	Results []rerankScore `json:"results"`
}

const providerContextual = "contextual"

func NewContextualReranker(apiKey, model string, opts RerankOptions) (*HTTPReranker, error) {
	if apiKey == "" {
		return nil, domain.NewConfigError("CONTEXTUAL_API_KEY", "", "environment variable is not set")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = ContextualBaseURL
	}
	client := httpapi.New(providerContextual, baseURL, apiKey, opts.Options)
	return &HTTPReranker{
		provider: providerContextual,
		model:    model,
		policy:   opts.policy(),
		metrics:  opts.Metrics,
		score: func(ctx context.Context, query string, documents []string) ([]rerankScore, error) {
			var resp contextualRerankResponse
			err := client.PostJSON(ctx, "rerank", "/rerank", contextualRerankRequest{
				Query:     query,
				Documents: documents,
				Model:     model,
				TopN:      len(documents),
				Metadata:  make([]string, len(documents)),
			}, &resp)
			return resp.Results, err
		},
	}, nil
}

func (r *HTTPReranker) ModelName() string {
	return r.model
}

// Rerank returns the candidate ids ordered by descending relevance.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return []string{}, nil
	}
	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Text
	}

	notify := func(attempt int, err error, wait time.Duration) {
		r.metrics.RecordRetry(r.provider, "rerank")
		log.Warnw("rerank call failed, retrying",
			"provider", r.provider, "model", r.model, "attempt", attempt, "wait", wait, "error", err)
	}
	ids, attempts, err := retry.DoValue(ctx, r.policy, notify, func(ctx context.Context) ([]string, error) {
		scores, err := r.score(ctx, query, documents)
		if err != nil {
			if errors.Is(err, domain.ErrTransient) {
				return nil, err
			}
			return nil, retry.Permanent(err)
		}
		ids, err := rankCandidates(scores, candidates)
		if err != nil {
			return nil, retry.Permanent(domain.Protocol(r.provider, "rerank", 0, err))
		}
		return ids, nil
	})
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		perr.Attempts = attempts
	}
	return ids, err
}

// rankCandidates orders candidate ids by score. The scores must cover
// every candidate exactly once.
func rankCandidates(scores []rerankScore, candidates []domain.Candidate) ([]string, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("empty rerank results for %d documents", len(candidates))
	}
	sorted := append([]rerankScore(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})

	in := make([]string, len(candidates))
	for i, c := range candidates {
		in[i] = c.ID
	}
	out := make([]string, len(sorted))
	for i, s := range sorted {
		if s.Index < 0 || s.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank index %d out of range [0,%d)", s.Index, len(candidates))
		}
		out[i] = candidates[s.Index].ID
	}
	if !domain.IsPermutation(in, out) {
		return nil, fmt.Errorf("rerank returned %d results that are not a permutation of %d documents", len(out), len(in))
	}
	return out, nil
}
