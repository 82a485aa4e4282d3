package usecase

import (
	"ragbench/internal/domain"
)

// Recall computes recall@k for every k in domain.RecallKs: the fraction of
// queries in results whose expected chunk appears in their first k ids.
// The denominator is len(results). A query with results but no ground
// truth is an *EvaluationError.
func Recall(results domain.RetrievalResult, truth domain.GroundTruth) (map[string]float64, error) {
	metrics := make(map[string]float64, len(domain.RecallKs))
	for _, k := range domain.RecallKs {
		metrics[domain.RecallKey(k)] = 0
	}
	if len(results) == 0 {
		return metrics, nil
	}

	hits := make(map[int]int, len(domain.RecallKs))
	for qid, ids := range results {
		expected, ok := truth[qid]
		if !ok {
			return nil, &domain.EvaluationError{QueryID: qid}
		}
		for _, k := range domain.RecallKs {
			if hitAt(ids, expected, k) {
				hits[k]++
			}
		}
	}

	n := float64(len(results))
	for _, k := range domain.RecallKs {
		metrics[domain.RecallKey(k)] = float64(hits[k]) / n
	}
	return metrics, nil
}

// QueryRecall reports, per cutoff, whether expected is among the first k ids.
func QueryRecall(ids []string, expected string) map[string]bool {
	out := make(map[string]bool, len(domain.RecallKs))
	for _, k := range domain.RecallKs {
		out[domain.RecallKey(k)] = hitAt(ids, expected, k)
	}
	return out
}

func hitAt(ids []string, expected string, k int) bool {
	if k > len(ids) {
		k = len(ids)
	}
	for _, id := range ids[:k] {
		if id == expected {
			return true
		}
	}
	return false
}
