package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/adapter/store"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/metrics"
)

const elasticProvider = "elasticsearch"

// elasticMapping analyzes chunk text with the built-in english analyzer.
const elasticMapping = `{
	"mappings": {
		"properties": {
			"text": { "type": "text", "analyzer": "english" }
		}
	}
}`

// NewElasticClient connects to an Elasticsearch cluster.
func NewElasticClient(url, username, password string) (*elasticsearch.Client, error) {
	if url == "" {
		return nil, domain.NewConfigError("ELASTICSEARCH_URL", "", "environment variable is not set")
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
	})
}

// ElasticIndexer keeps a collection as an Elasticsearch index and ranks
// with its BM25 match query. Population state is tracked in a local
// ledger collection so a half-written index is rebuilt, not reused.
type ElasticIndexer struct {
	es      *elasticsearch.Client
	index   string
	ledger  *store.Collection
	insert  InsertOptions
	search  SearchOptions
	metrics *metrics.Metrics
}

func NewElasticIndexer(es *elasticsearch.Client, ledger *store.Collection, insert InsertOptions, search SearchOptions, m *metrics.Metrics) *ElasticIndexer {
	return &ElasticIndexer{
		es:      es,
		index:   ElasticIndexName(ledger.Name()),
		ledger:  ledger,
		insert:  insert,
		search:  search,
		metrics: m,
	}
}

// ElasticIndexName maps a collection name to a valid index name.
func ElasticIndexName(collection string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, collection)
	return "ragbench-" + name
}

func (r *ElasticIndexer) method() string {
	return domain.EmbedMethod{Kind: domain.EmbedSparse, Backend: domain.BackendElasticsearch}.String()
}

func (r *ElasticIndexer) Index(ctx context.Context, corpus domain.Corpus) error {
	count, err := r.count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		// The index is gone or empty; forget any earlier population.
		meta, err := r.ledger.GetMeta()
		if err != nil {
			return err
		}
		if meta != nil && meta.EmbedMethod == r.method() {
			if err := r.ledger.Reset(); err != nil {
				return err
			}
		}
	}
	hash := store.ComputeParamsHash(elasticMapping)
	return populateOnce(ctx, r.ledger, r.method(), hash, 0, func(ctx context.Context) error {
		return r.populate(ctx, corpus)
	})
}

func (r *ElasticIndexer) populate(ctx context.Context, corpus domain.Corpus) error {
	if err := r.recreate(ctx); err != nil {
		return err
	}
	ids := corpus.IDs()
	err := bulkInsert(ctx, len(ids), r.insert, func(start, end int) error {
		return r.bulk(ctx, ids[start:end], corpus)
	})
	if err != nil {
		return err
	}
	res, err := r.es.Indices.Refresh(
		r.es.Indices.Refresh.WithContext(ctx),
		r.es.Indices.Refresh.WithIndex(r.index),
	)
	if err != nil {
		return r.transportError(ctx, "refresh", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("refresh", res)
	}
	log.Infow("elasticsearch index populated", "index", r.index, "chunks", len(ids))
	return nil
}

func (r *ElasticIndexer) count(ctx context.Context) (int, error) {
	res, err := r.es.Count(
		r.es.Count.WithContext(ctx),
		r.es.Count.WithIndex(r.index),
	)
	if err != nil {
		return 0, r.transportError(ctx, "count", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, responseError("count", res)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, domain.Protocol(elasticProvider, "count", res.StatusCode, err)
	}
	return body.Count, nil
}

// recreate drops any existing index and creates an empty one.
func (r *ElasticIndexer) recreate(ctx context.Context) error {
	res, err := r.es.Indices.Delete([]string{r.index},
		r.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return r.transportError(ctx, "delete-index", err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete-index", res)
	}

	res, err = r.es.Indices.Create(r.index,
		r.es.Indices.Create.WithContext(ctx),
		r.es.Indices.Create.WithBody(strings.NewReader(elasticMapping)),
	)
	if err != nil {
		return r.transportError(ctx, "create-index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create-index", res)
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (r *ElasticIndexer) bulk(ctx context.Context, ids []string, corpus domain.Corpus) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range ids {
		if err := enc.Encode(map[string]any{"index": map[string]string{"_id": id}}); err != nil {
			return err
		}
		if err := enc.Encode(map[string]string{"text": corpus[id]}); err != nil {
			return err
		}
	}

	start := time.Now()
	res, err := r.es.Bulk(bytes.NewReader(buf.Bytes()),
		r.es.Bulk.WithContext(ctx),
		r.es.Bulk.WithIndex(r.index),
	)
	if err != nil {
		r.metrics.RecordProviderCall(elasticProvider, "bulk", "error", time.Since(start).Seconds())
		return r.transportError(ctx, "bulk", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		r.metrics.RecordProviderCall(elasticProvider, "bulk", "error", time.Since(start).Seconds())
		return responseError("bulk", res)
	}

	var body bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return domain.Protocol(elasticProvider, "bulk", res.StatusCode, err)
	}
	r.metrics.RecordProviderCall(elasticProvider, "bulk", "success", time.Since(start).Seconds())
	if body.Errors {
		for _, item := range body.Items {
			for _, result := range item {
				if result.Error != nil {
					return domain.Protocol(elasticProvider, "bulk", result.Status,
						fmt.Errorf("document %s: %s: %s", result.ID, result.Error.Type, result.Error.Reason))
				}
			}
		}
		return domain.Protocol(elasticProvider, "bulk", res.StatusCode, fmt.Errorf("bulk request reported errors"))
	}
	return nil
}

func (r *ElasticIndexer) Retrieve(ctx context.Context, queries domain.Queries, n int) (domain.RetrievalResult, error) {
	results, err := searchAll(ctx, queries.IDs(), r.search, func(ctx context.Context, id string) ([]string, error) {
		return r.match(ctx, queries[id], n)
	})
	if err != nil {
		return nil, err
	}
	return domain.RetrievalResult(results), nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID    string  `json:"_id"`
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r *ElasticIndexer) match(ctx context.Context, query string, n int) ([]string, error) {
	body, err := json.Marshal(map[string]any{
		"query":   map[string]any{"match": map[string]any{"text": query}},
		"_source": false,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := r.es.Search(
		r.es.Search.WithContext(ctx),
		r.es.Search.WithIndex(r.index),
		r.es.Search.WithBody(bytes.NewReader(body)),
		r.es.Search.WithSize(n),
	)
	if err != nil {
		r.metrics.RecordProviderCall(elasticProvider, "search", "error", time.Since(start).Seconds())
		return nil, r.transportError(ctx, "search", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		r.metrics.RecordProviderCall(elasticProvider, "search", "error", time.Since(start).Seconds())
		return nil, responseError("search", res)
	}
	r.metrics.RecordProviderCall(elasticProvider, "search", "success", time.Since(start).Seconds())

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, domain.Protocol(elasticProvider, "search", res.StatusCode, err)
	}
	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

func (r *ElasticIndexer) transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return domain.Transient(elasticProvider, op, 0, err)
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return &domain.ProviderError{
		Reason:     domain.ClassifyStatus(res.StatusCode),
		Provider:   elasticProvider,
		Op:         op,
		StatusCode: res.StatusCode,
		Err:        fmt.Errorf("elasticsearch returned: %s", httpapi.Preview(body)),
	}
}
