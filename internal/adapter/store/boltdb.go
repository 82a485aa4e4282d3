package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.etcd.io/bbolt"

	"ragbench/internal/domain"
)

var (
	bucketCollections = []byte("collections")

	bucketChunks  = []byte("chunks")
	bucketTokens  = []byte("tokens")
	bucketTerms   = []byte("terms")
	bucketStats   = []byte("stats")
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")

	keyStats = []byte("corpus_stats")
	keyMeta  = []byte("collection_meta")

	collectionBuckets = [][]byte{bucketChunks, bucketTokens, bucketTerms, bucketStats, bucketVectors, bucketMeta}
)

// BoltStore is a single bbolt file holding any number of named collections.
type BoltStore struct {
	db     *bbolt.DB
	writes atomic.Int64
}

func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Writes returns the number of write transactions issued through
// collections of this store.
func (s *BoltStore) Writes() int64 {
	return s.writes.Load()
}

// Collection opens (creating if needed) the named collection.
func (s *BoltStore) Collection(name string) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.Bucket(bucketCollections).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		for _, b := range collectionBuckets {
			if _, err := root.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	return &Collection{store: s, name: []byte(name)}, nil
}

// Collections lists collection names.
func (s *BoltStore) Collections() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	return names, err
}

// Collection is a namespace inside a BoltStore. Methods are safe for
// concurrent use; bulk writers go through bbolt's batch coalescing.
type Collection struct {
	store *BoltStore
	name  []byte
}

func (c *Collection) Name() string {
	return string(c.name)
}

func (c *Collection) bucket(tx *bbolt.Tx, name []byte) *bbolt.Bucket {
	return tx.Bucket(bucketCollections).Bucket(c.name).Bucket(name)
}

func (c *Collection) view(fn func(tx *bbolt.Tx) error) error {
	return c.store.db.View(fn)
}

func (c *Collection) update(fn func(tx *bbolt.Tx) error) error {
	c.store.writes.Add(1)
	return c.store.db.Update(fn)
}

// batch is safe to call from many goroutines at once; bbolt coalesces the
// calls into shared transactions, so fn must be idempotent.
func (c *Collection) batch(fn func(tx *bbolt.Tx) error) error {
	c.store.writes.Add(1)
	return c.store.db.Batch(fn)
}

// Count returns the number of chunks stored.
func (c *Collection) Count() (int, error) {
	var n int
	err := c.view(func(tx *bbolt.Tx) error {
		n = c.bucket(tx, bucketChunks).Stats().KeyN
		return nil
	})
	return n, err
}

// Reset removes every chunk, posting, vector and the metadata of the
// collection.
func (c *Collection) Reset() error {
	return c.update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections).Bucket(c.name)
		for _, b := range collectionBuckets {
			if err := root.DeleteBucket(b); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := root.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutChunks stores chunk text, tokens and term postings. Chunks must not
// already exist; callers partition ids so concurrent calls never overlap.
func (c *Collection) PutChunks(chunks []domain.Chunk) error {
	return c.batch(func(tx *bbolt.Tx) error {
		chunksBucket := c.bucket(tx, bucketChunks)
		tokensBucket := c.bucket(tx, bucketTokens)
		termsBucket := c.bucket(tx, bucketTerms)

		newPostings := make(map[string][]domain.Posting)
		for _, chunk := range chunks {
			if err := chunksBucket.Put([]byte(chunk.ID), []byte(chunk.Text)); err != nil {
				return err
			}
			if len(chunk.Tokens) == 0 {
				continue
			}
			data, err := json.Marshal(chunk.Tokens)
			if err != nil {
				return err
			}
			if err := tokensBucket.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			tf := make(map[string]int)
			for _, token := range chunk.Tokens {
				tf[token]++
			}
			for term, count := range tf {
				newPostings[term] = append(newPostings[term], domain.Posting{ChunkID: chunk.ID, TF: count})
			}
		}

		for term, postings := range newPostings {
			var existing []domain.Posting
			if data := termsBucket.Get([]byte(term)); data != nil {
				if err := json.Unmarshal(data, &existing); err != nil {
					return err
				}
			}
			existing = mergePostings(existing, postings)
			data, err := json.Marshal(existing)
			if err != nil {
				return err
			}
			if err := termsBucket.Put([]byte(term), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// mergePostings replaces postings for chunk ids already present, which
// keeps a retried batch function from double counting.
func mergePostings(existing, add []domain.Posting) []domain.Posting {
	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[p.ChunkID] = i
	}
	for _, p := range add {
		if i, ok := index[p.ChunkID]; ok {
			existing[i] = p
			continue
		}
		index[p.ChunkID] = len(existing)
		existing = append(existing, p)
	}
	return existing
}

func (c *Collection) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := c.view(func(tx *bbolt.Tx) error {
		text := c.bucket(tx, bucketChunks).Get([]byte(id))
		if text == nil {
			return fmt.Errorf("chunk not found: %s", id)
		}
		chunk = domain.Chunk{ID: id, Text: string(text)}
		if data := c.bucket(tx, bucketTokens).Get([]byte(id)); data != nil {
			return json.Unmarshal(data, &chunk.Tokens)
		}
		return nil
	})
	return chunk, err
}

// ChunkLengths returns the token count of each requested chunk in one
// read transaction. Unknown ids are skipped.
func (c *Collection) ChunkLengths(ids []string) (map[string]int, error) {
	lengths := make(map[string]int, len(ids))
	err := c.view(func(tx *bbolt.Tx) error {
		b := c.bucket(tx, bucketTokens)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var tokens []string
			if err := json.Unmarshal(data, &tokens); err != nil {
				return err
			}
			lengths[id] = len(tokens)
		}
		return nil
	})
	return lengths, err
}

func (c *Collection) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := c.view(func(tx *bbolt.Tx) error {
		data := c.bucket(tx, bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (c *Collection) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := c.view(func(tx *bbolt.Tx) error {
		data := c.bucket(tx, bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (c *Collection) UpdateStats(stats domain.Stats) error {
	return c.update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return c.bucket(tx, bucketStats).Put(keyStats, data)
	})
}

// RecomputeStats derives corpus statistics from the stored tokens.
func (c *Collection) RecomputeStats() (domain.Stats, error) {
	var stats domain.Stats
	var totalTokens int
	err := c.view(func(tx *bbolt.Tx) error {
		stats.TotalChunks = c.bucket(tx, bucketChunks).Stats().KeyN
		return c.bucket(tx, bucketTokens).ForEach(func(k, v []byte) error {
			var tokens []string
			if err := json.Unmarshal(v, &tokens); err != nil {
				return err
			}
			totalTokens += len(tokens)
			return nil
		})
	})
	if err != nil {
		return stats, err
	}
	if stats.TotalChunks > 0 {
		stats.AvgChunkLen = float64(totalTokens) / float64(stats.TotalChunks)
	}
	return stats, c.UpdateStats(stats)
}
