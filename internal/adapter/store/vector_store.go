package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"ragbench/internal/port"
)

// VectorStore keeps a collection's vectors in bbolt and mirrors them in
// memory for brute-force cosine search.
type VectorStore struct {
	coll      *Collection
	dimension int

	mu      sync.RWMutex
	vectors map[string][]float32
}

// Vectors opens the vector store of the collection and loads any stored
// vectors. Every stored vector must have the given dimension.
func (c *Collection) Vectors(dimension int) (*VectorStore, error) {
	s := &VectorStore{
		coll:      c,
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

func (s *VectorStore) load() error {
	return s.coll.view(func(tx *bbolt.Tx) error {
		return s.coll.bucket(tx, bucketVectors).ForEach(func(k, v []byte) error {
			vec, err := decodeVector(v)
			if err != nil {
				return fmt.Errorf("vector %s: %w", k, err)
			}
			if len(vec) != s.dimension {
				return fmt.Errorf("vector %s has dimension %d, expected %d", k, len(vec), s.dimension)
			}
			s.vectors[string(k)] = vec
			return nil
		})
	})
}

// Upsert adds or updates vectors. It may be called concurrently for
// disjoint ids.
func (s *VectorStore) Upsert(items []port.VectorItem) error {
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
		}
	}

	err := s.coll.batch(func(tx *bbolt.Tx) error {
		b := s.coll.bucket(tx, bucketVectors)
		for _, item := range items {
			if err := b.Put([]byte(item.ID), encodeVector(item.Vector)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, item := range items {
		s.vectors[item.ID] = item.Vector
	}
	s.mu.Unlock()
	return nil
}

// Search finds the k nearest vectors to the query using cosine similarity.
// Ties are broken by id so results are deterministic.
func (s *VectorStore) Search(query []float32, k int) ([]port.VectorResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	s.mu.RLock()
	scores := make([]port.VectorResult, 0, len(s.vectors))
	for id, vec := range s.vectors {
		scores = append(scores, port.VectorResult{ID: id, Score: cosineSimilarity(query, vec)})
	}
	s.mu.RUnlock()

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ID < scores[j].ID
	})

	if k < len(scores) {
		scores = scores[:k]
	}
	return scores, nil
}

// Count returns the number of vectors in the store.
func (s *VectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
// A zero vector scores 0 against everything.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
