package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"ragbench/internal/domain"
)

// CurrentSchemaVersion is the layout version written into new collections.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// CollectionMeta records how a collection was populated.
type CollectionMeta struct {
	SchemaVersion int       `json:"schema_version"`
	EmbedMethod   string    `json:"embed_method"`
	ParamsHash    string    `json:"params_hash"`
	Dimension     int       `json:"dimension,omitempty"`
	Chunks        int       `json:"chunks"`
	Complete      bool      `json:"complete"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// GetMeta returns the stored metadata, or nil if the collection was never
// populated.
func (c *Collection) GetMeta() (*CollectionMeta, error) {
	var meta *CollectionMeta
	err := c.view(func(tx *bbolt.Tx) error {
		data := c.bucket(tx, bucketMeta).Get(keyMeta)
		if data == nil {
			return nil
		}
		meta = &CollectionMeta{}
		return json.Unmarshal(data, meta)
	})
	return meta, err
}

// SetMeta stores the metadata.
func (c *Collection) SetMeta(meta CollectionMeta) error {
	return c.update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return c.bucket(tx, bucketMeta).Put(keyMeta, data)
	})
}

// ComputeParamsHash hashes index-relevant parameters. A different hash
// means a populated collection was built under other settings.
func ComputeParamsHash(params any) string {
	data, _ := json.Marshal(params)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// CheckResult describes the state of a collection before indexing.
type CheckResult struct {
	// Populated means indexing must be skipped.
	Populated bool
	// NeedsReset means the collection holds a partial population that must
	// be cleared before indexing.
	NeedsReset bool
	// ParamsChanged is set when a populated collection was built with
	// different parameters; it is reused as is.
	ParamsChanged bool
	Reason        string
}

// Check compares the collection with the method about to index it. A
// collection populated under another embed method or a newer schema is a
// *domain.ConfigError.
func (c *Collection) Check(embedMethod, paramsHash string) (*CheckResult, error) {
	meta, err := c.GetMeta()
	if err != nil {
		return nil, fmt.Errorf("failed to read collection metadata: %w", err)
	}
	count, err := c.Count()
	if err != nil {
		return nil, err
	}

	if meta == nil || !meta.Complete {
		if count == 0 {
			return &CheckResult{}, nil
		}
		return &CheckResult{NeedsReset: true, Reason: fmt.Sprintf("found %d chunks from an interrupted population", count)}, nil
	}

	if meta.SchemaVersion > CurrentSchemaVersion {
		return nil, domain.NewConfigError("collection", c.Name(),
			fmt.Sprintf("created by newer schema (v%d > v%d)", meta.SchemaVersion, CurrentSchemaVersion))
	}
	if meta.EmbedMethod != embedMethod {
		return nil, domain.NewConfigError("collection", c.Name(),
			fmt.Sprintf("populated with %s, cannot serve %s", meta.EmbedMethod, embedMethod))
	}

	result := &CheckResult{Populated: true}
	if meta.ParamsHash != paramsHash {
		result.ParamsChanged = true
		result.Reason = "index parameters changed since population"
	}
	return result, nil
}

// MarkComplete records a finished population.
func (c *Collection) MarkComplete(embedMethod, paramsHash string, dimension int) error {
	count, err := c.Count()
	if err != nil {
		return err
	}
	return c.SetMeta(CollectionMeta{
		SchemaVersion: CurrentSchemaVersion,
		EmbedMethod:   embedMethod,
		ParamsHash:    paramsHash,
		Dimension:     dimension,
		Chunks:        count,
		Complete:      true,
		IndexedAt:     time.Now().UTC(),
	})
}
