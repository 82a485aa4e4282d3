package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ragbench/internal/domain"
)

// Dataset file names inside a data directory.
const (
	CorpusFile      = "id_to_chunk.json"
	QueriesFile     = "id_to_query.json"
	GroundTruthFile = "query_to_chunk.json"
)

// Dataset is the corpus, queries and ground truth shared by the runs of a
// sweep. It is read-only once loaded.
type Dataset struct {
	Dir         string
	Corpus      domain.Corpus
	Queries     domain.Queries
	GroundTruth domain.GroundTruth
}

// LoadDataset reads the three JSON mappings from dir.
func LoadDataset(dir string) (*Dataset, error) {
	ds := &Dataset{Dir: dir}
	files := []struct {
		name string
		into *map[string]string
	}{
		{CorpusFile, (*map[string]string)(&ds.Corpus)},
		{QueriesFile, (*map[string]string)(&ds.Queries)},
		{GroundTruthFile, (*map[string]string)(&ds.GroundTruth)},
	}
	for _, f := range files {
		if err := readMapping(filepath.Join(dir, f.name), f.into); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func readMapping(path string, into *map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if *into == nil {
		*into = map[string]string{}
	}
	return nil
}
