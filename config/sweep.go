package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ragbench/internal/domain"
)

// SweepRun declares one run of a sweep.
type SweepRun struct {
	RunID         string `json:"run_id" yaml:"run_id"`
	EmbedMethod   string `json:"embed_method" yaml:"embed_method"`
	Collection    string `json:"collection" yaml:"collection"`
	RewriteMethod string `json:"rewrite_method" yaml:"rewrite_method"`
	RerankMethod  string `json:"rerank_method" yaml:"rerank_method"`
}

// Sweep is a sweep configuration file, in JSON or YAML.
type Sweep struct {
	DataDir   string     `json:"data_dir" yaml:"data_dir"`
	OutputDir string     `json:"output_dir" yaml:"output_dir"`
	Runs      []SweepRun `json:"runs" yaml:"runs"`
}

// LoadSweep reads a sweep file, filling data_dir and output_dir from cfg
// when they are absent.
func LoadSweep(path string, cfg *Config) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep config: %w", err)
	}
	var sweep Sweep
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}
	if err := unmarshal(data, &sweep); err != nil {
		return nil, fmt.Errorf("failed to parse sweep config %s: %w", path, err)
	}
	if sweep.DataDir == "" {
		sweep.DataDir = cfg.Data.Dir
	}
	if sweep.OutputDir == "" {
		sweep.OutputDir = cfg.Data.SweepOutputDir
	}
	return &sweep, sweep.Validate()
}

// Validate checks that every run names an id, an embed method and a
// collection, and that run ids are unique.
func (s *Sweep) Validate() error {
	if len(s.Runs) == 0 {
		return domain.NewConfigError("runs", "", "sweep declares no runs")
	}
	seen := make(map[string]bool, len(s.Runs))
	for i, run := range s.Runs {
		key := fmt.Sprintf("runs[%d]", i)
		switch {
		case run.RunID == "":
			return domain.NewConfigError(key+".run_id", "", "required")
		case run.EmbedMethod == "":
			return domain.NewConfigError(key+".embed_method", "", "required")
		case run.Collection == "":
			return domain.NewConfigError(key+".collection", "", "required")
		case seen[run.RunID]:
			return domain.NewConfigError(key+".run_id", run.RunID, "duplicate run id")
		}
		seen[run.RunID] = true
	}
	return nil
}

// RunConfig returns the persisted description of run i.
func (s *Sweep) RunConfig(i int) domain.RunConfig {
	run := s.Runs[i]
	return domain.RunConfig{
		EmbedMethod:   run.EmbedMethod,
		RewriteMethod: run.RewriteMethod,
		RerankMethod:  run.RerankMethod,
		Collection:    run.Collection,
		DataDir:       s.DataDir,
	}
}
