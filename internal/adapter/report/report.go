// Package report renders run records as self-contained HTML pages.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"ragbench/internal/domain"
)

// SweepFile is the default name of the sweep page.
const SweepFile = "sweep_visualization.html"

// DefaultPattern matches run records directly inside a directory.
const DefaultPattern = "*.json"

// Run is one record prepared for rendering.
type Run struct {
	File    string
	Record  *domain.RunRecord
	Queries []Query
}

// Query is one debug log entry with its id.
type Query struct {
	ID string
	*domain.DebugLogEntry
}

func newRun(file string, rec *domain.RunRecord) Run {
	run := Run{File: file, Record: rec}
	ids := make([]string, 0, len(rec.Log))
	for id := range rec.Log {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		run.Queries = append(run.Queries, Query{ID: id, DebugLogEntry: rec.Log[id]})
	}
	return run
}

// Failed counts queries that missed at cutoff k.
func (r Run) Failed(k int) int {
	n := 0
	for _, q := range r.Queries {
		if hit, ok := q.Recall[domain.RecallKey(k)]; ok && !hit {
			n++
		}
	}
	return n
}

func readRecord(path string) (*domain.RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec domain.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse run record %s: %w", path, err)
	}
	return &rec, nil
}

// WriteRun renders a single run.
func WriteRun(w io.Writer, rec *domain.RunRecord) error {
	return runTmpl.Execute(w, struct {
		Run         Run
		GeneratedAt time.Time
	}{newRun("", rec), time.Now()})
}

// WriteRunFile renders the record at jsonPath to htmlPath.
func WriteRunFile(jsonPath, htmlPath string) error {
	rec, err := readRecord(jsonPath)
	if err != nil {
		return err
	}
	return writeFile(htmlPath, func(w io.Writer) error {
		return WriteRun(w, rec)
	})
}

// LoadRuns reads every run record under dir matching pattern, a
// doublestar glob relative to dir. Files that are not run records are
// skipped.
func LoadRuns(dir, pattern string) ([]Run, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var runs []Run
	for _, match := range matches {
		rec, err := readRecord(filepath.Join(dir, match))
		if err != nil || rec.Results.RunID == "" {
			continue
		}
		runs = append(runs, newRun(match, rec))
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no run records matching %q in %s", pattern, dir)
	}
	return runs, nil
}

// Sweep is the data behind the sweep page.
type Sweep struct {
	Dir         string
	GeneratedAt time.Time
	Runs        []Run
	// Best holds the highest value of each recall metric across runs.
	Best map[string]float64
}

func newSweep(dir string, runs []Run) *Sweep {
	s := &Sweep{Dir: dir, GeneratedAt: time.Now(), Runs: runs, Best: map[string]float64{}}
	for _, run := range runs {
		for name, v := range run.Record.Results.Metrics {
			if v > s.Best[name] {
				s.Best[name] = v
			}
		}
	}
	return s
}

// WriteSweep renders an overview of runs.
func WriteSweep(w io.Writer, dir string, runs []Run) error {
	return sweepTmpl.Execute(w, newSweep(dir, runs))
}

// WriteSweepFile renders every run record under dir to out and returns
// the number of runs included.
func WriteSweepFile(dir, pattern, out string) (int, error) {
	runs, err := LoadRuns(dir, pattern)
	if err != nil {
		return 0, err
	}
	err = writeFile(out, func(w io.Writer) error {
		return WriteSweep(w, dir, runs)
	})
	return len(runs), err
}

func writeFile(path string, render func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render report: %w", err)
	}
	return f.Close()
}

var funcMap = template.FuncMap{
	"f4": func(v float64) string {
		return fmt.Sprintf("%.4f", v)
	},
	"inc": func(i int) int {
		return i + 1
	},
	"pct": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v*100)
	},
	"recallKey": domain.RecallKey,
	"ks": func() []int {
		return domain.RecallKs
	},
	"metric": func(m map[string]float64, k int) float64 {
		return m[domain.RecallKey(k)]
	},
	"isBest": func(best map[string]float64, m map[string]float64, k int) bool {
		v, ok := m[domain.RecallKey(k)]
		return ok && v > 0 && v == best[domain.RecallKey(k)]
	},
	"orNone": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "None"
		}
		return s
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"barWidth": func(v float64) string {
		return fmt.Sprintf("%.1f", v*100)
	},
}

var (
	runTmpl   = template.Must(template.New("run").Funcs(funcMap).Parse(sharedHTML + runHTML))
	sweepTmpl = template.Must(template.New("sweep").Funcs(funcMap).Parse(sharedHTML + sweepHTML))
)
