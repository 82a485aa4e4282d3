package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ragbench/internal/adapter/report"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/port"
	"ragbench/internal/usecase"
)

var (
	singleRunID         string
	singleEmbedMethod   string
	singleRewriteMethod string
	singleRerankMethod  string
	singleCollection    string
	singleDataDir       string
	singleOutputDir     string
	singleNResults      int
)

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Evaluate one retrieval configuration",
	Long: `Index the corpus into a collection, optionally rewrite queries, retrieve,
optionally rerank, and report recall. The run record is saved as
<output-dir>/<run-id>.json.

Examples:
  ragbench single --embed-method dense:openai --collection docs-openai
  ragbench single --embed-method sparse --collection docs-bm25 \
      --rewrite-method expand:openai --rerank-method voyage:rerank-2`,
	Args: cobra.NoArgs,
	RunE: runSingle,
}

func init() {
	rootCmd.AddCommand(singleCmd)

	f := singleCmd.Flags()
	f.StringVar(&singleRunID, "run-id", "", "run identifier (default run-<8 hex>)")
	f.StringVar(&singleEmbedMethod, "embed-method", "", "dense:<provider>[:<model>], sparse[:bm25|elasticsearch] or hybrid:<provider>[:<model>]")
	f.StringVar(&singleRewriteMethod, "rewrite-method", "", "expand|hyde:<provider>[:<model>]")
	f.StringVar(&singleRerankMethod, "rerank-method", "", "voyage|contextual[:<model>]")
	f.StringVar(&singleCollection, "collection", "", "collection holding the indexed corpus")
	f.StringVar(&singleDataDir, "data-dir", "", "dataset directory (default from config)")
	f.StringVar(&singleOutputDir, "output-dir", "", "directory for run records (default from config)")
	f.IntVarP(&singleNResults, "n-results", "k", 0, "chunks retrieved per query (default from config)")
	_ = singleCmd.MarkFlagRequired("embed-method")
	_ = singleCmd.MarkFlagRequired("collection")
}

func runSingle(cmd *cobra.Command, args []string) error {
	runID := singleRunID
	if runID == "" {
		runID = "run-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	dataDir := orDefault(singleDataDir, cfg.Data.Dir)
	outputDir := orDefault(singleOutputDir, cfg.Data.OutputDir)
	nResults := singleNResults
	if nResults <= 0 {
		nResults = cfg.Run.NResults
	}

	rc := domain.RunConfig{
		EmbedMethod:   singleEmbedMethod,
		RewriteMethod: singleRewriteMethod,
		RerankMethod:  singleRerankMethod,
		Collection:    singleCollection,
		DataDir:       dataDir,
	}

	// Reject malformed tags before touching the dataset.
	if err := validateTags(rc); err != nil {
		return err
	}

	data, err := usecase.LoadDataset(dataDir)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d chunks and %d queries from %s\n", len(data.Corpus), len(data.Queries), dataDir)

	progress := newBarProgress(os.Stdout)
	f := newFactory(cfg, creds, stats, progress)
	defer closeFactory(f)

	components, err := f.Build(cmd.Context(), rc)
	if err != nil {
		return err
	}

	orchestrator := usecase.NewRunOrchestrator(runID, rc, data, components, runOptions(progress))
	result, err := orchestrator.Run(cmd.Context(), nResults, outputDir)
	if err != nil {
		return err
	}

	jsonPath := usecase.RunRecordPath(outputDir, runID)
	fmt.Printf("\nRun %s complete\n", runID)
	fmt.Printf("Results saved to: %s\n", jsonPath)
	if cfg.Report.HTML {
		htmlPath := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".html"
		if err := report.WriteRunFile(jsonPath, htmlPath); err != nil {
			log.Warnw("failed to write run report", "run_id", runID, "error", err)
		} else {
			fmt.Printf("Visualization saved to: %s\n", htmlPath)
		}
	}
	printRecall(result, "")
	return nil
}

func validateTags(rc domain.RunConfig) error {
	if _, err := domain.ParseEmbedMethod(rc.EmbedMethod); err != nil {
		return err
	}
	if _, _, err := domain.ParseRewriteMethod(rc.RewriteMethod); err != nil {
		return err
	}
	if _, _, err := domain.ParseRerankMethod(rc.RerankMethod); err != nil {
		return err
	}
	return nil
}

func runOptions(progress port.Progress) usecase.RunOptions {
	return usecase.RunOptions{
		RewriteBatchSize: cfg.Run.RewriteBatch,
		RerankBatchSize:  cfg.Run.RerankBatch,
		Workers:          cfg.Run.Workers,
		Progress:         progress,
		Metrics:          stats,
	}
}

func printRecall(result *domain.RunResult, indent string) {
	for _, k := range domain.RecallKs {
		key := domain.RecallKey(k)
		if v, ok := result.Metrics[key]; ok {
			fmt.Printf("%s%s: %.4f\n", indent, key, v)
		} else {
			fmt.Printf("%s%s: N/A\n", indent, key)
		}
	}
	if d := result.Degraded; d != nil && !d.Empty() {
		fmt.Printf("%sWarning: %d chunk and %d query embeddings degraded to zero vectors\n",
			indent, d.Chunks, len(d.Queries))
	}
}

func closeFactory(f *factory) {
	if err := f.Close(); err != nil {
		log.Warnw("failed to close index store", "error", err)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
