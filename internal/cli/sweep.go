package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ragbench/config"
	"ragbench/internal/adapter/report"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/usecase"
)

var (
	sweepConfig          string
	sweepContinueOnError bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run several configurations one after another",
	Long: `Run every configuration listed in a sweep file (JSON or YAML) against the
same dataset. The sweep stops at the first failed run unless
--continue-on-error is given; either way the command fails if any run failed.

Sweep file:
  data_dir: data/experimentation-playground-sample-data
  output_dir: results/sweeps
  runs:
    - run_id: bm25
      embed_method: sparse
      collection: docs-bm25
    - run_id: openai-voyage
      embed_method: dense:openai
      collection: docs-openai
      rerank_method: voyage`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVar(&sweepConfig, "config", "", "sweep configuration file")
	sweepCmd.Flags().BoolVar(&sweepContinueOnError, "continue-on-error", false, "keep running after a failed run")
	_ = sweepCmd.MarkFlagRequired("config")
}

func runSweep(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting sweep from config: %s\n", sweepConfig)

	sweep, err := config.LoadSweep(sweepConfig, cfg)
	if err != nil {
		return err
	}
	runs := make([]usecase.SweepRun, len(sweep.Runs))
	for i, run := range sweep.Runs {
		runs[i] = usecase.SweepRun{RunID: run.RunID, Config: sweep.RunConfig(i)}
		if err := validateTags(runs[i].Config); err != nil {
			return fmt.Errorf("run %s: %w", run.RunID, err)
		}
	}

	data, err := usecase.LoadDataset(sweep.DataDir)
	if err != nil {
		return err
	}

	progress := newBarProgress(os.Stdout)
	f := newFactory(cfg, creds, stats, progress)
	defer closeFactory(f)

	orchestrator := usecase.NewSweepOrchestrator(f, data, usecase.SweepOptions{
		NResults:        cfg.Run.NResults,
		OutputDir:       sweep.OutputDir,
		ContinueOnError: sweepContinueOnError,
		Run:             runOptions(progress),
	})
	outcomes, sweepErr := orchestrator.Run(cmd.Context(), runs)

	printSweepTable(outcomes, len(runs))

	succeeded := 0
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
		}
	}
	if succeeded > 0 && cfg.Report.HTML && cmd.Context().Err() == nil {
		out := filepath.Join(sweep.OutputDir, report.SweepFile)
		if n, err := report.WriteSweepFile(sweep.OutputDir, "", out); err != nil {
			log.Warnw("failed to write sweep report", "error", err)
		} else {
			fmt.Printf("Sweep visualization of %d runs saved to: %s\n", n, out)
		}
	}

	if sweepErr != nil {
		return sweepErr
	}
	fmt.Printf("\nSweep complete!\nResults saved to: %s/\n", sweep.OutputDir)
	return nil
}

func printSweepTable(outcomes []usecase.SweepOutcome, total int) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "RUN")
	for _, k := range domain.RecallKs {
		fmt.Fprintf(w, "\t%s", domain.RecallKey(k))
	}
	fmt.Fprintln(w, "\tSTATUS")
	for _, o := range outcomes {
		fmt.Fprint(w, o.RunID)
		for _, k := range domain.RecallKs {
			if o.Result != nil {
				fmt.Fprintf(w, "\t%.4f", o.Result.Metrics[domain.RecallKey(k)])
			} else {
				fmt.Fprint(w, "\t-")
			}
		}
		if o.Err != nil {
			fmt.Fprintf(w, "\tfailed: %v\n", o.Err)
		} else {
			fmt.Fprintln(w, "\tok")
		}
	}
	_ = w.Flush()
	if skipped := total - len(outcomes); skipped > 0 {
		fmt.Printf("%d runs not attempted\n", skipped)
	}
}
