package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ragbench/internal/adapter/report"
)

var (
	reportPattern string
	reportOut     string
	reportRun     string
)

var reportCmd = &cobra.Command{
	Use:   "report [dir]",
	Short: "Render HTML reports from saved run records",
	Long: `Render a sweep overview of every run record under dir (default: the sweep
output directory), or a single run page with --run.

Examples:
  ragbench report results/sweeps
  ragbench report results --pattern "**/*.json" --out results/all.html
  ragbench report --run results/run-1a2b3c4d.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportPattern, "pattern", report.DefaultPattern, "doublestar glob selecting run records, relative to dir")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output HTML file (default <dir>/"+report.SweepFile+")")
	reportCmd.Flags().StringVar(&reportRun, "run", "", "render a single run record instead of a sweep")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportRun != "" {
		out := reportOut
		if out == "" {
			out = strings.TrimSuffix(reportRun, filepath.Ext(reportRun)) + ".html"
		}
		if err := report.WriteRunFile(reportRun, out); err != nil {
			return err
		}
		fmt.Printf("Visualization saved to: %s\n", out)
		return nil
	}

	dir := cfg.Data.SweepOutputDir
	if len(args) > 0 {
		dir = args[0]
	}
	out := reportOut
	if out == "" {
		out = filepath.Join(dir, report.SweepFile)
	}
	n, err := report.WriteSweepFile(dir, reportPattern, out)
	if err != nil {
		return err
	}
	fmt.Printf("Sweep visualization of %d runs saved to: %s\n", n, out)
	return nil
}
