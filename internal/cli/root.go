package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragbench/config"
	"ragbench/internal/log"
	"ragbench/internal/metrics"
)

var (
	cfgFile     string
	envFile     string
	logLevel    string
	metricsFile string

	cfg   *config.Config
	creds *config.Credentials
	stats = metrics.New()
)

var rootCmd = &cobra.Command{
	Use:   "ragbench",
	Short: "Evaluate retrieval pipelines by recall@k",
	Long: `ragbench indexes a labeled corpus under a chosen embedding strategy,
optionally rewrites queries, retrieves and reranks candidates, and reports
Recall@1, Recall@5 and Recall@10. Every run is saved as <output_dir>/<run_id>.json.

Example usage:
  ragbench single --embed-method dense:openai --collection docs-openai
  ragbench sweep --config sweeps/baseline.yaml
  ragbench report results/sweeps`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			dir, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(dir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := log.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		creds, err = config.LoadCredentials(envFile)
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM
// cancels it.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if metricsFile != "" {
		if werr := stats.WriteTextfile(metricsFile); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write metrics: %v\n", werr)
		}
	}
	log.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config-file", "", "config file (default is ./ragbench.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file with provider credentials")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&metricsFile, "metrics-file", "", "write a Prometheus textfile snapshot here on exit")
}
