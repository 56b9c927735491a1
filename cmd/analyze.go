package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bimmerbailey/ctxlens/internal/config"
	"github.com/bimmerbailey/ctxlens/internal/output"
	"github.com/bimmerbailey/ctxlens/internal/parser"
	"github.com/bimmerbailey/ctxlens/internal/pipeline"
	"github.com/bimmerbailey/ctxlens/internal/store"
	"github.com/bimmerbailey/ctxlens/internal/watch"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <file|->",
	Short: "Report context reduction statistics for a gateway log",
	Long: `Correlate request, reduction and context-usage lines in a gateway log
and report how many bytes each reduction technique saved.

Use "-" to read the log from standard input.

Examples:
  ctxlens analyze gateway.log
  ctxlens analyze --top 10 --min-tokens 50000 gateway.log
  ctxlens analyze --model 'opus|sonnet' --csv requests.csv gateway.log
  ctxlens analyze -f table gateway.log
  ctxlens analyze --watch gateway.log`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	addFilterFlags(analyzeCmd)
	analyzeCmd.Flags().Int("top", 5, "number of highest-saving requests to show")
	analyzeCmd.Flags().String("csv", "", "also export per-request rows to this CSV file")
	analyzeCmd.Flags().String("sqlite", "", "also store the run in this SQLite database")
	analyzeCmd.Flags().Bool("watch", false, "re-run the analysis whenever the file changes")
	analyzeCmd.Flags().String("debounce", "", "quiet period before a watch re-run (e.g., 500ms, 2s)")
	analyzeCmd.Flags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(analyzeCmd)
}

// addFilterFlags registers the flags shared by commands that classify lines.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Int("min-tokens", 0, "ignore requests and reductions below this estimated token count")
	cmd.Flags().String("model", "", "only include requests whose model matches this regex (case-insensitive)")
	cmd.Flags().Int("workers", 0, "number of classification workers (default: GOMAXPROCS)")
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("min-tokens") {
		cfg.Analysis.MinTokens, _ = flags.GetInt("min-tokens")
	}
	if flags.Changed("model") {
		cfg.Analysis.Model, _ = flags.GetString("model")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("top") {
		cfg.Analysis.Top, _ = flags.GetInt("top")
	}
	if flags.Changed("debounce") {
		cfg.Watch.Debounce, _ = flags.GetString("debounce")
	}
}

// commandConfig loads the configuration with cmd's flags applied and validated.
func commandConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func pipelineOptions(cmd *cobra.Command, cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Filter: parser.Filter{
			MinTokens: cfg.Analysis.MinTokens,
			Model:     cfg.Analysis.Model,
		},
		Policy:  cfg.Correlation,
		Workers: cfg.Workers,
		Stdin:   cmd.InOrStdin(),
		Logger:  newLogger(cmd.ErrOrStderr(), cfg),
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	csvPath, _ := cmd.Flags().GetString("csv")
	sqlitePath, _ := cmd.Flags().GetString("sqlite")
	watchMode, _ := cmd.Flags().GetBool("watch")
	noColor, _ := cmd.Flags().GetBool("no-color")

	colorMode := output.ColorAuto
	if noColor {
		colorMode = output.ColorNever
	}

	path := args[0]
	opts := pipelineOptions(cmd, cfg)

	analyzeOnce := func(ctx context.Context) error {
		res, err := pipeline.Run(ctx, path, opts)
		if err != nil {
			return inputError(err)
		}

		w := output.New(cmd.OutOrStdout(), output.ParseFormat(cfg.Format))
		w.SetColorMode(colorMode)
		if err := w.WriteAnalysis(res.Summarize(cfg.Analysis.Top), res.Requests); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		if csvPath != "" {
			if err := output.ExportCSV(csvPath, res.Requests); err != nil {
				return fmt.Errorf("failed to export CSV: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "CSV exported: %s (%d rows)\n", csvPath, len(res.Requests))
		}

		if sqlitePath != "" {
			runID, err := saveRun(sqlitePath, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "SQLite exported: %s (run %d, %d requests)\n", sqlitePath, runID, len(res.Requests))
		}
		return nil
	}

	if !watchMode {
		return analyzeOnce(commandContext(cmd))
	}

	if path == config.StdinArg {
		return fmt.Errorf("--watch requires a file path, not standard input")
	}
	debounce, err := config.ParseDuration(cfg.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("invalid --debounce value: %w", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(watch.Options{
		FilePath: path,
		Debounce: debounce,
		Logger:   opts.Logger,
		OnChange: analyzeOnce,
	})
	return w.Run(ctx)
}

func saveRun(path string, res *pipeline.Result) (int64, error) {
	st, err := store.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open SQLite store: %w", err)
	}
	defer st.Close()

	runID, err := st.SaveRun(res)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return runID, nil
}
