package cmd

import (
	"fmt"

	"github.com/bimmerbailey/ctxlens/internal/analyzer"
	"github.com/bimmerbailey/ctxlens/internal/config"
	"github.com/bimmerbailey/ctxlens/internal/event"
	"github.com/bimmerbailey/ctxlens/internal/output"
	"github.com/bimmerbailey/ctxlens/internal/parser"
	"github.com/bimmerbailey/ctxlens/internal/pipeline"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <file|->...",
	Short: "Show line and event counts for gateway logs",
	Long: `Display how many lines of each event kind a gateway log contains,
how many lines were not recognized, and the time range covered.

Several files or glob patterns are counted together.

Examples:
  ctxlens stats gateway.log
  ctxlens stats 'logs/gateway-*.log'
  ctxlens stats --format json gateway.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Int("workers", 0, "number of classification workers (default: GOMAXPROCS)")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	files, err := config.ExpandInputs(args)
	if err != nil {
		return inputError(err)
	}

	opts := pipelineOptions(cmd, cfg)
	// Counts cover every recognized line, whatever the analysis filters say.
	opts.Filter = parser.Filter{}

	ctx := commandContext(cmd)
	var (
		totalLines int
		events     []event.Event
	)
	for _, file := range files {
		res, err := pipeline.Run(ctx, file, opts)
		if err != nil {
			return inputError(err)
		}
		totalLines += res.TotalLines
		events = append(events, res.Events...)
	}

	stats := analyzer.New().ComputeStats(totalLines, events)

	w := output.New(cmd.OutOrStdout(), output.ParseFormat(cfg.Format))
	if err := w.WriteStats(stats); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}
