package cmd

import (
	"fmt"

	"github.com/bimmerbailey/ctxlens/internal/event"
	"github.com/bimmerbailey/ctxlens/internal/output"
	"github.com/bimmerbailey/ctxlens/internal/pipeline"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events [flags] <file|->",
	Short: "List the classified events in a gateway log",
	Long: `Print every line ctxlens recognizes, in file order, with its kind and
the fields extracted from it. The --min-tokens and --model filters apply
as they do for analyze.

Kinds: request, reduction, usage, upstream_rejection, adaptive_reduction,
local_rejection.

Examples:
  ctxlens events gateway.log
  ctxlens events --kind reduction --min-tokens 100000 gateway.log
  ctxlens events --kind local -f json gateway.log`,
	Args: cobra.ExactArgs(1),
	RunE: runEvents,
}

func init() {
	addFilterFlags(eventsCmd)
	eventsCmd.Flags().StringP("kind", "k", "", "only list events of this kind")

	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	kindStr, _ := cmd.Flags().GetString("kind")
	var (
		kind     event.Kind
		kindOnly bool
	)
	if kindStr != "" {
		k, ok := event.ParseKind(kindStr)
		if !ok {
			return fmt.Errorf("invalid --kind value: %s", kindStr)
		}
		kind, kindOnly = k, true
	}

	res, err := pipeline.Run(commandContext(cmd), args[0], pipelineOptions(cmd, cfg))
	if err != nil {
		return inputError(err)
	}

	events := res.Events
	if kindOnly {
		events = make([]event.Event, 0, len(res.Events))
		for _, e := range res.Events {
			if e.Kind() == kind {
				events = append(events, e)
			}
		}
	}

	w := output.New(cmd.OutOrStdout(), output.ParseFormat(cfg.Format))
	if err := w.WriteEvents(events); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}
	return nil
}
