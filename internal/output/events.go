package output

import (
	"fmt"
	"text/tabwriter"

	"github.com/bimmerbailey/ctxlens/internal/analyzer"
	"github.com/bimmerbailey/ctxlens/internal/event"
)

// eventRecord tags an event with its kind for JSON output.
type eventRecord struct {
	Kind  event.Kind  `json:"kind"`
	Event event.Event `json:"event"`
}

// WriteEvents outputs classified events in the configured format.
func (wr *Writer) WriteEvents(events []event.Event) error {
	switch wr.format {
	case FormatJSON:
		records := make([]eventRecord, 0, len(events))
		for _, e := range events {
			records = append(records, eventRecord{Kind: e.Kind(), Event: e})
		}
		return wr.WriteJSON(records)
	case FormatTable:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LINE\tKIND\tTIMESTAMP\tDETAIL")
		fmt.Fprintln(tw, "----\t----\t---------\t------")
		for _, e := range events {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Line(), e.Kind(), orDash(event.Stamp(e)), truncate(describeEvent(e), 100))
		}
		return tw.Flush()
	default:
		for _, e := range events {
			if _, err := fmt.Fprintf(wr.w, "%d\t%s\t%s\n", e.Line(), e.Kind(), describeEvent(e)); err != nil {
				return err
			}
		}
		return nil
	}
}

func describeEvent(e event.Event) string {
	switch v := e.(type) {
	case event.Request:
		return fmt.Sprintf("model=%s tokens=%d max_tokens=%d stream=%t messages=%d",
			orDash(v.Model), v.EstimatedInputTokens, v.MaxTokens, v.Stream, v.MessageCount)
	case event.Reduction:
		return fmt.Sprintf("tokens=%d saved=%d whitespace=%d thinking=%d tool_result=%d tool_use_input=%d history=%d turns_removed=%d",
			v.EstimatedInputTokens, v.BytesSavedTotal,
			v.Saved[event.Whitespace], v.Saved[event.Thinking], v.Saved[event.ToolResult],
			v.Saved[event.ToolUseInput], v.Saved[event.History], v.HistoryTurnsRemoved)
	case event.Usage:
		return fmt.Sprintf("usage=%.1f%% input_tokens=%d", v.Percentage, v.ActualInputTokens)
	case event.UpstreamRejection:
		return fmt.Sprintf("body_bytes=%d", v.RequestBodyBytes)
	case event.AdaptiveReduction:
		return fmt.Sprintf("conversation=%s initial=%d final=%d threshold=%d iters=%d turns_removed=%d",
			orDash(v.ConversationID), v.InitialBytes, v.FinalBytes, v.Threshold, v.Iterations, v.AdditionalHistoryTurnsRemoved)
	case event.LocalRejection:
		return fmt.Sprintf("conversation=%s body=%d image=%d effective=%d threshold=%d",
			orDash(v.ConversationID), v.RequestBodyBytes, v.ImageBytes, v.EffectiveBytes, v.Threshold)
	}
	return ""
}

// WriteStats outputs the line and event histogram.
func (wr *Writer) WriteStats(s analyzer.Stats) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(s)
	case FormatTable:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tCOUNT\tPERCENT")
		fmt.Fprintln(tw, "----\t-----\t-------")
		for _, k := range s.Kinds {
			fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", k.Kind, k.Count, k.Percent)
		}
		fmt.Fprintf(tw, "unclassified\t%d\t\n", s.Unclassified)
		return tw.Flush()
	default:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Total lines:\t%s\n", formatNumber(s.TotalLines))
		fmt.Fprintf(tw, "Events:\t%s\n", formatNumber(s.Events))
		fmt.Fprintf(tw, "Unclassified:\t%s\n", formatNumber(s.Unclassified))
		if s.FirstEntry != "" {
			fmt.Fprintf(tw, "First entry:\t%s\n", s.FirstEntry)
			fmt.Fprintf(tw, "Last entry:\t%s\n", s.LastEntry)
		}
		fmt.Fprintln(tw)
		for _, k := range s.Kinds {
			fmt.Fprintf(tw, "  %s\t%d\t(%.1f%%)\n", k.Kind, k.Count, k.Percent)
		}
		return tw.Flush()
	}
}
