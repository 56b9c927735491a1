// Package output renders analysis results. It supports text, JSON, and table
// formats, plus CSV export of per-request rows.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/bimmerbailey/ctxlens/internal/correlate"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w        io.Writer
	format   Format
	colorize bool
}

// New creates a new output Writer. Color is off until SetColorMode is called.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// Format returns the configured output format.
func (wr *Writer) Format() Format {
	return wr.format
}

// SetColorMode enables styled headings according to mode and whether the
// underlying writer is a terminal.
func (wr *Writer) SetColorMode(mode ColorMode) {
	wr.colorize = shouldColorize(mode, wr.w)
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRequests outputs correlated requests: one row each for table, the
// full records for json, and one summary line each for text.
func (wr *Writer) WriteRequests(requests []correlate.Request) error {
	switch wr.format {
	case FormatJSON:
		if requests == nil {
			requests = []correlate.Request{}
		}
		return wr.WriteJSON(requests)
	case FormatTable:
		return wr.writeRequestTable(requests)
	default:
		for _, r := range requests {
			if _, err := fmt.Fprintln(wr.w, describeRequest(r)); err != nil {
				return err
			}
		}
		return nil
	}
}

func (wr *Writer) writeRequestTable(requests []correlate.Request) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tTIMESTAMP\tMODEL\tTOKENS\tSAVED\tRATIO\tHISTORY\tUSAGE")
	fmt.Fprintln(tw, "----\t---------\t-----\t------\t-----\t-----\t-------\t-----")

	for _, r := range requests {
		saved, ratio, history := "-", "-", "-"
		if r.HasCompression {
			saved = formatNumber(r.BytesSavedTotal)
			ratio = fmt.Sprintf("%.1f%%", r.ReductionRatio)
			history = fmt.Sprintf("%d", r.HistoryTurnsRemoved)
		}
		usage := "-"
		if r.HasUsage() {
			usage = fmt.Sprintf("%.1f%%", *r.ContextUsagePercentage)
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.LineNo, orDash(r.Timestamp), truncate(orDash(r.Model), 32),
			formatNumber(r.EstimatedInputTokens), saved, ratio, history, usage)
	}

	return tw.Flush()
}

func describeRequest(r correlate.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "line=%d model=%s tokens=%s", r.LineNo, orDash(r.Model), formatNumber(r.EstimatedInputTokens))
	if r.HasCompression {
		fmt.Fprintf(&b, " saved=%s ratio=%.1f%%", formatNumber(r.BytesSavedTotal), r.ReductionRatio)
	}
	if r.HasUsage() {
		fmt.Fprintf(&b, " usage=%.1f%%", *r.ContextUsagePercentage)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:max(n-3, 0)]) + "..."
}
