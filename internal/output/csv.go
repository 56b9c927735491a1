package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"math"
	"strconv"
	"strings"

	"github.com/bimmerbailey/ctxlens/internal/correlate"
	"github.com/bimmerbailey/ctxlens/internal/event"
)

// CSVHeader lists the per-request export columns in order.
var CSVHeader = []string{
	"line_no", "timestamp", "model", "max_tokens", "stream",
	"message_count", "estimated_input_tokens", "bytes_saved_total",
	"whitespace_bytes_saved", "thinking_bytes_saved",
	"tool_result_bytes_saved", "tool_use_input_bytes_saved",
	"history_turns_removed", "history_bytes_saved",
	"has_compression", "reduction_ratio",
	"context_usage_percentage", "actual_input_tokens",
}

// WriteCSV writes a header and one row per request to w. Absent usage values
// are written as empty cells; booleans are True/False and floats always carry
// a decimal point.
func WriteCSV(w io.Writer, requests []correlate.Request) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return err
	}

	for _, r := range requests {
		if err := writer.Write(csvRow(r)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportCSV writes the per-request CSV to a new file at path.
func ExportCSV(path string, requests []correlate.Request) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv export: %w", err)
	}

	if err := WriteCSV(file, requests); err != nil {
		file.Close()
		return fmt.Errorf("writing csv export %s: %w", path, err)
	}
	return file.Close()
}

func csvRow(r correlate.Request) []string {
	usage, actual := "", ""
	if r.ContextUsagePercentage != nil {
		usage = formatFloat(*r.ContextUsagePercentage)
	}
	if r.ActualInputTokens != nil {
		actual = strconv.Itoa(*r.ActualInputTokens)
	}

	return []string{
		strconv.Itoa(r.LineNo),
		r.Timestamp,
		r.Model,
		strconv.Itoa(r.MaxTokens),
		formatBool(r.Stream),
		strconv.Itoa(r.MessageCount),
		strconv.Itoa(r.EstimatedInputTokens),
		strconv.Itoa(r.BytesSavedTotal),
		strconv.Itoa(r.Saved[event.Whitespace]),
		strconv.Itoa(r.Saved[event.Thinking]),
		strconv.Itoa(r.Saved[event.ToolResult]),
		strconv.Itoa(r.Saved[event.ToolUseInput]),
		strconv.Itoa(r.HistoryTurnsRemoved),
		strconv.Itoa(r.Saved[event.History]),
		formatBool(r.HasCompression),
		formatFloat(r.ReductionRatio),
		usage,
		actual,
	}
}

// formatFloat writes the shortest round-trip form, keeping a ".0" on whole
// numbers and switching to exponent form outside [1e-4, 1e16).
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
