package output

import (
	"bufio"
	"fmt"

	"github.com/bimmerbailey/ctxlens/internal/analyzer"
	"github.com/bimmerbailey/ctxlens/internal/correlate"
)

// ReportTitle heads the text report.
const ReportTitle = "Context Reduction Report"

// WriteAnalysis renders one analysis in the configured format: the text
// report, the JSON overview, or a table of the correlated requests.
func (wr *Writer) WriteAnalysis(s analyzer.Summary, requests []correlate.Request) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteSummaryJSON(s)
	case FormatTable:
		return wr.WriteRequests(requests)
	default:
		return wr.WriteReport(s)
	}
}

// WriteSummaryJSON outputs the machine-readable overview of s.
func (wr *Writer) WriteSummaryJSON(s analyzer.Summary) error {
	return wr.WriteJSON(s.Overview())
}

// WriteReport outputs the human-readable report. Sections appear in a fixed
// order; when no request matched a reduction event only the header counts and
// a notice are written.
func (wr *Writer) WriteReport(s analyzer.Summary) error {
	bw := bufio.NewWriter(wr.w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	p("%s", wr.title(ReportTitle))
	p("")
	p("Lines scanned: %s", formatNumber(s.TotalLines))
	p("Matched requests: %d", s.MatchedRequests)
	p("With reduction stats: %d", s.WithCompression)
	p("")

	if !s.HasCompression() {
		p("%s", wr.muted("No reduction statistics found."))
		return bw.Flush()
	}

	p("%s", wr.section("Overview"))
	p("Total bytes saved: %s", formatBytes(s.TotalBytesSaved))
	p("Average saved per request: %s bytes", formatNumber(s.AvgBytesSaved))
	p("Median reduction ratio: %.1f%%", s.MedianRatio)
	p("P90 reduction ratio: %.1f%%", s.P90Ratio)
	p("P95 reduction ratio: %.1f%%", s.P95Ratio)
	p("")

	p("%s", wr.section("Per-technique contribution"))
	for _, l := range s.Layers {
		p("  %-18s%12s bytes (%5.1f%%)  avg %s/req",
			l.Technique.Label()+":", formatNumber(l.BytesSaved), l.Percent, formatNumber(l.AvgPerReq))
	}
	p("")

	h := s.History
	p("%s", wr.section("History truncation"))
	p("Requests with history truncation: %d/%d (%.1f%%)", h.Requests, h.Of, h.Percent)
	if h.Requests > 0 {
		p("Average turns removed: %.1f", h.AvgTurns)
		p("Max turns removed: %d", h.MaxTurns)
	}
	p("")

	u := s.Usage
	p("%s", wr.section("Context window usage (contextUsageEvent)"))
	if u.Requests > 0 {
		p("Average usage: %.1f%%", u.AvgPercent)
		p(">80%% usage: %d (%.1f%%)", u.OverHigh, u.OverHighPct)
		p(">95%% usage: %d (%.1f%%)", u.OverCritical, u.OverCriticalPct)
		p("100%% (overflow): %s (%.1f%%)", wr.warn(fmt.Sprint(u.Overflow), u.Overflow > 0), u.OverflowPct)
	} else {
		p("%s", wr.muted("No contextUsageEvent data (requires DEBUG log level)"))
	}
	p("")

	p("%s", wr.section("Upstream rejections"))
	p("Input too long: %s", wr.warn(fmt.Sprint(s.Rejections), s.Rejections > 0))
	p("")

	a := s.Adaptive
	p("%s", wr.section("Adaptive second-pass reduction"))
	p("Triggered: %d", a.Count)
	if a.Count > 0 {
		p("Average before: %s", formatBytes(a.AvgInitialBytes))
		p("Average after: %s", formatBytes(a.AvgFinalBytes))
		p("Average iterations: %.1f", a.AvgIterations)
		p("Average extra turns removed: %.1f", a.AvgTurnsRemoved)
	}
	p("")

	p("%s", wr.section("Local rejections (request body over limit)"))
	p("Refused: %s", wr.warn(fmt.Sprint(s.LocalRejections), s.LocalRejections > 0))
	for _, r := range s.TopLocal {
		cid := r.ConversationID
		if cid == "" {
			cid = "none"
		}
		p("  line=%d effective=%d threshold=%d body=%d image=%d conversationId=%s",
			r.LineNo, r.EffectiveBytes, r.Threshold, r.RequestBodyBytes, r.ImageBytes, cid)
	}
	p("")

	p("%s", wr.section(fmt.Sprintf("Top-%d highest-saving requests", s.TopN)))
	for i, r := range s.TopSavers {
		p("  #%d  line=%d  saved=%s  ratio=%.1f%%  model=%s  tokens=%s",
			i+1, r.LineNo, formatNumber(r.BytesSavedTotal), r.ReductionRatio, r.Model, formatNumber(r.EstimatedInputTokens))
	}
	p("")

	p("%s", wr.section("Low/zero-saving sample"))
	if len(s.ZeroSavings) == 0 {
		p("  (none)")
	}
	for _, r := range s.ZeroSavings {
		p("  line=%d  saved=0  tokens=%s  message_count=%d",
			r.LineNo, formatNumber(r.EstimatedInputTokens), r.MessageCount)
	}
	p("")

	if len(s.Hourly) > 0 {
		p("%s", wr.section("Hourly trend"))
		for _, b := range s.Hourly {
			usage := ""
			if b.UsageRequests > 0 {
				usage = fmt.Sprintf("  avg_context_usage=%.1f%%", b.AvgUsage)
			}
			p("  %s:  requests=%d  avg_saved=%s%s", b.Hour, b.Requests, formatNumber(b.AvgBytesSaved), usage)
		}
		p("")
	}

	return bw.Flush()
}
