// Package analyzer aggregates correlated gateway requests and the independent
// rejection and adaptive-reduction events into report statistics.
package analyzer

import (
	"sort"

	"github.com/bimmerbailey/ctxlens/internal/correlate"
	"github.com/bimmerbailey/ctxlens/internal/event"
	"github.com/bimmerbailey/ctxlens/internal/parser"
)

// Report limits that are not configurable.
const (
	LocalRejectionSample = 5
	ZeroSavingSample     = 5
)

// Usage thresholds, in percent of the context window.
const (
	UsageHigh     = 80.0
	UsageCritical = 95.0
	UsageOverflow = 100.0
)

// Input is everything a report is computed from.
type Input struct {
	TotalLines      int
	Requests        []correlate.Request
	Rejections      []event.UpstreamRejection
	Adaptive        []event.AdaptiveReduction
	LocalRejections []event.LocalRejection
}

// Layer is one technique's contribution across compressed requests.
type Layer struct {
	Technique  event.Technique `json:"-"`
	Name       string          `json:"name"`
	BytesSaved int             `json:"bytes_saved"`
	Percent    float64         `json:"percent"`
	AvgPerReq  int             `json:"avg_per_request"`
}

// HistoryStats describes history truncation across compressed requests.
type HistoryStats struct {
	Requests int     `json:"requests"`
	Of       int     `json:"of"`
	Percent  float64 `json:"percent"`
	AvgTurns float64 `json:"avg_turns"`
	MaxTurns int     `json:"max_turns"`
}

// UsageStats describes the context-usage distribution over requests that
// carry a usage snapshot.
type UsageStats struct {
	Requests        int     `json:"requests"`
	AvgPercent      float64 `json:"avg_percent"`
	OverHigh        int     `json:"over_80"`
	OverHighPct     float64 `json:"over_80_pct"`
	OverCritical    int     `json:"over_95"`
	OverCriticalPct float64 `json:"over_95_pct"`
	Overflow        int     `json:"overflow"`
	OverflowPct     float64 `json:"overflow_pct"`
}

// AdaptiveStats summarizes adaptive second-pass reductions.
type AdaptiveStats struct {
	Count           int     `json:"count"`
	AvgInitialBytes int     `json:"avg_initial_bytes"`
	AvgFinalBytes   int     `json:"avg_final_bytes"`
	AvgIterations   float64 `json:"avg_iterations"`
	AvgTurnsRemoved float64 `json:"avg_additional_turns_removed"`
}

// HourBucket is one hour of compressed requests.
type HourBucket struct {
	Hour          string  `json:"hour"`
	Requests      int     `json:"requests"`
	AvgBytesSaved int     `json:"avg_bytes_saved"`
	UsageRequests int     `json:"usage_requests"`
	AvgUsage      float64 `json:"avg_context_usage"`
}

// Summary holds every figure the report renders.
type Summary struct {
	TotalLines      int `json:"total_lines"`
	MatchedRequests int `json:"matched_requests"`
	WithCompression int `json:"with_compression"`

	TotalBytesSaved int     `json:"total_bytes_saved"`
	AvgBytesSaved   int     `json:"avg_bytes_saved"`
	MedianRatio     float64 `json:"median_ratio"`
	P90Ratio        float64 `json:"p90_ratio"`
	P95Ratio        float64 `json:"p95_ratio"`

	Layers  []Layer      `json:"layers"`
	History HistoryStats `json:"history"`
	Usage   UsageStats   `json:"usage"`

	Rejections      int                    `json:"rejections"`
	Adaptive        AdaptiveStats          `json:"adaptive"`
	LocalRejections int                    `json:"local_rejections"`
	TopLocal        []event.LocalRejection `json:"top_local_rejections"`

	TopN        int                 `json:"top_n"`
	TopSavers   []correlate.Request `json:"top_savers"`
	ZeroSavings []correlate.Request `json:"zero_savings"`
	Hourly      []HourBucket        `json:"hourly"`
}

// Overview is the machine-readable summary emitted by --format json.
type Overview struct {
	TotalLines      int            `json:"total_lines"`
	MatchedRequests int            `json:"matched_requests"`
	WithCompression int            `json:"with_compression"`
	TotalBytesSaved int            `json:"total_bytes_saved"`
	AvgBytesSaved   int            `json:"avg_bytes_saved"`
	Layers          OverviewLayers `json:"layers"`
	Rejections      int            `json:"rejections"`
	AdaptiveShrinks int            `json:"adaptive_shrinks"`
	LocalRejects    int            `json:"local_rejects"`
}

// OverviewLayers keeps the layer keys in a fixed order.
type OverviewLayers struct {
	Whitespace   int `json:"whitespace"`
	Thinking     int `json:"thinking"`
	ToolResult   int `json:"tool_result"`
	ToolUseInput int `json:"tool_use_input"`
	History      int `json:"history"`
}

// Overview reduces s to the JSON summary shape.
func (s Summary) Overview() Overview {
	var layers event.Savings
	for _, l := range s.Layers {
		layers[l.Technique] = l.BytesSaved
	}
	return Overview{
		TotalLines:      s.TotalLines,
		MatchedRequests: s.MatchedRequests,
		WithCompression: s.WithCompression,
		TotalBytesSaved: s.TotalBytesSaved,
		AvgBytesSaved:   s.AvgBytesSaved,
		Layers: OverviewLayers{
			Whitespace:   layers[event.Whitespace],
			Thinking:     layers[event.Thinking],
			ToolResult:   layers[event.ToolResult],
			ToolUseInput: layers[event.ToolUseInput],
			History:      layers[event.History],
		},
		Rejections:      s.Rejections,
		AdaptiveShrinks: s.Adaptive.Count,
		LocalRejects:    s.LocalRejections,
	}
}

// HasCompression reports whether any request matched a reduction event.
func (s Summary) HasCompression() bool {
	return s.WithCompression > 0
}

// Analyzer computes summaries from correlated requests.
type Analyzer struct{}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Summarize computes the report for in. topN bounds the highest-saving list;
// values below one yield an empty list. in is not modified.
func (a *Analyzer) Summarize(in Input, topN int) Summary {
	s := Summary{
		TotalLines:      in.TotalLines,
		MatchedRequests: len(in.Requests),
		Rejections:      len(in.Rejections),
		LocalRejections: len(in.LocalRejections),
		TopN:            topN,
	}

	var compressed []correlate.Request
	for _, r := range in.Requests {
		if r.HasCompression {
			compressed = append(compressed, r)
		}
	}
	s.WithCompression = len(compressed)

	s.summarizeSavings(compressed)
	s.summarizeHistory(compressed)
	s.Usage = usageStats(in.Requests)
	s.Adaptive = adaptiveStats(in.Adaptive)
	s.TopLocal = topLocalRejections(in.LocalRejections, LocalRejectionSample)
	s.TopSavers = topSavers(compressed, topN)
	s.ZeroSavings = zeroSavings(compressed, ZeroSavingSample)
	s.Hourly = hourly(compressed)

	return s
}

func (s *Summary) summarizeSavings(compressed []correlate.Request) {
	var totals event.Savings
	var ratios []float64
	for _, r := range compressed {
		s.TotalBytesSaved += r.BytesSavedTotal
		totals = totals.Add(r.Saved)
		if r.ReductionRatio > 0 {
			ratios = append(ratios, r.ReductionRatio)
		}
	}

	n := len(compressed)
	s.AvgBytesSaved = floorDiv(s.TotalBytesSaved, n)
	s.MedianRatio = Median(ratios)
	s.P90Ratio = Percentile(ratios, 90)
	s.P95Ratio = Percentile(ratios, 95)

	s.Layers = make([]Layer, 0, len(event.Techniques))
	for _, t := range event.Techniques {
		s.Layers = append(s.Layers, Layer{
			Technique:  t,
			Name:       t.Key(),
			BytesSaved: totals[t],
			Percent:    share(totals[t], s.TotalBytesSaved),
			AvgPerReq:  floorDiv(totals[t], n),
		})
	}
}

func (s *Summary) summarizeHistory(compressed []correlate.Request) {
	h := HistoryStats{Of: len(compressed)}
	turns := 0
	for _, r := range compressed {
		if r.HistoryTurnsRemoved <= 0 {
			continue
		}
		h.Requests++
		turns += r.HistoryTurnsRemoved
		if r.HistoryTurnsRemoved > h.MaxTurns {
			h.MaxTurns = r.HistoryTurnsRemoved
		}
	}
	h.Percent = share(h.Requests, len(compressed))
	h.AvgTurns = mean(float64(turns), h.Requests)
	s.History = h
}

func usageStats(requests []correlate.Request) UsageStats {
	var u UsageStats
	sum := 0.0
	for _, r := range requests {
		if !r.HasUsage() {
			continue
		}
		pct := *r.ContextUsagePercentage
		u.Requests++
		sum += pct
		if pct > UsageHigh {
			u.OverHigh++
		}
		if pct > UsageCritical {
			u.OverCritical++
		}
		if pct >= UsageOverflow {
			u.Overflow++
		}
	}
	u.AvgPercent = mean(sum, u.Requests)
	u.OverHighPct = share(u.OverHigh, u.Requests)
	u.OverCriticalPct = share(u.OverCritical, u.Requests)
	u.OverflowPct = share(u.Overflow, u.Requests)
	return u
}

func adaptiveStats(events []event.AdaptiveReduction) AdaptiveStats {
	a := AdaptiveStats{Count: len(events)}
	var initial, final, iters, turns int
	for _, e := range events {
		initial += e.InitialBytes
		final += e.FinalBytes
		iters += e.Iterations
		turns += e.AdditionalHistoryTurnsRemoved
	}
	a.AvgInitialBytes = floorDiv(initial, a.Count)
	a.AvgFinalBytes = floorDiv(final, a.Count)
	a.AvgIterations = mean(float64(iters), a.Count)
	a.AvgTurnsRemoved = mean(float64(turns), a.Count)
	return a
}

// topLocalRejections returns the n largest rejections by effective bytes.
// Ties keep line order.
func topLocalRejections(events []event.LocalRejection, n int) []event.LocalRejection {
	sorted := make([]event.LocalRejection, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveBytes > sorted[j].EffectiveBytes
	})
	return head(sorted, n)
}

func topSavers(compressed []correlate.Request, n int) []correlate.Request {
	sorted := make([]correlate.Request, len(compressed))
	copy(sorted, compressed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BytesSavedTotal > sorted[j].BytesSavedTotal
	})
	return head(sorted, n)
}

func zeroSavings(compressed []correlate.Request, n int) []correlate.Request {
	var out []correlate.Request
	for _, r := range compressed {
		if len(out) == n {
			break
		}
		if r.BytesSavedTotal == 0 {
			out = append(out, r)
		}
	}
	return out
}

func hourly(compressed []correlate.Request) []HourBucket {
	type acc struct {
		requests, saved, usageN int
		usage                   float64
	}
	buckets := make(map[string]*acc)
	for _, r := range compressed {
		if r.Timestamp == "" {
			continue
		}
		key := parser.HourBucket(r.Timestamp)
		b, ok := buckets[key]
		if !ok {
			b = &acc{}
			buckets[key] = b
		}
		b.requests++
		b.saved += r.BytesSavedTotal
		if r.HasUsage() {
			b.usageN++
			b.usage += *r.ContextUsagePercentage
		}
	}

	out := make([]HourBucket, 0, len(buckets))
	for key, b := range buckets {
		out = append(out, HourBucket{
			Hour:          key,
			Requests:      b.requests,
			AvgBytesSaved: floorDiv(b.saved, b.requests),
			UsageRequests: b.usageN,
			AvgUsage:      mean(b.usage, b.usageN),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

func head[T any](s []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
