// Package correlate joins request, reduction, and usage events that belong to
// the same gateway request.
//
// The gateway logs carry no request identifier. A reduction event is tied to
// the request whose estimated_input_tokens it repeats within a short line
// window; a usage event is tied to the first request within a wider window.
// Association is greedy and first-fit: requests are processed in line order
// and each takes the earliest unconsumed qualifying candidate, so every
// source event is used at most once.
package correlate

import (
	"sort"

	"github.com/bimmerbailey/ctxlens/internal/event"
)

// Default policy values.
const (
	DefaultReductionWindow = 50
	DefaultUsageWindow     = 500

	// DefaultBytesPerToken approximates bytes per estimated token when
	// computing the reduction ratio. It is a heuristic, not a measurement.
	DefaultBytesPerToken = 4
)

// Policy holds the tunable correlation constants.
type Policy struct {
	// ReductionWindow is the largest line distance after a request at which
	// a reduction event may still match it.
	ReductionWindow int `mapstructure:"reduction_window" json:"reduction_window"`

	// UsageWindow is the same bound for usage events.
	UsageWindow int `mapstructure:"usage_window" json:"usage_window"`

	// BytesPerToken converts estimated_input_tokens to bytes for the ratio.
	BytesPerToken int `mapstructure:"bytes_per_token" json:"bytes_per_token"`
}

// DefaultPolicy returns the policy used by the gateway tooling.
func DefaultPolicy() Policy {
	return Policy{
		ReductionWindow: DefaultReductionWindow,
		UsageWindow:     DefaultUsageWindow,
		BytesPerToken:   DefaultBytesPerToken,
	}
}

// withDefaults replaces non-positive values with defaults.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.ReductionWindow <= 0 {
		p.ReductionWindow = d.ReductionWindow
	}
	if p.UsageWindow <= 0 {
		p.UsageWindow = d.UsageWindow
	}
	if p.BytesPerToken <= 0 {
		p.BytesPerToken = d.BytesPerToken
	}
	return p
}

// Input holds the three correlated event streams.
type Input struct {
	Requests   []event.Request
	Reductions []event.Reduction
	Usages     []event.Usage
}

// Request is one gateway request enriched with its associated reduction and
// usage events.
type Request struct {
	LineNo               int    `json:"line_no"`
	Timestamp            string `json:"timestamp,omitempty"`
	Model                string `json:"model"`
	MaxTokens            int    `json:"max_tokens"`
	Stream               bool   `json:"stream"`
	MessageCount         int    `json:"message_count"`
	EstimatedInputTokens int    `json:"estimated_input_tokens"`

	BytesSavedTotal     int           `json:"bytes_saved_total"`
	Saved               event.Savings `json:"saved"`
	HistoryTurnsRemoved int           `json:"history_turns_removed"`
	HasCompression      bool          `json:"has_compression"`
	ReductionLine       int           `json:"reduction_line,omitempty"`

	ContextUsagePercentage *float64 `json:"context_usage_percentage"`
	ActualInputTokens      *int     `json:"actual_input_tokens"`
	UsageLine              int      `json:"usage_line,omitempty"`

	ReductionRatio float64 `json:"reduction_ratio"`
}

// HasUsage reports whether a usage event was associated with r.
func (r Request) HasUsage() bool {
	return r.ContextUsagePercentage != nil
}

// Ratio returns bytesSaved / (estimatedTokens × bytesPerToken) × 100, or 0
// when either operand is not positive.
func Ratio(bytesSaved, estimatedTokens, bytesPerToken int) float64 {
	if estimatedTokens <= 0 || bytesSaved <= 0 || bytesPerToken <= 0 {
		return 0
	}
	estimatedBytes := float64(estimatedTokens) * float64(bytesPerToken)
	return float64(bytesSaved) / estimatedBytes * 100
}

// Result is the outcome of one correlation pass.
type Result struct {
	Requests []Request

	// UnusedReductions and UnusedUsages count source events no request
	// claimed.
	UnusedReductions int
	UnusedUsages     int
}

// Correlate returns one Request per input request, in line order. Requests
// never disappear for lack of a match; unmatched fields stay zero or nil.
func Correlate(in Input, p Policy) []Request {
	return Match(in, p).Requests
}

// Match runs a correlation pass and also reports leftover source events.
func Match(in Input, p Policy) Result {
	p = p.withDefaults()

	requests := sortedByLine(in.Requests, func(r event.Request) int { return r.LineNo })
	reductions := newPool(sortedByLine(in.Reductions, func(r event.Reduction) int { return r.LineNo }),
		func(r event.Reduction) int { return r.LineNo })
	usages := newPool(sortedByLine(in.Usages, func(u event.Usage) int { return u.LineNo }),
		func(u event.Usage) int { return u.LineNo })

	out := make([]Request, 0, len(requests))
	for _, req := range requests {
		r := Request{
			LineNo:               req.LineNo,
			Timestamp:            req.Timestamp,
			Model:                req.Model,
			MaxTokens:            req.MaxTokens,
			Stream:               req.Stream,
			MessageCount:         req.MessageCount,
			EstimatedInputTokens: req.EstimatedInputTokens,
		}

		if red, ok := reductions.take(req.LineNo, p.ReductionWindow, func(c event.Reduction) bool {
			return c.EstimatedInputTokens == req.EstimatedInputTokens
		}); ok {
			r.BytesSavedTotal = red.BytesSavedTotal
			r.Saved = red.Saved
			r.HistoryTurnsRemoved = red.HistoryTurnsRemoved
			r.HasCompression = true
			r.ReductionLine = red.LineNo
		}

		if u, ok := usages.take(req.LineNo, p.UsageWindow, nil); ok {
			pct := u.Percentage
			tokens := u.ActualInputTokens
			r.ContextUsagePercentage = &pct
			r.ActualInputTokens = &tokens
			r.UsageLine = u.LineNo
		}

		r.ReductionRatio = Ratio(r.BytesSavedTotal, r.EstimatedInputTokens, p.BytesPerToken)
		out = append(out, r)
	}

	return Result{
		Requests:         out,
		UnusedReductions: reductions.remaining(),
		UnusedUsages:     usages.remaining(),
	}
}

// sortedByLine returns events ordered by line number. Input already in order
// is returned as is.
func sortedByLine[T any](events []T, line func(T) int) []T {
	if sort.SliceIsSorted(events, func(i, j int) bool { return line(events[i]) < line(events[j]) }) {
		return events
	}
	sorted := make([]T, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return line(sorted[i]) < line(sorted[j]) })
	return sorted
}
