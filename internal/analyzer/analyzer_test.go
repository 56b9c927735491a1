package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimmerbailey/ctxlens/internal/correlate"
	"github.com/bimmerbailey/ctxlens/internal/event"
)

func compressed(line, saved int, ratio float64, ts string) correlate.Request {
	return correlate.Request{
		LineNo:               line,
		Timestamp:            ts,
		Model:                "claude-sonnet-4",
		EstimatedInputTokens: 1000,
		BytesSavedTotal:      saved,
		HasCompression:       true,
		ReductionRatio:       ratio,
	}
}

func withUsage(r correlate.Request, pct float64) correlate.Request {
	tokens := 1
	r.ContextUsagePercentage = &pct
	r.ActualInputTokens = &tokens
	return r
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{7}, 90, 7},
		{"p0 is min", []float64{3, 1, 2}, 0, 1},
		{"p100 is max", []float64{3, 1, 2}, 100, 3},
		{"interpolates", []float64{10, 20, 30, 40}, 90, 37},
		{"p95 of five", []float64{1, 2, 3, 4, 5}, 95, 4.8},
		{"clamped above", []float64{1, 2}, 150, 2},
		{"clamped below", []float64{1, 2}, -10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestMedianMatchesPercentile50(t *testing.T) {
	inputs := map[string][]float64{
		"empty":  nil,
		"single": {42},
		"odd":    {5, 1, 3},
		"even":   {4, 1, 3, 2},
		"dupes":  {2, 2, 2, 9},
	}

	for name, values := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, Percentile(values, 50), Median(values), 1e-9)
		})
	}

	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestPercentile_DoesNotMutate(t *testing.T) {
	values := []float64{3, 1, 2}
	_ = Percentile(values, 50)
	_ = Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 0, floorDiv(5, 0))
	assert.Equal(t, 2, floorDiv(5, 2))
	assert.Equal(t, -3, floorDiv(-5, 2))
	assert.Equal(t, 3, floorDiv(6, 2))
}

func TestSummarize_Empty(t *testing.T) {
	s := New().Summarize(Input{TotalLines: 10}, 5)

	assert.Equal(t, 10, s.TotalLines)
	assert.Zero(t, s.MatchedRequests)
	assert.False(t, s.HasCompression())
	assert.Zero(t, s.AvgBytesSaved)
	assert.Zero(t, s.MedianRatio)
	assert.Zero(t, s.Usage.AvgPercent)
	assert.Zero(t, s.Adaptive.AvgInitialBytes)
	assert.Empty(t, s.TopSavers)
	assert.Empty(t, s.Hourly)
	require.Len(t, s.Layers, len(event.Techniques))
	for _, l := range s.Layers {
		assert.Zero(t, l.Percent)
	}
}

func TestSummarize_Savings(t *testing.T) {
	a := compressed(1, 2000, 50, "2025-01-15T10:00:00")
	a.Saved = event.Savings{100, 200, 300, 400, 1000}
	a.HistoryTurnsRemoved = 4
	b := compressed(60, 1001, 25, "2025-01-15T10:30:00")
	b.Saved = event.Savings{1, 0, 0, 0, 1000}
	b.HistoryTurnsRemoved = 2
	c := compressed(120, 0, 0, "2025-01-15T11:00:00")
	plain := correlate.Request{LineNo: 200, EstimatedInputTokens: 5}

	s := New().Summarize(Input{
		TotalLines: 300,
		Requests:   []correlate.Request{a, b, c, plain},
	}, 5)

	assert.Equal(t, 4, s.MatchedRequests)
	assert.Equal(t, 3, s.WithCompression)
	assert.Equal(t, 3001, s.TotalBytesSaved)
	assert.Equal(t, 1000, s.AvgBytesSaved, "integer mean floors")
	assert.InDelta(t, 37.5, s.MedianRatio, 1e-9, "zero ratios are excluded")

	history := s.Layers[event.History]
	assert.Equal(t, "history", history.Name)
	assert.Equal(t, 2000, history.BytesSaved)
	assert.Equal(t, 666, history.AvgPerReq)
	assert.InDelta(t, 2000.0/3001*100, history.Percent, 1e-9)

	assert.Equal(t, 2, s.History.Requests)
	assert.Equal(t, 3, s.History.Of)
	assert.InDelta(t, 3.0, s.History.AvgTurns, 1e-9)
	assert.Equal(t, 4, s.History.MaxTurns)

	overview := s.Overview()
	assert.Equal(t, 101, overview.Layers.Whitespace)
	assert.Equal(t, 2000, overview.Layers.History)
	assert.Equal(t, 3001, overview.TotalBytesSaved)
}

func TestSummarize_Usage(t *testing.T) {
	requests := []correlate.Request{
		withUsage(correlate.Request{LineNo: 1}, 50),
		withUsage(correlate.Request{LineNo: 2}, 80),
		withUsage(correlate.Request{LineNo: 3}, 96),
		withUsage(correlate.Request{LineNo: 4}, 100),
		{LineNo: 5},
	}

	u := New().Summarize(Input{Requests: requests}, 5).Usage

	assert.Equal(t, 4, u.Requests)
	assert.InDelta(t, 81.5, u.AvgPercent, 1e-9)
	assert.Equal(t, 2, u.OverHigh, "80 exactly is not above 80")
	assert.Equal(t, 2, u.OverCritical)
	assert.Equal(t, 1, u.Overflow)
	assert.InDelta(t, 25.0, u.OverflowPct, 1e-9)
}

func TestSummarize_IndependentEvents(t *testing.T) {
	in := Input{
		Rejections: []event.UpstreamRejection{{LineNo: 1}, {LineNo: 2}},
		Adaptive: []event.AdaptiveReduction{
			{LineNo: 3, InitialBytes: 6000001, FinalBytes: 4000000, Iterations: 3, AdditionalHistoryTurnsRemoved: 8},
			{LineNo: 4, InitialBytes: 6000000, FinalBytes: 4000001, Iterations: 2, AdditionalHistoryTurnsRemoved: 1},
		},
		LocalRejections: []event.LocalRejection{
			{LineNo: 10, EffectiveBytes: 5},
			{LineNo: 11, EffectiveBytes: 9},
			{LineNo: 12, EffectiveBytes: 5},
			{LineNo: 13, EffectiveBytes: 7},
			{LineNo: 14, EffectiveBytes: 1},
			{LineNo: 15, EffectiveBytes: 9},
		},
	}

	s := New().Summarize(in, 5)

	assert.Equal(t, 2, s.Rejections)
	assert.Equal(t, 2, s.Adaptive.Count)
	assert.Equal(t, 6000000, s.Adaptive.AvgInitialBytes)
	assert.Equal(t, 4000000, s.Adaptive.AvgFinalBytes)
	assert.InDelta(t, 2.5, s.Adaptive.AvgIterations, 1e-9)
	assert.InDelta(t, 4.5, s.Adaptive.AvgTurnsRemoved, 1e-9)

	assert.Equal(t, 6, s.LocalRejections)
	require.Len(t, s.TopLocal, LocalRejectionSample)
	var lines []int
	for _, r := range s.TopLocal {
		lines = append(lines, r.LineNo)
	}
	assert.Equal(t, []int{11, 15, 13, 10, 12}, lines, "descending by effective bytes, ties in line order")
	assert.Equal(t, 10, in.LocalRejections[0].LineNo, "input order unchanged")
}

func TestSummarize_TopSaversAndZeroSample(t *testing.T) {
	requests := []correlate.Request{
		compressed(1, 10, 1, ""),
		compressed(2, 0, 0, ""),
		compressed(3, 30, 3, ""),
		compressed(4, 10, 1, ""),
		compressed(5, 0, 0, ""),
	}
	for i := 6; i < 12; i++ {
		requests = append(requests, compressed(i, 0, 0, ""))
	}

	s := New().Summarize(Input{Requests: requests}, 3)

	require.Len(t, s.TopSavers, 3)
	assert.Equal(t, 3, s.TopSavers[0].LineNo)
	assert.Equal(t, 1, s.TopSavers[1].LineNo)
	assert.Equal(t, 4, s.TopSavers[2].LineNo)

	require.Len(t, s.ZeroSavings, ZeroSavingSample)
	assert.Equal(t, 2, s.ZeroSavings[0].LineNo)
	assert.Equal(t, 5, s.ZeroSavings[1].LineNo)

	assert.Empty(t, New().Summarize(Input{Requests: requests}, 0).TopSavers)
}

func TestSummarize_Hourly(t *testing.T) {
	requests := []correlate.Request{
		withUsage(compressed(1, 100, 1, "2025-01-15T11:05:00"), 40),
		compressed(2, 201, 1, "2025-01-15T10:59:59"),
		withUsage(compressed(3, 0, 0, "2025-01-15T10:01:00"), 60),
		compressed(4, 999, 1, ""),
		withUsage(correlate.Request{LineNo: 5, Timestamp: "2025-01-15T09:00:00"}, 90),
	}

	hours := New().Summarize(Input{Requests: requests}, 5).Hourly

	require.Len(t, hours, 2, "untimestamped and uncompressed requests are excluded")
	assert.Equal(t, "2025-01-15T10", hours[0].Hour)
	assert.Equal(t, 2, hours[0].Requests)
	assert.Equal(t, 100, hours[0].AvgBytesSaved)
	assert.Equal(t, 1, hours[0].UsageRequests)
	assert.InDelta(t, 60.0, hours[0].AvgUsage, 1e-9)
	assert.Equal(t, "2025-01-15T11", hours[1].Hour)
}

func TestComputeStats(t *testing.T) {
	events := []event.Event{
		event.Request{LineNo: 1, Timestamp: "2025-01-15T10:00:00"},
		event.Reduction{LineNo: 2, Timestamp: "2025-01-15T09:00:00"},
		event.Usage{LineNo: 3},
		event.Request{LineNo: 4, Timestamp: "2025-01-15T12:00:00"},
	}

	stats := New().ComputeStats(10, events)

	assert.Equal(t, 10, stats.TotalLines)
	assert.Equal(t, 4, stats.Events)
	assert.Equal(t, 6, stats.Unclassified)
	assert.Equal(t, "2025-01-15T09:00:00", stats.FirstEntry)
	assert.Equal(t, "2025-01-15T12:00:00", stats.LastEntry)
	require.Len(t, stats.Kinds, len(event.Kinds))
	assert.Equal(t, event.KindRequest, stats.Kinds[0].Kind)
	assert.Equal(t, 2, stats.Kinds[0].Count)
	assert.InDelta(t, 20.0, stats.Kinds[0].Percent, 1e-9)
	assert.Zero(t, stats.Kinds[len(stats.Kinds)-1].Count)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := New().ComputeStats(0, nil)
	assert.Zero(t, stats.Unclassified)
	assert.Empty(t, stats.FirstEntry)
	assert.Empty(t, stats.LastEntry)
}
