// Package pipeline runs the full analysis of one log: read, classify in
// parallel, correlate, and aggregate.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bimmerbailey/ctxlens/internal/analyzer"
	"github.com/bimmerbailey/ctxlens/internal/correlate"
	"github.com/bimmerbailey/ctxlens/internal/event"
	"github.com/bimmerbailey/ctxlens/internal/parser"
)

// minChunk is the smallest slice of lines handed to one worker.
const minChunk = 4096

// ProgressFunc is called as chunks finish. done and total count lines.
type ProgressFunc func(done, total int)

// Options configures a pipeline run.
type Options struct {
	Filter  parser.Filter
	Policy  correlate.Policy
	Workers int
	Stdin   io.Reader
	Logger  *slog.Logger

	Progress ProgressFunc
}

// Result holds the output of one run.
type Result struct {
	Path       string
	TotalLines int

	// Events holds every classified event in line order.
	Events []event.Event

	Requests        []correlate.Request
	Rejections      []event.UpstreamRejection
	Adaptive        []event.AdaptiveReduction
	LocalRejections []event.LocalRejection

	UnusedReductions int
	UnusedUsages     int

	Elapsed time.Duration
}

// AnalyzerInput returns the aggregation input for r.
func (r *Result) AnalyzerInput() analyzer.Input {
	return analyzer.Input{
		TotalLines:      r.TotalLines,
		Requests:        r.Requests,
		Rejections:      r.Rejections,
		Adaptive:        r.Adaptive,
		LocalRejections: r.LocalRejections,
	}
}

// Summarize aggregates r with the given top-N bound.
func (r *Result) Summarize(topN int) analyzer.Summary {
	return analyzer.New().Summarize(r.AnalyzerInput(), topN)
}

// Run reads path ("-" for stdin) and analyzes it. The filter is compiled
// before any input is read, so a bad model pattern fails fast.
func Run(ctx context.Context, path string, opts Options) (*Result, error) {
	classifier, err := parser.NewClassifier(opts.Filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	lines, err := parser.New(opts.Stdin).ParseFile(path)
	if err != nil {
		return nil, err
	}
	logger(opts).Info("read input", "path", path, "lines", len(lines), "elapsed", time.Since(start))

	res, err := analyze(ctx, lines, classifier, opts)
	if err != nil {
		return nil, err
	}
	res.Path = path
	res.Elapsed = time.Since(start)
	return res, nil
}

// RunLines analyzes lines that are already in memory.
func RunLines(ctx context.Context, lines []parser.RawLine, opts Options) (*Result, error) {
	classifier, err := parser.NewClassifier(opts.Filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := analyze(ctx, lines, classifier, opts)
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

func analyze(ctx context.Context, lines []parser.RawLine, c *parser.Classifier, opts Options) (*Result, error) {
	log := logger(opts)

	start := time.Now()
	events, err := Classify(ctx, lines, c, opts.Workers, opts.Progress)
	if err != nil {
		return nil, err
	}
	log.Info("classified lines", "lines", len(lines), "events", len(events), "elapsed", time.Since(start))

	res := &Result{TotalLines: len(lines), Events: events}

	var in correlate.Input
	for _, e := range events {
		switch v := e.(type) {
		case event.Request:
			in.Requests = append(in.Requests, v)
		case event.Reduction:
			in.Reductions = append(in.Reductions, v)
		case event.Usage:
			in.Usages = append(in.Usages, v)
		case event.UpstreamRejection:
			res.Rejections = append(res.Rejections, v)
		case event.AdaptiveReduction:
			res.Adaptive = append(res.Adaptive, v)
		case event.LocalRejection:
			res.LocalRejections = append(res.LocalRejections, v)
		}
	}

	matched := correlate.Match(in, opts.Policy)
	res.Requests = matched.Requests
	res.UnusedReductions = matched.UnusedReductions
	res.UnusedUsages = matched.UnusedUsages

	log.Info("correlated requests",
		"requests", len(res.Requests),
		"unused_reductions", res.UnusedReductions,
		"unused_usages", res.UnusedUsages,
	)
	return res, nil
}

// Classify converts lines to events with a bounded worker pool. Lines are
// split into contiguous chunks; each worker writes into its chunk's slot and
// the slots are joined in order, so the result is in line order regardless
// of scheduling. workers below one means runtime.GOMAXPROCS(0).
func Classify(ctx context.Context, lines []parser.RawLine, c *parser.Classifier, workers int, progressFn ProgressFunc) ([]event.Event, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	numWorkers := workers
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers < 1 {
		numWorkers = 4
	}

	chunkSize := (len(lines) + numWorkers - 1) / numWorkers
	if chunkSize < minChunk {
		chunkSize = minChunk
	}
	numChunks := (len(lines) + chunkSize - 1) / chunkSize
	if numWorkers > numChunks {
		numWorkers = numChunks
	}

	work := make(chan int, numChunks)
	results := make([][]event.Event, numChunks)
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := 0; i < numChunks; i++ {
		work <- i
	}
	close(work)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					return
				}
				lo := idx * chunkSize
				hi := min(lo+chunkSize, len(lines))

				var out []event.Event
				for _, raw := range lines[lo:hi] {
					if e, ok := c.Classify(raw); ok {
						out = append(out, e)
					}
				}
				results[idx] = out

				n := processed.Add(int64(hi - lo))
				if progressFn != nil {
					progressFn(int(n), len(lines))
				}
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classifying lines: %w", err)
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	events := make([]event.Event, 0, total)
	for _, r := range results {
		events = append(events, r...)
	}
	return events, nil
}

func logger(opts Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
