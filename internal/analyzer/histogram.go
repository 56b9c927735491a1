package analyzer

import "github.com/bimmerbailey/ctxlens/internal/event"

// KindCount tracks how many events of one kind were classified.
type KindCount struct {
	Kind    event.Kind `json:"kind"`
	Count   int        `json:"count"`
	Percent float64    `json:"percent"`
}

// Stats holds the line and event histogram for one log.
type Stats struct {
	TotalLines   int         `json:"total_lines"`
	Events       int         `json:"events"`
	Unclassified int         `json:"unclassified"`
	Kinds        []KindCount `json:"kinds"`
	FirstEntry   string      `json:"first_entry,omitempty"`
	LastEntry    string      `json:"last_entry,omitempty"`
}

// ComputeStats counts events per kind in event.Kinds order and records the
// earliest and latest timestamps seen. Timestamps share one fixed-width
// layout, so they compare as strings.
func (a *Analyzer) ComputeStats(totalLines int, events []event.Event) Stats {
	stats := Stats{
		TotalLines: totalLines,
		Events:     len(events),
	}

	counts := make(map[event.Kind]int, len(event.Kinds))
	for _, e := range events {
		counts[e.Kind()]++

		ts := event.Stamp(e)
		if ts == "" {
			continue
		}
		if stats.FirstEntry == "" || ts < stats.FirstEntry {
			stats.FirstEntry = ts
		}
		if ts > stats.LastEntry {
			stats.LastEntry = ts
		}
	}

	stats.Unclassified = totalLines - len(events)
	if stats.Unclassified < 0 {
		stats.Unclassified = 0
	}

	stats.Kinds = make([]KindCount, 0, len(event.Kinds))
	for _, k := range event.Kinds {
		stats.Kinds = append(stats.Kinds, KindCount{
			Kind:    k,
			Count:   counts[k],
			Percent: share(counts[k], totalLines),
		})
	}

	return stats
}
