// Package event defines the closed set of gateway log events that ctxlens
// recognizes, along with the reduction technique enumeration.
package event

import (
	"encoding/json"
	"strings"
)

// Kind identifies one of the six recognized event categories.
type Kind int

const (
	KindRequest Kind = iota
	KindReduction
	KindUsage
	KindUpstreamRejection
	KindAdaptiveReduction
	KindLocalRejection
)

// Kinds lists every event kind in classification priority order.
var Kinds = []Kind{
	KindRequest,
	KindReduction,
	KindUsage,
	KindUpstreamRejection,
	KindAdaptiveReduction,
	KindLocalRejection,
}

// String returns the short name of a Kind.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindReduction:
		return "reduction"
	case KindUsage:
		return "usage"
	case KindUpstreamRejection:
		return "upstream_rejection"
	case KindAdaptiveReduction:
		return "adaptive_reduction"
	case KindLocalRejection:
		return "local_rejection"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Kind.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseKind converts a name to a Kind. The second return value is false for
// unrecognized names.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "request", "requests":
		return KindRequest, true
	case "reduction", "compression":
		return KindReduction, true
	case "usage", "context":
		return KindUsage, true
	case "upstream_rejection", "rejection", "rejections":
		return KindUpstreamRejection, true
	case "adaptive_reduction", "adaptive", "shrink":
		return KindAdaptiveReduction, true
	case "local_rejection", "local", "local_reject":
		return KindLocalRejection, true
	default:
		return 0, false
	}
}

// Event is implemented by exactly the six record types in this package.
type Event interface {
	Kind() Kind
	Line() int
	isEvent()
}

// Request is emitted when the gateway receives a /v1/messages call.
type Request struct {
	LineNo               int    `json:"line_no"`
	Timestamp            string `json:"timestamp,omitempty"`
	Model                string `json:"model"`
	MaxTokens            int    `json:"max_tokens"`
	Stream               bool   `json:"stream"`
	MessageCount         int    `json:"message_count"`
	EstimatedInputTokens int    `json:"estimated_input_tokens"`
}

// Reduction summarizes the input reduction applied to one request body.
type Reduction struct {
	LineNo               int     `json:"line_no"`
	Timestamp            string  `json:"timestamp,omitempty"`
	EstimatedInputTokens int     `json:"estimated_input_tokens"`
	BytesSavedTotal      int     `json:"bytes_saved_total"`
	Saved                Savings `json:"saved"`
	HistoryTurnsRemoved  int     `json:"history_turns_removed"`
}

// Usage is a context-window utilization report from upstream.
type Usage struct {
	LineNo            int     `json:"line_no"`
	Timestamp         string  `json:"timestamp,omitempty"`
	Percentage        float64 `json:"context_usage_percentage"`
	ActualInputTokens int     `json:"actual_input_tokens"`
}

// UpstreamRejection records upstream refusing a request as too long.
type UpstreamRejection struct {
	LineNo           int    `json:"line_no"`
	Timestamp        string `json:"timestamp,omitempty"`
	RequestBodyBytes int    `json:"request_body_bytes"`
}

// AdaptiveReduction records a forced second reduction pass.
type AdaptiveReduction struct {
	LineNo                        int    `json:"line_no"`
	Timestamp                     string `json:"timestamp,omitempty"`
	ConversationID                string `json:"conversation_id,omitempty"`
	InitialBytes                  int    `json:"initial_bytes"`
	FinalBytes                    int    `json:"final_bytes"`
	Threshold                     int    `json:"threshold"`
	Iterations                    int    `json:"iters"`
	AdditionalHistoryTurnsRemoved int    `json:"additional_history_turns_removed"`
}

// LocalRejection records the gateway refusing to send an oversized body.
type LocalRejection struct {
	LineNo           int    `json:"line_no"`
	Timestamp        string `json:"timestamp,omitempty"`
	ConversationID   string `json:"conversation_id,omitempty"`
	RequestBodyBytes int    `json:"request_body_bytes"`
	ImageBytes       int    `json:"image_bytes"`
	EffectiveBytes   int    `json:"effective_bytes"`
	Threshold        int    `json:"threshold"`
}

func (Request) Kind() Kind           { return KindRequest }
func (Reduction) Kind() Kind         { return KindReduction }
func (Usage) Kind() Kind             { return KindUsage }
func (UpstreamRejection) Kind() Kind { return KindUpstreamRejection }
func (AdaptiveReduction) Kind() Kind { return KindAdaptiveReduction }
func (LocalRejection) Kind() Kind    { return KindLocalRejection }

func (e Request) Line() int           { return e.LineNo }
func (e Reduction) Line() int         { return e.LineNo }
func (e Usage) Line() int             { return e.LineNo }
func (e UpstreamRejection) Line() int { return e.LineNo }
func (e AdaptiveReduction) Line() int { return e.LineNo }
func (e LocalRejection) Line() int    { return e.LineNo }

func (Request) isEvent()           {}
func (Reduction) isEvent()         {}
func (Usage) isEvent()             {}
func (UpstreamRejection) isEvent() {}
func (AdaptiveReduction) isEvent() {}
func (LocalRejection) isEvent()    {}

// Stamp returns the timestamp carried by e, or "" when none was extracted.
func Stamp(e Event) string {
	switch v := e.(type) {
	case Request:
		return v.Timestamp
	case Reduction:
		return v.Timestamp
	case Usage:
		return v.Timestamp
	case UpstreamRejection:
		return v.Timestamp
	case AdaptiveReduction:
		return v.Timestamp
	case LocalRejection:
		return v.Timestamp
	}
	return ""
}
