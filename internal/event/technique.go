package event

import "encoding/json"

// Technique is one of the gateway's fixed reduction passes.
type Technique int

const (
	Whitespace Technique = iota
	Thinking
	ToolResult
	ToolUseInput
	History

	numTechniques
)

// Techniques lists the reduction passes in report order.
var Techniques = [numTechniques]Technique{Whitespace, Thinking, ToolResult, ToolUseInput, History}

// Key returns the short identifier used in structured output.
func (t Technique) Key() string {
	switch t {
	case Whitespace:
		return "whitespace"
	case Thinking:
		return "thinking"
	case ToolResult:
		return "tool_result"
	case ToolUseInput:
		return "tool_use_input"
	case History:
		return "history"
	default:
		return "unknown"
	}
}

// Field returns the log key carrying the bytes saved by this technique.
func (t Technique) Field() string {
	return t.Key() + "_bytes_saved"
}

// Label returns a human-readable name for text reports.
func (t Technique) Label() string {
	switch t {
	case Whitespace:
		return "whitespace"
	case Thinking:
		return "thinking trim"
	case ToolResult:
		return "tool_result"
	case ToolUseInput:
		return "tool_use_input"
	case History:
		return "history trim"
	default:
		return "unknown"
	}
}

// Savings holds bytes saved per technique, indexed by Technique.
type Savings [numTechniques]int

// Add returns the element-wise sum of s and o.
func (s Savings) Add(o Savings) Savings {
	for i := range s {
		s[i] += o[i]
	}
	return s
}

// MarshalJSON renders Savings as an object keyed by technique.
func (s Savings) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(s))
	for _, t := range Techniques {
		m[t.Key()] = s[t]
	}
	return json.Marshal(m)
}
