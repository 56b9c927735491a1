package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bimmerbailey/ctxlens/internal/event"
)

// Marker phrases written by the gateway. They are tested in Kinds order and
// the first match wins.
const (
	MarkerRequest           = "Received POST /v1/messages request"
	MarkerReduction         = "输入压缩完成"
	MarkerUsage             = "收到 contextUsageEvent"
	MarkerUpstreamRejection = "上游拒绝请求：输入上下文过长"
	MarkerAdaptiveReduction = "请求体超过阈值，已执行自适应二次压缩"
	MarkerLocalRejection    = "请求体超过安全阈值，拒绝发送"
)

var markers = []struct {
	kind   event.Kind
	phrase string
}{
	{event.KindRequest, MarkerRequest},
	{event.KindReduction, MarkerReduction},
	{event.KindUsage, MarkerUsage},
	{event.KindUpstreamRejection, MarkerUpstreamRejection},
	{event.KindAdaptiveReduction, MarkerAdaptiveReduction},
	{event.KindLocalRejection, MarkerLocalRejection},
}

// usagePattern captures the percentage and token count of a usage line:
// "收到 contextUsageEvent: 67.2%, 计算 input_tokens: 12345".
var usagePattern = regexp.MustCompile(`收到 contextUsageEvent:\s*([\d.]+)%.*?input_tokens:\s*(\d+)`)

// Filter restricts which request and reduction events are emitted.
type Filter struct {
	// MinTokens drops request and reduction events whose
	// estimated_input_tokens is below it.
	MinTokens int

	// Model is a case-insensitive regular expression searched within the
	// request model name. Empty disables the filter. Reduction events carry
	// no model and are not subject to it.
	Model string
}

// Classifier recognizes marker lines and builds typed events from them.
type Classifier struct {
	minTokens int
	model     *regexp.Regexp
}

// NewClassifier compiles the filter into a Classifier.
func NewClassifier(f Filter) (*Classifier, error) {
	c := &Classifier{minTokens: f.MinTokens}
	if f.Model != "" {
		re, err := regexp.Compile("(?i)" + f.Model)
		if err != nil {
			return nil, fmt.Errorf("invalid model pattern %q: %w", f.Model, err)
		}
		c.model = re
	}
	return c, nil
}

// Detect returns the kind whose marker appears in an already sanitized line.
func Detect(line string) (event.Kind, bool) {
	for _, m := range markers {
		if strings.Contains(line, m.phrase) {
			return m.kind, true
		}
	}
	return 0, false
}

// Classify sanitizes the line and converts it to an event. It returns false
// when the line carries no marker, when a filter rejects it, or when a usage
// line lacks its percentage payload. Malformed numeric fields become zero.
func (c *Classifier) Classify(raw RawLine) (event.Event, bool) {
	line := StripANSI(raw.Text)

	kind, ok := Detect(line)
	if !ok {
		return nil, false
	}

	switch kind {
	case event.KindRequest:
		return c.request(raw.Number, line)
	case event.KindReduction:
		return c.reduction(raw.Number, line)
	case event.KindUsage:
		return usage(raw.Number, line)
	case event.KindUpstreamRejection:
		kv := ExtractFields(line)
		return event.UpstreamRejection{
			LineNo:           raw.Number,
			Timestamp:        ExtractTimestamp(line),
			RequestBodyBytes: kv.Int("kiro_request_body_bytes", 0),
		}, true
	case event.KindAdaptiveReduction:
		kv := ExtractFields(line)
		return event.AdaptiveReduction{
			LineNo:                        raw.Number,
			Timestamp:                     ExtractTimestamp(line),
			ConversationID:                kv.String("conversation_id", ""),
			InitialBytes:                  kv.Int("initial_bytes", 0),
			FinalBytes:                    kv.Int("final_bytes", 0),
			Threshold:                     kv.Int("threshold", 0),
			Iterations:                    kv.Int("iters", 0),
			AdditionalHistoryTurnsRemoved: kv.Int("additional_history_turns_removed", 0),
		}, true
	case event.KindLocalRejection:
		kv := ExtractFields(line)
		return event.LocalRejection{
			LineNo:           raw.Number,
			Timestamp:        ExtractTimestamp(line),
			ConversationID:   kv.String("conversation_id", ""),
			RequestBodyBytes: kv.Int("request_body_bytes", 0),
			ImageBytes:       kv.Int("image_bytes", 0),
			EffectiveBytes:   kv.Int("effective_bytes", 0),
			Threshold:        kv.Int("threshold", 0),
		}, true
	}

	return nil, false
}

func (c *Classifier) request(lineNo int, line string) (event.Event, bool) {
	kv := ExtractFields(line)

	model := kv.String("model", "")
	if c.model != nil && !c.model.MatchString(model) {
		return nil, false
	}

	est := kv.Int("estimated_input_tokens", 0)
	if est < c.minTokens {
		return nil, false
	}

	return event.Request{
		LineNo:               lineNo,
		Timestamp:            ExtractTimestamp(line),
		Model:                model,
		MaxTokens:            kv.Int("max_tokens", 0),
		Stream:               kv.Bool("stream", true),
		MessageCount:         kv.Int("message_count", 0),
		EstimatedInputTokens: est,
	}, true
}

func (c *Classifier) reduction(lineNo int, line string) (event.Event, bool) {
	kv := ExtractFields(line)

	est := kv.Int("estimated_input_tokens", 0)
	if est < c.minTokens {
		return nil, false
	}

	r := event.Reduction{
		LineNo:               lineNo,
		Timestamp:            ExtractTimestamp(line),
		EstimatedInputTokens: est,
		BytesSavedTotal:      kv.Int("bytes_saved_total", 0),
		HistoryTurnsRemoved:  kv.Int("history_turns_removed", 0),
	}
	for _, t := range event.Techniques {
		r.Saved[t] = kv.Int(t.Field(), 0)
	}
	return r, true
}

func usage(lineNo int, line string) (event.Event, bool) {
	m := usagePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		// "1.2.3%" satisfies the pattern but is not a number.
		pct = 0
	}
	tokens, err := strconv.Atoi(m[2])
	if err != nil {
		tokens = 0
	}

	return event.Usage{
		LineNo:            lineNo,
		Timestamp:         ExtractTimestamp(line),
		Percentage:        pct,
		ActualInputTokens: tokens,
	}, true
}
