package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// timestampScanWidth bounds how far into a line a leading timestamp is searched.
const timestampScanWidth = 40

// timestampPattern matches an ISO 8601 date-time truncated to seconds. Any
// fractional part or zone suffix that follows is ignored.
var timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)

// fieldPattern matches tracing-style key=value pairs. A value is a number, a
// double-quoted string, or a bare run of characters up to whitespace or comma.
var fieldPattern = regexp.MustCompile(`(\w+)=(\d+(?:\.\d+)?|"[^"]*"|[^\s,]+)`)

// ExtractTimestamp returns the first timestamp found within the first 40
// characters of line, or "" when there is none.
func ExtractTimestamp(line string) string {
	head := line
	n := 0
	for i := range line {
		if n == timestampScanWidth {
			head = line[:i]
			break
		}
		n++
	}
	return timestampPattern.FindString(head)
}

// HourBucket truncates a second-precision timestamp to its hour:
// "2025-01-15T10:23:45" becomes "2025-01-15T10".
func HourBucket(ts string) string {
	if len(ts) < 13 {
		return ts
	}
	return ts[:13]
}

// Fields maps keys to raw values extracted from one log line.
type Fields map[string]string

// ExtractFields scans the whole line for key=value pairs. Surrounding double
// quotes are stripped without escape processing. When a key repeats, the
// last occurrence wins.
func ExtractFields(line string) Fields {
	matches := fieldPattern.FindAllStringSubmatch(line, -1)
	fields := make(Fields, len(matches))
	for _, m := range matches {
		fields[m[1]] = strings.Trim(m[2], `"`)
	}
	return fields
}

// Lookup returns the raw value for key and whether it was present.
func (f Fields) Lookup(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

// String returns the raw value for key, or def when absent.
func (f Fields) String(key, def string) string {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

// Int returns key parsed as a base-10 integer, or def when the key is absent
// or its value is not an integer.
func (f Fields) Int(key string, def int) int {
	v, ok := f[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Float returns key parsed as a float, or def when absent or malformed.
func (f Fields) Float(key string, def float64) float64 {
	v, ok := f[key]
	if !ok {
		return def
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return x
}

// Bool reports whether key equals "true". Absent keys return def; any other
// value is false.
func (f Fields) Bool(key string, def bool) bool {
	v, ok := f[key]
	if !ok {
		return def
	}
	return v == "true"
}
