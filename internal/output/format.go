package output

import (
	"fmt"
	"strconv"
	"strings"
)

// formatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func formatNumber(n int) string {
	s := strconv.FormatInt(int64(n), 10)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// formatBytes formats a byte count with separators and, from one thousand
// up, a decimal KB or MB hint.
// e.g., 2500000 -> "2,500,000 (2.5 MB)"
func formatBytes(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%s (%.1f MB)", formatNumber(n), float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%s (%.1f KB)", formatNumber(n), float64(n)/1_000)
	default:
		return formatNumber(n)
	}
}
