package analyzer

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks: with values sorted ascending,
// k = (n-1)·p/100, f = floor(k), c = min(f+1, n-1), the result is
// v[f] + (v[c]-v[f])·(k-f). p is clamped to [0, 100]. An empty input yields
// 0. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))

	s := sortedCopy(values)
	n := len(s)

	k := float64(n-1) * p / 100
	f := int(math.Floor(k))
	c := f + 1
	if c > n-1 {
		c = n - 1
	}
	return s[f] + (s[c]-s[f])*(k-float64(f))
}

// Median returns the middle value of values, averaging the two middle values
// for even-length input. An empty input yields 0.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	s := sortedCopy(values)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func sortedCopy(values []float64) []float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s
}

// mean returns sum/n, or 0 when n is zero.
func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// floorDiv is integer division rounding toward negative infinity, or 0 when
// b is zero.
func floorDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// share returns part/whole as a percentage, or 0 when whole is zero.
func share(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
