package correlate

// pool is a line-ordered candidate list with per-pass consumption state.
type pool[T any] struct {
	items    []T
	line     func(T) int
	consumed []bool

	// head is the first index that may still match a future request: every
	// earlier entry is consumed or lies at or before the last origin.
	head int
}

func newPool[T any](items []T, line func(T) int) *pool[T] {
	return &pool[T]{
		items:    items,
		line:     line,
		consumed: make([]bool, len(items)),
	}
}

// take consumes and returns the first unconsumed candidate whose line lies in
// (origin, origin+window] and that satisfies match (nil matches anything).
// Successive calls must use non-decreasing origins.
func (p *pool[T]) take(origin, window int, match func(T) bool) (T, bool) {
	for p.head < len(p.items) && (p.consumed[p.head] || p.line(p.items[p.head]) <= origin) {
		p.head++
	}

	for i := p.head; i < len(p.items); i++ {
		delta := p.line(p.items[i]) - origin
		if delta > window {
			break
		}
		if p.consumed[i] || delta <= 0 {
			continue
		}
		if match == nil || match(p.items[i]) {
			p.consumed[i] = true
			return p.items[i], true
		}
	}

	var zero T
	return zero, false
}

// remaining returns how many candidates were never consumed.
func (p *pool[T]) remaining() int {
	n := 0
	for _, c := range p.consumed {
		if !c {
			n++
		}
	}
	return n
}
