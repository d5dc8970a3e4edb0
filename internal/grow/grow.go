// Package grow centralizes capacity growth for the parser's reusable buffers.
//
// The record buffer and the field-table arrays both grow geometrically and
// both are capped by a configured maximum. Keeping the arithmetic in one
// place means the overflow checks are written (and tested) once.
package grow

// Next returns the capacity to allocate so that at least need elements fit,
// growing geometrically from cur (roughly doubling, plus a constant so that
// tiny buffers make progress). ok is false when need exceeds max; the caller
// maps that to its own limit error.
//
// Next never returns a capacity smaller than cur: capacities only grow.
func Next(cur, need, max int) (newCap int, ok bool) {
	if need > max {
		return 0, false
	}
	if need <= cur {
		return cur, true
	}
	n := cur
	for n < need {
		n = n*2 + 100
	}
	if n > max {
		n = max
	}
	return n, true
}

// Bytes grows b to hold at least need bytes, preserving its contents.
// ok is false when need exceeds max, even if the current capacity would
// already hold it: the limit binds regardless of how the buffer was sized.
func Bytes(b []byte, need, max int) (grown []byte, ok bool) {
	if need > max {
		return b, false
	}
	if need <= cap(b) {
		return b, true
	}
	n, ok := Next(cap(b), need, max)
	if !ok {
		return b, false
	}
	nb := make([]byte, len(b), n)
	copy(nb, b)
	return nb, true
}
