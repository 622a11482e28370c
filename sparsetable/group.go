package sparsetable

import "math/bits"

// GroupSize is the number of logical slots covered by a single Group. It
// must not exceed 64, the width of the presence bitmap word.
const GroupSize = 48

// Group is a fixed-size block of GroupSize logical slots which stores only
// the present values. Presence is tracked by a bitmap; the values are kept
// packed in ascending slot order, so a group with k present slots holds
// exactly k values. Locating the value for slot i is a popcount of the
// bitmap bits below i.
//
// The packed storage is reallocated to the exact new length on every insert
// and erase. That is the point of the structure: an empty slot costs one
// bit, not a value slot.
type Group[T any] struct {
	vals []T
	bmap uint64
}

// Len returns the number of present slots.
func (g *Group[T]) Len() int {
	return len(g.vals)
}

// Bitmap returns the presence bitmap. Only the low GroupSize bits are used.
func (g *Group[T]) Bitmap() uint64 {
	return g.bmap
}

// Test reports whether slot i is present.
func (g *Group[T]) Test(i int) bool {
	return g.bmap&(uint64(1)<<uint(i)) != 0
}

// offset returns the index into the packed storage for slot i, i.e. the
// number of present slots below i.
func (g *Group[T]) offset(i int) int {
	return bits.OnesCount64(g.bmap & (uint64(1)<<uint(i) - 1))
}

// Get returns the value at slot i, or the zero value if the slot is empty.
func (g *Group[T]) Get(i int) T {
	if !g.Test(i) {
		var zero T
		return zero
	}
	return g.vals[g.offset(i)]
}

// Ptr returns a pointer to the value at slot i, or nil if the slot is
// empty. The pointer is invalidated by the next Set or Erase on the group.
func (g *Group[T]) Ptr(i int) *T {
	if !g.Test(i) {
		return nil
	}
	return &g.vals[g.offset(i)]
}

// Set stores v at slot i, overwriting any previous value, and returns a
// pointer to the stored value. The pointer is invalidated by the next Set
// or Erase on the group.
func (g *Group[T]) Set(i int, v T) *T {
	off := g.offset(i)
	if g.Test(i) {
		g.vals[off] = v
		return &g.vals[off]
	}
	nv := make([]T, len(g.vals)+1)
	copy(nv, g.vals[:off])
	nv[off] = v
	copy(nv[off+1:], g.vals[off:])
	g.vals = nv
	g.bmap |= uint64(1) << uint(i)
	return &g.vals[off]
}

// Erase empties slot i, returning true if a value was present.
func (g *Group[T]) Erase(i int) bool {
	if !g.Test(i) {
		return false
	}
	off := g.offset(i)
	if len(g.vals) == 1 {
		g.vals = nil
	} else {
		nv := make([]T, len(g.vals)-1)
		copy(nv, g.vals[:off])
		copy(nv[off:], g.vals[off+1:])
		g.vals = nv
	}
	g.bmap &^= uint64(1) << uint(i)
	return true
}

// All calls yield for each present slot in ascending order with the slot
// index within the group and the value. Iteration stops if yield returns
// false.
func (g *Group[T]) All(yield func(i int, v T) bool) {
	rem := g.bmap
	for vi := 0; rem != 0; vi++ {
		i := bits.TrailingZeros64(rem)
		if !yield(i, g.vals[vi]) {
			return
		}
		rem &= rem - 1
	}
}
