// Package sparsetable implements a sparse random-access array: a sequence
// of N logical slots that charges a few bits, rather than a value slot, for
// every empty position.
//
// The table is built from fixed-size groups (see Group). Each group keeps a
// presence bitmap plus a packed array of exactly the present values, so a
// table of N slots with k present values costs k value slots plus N bits of
// bitmap plus per-group bookkeeping. Indexed reads and writes cost a
// popcount; inserts and erases additionally pay a reallocate-and-shift of
// the affected group's packed storage.
//
// Two iteration flavors are provided. The position iterator (Pos) addresses
// every logical slot and supports random-access arithmetic. Iter walks only
// the present slots in ascending position order with O(1) amortized
// increments.
package sparsetable

import "math/bits"

// Table is an ordered sequence of logical slots partitioned into groups of
// GroupSize. The zero value is an empty table of size 0; New sizes one
// explicitly.
type Table[T any] struct {
	groups      []Group[T]
	n           int
	numNonempty int
}

// New returns a table with n logical slots, all empty.
func New[T any](n int) *Table[T] {
	t := &Table[T]{}
	t.Resize(n)
	return t
}

func numGroupsFor(n int) int {
	return (n + GroupSize - 1) / GroupSize
}

// Len returns the number of logical slots.
func (t *Table[T]) Len() int {
	return t.n
}

// NumNonempty returns the number of present slots.
func (t *Table[T]) NumNonempty() int {
	return t.numNonempty
}

// NumGroups returns the number of groups backing the table.
func (t *Table[T]) NumGroups() int {
	return len(t.groups)
}

// group returns the group covering slot i and the slot index within it.
func (t *Table[T]) group(i int) (*Group[T], int) {
	return &t.groups[i/GroupSize], i % GroupSize
}

// Test reports whether slot i is present.
func (t *Table[T]) Test(i int) bool {
	g, j := t.group(i)
	return g.Test(j)
}

// Get returns the value at slot i, or the zero value if the slot is empty.
func (t *Table[T]) Get(i int) T {
	g, j := t.group(i)
	return g.Get(j)
}

// Ptr returns a pointer to the value at slot i, or nil if the slot is
// empty. The pointer is invalidated by the next mutation of the table.
func (t *Table[T]) Ptr(i int) *T {
	g, j := t.group(i)
	return g.Ptr(j)
}

// Set stores v at slot i and returns a pointer to the stored value. The
// pointer is invalidated by the next mutation of the table.
func (t *Table[T]) Set(i int, v T) *T {
	g, j := t.group(i)
	if !g.Test(j) {
		t.numNonempty++
	}
	return g.Set(j, v)
}

// Erase empties slot i, returning true if a value was present.
func (t *Table[T]) Erase(i int) bool {
	g, j := t.group(i)
	if g.Erase(j) {
		t.numNonempty--
		return true
	}
	return false
}

// Resize changes the table to cover n logical slots. Growing appends empty
// slots. Shrinking destroys any present values in the dropped trailing
// slots.
func (t *Table[T]) Resize(n int) {
	if n < 0 {
		panic("sparsetable: negative size")
	}
	ng := numGroupsFor(n)
	if n < t.n {
		// Clear the tail of the new boundary group, then drop whole
		// trailing groups.
		if ng > 0 {
			g := &t.groups[ng-1]
			for j := n - (ng-1)*GroupSize; j < GroupSize; j++ {
				if g.Erase(j) {
					t.numNonempty--
				}
			}
		}
		for gi := ng; gi < len(t.groups); gi++ {
			t.numNonempty -= t.groups[gi].Len()
		}
	}
	if ng != len(t.groups) {
		groups := make([]Group[T], ng)
		copy(groups, t.groups[:min(ng, len(t.groups))])
		t.groups = groups
	}
	t.n = n
}

// Clear empties every slot without changing the table size.
func (t *Table[T]) Clear() {
	for gi := range t.groups {
		t.groups[gi] = Group[T]{}
	}
	t.numNonempty = 0
}

// Swap exchanges the contents of t and o in O(1).
func (t *Table[T]) Swap(o *Table[T]) {
	*t, *o = *o, *t
}

// Clone returns a deep copy of the table.
func (t *Table[T]) Clone() *Table[T] {
	c := &Table[T]{
		groups:      make([]Group[T], len(t.groups)),
		n:           t.n,
		numNonempty: t.numNonempty,
	}
	for gi := range t.groups {
		g := &t.groups[gi]
		c.groups[gi].bmap = g.bmap
		if len(g.vals) > 0 {
			c.groups[gi].vals = make([]T, len(g.vals))
			copy(c.groups[gi].vals, g.vals)
		}
	}
	return c
}

// Equal reports whether t and o have the same size, the same set of
// present slots, and eq-equal values at each present slot.
func (t *Table[T]) Equal(o *Table[T], eq func(a, b T) bool) bool {
	if t.n != o.n || t.numNonempty != o.numNonempty {
		return false
	}
	for gi := range t.groups {
		a, b := &t.groups[gi], &o.groups[gi]
		if a.bmap != b.bmap {
			return false
		}
		for vi := range a.vals {
			if !eq(a.vals[vi], b.vals[vi]) {
				return false
			}
		}
	}
	return true
}

// All calls yield for each present slot in ascending position order.
// Iteration stops if yield returns false.
func (t *Table[T]) All(yield func(pos int, v T) bool) {
	for gi := range t.groups {
		base := gi * GroupSize
		done := false
		t.groups[gi].All(func(i int, v T) bool {
			if !yield(base+i, v) {
				done = true
				return false
			}
			return true
		})
		if done {
			return
		}
	}
}

// PosIter is a position iterator: it addresses every logical slot,
// present or not, and supports random-access arithmetic. The zero
// position is the first slot; a position equal to Len is the end.
type PosIter[T any] struct {
	t   *Table[T]
	pos int
}

// Pos returns a position iterator addressing slot i.
func (t *Table[T]) Pos(i int) PosIter[T] {
	return PosIter[T]{t: t, pos: i}
}

// Valid reports whether the iterator addresses a slot inside the table.
func (it PosIter[T]) Valid() bool {
	return it.pos >= 0 && it.pos < it.t.n
}

// Index returns the addressed slot.
func (it PosIter[T]) Index() int {
	return it.pos
}

// Test reports whether the addressed slot is present.
func (it PosIter[T]) Test() bool {
	return it.t.Test(it.pos)
}

// Get returns the value at the addressed slot, or the zero value if the
// slot is empty.
func (it PosIter[T]) Get() T {
	return it.t.Get(it.pos)
}

// Next returns an iterator addressing the following slot.
func (it PosIter[T]) Next() PosIter[T] {
	return it.Add(1)
}

// Add returns an iterator advanced by n slots (n may be negative).
func (it PosIter[T]) Add(n int) PosIter[T] {
	it.pos += n
	return it
}

// Sub returns the distance in slots between it and o.
func (it PosIter[T]) Sub(o PosIter[T]) int {
	return it.pos - o.pos
}

// Iter walks only the present slots in ascending position order. Advancing
// is O(1) amortized: it consumes the current group's bitmap and steps to
// the next group only when the bitmap is exhausted.
type Iter[T any] struct {
	t   *Table[T]
	gi  int
	rem uint64
	vi  int
}

// Iter returns a present-only iterator positioned at the first present
// slot, if any.
func (t *Table[T]) Iter() *Iter[T] {
	it := &Iter[T]{t: t, gi: -1}
	it.Next()
	return it
}

// Valid reports whether the iterator is positioned at a present slot.
func (it *Iter[T]) Valid() bool {
	return it.gi < len(it.t.groups)
}

// Pos returns the logical position of the current slot.
func (it *Iter[T]) Pos() int {
	return it.gi*GroupSize + bits.TrailingZeros64(it.rem)
}

// Value returns the value at the current slot.
func (it *Iter[T]) Value() T {
	return it.t.groups[it.gi].vals[it.vi]
}

// Next advances to the next present slot.
func (it *Iter[T]) Next() {
	if it.gi >= 0 && it.rem != 0 {
		it.rem &= it.rem - 1
		it.vi++
		if it.rem != 0 {
			return
		}
	}
	for it.gi++; it.gi < len(it.t.groups); it.gi++ {
		if b := it.t.groups[it.gi].bmap; b != 0 {
			it.rem = b
			it.vi = 0
			return
		}
	}
	it.rem = 0
	it.vi = 0
}
