// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sparsehash

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/sparsehash/sparsehash/sparsetable"
)

// SparseTable is an open-addressed hash table backed by a sparse bucket
// array (see package sparsetable): an empty bucket costs one bitmap bit
// instead of a value slot. Emptiness is encoded by bitmap absence, so no
// empty key is reserved; deleted buckets are tracked by a parallel bitmap,
// so erasing works without reserving a deleted key either. A bucket is
// occupied iff it is present in the value table, deleted iff its index is
// in the deleted bitmap, and empty otherwise; the two sets are disjoint.
//
// Probing, growth, and shrink behave exactly as in DenseTable.
//
// A SparseTable is NOT goroutine-safe.
type SparseTable[V, K any] struct {
	policy  KeyPolicy[V, K]
	set     settings
	table   *sparsetable.Table[V]
	deleted *roaring.Bitmap
	// numElements counts occupied plus deleted buckets, as in DenseTable.
	numElements int
	numDeleted  int
	delKey      K
	hasDel      bool
}

// maxSparseBuckets bounds the bucket count to what the deleted bitmap's
// 32-bit index space can address.
const maxSparseBuckets = 1 << 31

// NewSparse constructs a sparse table sized for expectedCapacity live
// elements. Unlike NewDense, the table is usable immediately: no sentinel
// keys are required.
func NewSparse[V, K any](expectedCapacity int, policy KeyPolicy[V, K], opts ...option[V, K]) *SparseTable[V, K] {
	c := config[V, K]{policy: policy, set: defaultSettings()}
	for _, op := range opts {
		op.apply(&c)
	}
	c.policy.validate()
	t := &SparseTable[V, K]{
		policy:  c.policy,
		set:     c.set,
		deleted: roaring.New(),
	}
	nb, err := t.set.minBucketsFor(expectedCapacity, t.set.minWanted)
	if err != nil {
		panic(err)
	}
	t.table = sparsetable.New[V](nb)
	t.set.resetThresholds(nb)
	return t
}

// SetDeletedKey marks key as a value that must never be inserted. The
// deleted state itself lives in a parallel bitmap, so this is optional
// metadata kept for contract compatibility with DenseTable. Changing it
// requires a tombstone-free table; the table is compacted first.
func (t *SparseTable[V, K]) SetDeletedKey(key K) {
	t.squashDeleted()
	t.delKey = key
	t.hasDel = true
}

// ClearDeletedKey removes the reserved deleted key. The table is compacted
// first.
func (t *SparseTable[V, K]) ClearDeletedKey() {
	t.squashDeleted()
	t.hasDel = false
}

// DeletedKey returns the reserved deleted key, if set.
func (t *SparseTable[V, K]) DeletedKey() (K, bool) {
	return t.delKey, t.hasDel
}

func (t *SparseTable[V, K]) squashDeleted() {
	if t.numDeleted > 0 {
		t.resizeTo(t.table.Len())
	}
}

// Len returns the number of live elements.
func (t *SparseTable[V, K]) Len() int {
	return t.numElements - t.numDeleted
}

// Empty reports whether the table holds no live elements.
func (t *SparseTable[V, K]) Empty() bool {
	return t.Len() == 0
}

// BucketCount returns the current number of buckets.
func (t *SparseTable[V, K]) BucketCount() int {
	return t.table.Len()
}

// MaxSize returns the largest element count the table can hold.
func (t *SparseTable[V, K]) MaxSize() int {
	return maxSparseBuckets / 2
}

func (t *SparseTable[V, K]) testDeleted(i int) bool {
	return t.deleted.Contains(uint32(i))
}

// findPosition walks the probe sequence for key k; see the dense engine
// for the contract. Bucket states are read from the value table's presence
// bit and the deleted bitmap.
func (t *SparseTable[V, K]) findPosition(k K) (found, insert int) {
	seq := makeProbeSeq(t.policy.Hash(k), uint64(t.table.Len()-1))
	insert = -1
	for probes := 0; ; probes++ {
		if probes > t.table.Len() {
			panic("sparsehash: probe sequence exhausted; table invariants violated")
		}
		i := int(seq.offset)
		switch {
		case t.table.Test(i):
			if t.policy.Equal(t.policy.KeyOf(t.table.Get(i)), k) {
				return i, -1
			}
		case t.testDeleted(i):
			if insert == -1 {
				insert = i
			}
		default: // empty
			if insert == -1 {
				insert = i
			}
			return -1, insert
		}
		seq = seq.next()
	}
}

// Find returns the value stored under k.
func (t *SparseTable[V, K]) Find(k K) (V, bool) {
	found, _ := t.findPosition(k)
	if found < 0 {
		var zero V
		return zero, false
	}
	return t.table.Get(found), true
}

// Ptr returns a pointer to the value stored under k, or nil. The caller
// must not modify the key portion of the value through the pointer; the
// pointer is invalidated by the next mutation of the table.
func (t *SparseTable[V, K]) Ptr(k K) *V {
	found, _ := t.findPosition(k)
	if found < 0 {
		return nil
	}
	return t.table.Ptr(found)
}

// Count returns 1 if k is present and 0 otherwise.
func (t *SparseTable[V, K]) Count(k K) int {
	if _, ok := t.Find(k); ok {
		return 1
	}
	return 0
}

// Insert adds v unless a value with the same key is already present, in
// which case the existing value is returned unchanged with inserted=false.
func (t *SparseTable[V, K]) Insert(v V) (V, bool) {
	k := t.policy.KeyOf(v)
	if t.hasDel && t.policy.Equal(k, t.delKey) {
		panic("sparsehash: inserting the deleted key")
	}
	t.resizeDelta(1)
	found, insert := t.findPosition(k)
	if found >= 0 {
		return t.table.Get(found), false
	}
	if t.testDeleted(insert) {
		t.deleted.Remove(uint32(insert))
		t.numDeleted--
	} else {
		t.numElements++
	}
	t.table.Set(insert, v)
	return v, true
}

// InsertAll inserts every value in vs.
func (t *SparseTable[V, K]) InsertAll(vs []V) {
	t.resizeDelta(len(vs))
	for _, v := range vs {
		t.Insert(v)
	}
}

// Erase removes the value stored under k, returning the number of values
// removed (0 or 1). No deleted key is required: the tombstone lives in the
// deleted bitmap.
func (t *SparseTable[V, K]) Erase(k K) int {
	found, _ := t.findPosition(k)
	if found < 0 {
		return 0
	}
	t.table.Erase(found)
	t.deleted.Add(uint32(found))
	t.numDeleted++
	t.set.considerShrink = true
	return 1
}

// EraseAll erases every key in ks, returning the number of values
// removed.
func (t *SparseTable[V, K]) EraseAll(ks []K) int {
	n := 0
	for _, k := range ks {
		n += t.Erase(k)
	}
	return n
}

// Clear resets the table to the minimum bucket count and no elements.
func (t *SparseTable[V, K]) Clear() {
	nb, err := t.set.minBucketsFor(0, t.set.minWanted)
	if err != nil {
		panic(err)
	}
	if t.numElements == 0 && nb == t.table.Len() {
		return
	}
	t.table = sparsetable.New[V](nb)
	t.deleted.Clear()
	t.numElements = 0
	t.numDeleted = 0
	t.set.resetThresholds(nb)
}

// Resize grows the table to hold at least targetLive elements without
// triggering a grow on the next insert. Resize(0) forces any pending
// shrink to execute.
func (t *SparseTable[V, K]) Resize(targetLive int) error {
	if t.set.considerShrink || targetLive == 0 {
		t.maybeShrink()
	}
	if targetLive > t.numElements {
		target, grow, err := t.set.growTarget(t.numElements, t.numDeleted, targetLive-t.numElements, t.table.Len())
		if err != nil {
			return err
		}
		if grow {
			t.resizeTo(target)
		}
	}
	return nil
}

// SetResizingParameters sets the shrink and grow load factors. The shrink
// fraction is clamped to at most half the grow fraction.
func (t *SparseTable[V, K]) SetResizingParameters(shrink, grow float64) error {
	if err := t.set.setResizingParameters(shrink, grow); err != nil {
		return err
	}
	t.set.resetThresholds(t.table.Len())
	return nil
}

// ResizingParameters returns the current shrink and grow load factors.
func (t *SparseTable[V, K]) ResizingParameters() (shrink, grow float64) {
	return t.set.shrinkFrac, t.set.enlargeFrac
}

func (t *SparseTable[V, K]) resizeDelta(delta int) bool {
	did := false
	if t.set.considerShrink {
		did = t.maybeShrink()
	}
	target, grow, err := t.set.growTarget(t.numElements, t.numDeleted, delta, t.table.Len())
	if err != nil {
		panic(err)
	}
	if grow {
		t.resizeTo(target)
		did = true
	}
	return did
}

func (t *SparseTable[V, K]) maybeShrink() bool {
	sz, ok := t.set.shrinkTarget(t.Len(), t.table.Len())
	t.set.considerShrink = false
	if !ok {
		return false
	}
	t.resizeTo(sz)
	return true
}

// resizeTo moves every live element into a fresh sparse table of size nb
// (a power of two, possibly equal to the current size: a compaction). All
// tombstones are dropped by construction.
func (t *SparseTable[V, K]) resizeTo(nb int) {
	if nb > maxSparseBuckets {
		panic(ErrCapacityOverflow)
	}
	fresh := sparsetable.New[V](nb)
	mask := uint64(nb - 1)
	live := 0
	t.table.All(func(_ int, v V) bool {
		seq := makeProbeSeq(t.policy.Hash(t.policy.KeyOf(v)), mask)
		for fresh.Test(int(seq.offset)) {
			seq = seq.next()
		}
		fresh.Set(int(seq.offset), v)
		live++
		return true
	})
	t.table = fresh
	t.deleted.Clear()
	t.numElements = live
	t.numDeleted = 0
	t.set.resetThresholds(nb)
}

// All calls yield for each live element until yield returns false. The
// iteration order is not stable across mutations.
func (t *SparseTable[V, K]) All(yield func(v V) bool) {
	t.table.All(func(_ int, v V) bool {
		return yield(v)
	})
}

// Swap exchanges the contents of t and o in O(1).
func (t *SparseTable[V, K]) Swap(o *SparseTable[V, K]) {
	*t, *o = *o, *t
}

// Clone returns a deep copy of the table.
func (t *SparseTable[V, K]) Clone() *SparseTable[V, K] {
	c := *t
	c.table = t.table.Clone()
	c.deleted = t.deleted.Clone()
	return &c
}

// Equal reports whether t and o hold the same elements: equal live size,
// and every element of t found in o (and ValEqual, if configured, holding
// for the pair). Bucket counts and iteration order are ignored.
func (t *SparseTable[V, K]) Equal(o *SparseTable[V, K]) bool {
	if t.Len() != o.Len() {
		return false
	}
	eq := true
	t.All(func(v V) bool {
		ov, ok := o.Find(t.policy.KeyOf(v))
		if !ok || (t.policy.ValEqual != nil && !t.policy.ValEqual(v, ov)) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

const (
	sparseMagic   uint32 = 0x53505348 // "SPSH"
	sparseVersion uint32 = 1
)

type sparseHeader struct {
	Magic       uint32
	Version     uint32
	NumElements uint64
	NumDeleted  uint64
	ShrinkFrac  float64
	EnlargeFrac float64
}

// WriteMetadata writes everything needed to recompute the table's
// structure without knowing the value type: the engine counts and resize
// parameters, the backing table's shape (size, per-group bitmaps and
// counts), and the deleted bitmap.
func (t *SparseTable[V, K]) WriteMetadata(w io.Writer) error {
	hdr := sparseHeader{
		Magic:       sparseMagic,
		Version:     sparseVersion,
		NumElements: uint64(t.numElements),
		NumDeleted:  uint64(t.numDeleted),
		ShrinkFrac:  t.set.shrinkFrac,
		EnlargeFrac: t.set.enlargeFrac,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("sparsehash: write sparse header: %w", err)
	}
	if err := t.table.WriteMetadata(w); err != nil {
		return err
	}
	del, err := t.deleted.ToBytes()
	if err != nil {
		return fmt.Errorf("sparsehash: serialize deleted bitmap: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(del))); err != nil {
		return fmt.Errorf("sparsehash: write deleted bitmap size: %w", err)
	}
	if _, err := w.Write(del); err != nil {
		return fmt.Errorf("sparsehash: write deleted bitmap: %w", err)
	}
	return nil
}

// ReadMetadata reconstructs the table's structure from a metadata stream.
// The packed value storage is allocated and zero-valued, ready for
// ReadNopointerData. Any previous contents of t are discarded.
func (t *SparseTable[V, K]) ReadMetadata(r io.Reader) error {
	var hdr sparseHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("sparsehash: read sparse header: %w", err)
	}
	if hdr.Magic != sparseMagic {
		return fmt.Errorf("sparsehash: invalid sparse magic 0x%08x", hdr.Magic)
	}
	if hdr.Version != sparseVersion {
		return fmt.Errorf("sparsehash: unsupported sparse version %d", hdr.Version)
	}
	table := sparsetable.New[V](0)
	if err := table.ReadMetadata(r); err != nil {
		return err
	}
	var delLen uint64
	if err := binary.Read(r, binary.LittleEndian, &delLen); err != nil {
		return fmt.Errorf("sparsehash: read deleted bitmap size: %w", err)
	}
	buf := make([]byte, delLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("sparsehash: read deleted bitmap: %w", err)
	}
	deleted := roaring.New()
	if _, err := deleted.ReadFrom(bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("sparsehash: parse deleted bitmap: %w", err)
	}
	if uint64(table.NumNonempty())+deleted.GetCardinality() != hdr.NumElements {
		return fmt.Errorf("sparsehash: corrupt sparse metadata: %d present + %d deleted != %d elements",
			table.NumNonempty(), deleted.GetCardinality(), hdr.NumElements)
	}
	t.table = table
	t.deleted = deleted
	t.numElements = int(hdr.NumElements)
	t.numDeleted = int(hdr.NumDeleted)
	t.set.shrinkFrac = hdr.ShrinkFrac
	t.set.enlargeFrac = hdr.EnlargeFrac
	t.set.resetThresholds(table.Len())
	return nil
}

// WriteNopointerData writes the packed value storage as raw bytes. Valid
// only when V contains no pointers. Endianness is not normalized.
func (t *SparseTable[V, K]) WriteNopointerData(w io.Writer) error {
	return t.table.WriteNopointerData(w)
}

// ReadNopointerData fills the value storage allocated by ReadMetadata.
// Valid only when V contains no pointers and the stream was produced on a
// platform of the same endianness.
func (t *SparseTable[V, K]) ReadNopointerData(r io.Reader) error {
	return t.table.ReadNopointerData(r)
}
