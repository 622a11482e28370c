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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unsafe"
)

// DenseTable is an open-addressed hash table over a single contiguous
// bucket array. Every bucket always holds a value: the caller-designated
// empty value, a value whose key is the caller-designated deleted key, or
// a real entry. Stealing two keys from the key space avoids any per-bucket
// metadata, which is what makes the dense table fast: a probe is a single
// array access plus a key comparison.
//
// The empty value must be set with SetEmptyValue before any other
// operation, and its key must never be inserted. Without a deleted key the
// table is insert-only; SetDeletedKey reserves a second key and enables
// Erase.
//
// A DenseTable is NOT goroutine-safe.
type DenseTable[V, K any] struct {
	policy KeyPolicy[V, K]
	set    settings
	// buckets is nil until SetEmptyValue allocates it; its length is
	// always a power of two >= minBuckets afterwards.
	buckets []V
	// numElements counts occupied plus deleted buckets. The live count is
	// numElements - numDeleted.
	numElements int
	numDeleted  int
	emptyVal    V
	hasEmpty    bool
	delKey      K
	hasDel      bool
	// expected is the capacity requested at construction, consumed by the
	// first bucket allocation.
	expected int
}

// NewDense constructs a dense table sized for expectedCapacity live
// elements. The bucket array is not allocated until SetEmptyValue is
// called.
func NewDense[V, K any](expectedCapacity int, policy KeyPolicy[V, K], opts ...option[V, K]) *DenseTable[V, K] {
	c := config[V, K]{policy: policy, set: defaultSettings()}
	for _, op := range opts {
		op.apply(&c)
	}
	c.policy.validate()
	return &DenseTable[V, K]{
		policy:   c.policy,
		set:      c.set,
		expected: expectedCapacity,
	}
}

func (t *DenseTable[V, K]) requireBuckets() {
	if !t.hasEmpty {
		panic("sparsehash: empty value must be set before using a dense table")
	}
}

// SetEmptyValue designates the value that fills empty buckets. Its key is
// reserved: inserting it is a caller error. This must be called exactly
// once, before any lookup, insert, or erase; the empty value is immutable
// for the lifetime of the table.
func (t *DenseTable[V, K]) SetEmptyValue(v V) {
	if t.hasEmpty {
		panic("sparsehash: empty value is immutable once set")
	}
	t.emptyVal = v
	t.hasEmpty = true
	nb, err := t.set.minBucketsFor(t.expected, t.set.minWanted)
	if err != nil {
		panic(err)
	}
	t.buckets = make([]V, nb)
	t.fillEmpty(t.buckets)
	t.set.resetThresholds(nb)
}

// EmptyValue returns the designated empty value, if set.
func (t *DenseTable[V, K]) EmptyValue() (V, bool) {
	return t.emptyVal, t.hasEmpty
}

// SetDeletedKey reserves key as the deleted sentinel, enabling Erase. The
// key must differ from the empty value's key. Changing the deleted key
// compacts the table first so that no bucket holds the old sentinel.
func (t *DenseTable[V, K]) SetDeletedKey(key K) {
	t.requireBuckets()
	if t.policy.SetKey == nil {
		panic("sparsehash: KeyPolicy.SetKey is required for a deleted key")
	}
	if t.policy.Equal(key, t.policy.KeyOf(t.emptyVal)) {
		panic("sparsehash: deleted key must differ from the empty key")
	}
	t.squashDeleted()
	t.delKey = key
	t.hasDel = true
}

// ClearDeletedKey removes the deleted sentinel, making the table
// insert-only again. The table is compacted first.
func (t *DenseTable[V, K]) ClearDeletedKey() {
	t.squashDeleted()
	t.hasDel = false
}

// DeletedKey returns the deleted sentinel key, if set.
func (t *DenseTable[V, K]) DeletedKey() (K, bool) {
	return t.delKey, t.hasDel
}

// squashDeleted drops all tombstones via a same-size compaction.
func (t *DenseTable[V, K]) squashDeleted() {
	if t.numDeleted > 0 {
		t.resizeTo(len(t.buckets))
	}
}

// Len returns the number of live elements.
func (t *DenseTable[V, K]) Len() int {
	return t.numElements - t.numDeleted
}

// Empty reports whether the table holds no live elements.
func (t *DenseTable[V, K]) Empty() bool {
	return t.Len() == 0
}

// BucketCount returns the current number of buckets.
func (t *DenseTable[V, K]) BucketCount() int {
	return len(t.buckets)
}

// MaxSize returns the largest element count the sizing arithmetic can
// represent.
func (t *DenseTable[V, K]) MaxSize() int {
	return math.MaxInt / 2
}

func (t *DenseTable[V, K]) fillEmpty(b []V) {
	for i := range b {
		b[i] = t.emptyVal
	}
}

func (t *DenseTable[V, K]) testEmpty(v V) bool {
	return t.policy.Equal(t.policy.KeyOf(v), t.policy.KeyOf(t.emptyVal))
}

// testDeleted guards on numDeleted > 0: a bulk load may leave the deleted
// sentinel in a bucket before any real deleted key has been set, and that
// must not read as "deleted".
func (t *DenseTable[V, K]) testDeleted(v V) bool {
	return t.numDeleted > 0 && t.hasDel && t.policy.Equal(t.policy.KeyOf(v), t.delKey)
}

// findPosition walks the probe sequence for key k and returns the index of
// the bucket holding k (or -1), plus the index where k would be inserted
// (the first deleted bucket seen, else the terminating empty bucket; -1
// when k was found). The walk is bounded by the bucket count; exceeding it
// means the load policy was violated.
func (t *DenseTable[V, K]) findPosition(k K) (found, insert int) {
	seq := makeProbeSeq(t.policy.Hash(k), uint64(len(t.buckets)-1))
	insert = -1
	for probes := 0; ; probes++ {
		if probes > len(t.buckets) {
			panic("sparsehash: probe sequence exhausted; table invariants violated")
		}
		i := int(seq.offset)
		b := t.buckets[i]
		switch {
		case t.testEmpty(b):
			if insert == -1 {
				insert = i
			}
			return -1, insert
		case t.testDeleted(b):
			if insert == -1 {
				insert = i
			}
		case t.policy.Equal(t.policy.KeyOf(b), k):
			return i, -1
		}
		seq = seq.next()
	}
}

// Find returns the value stored under k.
func (t *DenseTable[V, K]) Find(k K) (V, bool) {
	t.requireBuckets()
	found, _ := t.findPosition(k)
	if found < 0 {
		var zero V
		return zero, false
	}
	return t.buckets[found], true
}

// Ptr returns a pointer to the value stored under k, or nil. The caller
// must not modify the key portion of the value through the pointer; the
// pointer is invalidated by the next mutation of the table.
func (t *DenseTable[V, K]) Ptr(k K) *V {
	t.requireBuckets()
	found, _ := t.findPosition(k)
	if found < 0 {
		return nil
	}
	return &t.buckets[found]
}

// Count returns 1 if k is present and 0 otherwise.
func (t *DenseTable[V, K]) Count(k K) int {
	if _, ok := t.Find(k); ok {
		return 1
	}
	return 0
}

// Insert adds v unless a value with the same key is already present, in
// which case the existing value is returned unchanged with inserted=false.
// Inserting a value whose key equals the empty or deleted sentinel is a
// caller error.
func (t *DenseTable[V, K]) Insert(v V) (V, bool) {
	t.requireBuckets()
	k := t.policy.KeyOf(v)
	if t.policy.Equal(k, t.policy.KeyOf(t.emptyVal)) {
		panic("sparsehash: inserting the empty key")
	}
	if t.hasDel && t.policy.Equal(k, t.delKey) {
		panic("sparsehash: inserting the deleted key")
	}
	t.resizeDelta(1)
	found, insert := t.findPosition(k)
	if found >= 0 {
		return t.buckets[found], false
	}
	if t.testDeleted(t.buckets[insert]) {
		t.numDeleted--
	} else {
		t.numElements++
	}
	t.buckets[insert] = v
	return v, true
}

// InsertAll inserts every value in vs.
func (t *DenseTable[V, K]) InsertAll(vs []V) {
	t.resizeDelta(len(vs))
	for _, v := range vs {
		t.Insert(v)
	}
}

// Erase removes the value stored under k, returning the number of values
// removed (0 or 1). A deleted key must have been set.
func (t *DenseTable[V, K]) Erase(k K) int {
	t.requireBuckets()
	if !t.hasDel {
		panic("sparsehash: Erase requires a deleted key")
	}
	found, _ := t.findPosition(k)
	if found < 0 {
		return 0
	}
	var tomb V
	t.policy.SetKey(&tomb, t.delKey)
	t.buckets[found] = tomb
	t.numDeleted++
	t.set.considerShrink = true
	return 1
}

// EraseAll erases every key in ks, returning the number of values
// removed.
func (t *DenseTable[V, K]) EraseAll(ks []K) int {
	n := 0
	for _, k := range ks {
		n += t.Erase(k)
	}
	return n
}

// Clear resets the table to the minimum bucket count and no elements.
func (t *DenseTable[V, K]) Clear() {
	t.requireBuckets()
	nb, err := t.set.minBucketsFor(0, t.set.minWanted)
	if err != nil {
		panic(err)
	}
	if t.numElements == 0 && nb == len(t.buckets) {
		return
	}
	t.buckets = make([]V, nb)
	t.fillEmpty(t.buckets)
	t.numElements = 0
	t.numDeleted = 0
	t.set.resetThresholds(nb)
}

// ClearNoResize empties every bucket without changing the bucket count.
func (t *DenseTable[V, K]) ClearNoResize() {
	t.requireBuckets()
	if t.numElements > 0 {
		t.fillEmpty(t.buckets)
		t.numElements = 0
		t.numDeleted = 0
	}
}

// Resize grows the table to hold at least targetLive elements without
// triggering a grow on the next insert. Resize(0) forces any pending
// shrink to execute.
func (t *DenseTable[V, K]) Resize(targetLive int) error {
	t.requireBuckets()
	if t.set.considerShrink || targetLive == 0 {
		t.maybeShrink()
	}
	if targetLive > t.numElements {
		target, grow, err := t.set.growTarget(t.numElements, t.numDeleted, targetLive-t.numElements, len(t.buckets))
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
func (t *DenseTable[V, K]) SetResizingParameters(shrink, grow float64) error {
	if err := t.set.setResizingParameters(shrink, grow); err != nil {
		return err
	}
	t.set.resetThresholds(len(t.buckets))
	return nil
}

// ResizingParameters returns the current shrink and grow load factors.
func (t *DenseTable[V, K]) ResizingParameters() (shrink, grow float64) {
	return t.set.shrinkFrac, t.set.enlargeFrac
}

// resizeDelta makes room for delta more elements: it executes a pending
// shrink and grows (or compacts) if the insert would cross the enlarge
// threshold. Reports whether a resize happened.
func (t *DenseTable[V, K]) resizeDelta(delta int) bool {
	did := false
	if t.set.considerShrink {
		did = t.maybeShrink()
	}
	target, grow, err := t.set.growTarget(t.numElements, t.numDeleted, delta, len(t.buckets))
	if err != nil {
		panic(err)
	}
	if grow {
		t.resizeTo(target)
		did = true
	}
	return did
}

func (t *DenseTable[V, K]) maybeShrink() bool {
	sz, ok := t.set.shrinkTarget(t.Len(), len(t.buckets))
	t.set.considerShrink = false
	if !ok {
		return false
	}
	t.resizeTo(sz)
	return true
}

// resizeTo moves every live element into a fresh bucket array of size nb
// (a power of two, possibly equal to the current size: a compaction). All
// tombstones are dropped by construction.
func (t *DenseTable[V, K]) resizeTo(nb int) {
	old := t.buckets
	fresh := make([]V, nb)
	t.buckets = fresh
	t.fillEmpty(fresh)
	mask := uint64(nb - 1)
	live := 0
	for i := range old {
		b := old[i]
		if t.policy.Equal(t.policy.KeyOf(b), t.policy.KeyOf(t.emptyVal)) {
			continue
		}
		if t.numDeleted > 0 && t.hasDel && t.policy.Equal(t.policy.KeyOf(b), t.delKey) {
			continue
		}
		// No duplicate check: the source table has none.
		seq := makeProbeSeq(t.policy.Hash(t.policy.KeyOf(b)), mask)
		for !t.testEmpty(fresh[seq.offset]) {
			seq = seq.next()
		}
		fresh[seq.offset] = b
		live++
	}
	t.numElements = live
	t.numDeleted = 0
	t.set.resetThresholds(nb)
}

// All calls yield for each live element until yield returns false. The
// iteration order is not stable across mutations.
func (t *DenseTable[V, K]) All(yield func(v V) bool) {
	for i := range t.buckets {
		b := t.buckets[i]
		if t.testEmpty(b) || t.testDeleted(b) {
			continue
		}
		if !yield(b) {
			return
		}
	}
}

// Swap exchanges the contents of t and o in O(1).
func (t *DenseTable[V, K]) Swap(o *DenseTable[V, K]) {
	*t, *o = *o, *t
}

// Clone returns a deep copy of the table.
func (t *DenseTable[V, K]) Clone() *DenseTable[V, K] {
	c := *t
	if t.buckets != nil {
		c.buckets = make([]V, len(t.buckets))
		copy(c.buckets, t.buckets)
	}
	return &c
}

// Equal reports whether t and o hold the same elements: equal live size,
// and every element of t found in o (and ValEqual, if configured, holding
// for the pair). Bucket counts and iteration order are ignored.
func (t *DenseTable[V, K]) Equal(o *DenseTable[V, K]) bool {
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
	denseMagic   uint32 = 0x53504448 // "SPDH"
	denseVersion uint32 = 1
)

// ErrDeletedKeyRequired indicates metadata describing a table with
// tombstones was read into a table with no deleted key set.
var ErrDeletedKeyRequired = errors.New("sparsehash: deleted key must be set before reading tombstoned metadata")

type denseHeader struct {
	Magic       uint32
	Version     uint32
	NumBuckets  uint64
	NumElements uint64
	NumDeleted  uint64
	ShrinkFrac  float64
	EnlargeFrac float64
}

// WriteMetadata writes the table's shape and resize parameters. Together
// with WriteNopointerData it round-trips the table for pointer-free value
// types.
func (t *DenseTable[V, K]) WriteMetadata(w io.Writer) error {
	t.requireBuckets()
	hdr := denseHeader{
		Magic:       denseMagic,
		Version:     denseVersion,
		NumBuckets:  uint64(len(t.buckets)),
		NumElements: uint64(t.numElements),
		NumDeleted:  uint64(t.numDeleted),
		ShrinkFrac:  t.set.shrinkFrac,
		EnlargeFrac: t.set.enlargeFrac,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("sparsehash: write dense header: %w", err)
	}
	return nil
}

// ReadMetadata restores the table's shape from a metadata stream: the
// bucket array is reallocated to the persisted size and filled with the
// empty value, ready for ReadNopointerData. The empty value must be set
// first, and the deleted key too when the stream describes tombstones (the
// sentinels themselves are not persisted in the metadata).
func (t *DenseTable[V, K]) ReadMetadata(r io.Reader) error {
	t.requireBuckets()
	var hdr denseHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("sparsehash: read dense header: %w", err)
	}
	if hdr.Magic != denseMagic {
		return fmt.Errorf("sparsehash: invalid dense magic 0x%08x", hdr.Magic)
	}
	if hdr.Version != denseVersion {
		return fmt.Errorf("sparsehash: unsupported dense version %d", hdr.Version)
	}
	if hdr.NumDeleted > 0 && !t.hasDel {
		return ErrDeletedKeyRequired
	}
	t.set.shrinkFrac = hdr.ShrinkFrac
	t.set.enlargeFrac = hdr.EnlargeFrac
	t.buckets = make([]V, hdr.NumBuckets)
	t.fillEmpty(t.buckets)
	t.numElements = int(hdr.NumElements)
	t.numDeleted = int(hdr.NumDeleted)
	t.set.resetThresholds(len(t.buckets))
	return nil
}

func bucketBytes[V any](buckets []V) []byte {
	var zero V
	return unsafe.Slice((*byte)(unsafe.Pointer(&buckets[0])), len(buckets)*int(unsafe.Sizeof(zero)))
}

// WriteNopointerData writes the bucket array as raw bytes. Valid only when
// V contains no pointers. Endianness is not normalized.
func (t *DenseTable[V, K]) WriteNopointerData(w io.Writer) error {
	t.requireBuckets()
	if _, err := w.Write(bucketBytes(t.buckets)); err != nil {
		return fmt.Errorf("sparsehash: write dense data: %w", err)
	}
	return nil
}

// ReadNopointerData fills the bucket array allocated by ReadMetadata from
// raw bytes. Valid only when V contains no pointers and the stream was
// produced on a platform of the same endianness.
func (t *DenseTable[V, K]) ReadNopointerData(r io.Reader) error {
	t.requireBuckets()
	if _, err := io.ReadFull(r, bucketBytes(t.buckets)); err != nil {
		return fmt.Errorf("sparsehash: read dense data: %w", err)
	}
	return nil
}
