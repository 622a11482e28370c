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

// DenseMap maps comparable keys to comparable payloads over a DenseTable
// whose value type is Entry[K, V]. SetEmptyKey must be called before first
// use, and SetDeletedKey before the first Delete.
type DenseMap[K, V comparable] struct {
	t *DenseTable[Entry[K, V], K]
}

// NewDenseMap constructs a dense map sized for expectedCapacity entries.
func NewDenseMap[K, V comparable](expectedCapacity int, opts ...option[Entry[K, V], K]) *DenseMap[K, V] {
	return &DenseMap[K, V]{t: NewDense(expectedCapacity, entryPolicy[K, V](), opts...)}
}

// SetEmptyKey reserves key to mark empty buckets. Required before any
// other operation.
func (m *DenseMap[K, V]) SetEmptyKey(key K) {
	m.t.SetEmptyValue(Entry[K, V]{Key: key})
}

// SetDeletedKey reserves key to mark deleted buckets. Required before the
// first Delete.
func (m *DenseMap[K, V]) SetDeletedKey(key K) { m.t.SetDeletedKey(key) }

// ClearDeletedKey removes the deleted-key reservation.
func (m *DenseMap[K, V]) ClearDeletedKey() { m.t.ClearDeletedKey() }

// Put stores value under key, overwriting an existing entry. It reports
// whether a new entry was created.
func (m *DenseMap[K, V]) Put(key K, value V) bool {
	_, inserted := m.t.Insert(Entry[K, V]{Key: key, Value: value})
	if !inserted {
		m.t.Ptr(key).Value = value
	}
	return inserted
}

// Insert stores value under key only if the key is absent, mirroring the
// engine's at-most-one-entry insert.
func (m *DenseMap[K, V]) Insert(key K, value V) (V, bool) {
	e, inserted := m.t.Insert(Entry[K, V]{Key: key, Value: value})
	return e.Value, inserted
}

// Get returns the payload stored under key.
func (m *DenseMap[K, V]) Get(key K) (V, bool) {
	e, ok := m.t.Find(key)
	return e.Value, ok
}

// Contains reports whether key is present.
func (m *DenseMap[K, V]) Contains(key K) bool {
	_, ok := m.t.Find(key)
	return ok
}

// Delete removes the entry stored under key, returning the number of
// entries removed (0 or 1).
func (m *DenseMap[K, V]) Delete(key K) int { return m.t.Erase(key) }

// Len returns the number of entries.
func (m *DenseMap[K, V]) Len() int { return m.t.Len() }

// Empty reports whether the map holds no entries.
func (m *DenseMap[K, V]) Empty() bool { return m.t.Empty() }

// BucketCount returns the backing table's bucket count.
func (m *DenseMap[K, V]) BucketCount() int { return m.t.BucketCount() }

// Clear resets the map to its minimum size.
func (m *DenseMap[K, V]) Clear() { m.t.Clear() }

// ClearNoResize removes all entries without changing the bucket count.
func (m *DenseMap[K, V]) ClearNoResize() { m.t.ClearNoResize() }

// Resize grows the map to hold at least targetLive entries.
func (m *DenseMap[K, V]) Resize(targetLive int) error { return m.t.Resize(targetLive) }

// All calls yield for each entry until yield returns false.
func (m *DenseMap[K, V]) All(yield func(key K, value V) bool) {
	m.t.All(func(e Entry[K, V]) bool {
		return yield(e.Key, e.Value)
	})
}

// Equal reports whether m and o hold the same entries, regardless of
// bucket counts or insertion order.
func (m *DenseMap[K, V]) Equal(o *DenseMap[K, V]) bool { return m.t.Equal(o.t) }

// Swap exchanges the contents of m and o in O(1).
func (m *DenseMap[K, V]) Swap(o *DenseMap[K, V]) { m.t.Swap(o.t) }

// Clone returns a deep copy of the map.
func (m *DenseMap[K, V]) Clone() *DenseMap[K, V] { return &DenseMap[K, V]{t: m.t.Clone()} }

// Table returns the underlying engine.
func (m *DenseMap[K, V]) Table() *DenseTable[Entry[K, V], K] { return m.t }

// SparseMap maps comparable keys to comparable payloads over a
// SparseTable. No sentinel keys are required, and the map serializes via
// its engine's metadata and data streams.
type SparseMap[K, V comparable] struct {
	t *SparseTable[Entry[K, V], K]
}

// NewSparseMap constructs a sparse map sized for expectedCapacity entries.
func NewSparseMap[K, V comparable](expectedCapacity int, opts ...option[Entry[K, V], K]) *SparseMap[K, V] {
	return &SparseMap[K, V]{t: NewSparse(expectedCapacity, entryPolicy[K, V](), opts...)}
}

// Put stores value under key, overwriting an existing entry. It reports
// whether a new entry was created.
func (m *SparseMap[K, V]) Put(key K, value V) bool {
	_, inserted := m.t.Insert(Entry[K, V]{Key: key, Value: value})
	if !inserted {
		m.t.Ptr(key).Value = value
	}
	return inserted
}

// Insert stores value under key only if the key is absent, mirroring the
// engine's at-most-one-entry insert.
func (m *SparseMap[K, V]) Insert(key K, value V) (V, bool) {
	e, inserted := m.t.Insert(Entry[K, V]{Key: key, Value: value})
	return e.Value, inserted
}

// Get returns the payload stored under key.
func (m *SparseMap[K, V]) Get(key K) (V, bool) {
	e, ok := m.t.Find(key)
	return e.Value, ok
}

// Contains reports whether key is present.
func (m *SparseMap[K, V]) Contains(key K) bool {
	_, ok := m.t.Find(key)
	return ok
}

// Delete removes the entry stored under key, returning the number of
// entries removed (0 or 1).
func (m *SparseMap[K, V]) Delete(key K) int { return m.t.Erase(key) }

// Len returns the number of entries.
func (m *SparseMap[K, V]) Len() int { return m.t.Len() }

// Empty reports whether the map holds no entries.
func (m *SparseMap[K, V]) Empty() bool { return m.t.Empty() }

// BucketCount returns the backing table's bucket count.
func (m *SparseMap[K, V]) BucketCount() int { return m.t.BucketCount() }

// Clear resets the map to its minimum size.
func (m *SparseMap[K, V]) Clear() { m.t.Clear() }

// Resize grows the map to hold at least targetLive entries.
func (m *SparseMap[K, V]) Resize(targetLive int) error { return m.t.Resize(targetLive) }

// All calls yield for each entry until yield returns false.
func (m *SparseMap[K, V]) All(yield func(key K, value V) bool) {
	m.t.All(func(e Entry[K, V]) bool {
		return yield(e.Key, e.Value)
	})
}

// Equal reports whether m and o hold the same entries, regardless of
// bucket counts or insertion order.
func (m *SparseMap[K, V]) Equal(o *SparseMap[K, V]) bool { return m.t.Equal(o.t) }

// Swap exchanges the contents of m and o in O(1).
func (m *SparseMap[K, V]) Swap(o *SparseMap[K, V]) { m.t.Swap(o.t) }

// Clone returns a deep copy of the map.
func (m *SparseMap[K, V]) Clone() *SparseMap[K, V] { return &SparseMap[K, V]{t: m.t.Clone()} }

// Table returns the underlying engine for serialization and resizing
// control.
func (m *SparseMap[K, V]) Table() *SparseTable[Entry[K, V], K] { return m.t }
