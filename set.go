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

// DenseSet is a set of comparable keys over a DenseTable: the stored value
// is the key itself. SetEmptyKey must be called before first use, and
// SetDeletedKey before the first Erase.
type DenseSet[K comparable] struct {
	t *DenseTable[K, K]
}

// NewDenseSet constructs a dense set sized for expectedCapacity keys.
func NewDenseSet[K comparable](expectedCapacity int, opts ...option[K, K]) *DenseSet[K] {
	return &DenseSet[K]{t: NewDense(expectedCapacity, setPolicy[K](), opts...)}
}

// SetEmptyKey reserves key to mark empty buckets. Required before any
// other operation.
func (s *DenseSet[K]) SetEmptyKey(key K) { s.t.SetEmptyValue(key) }

// SetDeletedKey reserves key to mark deleted buckets. Required before the
// first Erase.
func (s *DenseSet[K]) SetDeletedKey(key K) { s.t.SetDeletedKey(key) }

// ClearDeletedKey removes the deleted-key reservation.
func (s *DenseSet[K]) ClearDeletedKey() { s.t.ClearDeletedKey() }

// Insert adds key, reporting whether it was not already present.
func (s *DenseSet[K]) Insert(key K) bool {
	_, inserted := s.t.Insert(key)
	return inserted
}

// InsertAll inserts every key in keys.
func (s *DenseSet[K]) InsertAll(keys []K) { s.t.InsertAll(keys) }

// Contains reports whether key is present.
func (s *DenseSet[K]) Contains(key K) bool {
	_, ok := s.t.Find(key)
	return ok
}

// Erase removes key, returning the number of keys removed (0 or 1).
func (s *DenseSet[K]) Erase(key K) int { return s.t.Erase(key) }

// Len returns the number of keys.
func (s *DenseSet[K]) Len() int { return s.t.Len() }

// Empty reports whether the set holds no keys.
func (s *DenseSet[K]) Empty() bool { return s.t.Empty() }

// BucketCount returns the backing table's bucket count.
func (s *DenseSet[K]) BucketCount() int { return s.t.BucketCount() }

// Clear resets the set to its minimum size.
func (s *DenseSet[K]) Clear() { s.t.Clear() }

// ClearNoResize removes all keys without changing the bucket count.
func (s *DenseSet[K]) ClearNoResize() { s.t.ClearNoResize() }

// Resize grows the set to hold at least targetLive keys.
func (s *DenseSet[K]) Resize(targetLive int) error { return s.t.Resize(targetLive) }

// All calls yield for each key until yield returns false.
func (s *DenseSet[K]) All(yield func(key K) bool) { s.t.All(yield) }

// Equal reports whether s and o hold the same keys.
func (s *DenseSet[K]) Equal(o *DenseSet[K]) bool { return s.t.Equal(o.t) }

// Swap exchanges the contents of s and o in O(1).
func (s *DenseSet[K]) Swap(o *DenseSet[K]) { s.t.Swap(o.t) }

// Clone returns a deep copy of the set.
func (s *DenseSet[K]) Clone() *DenseSet[K] { return &DenseSet[K]{t: s.t.Clone()} }

// Table returns the underlying engine for operations not surfaced on the
// set, such as resizing parameters and metadata serialization.
func (s *DenseSet[K]) Table() *DenseTable[K, K] { return s.t }

// SparseSet is a set of comparable keys over a SparseTable. No sentinel
// keys are required.
type SparseSet[K comparable] struct {
	t *SparseTable[K, K]
}

// NewSparseSet constructs a sparse set sized for expectedCapacity keys.
func NewSparseSet[K comparable](expectedCapacity int, opts ...option[K, K]) *SparseSet[K] {
	return &SparseSet[K]{t: NewSparse(expectedCapacity, setPolicy[K](), opts...)}
}

// Insert adds key, reporting whether it was not already present.
func (s *SparseSet[K]) Insert(key K) bool {
	_, inserted := s.t.Insert(key)
	return inserted
}

// InsertAll inserts every key in keys.
func (s *SparseSet[K]) InsertAll(keys []K) { s.t.InsertAll(keys) }

// Contains reports whether key is present.
func (s *SparseSet[K]) Contains(key K) bool {
	_, ok := s.t.Find(key)
	return ok
}

// Erase removes key, returning the number of keys removed (0 or 1).
func (s *SparseSet[K]) Erase(key K) int { return s.t.Erase(key) }

// Len returns the number of keys.
func (s *SparseSet[K]) Len() int { return s.t.Len() }

// Empty reports whether the set holds no keys.
func (s *SparseSet[K]) Empty() bool { return s.t.Empty() }

// BucketCount returns the backing table's bucket count.
func (s *SparseSet[K]) BucketCount() int { return s.t.BucketCount() }

// Clear resets the set to its minimum size.
func (s *SparseSet[K]) Clear() { s.t.Clear() }

// Resize grows the set to hold at least targetLive keys.
func (s *SparseSet[K]) Resize(targetLive int) error { return s.t.Resize(targetLive) }

// All calls yield for each key until yield returns false.
func (s *SparseSet[K]) All(yield func(key K) bool) { s.t.All(yield) }

// Equal reports whether s and o hold the same keys.
func (s *SparseSet[K]) Equal(o *SparseSet[K]) bool { return s.t.Equal(o.t) }

// Swap exchanges the contents of s and o in O(1).
func (s *SparseSet[K]) Swap(o *SparseSet[K]) { s.t.Swap(o.t) }

// Clone returns a deep copy of the set.
func (s *SparseSet[K]) Clone() *SparseSet[K] { return &SparseSet[K]{t: s.t.Clone()} }

// Table returns the underlying engine for operations not surfaced on the
// set, such as serialization.
func (s *SparseSet[K]) Table() *SparseTable[K, K] { return s.t }
