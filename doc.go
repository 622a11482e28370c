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

// Package sparsehash provides memory-efficient open-addressed hash tables
// in two flavors that share one design.
//
// # Dense tables
//
// A DenseTable keeps a single contiguous bucket array where every bucket
// always holds a value. Two keys are stolen from the key space: the
// caller-designated empty key fills unused buckets, and an optional
// deleted key marks tombstones. With no per-bucket metadata at all, a
// probe is an array access plus a key comparison, which makes the dense
// table the raw-speed option. The cost is that every empty bucket holds a
// full (sentinel) value.
//
// # Sparse tables
//
// A SparseTable inverts the trade-off. Its bucket array is a sparsetable:
// fixed-size groups that store only the present values behind a presence
// bitmap, so an empty bucket costs roughly one bit. Emptiness is encoded
// by bitmap absence and tombstones live in a parallel Roaring bitmap, so
// no sentinel keys are reserved. Lookups pay a popcount per probe, and
// inserts pay a reallocate-and-shift of the containing group's packed
// storage. The sparse engine also has a compact persistent form: the
// metadata stream describes the structure without reference to the value
// type, and the data stream is the raw packed values (for pointer-free
// value types).
//
// # Shared design
//
// Both engines hash with a caller-supplied function, reduce the hash with
// a power-of-two mask, and resolve collisions with triangular quadratic
// probing, which visits every bucket before repeating. An insert that
// would push the element count (including tombstones) past the enlarge
// fraction of the bucket count triggers a resize sized by the live count
// alone, so heavily tombstoned tables compact rather than grow. Erases
// only flag a shrink, which the next insert executes; tables at or below
// the starting bucket count never shrink, which keeps small tables from
// thrashing.
//
// DenseSet, DenseMap, SparseSet, and SparseMap are thin façades over the
// engines for the common case of comparable keys hashed with
// hash/maphash.
//
// None of the containers are goroutine-safe, and iteration order is not
// stable across mutations.
package sparsehash
