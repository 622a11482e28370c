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
	"errors"
	"math"
)

const (
	// minBuckets is the smallest bucket count a table will use.
	minBuckets = 4
	// defaultStartingBuckets is the floor below which shrinking is
	// suppressed, so that small tables do not thrash between grow and
	// shrink.
	defaultStartingBuckets = 32

	defaultEnlargeFraction = 0.5
	defaultShrinkFraction  = 0.4 * defaultEnlargeFraction
)

// ErrCapacityOverflow is returned (or carried by a panic on the insert
// path) when the sizing arithmetic would overflow the bucket index type.
var ErrCapacityOverflow = errors.New("sparsehash: bucket count overflow")

// KeyPolicy bundles the per-table callables: how to hash a key, compare two
// keys, extract the key from a stored value, and overwrite the key portion
// of a value in place. SetKey is what lets the dense table stamp the
// deleted sentinel into a bucket; it may be nil for insert-only tables.
// ValEqual, if non-nil, is used by Equal to compare whole values; when nil,
// Equal compares key presence only.
type KeyPolicy[V, K any] struct {
	Hash     func(K) uint64
	Equal    func(K, K) bool
	KeyOf    func(V) K
	SetKey   func(*V, K)
	ValEqual func(V, V) bool
}

func (p *KeyPolicy[V, K]) validate() {
	if p.Hash == nil || p.Equal == nil || p.KeyOf == nil {
		panic("sparsehash: KeyPolicy requires Hash, Equal, and KeyOf")
	}
}

// settings carries the resize policy shared by both engines: the enlarge
// and shrink fractions, the thresholds derived from them for the current
// bucket count, and the lazy shrink flag set by erase and consumed by the
// next insert.
type settings struct {
	enlargeFrac      float64
	shrinkFrac       float64
	enlargeThreshold int
	shrinkThreshold  int
	considerShrink   bool
	// minWanted is a caller-requested floor on the bucket count, applied
	// at the initial allocation and by Clear. Zero means no floor.
	minWanted int
}

func defaultSettings() settings {
	return settings{
		enlargeFrac: defaultEnlargeFraction,
		shrinkFrac:  defaultShrinkFraction,
	}
}

// setResizingParameters installs new fractions. A shrink fraction above
// half the enlarge fraction would let a grow immediately re-trigger a
// shrink, so it is clamped down to enlarge/2.
func (s *settings) setResizingParameters(shrink, grow float64) error {
	if grow <= 0 || grow > 1 || shrink < 0 || shrink > 1 {
		return errors.New("sparsehash: grow fraction must be in (0, 1] and shrink fraction in [0, 1]")
	}
	if shrink > grow/2 {
		shrink = grow / 2
	}
	s.shrinkFrac = shrink
	s.enlargeFrac = grow
	return nil
}

// resetThresholds recomputes the grow and shrink thresholds for the given
// bucket count and clears the lazy shrink flag.
func (s *settings) resetThresholds(numBuckets int) {
	s.enlargeThreshold = int(float64(numBuckets) * s.enlargeFrac)
	s.shrinkThreshold = int(float64(numBuckets) * s.shrinkFrac)
	s.considerShrink = false
}

// minBucketsFor returns the smallest power-of-two bucket count >=
// max(minBuckets, minWanted) at which numElts elements stay strictly below
// the enlarge threshold.
func (s *settings) minBucketsFor(numElts, minWanted int) (int, error) {
	sz := minBuckets
	for sz < minWanted {
		if sz > math.MaxInt/2 {
			return 0, ErrCapacityOverflow
		}
		sz <<= 1
	}
	for float64(numElts) >= float64(sz)*s.enlargeFrac {
		if sz > math.MaxInt/2 {
			return 0, ErrCapacityOverflow
		}
		sz <<= 1
	}
	return sz, nil
}

// growTarget decides whether adding delta elements to a table with the
// given counts requires a resize, and to what size. The need is computed
// from num_elements (which includes tombstones), but the target from live
// elements only, so the "resize" may be a same-size compaction. If the
// compaction target is smaller than the tombstone-driven need, it is
// doubled once, provided the live count stays at or above the doubled
// size's shrink threshold, so the very next erase does not immediately
// shrink it back.
func (s *settings) growTarget(numElements, numDeleted, delta, numBuckets int) (int, bool, error) {
	if numBuckets >= minBuckets && numElements+delta <= s.enlargeThreshold {
		return 0, false, nil
	}
	needed, err := s.minBucketsFor(numElements+delta, 0)
	if err != nil {
		return 0, false, err
	}
	if needed <= numBuckets {
		return 0, false, nil
	}
	live := numElements - numDeleted + delta
	resizeTo, err := s.minBucketsFor(live, numBuckets)
	if err != nil {
		return 0, false, err
	}
	if resizeTo < needed && resizeTo < math.MaxInt/2 {
		if float64(live) >= float64(2*resizeTo)*s.shrinkFrac {
			resizeTo *= 2
		}
	}
	return resizeTo, true, nil
}

// shrinkTarget decides whether a table with the given live count should
// shrink, and to what size. Shrinking stops at defaultStartingBuckets and
// is disabled entirely when the shrink fraction is zero.
func (s *settings) shrinkTarget(live, numBuckets int) (int, bool) {
	if s.shrinkFrac <= 0 || live >= s.shrinkThreshold || numBuckets <= defaultStartingBuckets {
		return 0, false
	}
	sz := numBuckets / 2
	for sz > defaultStartingBuckets && live < int(float64(sz)*s.shrinkFrac) {
		sz /= 2
	}
	return sz, true
}

// probeSeq maintains the state for a probe sequence. The sequence is the
// triangular progression
//
//	p(k) := hash + (k^2 + k)/2 (mod mask+1)
//
// i.e. the k-th probe adds k to the previous index. It visits every bucket
// exactly once when the number of buckets is a power of two, since
// (k^2+k)/2 is a bijection in Z/(2^m). See
// https://en.wikipedia.org/wiki/Quadratic_probing
type probeSeq struct {
	mask   uint64
	offset uint64
	index  uint64
}

func makeProbeSeq(hash, mask uint64) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + s.index) & s.mask
	return s
}
