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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeSeq(t *testing.T) {
	genSeq := func(n int, hash, mask uint64) []uint64 {
		seq := makeProbeSeq(hash, mask)
		vals := make([]uint64, n)
		for i := 0; i < n; i++ {
			vals[i] = seq.offset
			seq = seq.next()
		}
		return vals
	}

	// The triangular progression over a power-of-two modulus.
	expected := []uint64{0, 1, 3, 6, 10, 15, 5, 12, 4, 13, 7, 2, 14, 11, 9, 8}
	require.Equal(t, expected, genSeq(16, 0, 15))
	require.Equal(t, expected, genSeq(16, 16, 15))

	// Every bucket is visited exactly once no matter the start offset.
	for h := uint64(0); h < 16; h++ {
		vals := genSeq(16, h, 15)
		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
		for i := range vals {
			require.EqualValues(t, i, vals[i])
		}
	}
}

func TestMinBucketsFor(t *testing.T) {
	s := defaultSettings()
	testCases := []struct {
		numElts   int
		minWanted int
		expected  int
	}{
		{0, 0, 4},
		{1, 0, 4},
		{2, 0, 8},
		{3, 0, 8},
		{4, 0, 16},
		{31, 0, 64},
		{32, 0, 128},
		{0, 5, 8},
		{0, 32, 32},
		{100, 8, 256},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			got, err := s.minBucketsFor(c.numElts, c.minWanted)
			require.NoError(t, err)
			require.Equal(t, c.expected, got)
		})
	}
}

func TestMinBucketsOverflow(t *testing.T) {
	s := defaultSettings()
	_, err := s.minBucketsFor(int(^uint(0)>>2), 0)
	require.ErrorIs(t, err, ErrCapacityOverflow)
}

func TestResizingParameterClamp(t *testing.T) {
	s := defaultSettings()

	// A shrink fraction above grow/2 is clamped down.
	require.NoError(t, s.setResizingParameters(0.8, 0.9))
	require.Equal(t, 0.9, s.enlargeFrac)
	require.Equal(t, 0.45, s.shrinkFrac)

	require.NoError(t, s.setResizingParameters(0.1, 0.6))
	require.Equal(t, 0.1, s.shrinkFrac)

	require.Error(t, s.setResizingParameters(0.1, 1.5))
	require.Error(t, s.setResizingParameters(-0.1, 0.5))
	require.Error(t, s.setResizingParameters(0.1, 0))
}

func TestShrinkTargetFloor(t *testing.T) {
	s := defaultSettings()
	s.resetThresholds(32)

	// At or below the starting bucket count, shrink is suppressed.
	_, ok := s.shrinkTarget(0, 32)
	require.False(t, ok)

	s.resetThresholds(1024)
	sz, ok := s.shrinkTarget(0, 1024)
	require.True(t, ok)
	require.Equal(t, 32, sz)

	// A zero shrink fraction disables shrinking entirely.
	require.NoError(t, s.setResizingParameters(0, 0.5))
	s.resetThresholds(1024)
	_, ok = s.shrinkTarget(0, 1024)
	require.False(t, ok)
}
