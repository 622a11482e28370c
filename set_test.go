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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDenseSetBasic(t *testing.T) {
	s := NewDenseSet[string](0)
	s.SetEmptyKey("")

	require.True(t, s.Insert("a"))
	require.False(t, s.Insert("a"))
	require.True(t, s.Contains("a"))
	require.False(t, s.Contains("b"))
	require.Equal(t, 1, s.Len())
	require.False(t, s.Empty())

	s.InsertAll([]string{"b", "c", "d"})
	require.Equal(t, 4, s.Len())

	var got []string
	s.All(func(k string) bool {
		got = append(got, k)
		return true
	})
	require.ElementsMatch(t, []string{"a", "b", "c", "d"}, got)
}

func TestSparseSetBasic(t *testing.T) {
	s := NewSparseSet[string](0)
	require.True(t, s.Insert("a"))
	require.False(t, s.Insert("a"))
	require.True(t, s.Contains("a"))
	require.Equal(t, 1, s.Erase("a"))
	require.True(t, s.Empty())

	s.InsertAll([]string{"x", "y"})
	require.Equal(t, 2, s.Len())
}

func TestWithMinBuckets(t *testing.T) {
	d := NewDenseSet[int](0, WithMinBuckets[int, int](100))
	d.SetEmptyKey(-1)
	require.Equal(t, 128, d.BucketCount())

	// Clear resets to the floor, not the global minimum.
	for i := 0; i < 500; i++ {
		d.Insert(i)
	}
	require.Greater(t, d.BucketCount(), 128)
	d.Clear()
	require.Equal(t, 128, d.BucketCount())

	s := NewSparseSet[int](0, WithMinBuckets[int, int](100))
	require.Equal(t, 128, s.BucketCount())
	s.Insert(1)
	s.Clear()
	require.Equal(t, 128, s.BucketCount())
}

func TestSetEqual(t *testing.T) {
	a := NewSparseSet[int](0)
	b := NewSparseSet[int](0)
	for i := 0; i < 100; i++ {
		a.Insert(i)
		b.Insert(99 - i)
	}
	require.True(t, a.Equal(b))
	b.Erase(0)
	require.False(t, a.Equal(b))
	b.Insert(0)
	require.True(t, a.Equal(b))
}
