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
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

type benchTypes interface {
	int64 | string
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{16, 128, 1024, 8192, 1 << 16}
	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genKeys) })
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	keys := make([]T, end-start)
	for i := range keys {
		switch p := any(&keys[i]).(type) {
		case *int64:
			*p = int64(start + i)
		case *string:
			*p = strconv.Itoa(start + i)
		}
	}
	return keys
}

// Sentinels outside the generated key ranges.
func benchEmptyKey[T benchTypes]() T {
	var k T
	switch p := any(&k).(type) {
	case *int64:
		*p = -1
	case *string:
		*p = "\x00empty"
	}
	return k
}

func benchDeletedKey[T benchTypes]() T {
	var k T
	switch p := any(&k).(type) {
	case *int64:
		*p = -2
	case *string:
		*p = "\x00deleted"
	}
	return k
}

func newBenchDenseMap[T benchTypes](n int) *DenseMap[T, T] {
	m := NewDenseMap[T, T](n)
	m.SetEmptyKey(benchEmptyKey[T]())
	m.SetDeletedKey(benchDeletedKey[T]())
	return m
}

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=denseMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkDenseMapGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkDenseMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=sparseMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSparseMapGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkSparseMapGetHit[string], genKeys[string]))
	})
}

func BenchmarkMapPutGrow(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutGrow[int64], genKeys[int64]))
	})
	b.Run("impl=denseMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkDenseMapPutGrow[int64], genKeys[int64]))
	})
	b.Run("impl=sparseMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSparseMapPutGrow[int64], genKeys[int64]))
	})
}

func BenchmarkMapPutDelete(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutDelete[int64], genKeys[int64]))
	})
	b.Run("impl=denseMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkDenseMapPutDelete[int64], genKeys[int64]))
	})
	b.Run("impl=sparseMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSparseMapPutDelete[int64], genKeys[int64]))
	})
}

func benchmarkRuntimeMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	// Defeat the runtime map's pointer-equality fast path for strings.
	keys = genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[keys[i&(n-1)]]
	}
}

func benchmarkDenseMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchDenseMap[T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	keys = genKeys(0, n)
	b.ResetTimer()
	cs := perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(keys[i&(n-1)])
	}
	cs.Stop()
	if !ok {
		b.Fatal("miss")
	}
}

func benchmarkSparseMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := NewSparseMap[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	keys = genKeys(0, n)
	b.ResetTimer()
	cs := perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(keys[i&(n-1)])
	}
	cs.Stop()
	if !ok {
		b.Fatal("miss")
	}
}

func benchmarkRuntimeMapPutGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[T]T)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkDenseMapPutGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := newBenchDenseMap[T](0)
		for _, k := range keys {
			m.Put(k, k)
		}
	}
}

func benchmarkSparseMapPutGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := NewSparseMap[T, T](0)
		for _, k := range keys {
			m.Put(k, k)
		}
	}
}

func benchmarkRuntimeMapPutDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, keys[j])
		m[keys[j]] = keys[j]
	}
}

func benchmarkDenseMapPutDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchDenseMap[T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		m.Delete(keys[j])
		m.Put(keys[j], keys[j])
	}
}

func benchmarkSparseMapPutDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := NewSparseMap[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		m.Delete(keys[j])
		m.Put(keys[j], keys[j])
	}
}
