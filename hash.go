package sparsehash

import "hash/maphash"

// DefaultHash returns a hash function for comparable keys built on
// hash/maphash with a per-function random seed. Two functions returned by
// separate calls hash the same key differently.
func DefaultHash[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(k K) uint64 {
		return maphash.Comparable(seed, k)
	}
}

// DefaultEqual is == for comparable keys.
func DefaultEqual[K comparable](a, b K) bool {
	return a == b
}

// setPolicy is the key policy for set-like tables, where the value is the
// key itself.
func setPolicy[K comparable]() KeyPolicy[K, K] {
	return KeyPolicy[K, K]{
		Hash:     DefaultHash[K](),
		Equal:    DefaultEqual[K],
		KeyOf:    func(v K) K { return v },
		SetKey:   func(v *K, k K) { *v = k },
		ValEqual: DefaultEqual[K],
	}
}

// Entry is the value type of map-like tables: a key plus its payload.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// entryPolicy is the key policy for map-like tables.
func entryPolicy[K, V comparable]() KeyPolicy[Entry[K, V], K] {
	return KeyPolicy[Entry[K, V], K]{
		Hash:   DefaultHash[K](),
		Equal:  DefaultEqual[K],
		KeyOf:  func(e Entry[K, V]) K { return e.Key },
		SetKey: func(e *Entry[K, V], k K) { e.Key = k },
		ValEqual: func(a, b Entry[K, V]) bool {
			return a.Key == b.Key && a.Value == b.Value
		},
	}
}
