package sparsetable

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func checkTableInvariants[T any](t *testing.T, tb *Table[T]) {
	t.Helper()
	total := 0
	for gi := 0; gi < tb.NumGroups(); gi++ {
		g := &tb.groups[gi]
		require.Equal(t, bits.OnesCount64(g.Bitmap()), g.Len())
		total += g.Len()
	}
	require.Equal(t, total, tb.NumNonempty())
}

func TestTableBasic(t *testing.T) {
	tb := New[int](100)
	require.Equal(t, 100, tb.Len())
	require.Equal(t, 3, tb.NumGroups())
	require.Equal(t, 0, tb.NumNonempty())

	tb.Set(0, 1)
	tb.Set(49, 2)
	tb.Set(99, 3)
	checkTableInvariants(t, tb)
	require.Equal(t, 3, tb.NumNonempty())
	require.True(t, tb.Test(49))
	require.False(t, tb.Test(50))
	require.Equal(t, 2, tb.Get(49))
	require.Zero(t, tb.Get(50))

	require.True(t, tb.Erase(49))
	require.False(t, tb.Erase(49))
	checkTableInvariants(t, tb)
	require.Equal(t, 2, tb.NumNonempty())
}

// Mirrors the classic sparse array scenario: a table of 70 slots straddling
// a group boundary, truncated and re-grown.
func TestTableResizeTruncation(t *testing.T) {
	tb := New[int](70)
	for _, i := range []int{12, 47, 48, 49} {
		tb.Set(i, i*10)
	}
	require.Equal(t, 4, tb.NumNonempty())
	checkTableInvariants(t, tb)

	// Shrinking to 48 drops slots 48 and 49.
	tb.Resize(48)
	require.Equal(t, 48, tb.Len())
	require.Equal(t, 2, tb.NumNonempty())
	require.True(t, tb.Test(12))
	require.True(t, tb.Test(47))
	checkTableInvariants(t, tb)

	// Growing back does not resurrect them.
	tb.Resize(70)
	require.Equal(t, 70, tb.Len())
	require.Equal(t, 2, tb.NumNonempty())
	require.False(t, tb.Test(48))
	require.False(t, tb.Test(49))
	checkTableInvariants(t, tb)

	require.True(t, tb.Erase(12))
	require.Equal(t, 1, tb.NumNonempty())
	checkTableInvariants(t, tb)
}

func TestTableResizeToZero(t *testing.T) {
	tb := New[int](70)
	tb.Set(0, 1)
	tb.Set(69, 2)
	tb.Resize(0)
	require.Equal(t, 0, tb.Len())
	require.Equal(t, 0, tb.NumNonempty())
	require.Equal(t, 0, tb.NumGroups())
	tb.Resize(70)
	require.Equal(t, 0, tb.NumNonempty())
	checkTableInvariants(t, tb)
}

func TestTableAll(t *testing.T) {
	tb := New[int](200)
	want := map[int]int{3: 30, 48: 480, 96: 960, 150: 1500, 199: 1990}
	for i, v := range want {
		tb.Set(i, v)
	}

	got := map[int]int{}
	var order []int
	tb.All(func(pos int, v int) bool {
		got[pos] = v
		order = append(order, pos)
		return true
	})
	require.Equal(t, want, got)
	require.IsIncreasing(t, order)

	// Early termination.
	n := 0
	tb.All(func(pos int, v int) bool {
		n++
		return n < 2
	})
	require.Equal(t, 2, n)
}

func TestTablePosIter(t *testing.T) {
	tb := New[int](100)
	tb.Set(10, 100)
	tb.Set(60, 600)

	it := tb.Pos(0)
	require.True(t, it.Valid())
	require.False(t, it.Test())
	require.Zero(t, it.Get())

	it = it.Add(10)
	require.Equal(t, 10, it.Index())
	require.True(t, it.Test())
	require.Equal(t, 100, it.Get())

	it2 := it.Add(50)
	require.Equal(t, 60, it2.Index())
	require.True(t, it2.Test())
	require.Equal(t, 50, it2.Sub(it))

	it2 = it2.Add(-50)
	require.Equal(t, it, it2)

	end := tb.Pos(tb.Len())
	require.False(t, end.Valid())
	require.Equal(t, 100, end.Sub(tb.Pos(0)))

	// Walking every position with Next visits present slots in order.
	var present []int
	for it := tb.Pos(0); it.Valid(); it = it.Next() {
		if it.Test() {
			present = append(present, it.Index())
		}
	}
	require.Equal(t, []int{10, 60}, present)
}

func TestTableIter(t *testing.T) {
	tb := New[int](300)
	want := []int{0, 47, 48, 95, 149, 250, 299}
	for _, i := range want {
		tb.Set(i, i+1)
	}

	var got []int
	for it := tb.Iter(); it.Valid(); it.Next() {
		require.Equal(t, it.Pos()+1, it.Value())
		got = append(got, it.Pos())
	}
	require.Equal(t, want, got)

	// Empty table.
	empty := New[int](100)
	require.False(t, empty.Iter().Valid())
}

func TestTableEqualSwap(t *testing.T) {
	a := New[int](70)
	b := New[int](70)
	eq := func(x, y int) bool { return x == y }

	a.Set(5, 50)
	a.Set(60, 600)
	require.False(t, a.Equal(b, eq))
	b.Set(60, 600)
	b.Set(5, 50)
	require.True(t, a.Equal(b, eq))

	b.Set(60, 601)
	require.False(t, a.Equal(b, eq))

	c := New[int](70)
	a.Swap(c)
	require.Equal(t, 0, a.NumNonempty())
	require.Equal(t, 2, c.NumNonempty())
	require.Equal(t, 50, c.Get(5))
}

func TestTableClone(t *testing.T) {
	a := New[int](100)
	a.Set(10, 1)
	a.Set(90, 2)

	b := a.Clone()
	require.True(t, a.Equal(b, func(x, y int) bool { return x == y }))

	b.Set(10, 99)
	b.Erase(90)
	require.Equal(t, 1, a.Get(10))
	require.True(t, a.Test(90))
	require.Equal(t, 2, a.NumNonempty())
	require.Equal(t, 1, b.NumNonempty())
	checkTableInvariants(t, a)
	checkTableInvariants(t, b)
}

func TestTableClear(t *testing.T) {
	tb := New[int](100)
	tb.Set(1, 1)
	tb.Set(99, 2)
	tb.Clear()
	require.Equal(t, 100, tb.Len())
	require.Equal(t, 0, tb.NumNonempty())
	require.False(t, tb.Test(1))
	checkTableInvariants(t, tb)
}

func TestTableSerializeRoundTrip(t *testing.T) {
	tb := New[uint32](1000)
	for i := 0; i < 1000; i += 7 {
		tb.Set(i, uint32(i*3))
	}

	var buf bytes.Buffer
	require.NoError(t, tb.WriteMetadata(&buf))
	require.NoError(t, tb.WriteNopointerData(&buf))

	got := New[uint32](0)
	require.NoError(t, got.ReadMetadata(&buf))
	require.NoError(t, got.ReadNopointerData(&buf))

	require.True(t, tb.Equal(got, func(a, b uint32) bool { return a == b }))
	checkTableInvariants(t, got)
}

func TestTableSerializeCallbacks(t *testing.T) {
	// Strings hold pointers, so they go through the per-element codec.
	tb := New[string](70)
	tb.Set(12, "twelve")
	tb.Set(48, "forty-eight")

	enc := func(w io.Writer, s string) error {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
			return err
		}
		_, err := io.WriteString(w, s)
		return err
	}
	dec := func(r io.Reader) (string, error) {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return "", err
		}
		return string(b), nil
	}

	var buf bytes.Buffer
	require.NoError(t, tb.WriteMetadata(&buf))
	require.NoError(t, tb.WriteData(&buf, enc))

	got := New[string](0)
	require.NoError(t, got.ReadMetadata(&buf))
	require.NoError(t, got.ReadData(&buf, dec))
	require.True(t, tb.Equal(got, func(a, b string) bool { return a == b }))
}

func TestTableReadMetadataErrors(t *testing.T) {
	tb := New[int](70)
	tb.Set(3, 33)

	var buf bytes.Buffer
	require.NoError(t, tb.WriteMetadata(&buf))
	raw := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), raw...)
		bad[0] ^= 0xff
		err := New[int](0).ReadMetadata(bytes.NewReader(bad))
		require.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("bad version", func(t *testing.T) {
		bad := append([]byte(nil), raw...)
		binary.LittleEndian.PutUint32(bad[4:], 999)
		err := New[int](0).ReadMetadata(bytes.NewReader(bad))
		require.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("truncated", func(t *testing.T) {
		err := New[int](0).ReadMetadata(bytes.NewReader(raw[:10]))
		require.Error(t, err)
	})

	t.Run("corrupt count", func(t *testing.T) {
		bad := append([]byte(nil), raw...)
		// First group header follows the 24-byte table header; flip a
		// bitmap bit without touching the count.
		bad[24] ^= 0x02
		err := New[int](0).ReadMetadata(bytes.NewReader(bad))
		require.ErrorIs(t, err, ErrCorruptMetadata)
	})
}

func TestTableRandom(t *testing.T) {
	const n = 500
	tb := New[int](n)
	model := make(map[int]int)
	for i := 0; i < 20000; i++ {
		pos := rand.Intn(n)
		switch r := rand.Float64(); {
		case r < 0.5:
			v := rand.Int()
			tb.Set(pos, v)
			model[pos] = v
		case r < 0.75:
			_, ok := model[pos]
			require.Equal(t, ok, tb.Erase(pos))
			delete(model, pos)
		default:
			mv, ok := model[pos]
			require.Equal(t, ok, tb.Test(pos))
			if ok {
				require.Equal(t, mv, tb.Get(pos))
			}
		}
		require.Equal(t, len(model), tb.NumNonempty())
	}
	checkTableInvariants(t, tb)
}
