package sparsetable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"unsafe"
)

// The metadata stream is self-describing enough to rebuild the table's
// shape (size, bitmaps, counts) without knowing the value type. The data
// stream is the concatenation of the packed value arrays in group order.
// Metadata headers are little-endian; the raw data stream uses the host
// byte order, which is not normalized across platforms.
const (
	tableMagic   uint32 = 0x53504254 // "SPBT"
	tableVersion uint32 = 1
)

var (
	// ErrInvalidMagic indicates the stream does not start with a sparse
	// table metadata header.
	ErrInvalidMagic = errors.New("sparsetable: invalid magic")
	// ErrInvalidVersion indicates an unsupported metadata version.
	ErrInvalidVersion = errors.New("sparsetable: unsupported version")
	// ErrCorruptMetadata indicates an inconsistency between a group's
	// bitmap and its recorded count.
	ErrCorruptMetadata = errors.New("sparsetable: corrupt metadata")
)

type tableHeader struct {
	Magic       uint32
	Version     uint32
	NumSlots    uint64
	NumNonempty uint64
}

type groupHeader struct {
	Bitmap uint64
	Count  uint16
}

// WriteMetadata writes the table's shape: logical size, present count, and
// per-group bitmaps and counts. The value payload is written separately by
// WriteNopointerData or WriteData.
func (t *Table[T]) WriteMetadata(w io.Writer) error {
	hdr := tableHeader{
		Magic:       tableMagic,
		Version:     tableVersion,
		NumSlots:    uint64(t.n),
		NumNonempty: uint64(t.numNonempty),
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("sparsetable: write header: %w", err)
	}
	for gi := range t.groups {
		g := &t.groups[gi]
		gh := groupHeader{Bitmap: g.bmap, Count: uint16(len(g.vals))}
		if err := binary.Write(w, binary.LittleEndian, &gh); err != nil {
			return fmt.Errorf("sparsetable: write group %d: %w", gi, err)
		}
	}
	return nil
}

// ReadMetadata reconstructs the table's shape from a metadata stream. The
// packed storage is allocated and zero-valued; ReadNopointerData or
// ReadData fills it. Any previous contents of t are discarded.
func (t *Table[T]) ReadMetadata(r io.Reader) error {
	var hdr tableHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("sparsetable: read header: %w", err)
	}
	if hdr.Magic != tableMagic {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, hdr.Magic)
	}
	if hdr.Version != tableVersion {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, hdr.Version)
	}

	n := int(hdr.NumSlots)
	groups := make([]Group[T], numGroupsFor(n))
	total := 0
	for gi := range groups {
		var gh groupHeader
		if err := binary.Read(r, binary.LittleEndian, &gh); err != nil {
			return fmt.Errorf("sparsetable: read group %d: %w", gi, err)
		}
		if bits.OnesCount64(gh.Bitmap) != int(gh.Count) {
			return fmt.Errorf("%w: group %d bitmap/count mismatch", ErrCorruptMetadata, gi)
		}
		groups[gi].bmap = gh.Bitmap
		if gh.Count > 0 {
			groups[gi].vals = make([]T, gh.Count)
		}
		total += int(gh.Count)
	}
	if total != int(hdr.NumNonempty) {
		return fmt.Errorf("%w: group counts sum to %d, header says %d",
			ErrCorruptMetadata, total, hdr.NumNonempty)
	}

	t.groups = groups
	t.n = n
	t.numNonempty = total
	return nil
}

// rawBytes views a packed value array as bytes. Only valid when T contains
// no pointers.
func rawBytes[T any](vals []T) []byte {
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*int(unsafe.Sizeof(zero)))
}

// WriteNopointerData writes the packed value arrays as raw bytes, in group
// order. Valid only when T contains no pointers. Endianness is not
// normalized.
func (t *Table[T]) WriteNopointerData(w io.Writer) error {
	for gi := range t.groups {
		g := &t.groups[gi]
		if len(g.vals) == 0 {
			continue
		}
		if _, err := w.Write(rawBytes(g.vals)); err != nil {
			return fmt.Errorf("sparsetable: write group %d data: %w", gi, err)
		}
	}
	return nil
}

// ReadNopointerData fills the packed value arrays allocated by
// ReadMetadata from raw bytes. Valid only when T contains no pointers and
// the stream was produced on a platform of the same endianness.
func (t *Table[T]) ReadNopointerData(r io.Reader) error {
	for gi := range t.groups {
		g := &t.groups[gi]
		if len(g.vals) == 0 {
			continue
		}
		if _, err := io.ReadFull(r, rawBytes(g.vals)); err != nil {
			return fmt.Errorf("sparsetable: read group %d data: %w", gi, err)
		}
	}
	return nil
}

// WriteData writes each present value using the supplied encoder, in group
// order. Use this instead of WriteNopointerData when T contains pointers.
func (t *Table[T]) WriteData(w io.Writer, enc func(io.Writer, T) error) error {
	for gi := range t.groups {
		for _, v := range t.groups[gi].vals {
			if err := enc(w, v); err != nil {
				return fmt.Errorf("sparsetable: encode group %d: %w", gi, err)
			}
		}
	}
	return nil
}

// ReadData fills the packed value arrays allocated by ReadMetadata using
// the supplied decoder.
func (t *Table[T]) ReadData(r io.Reader, dec func(io.Reader) (T, error)) error {
	for gi := range t.groups {
		vals := t.groups[gi].vals
		for vi := range vals {
			v, err := dec(r)
			if err != nil {
				return fmt.Errorf("sparsetable: decode group %d: %w", gi, err)
			}
			vals[vi] = v
		}
	}
	return nil
}
