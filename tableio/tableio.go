// Package tableio frames serialized tables for storage. A stream starts
// with a self-describing header naming the codec, followed by the
// (optionally compressed) payload, typically a table's metadata stream
// concatenated with its data stream. The framing is codec-agnostic: a
// reader picks the codec from the header, so files written with different
// codecs interoperate.
package tableio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the compression applied to the payload.
type Codec uint8

const (
	// CodecNone stores the payload uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 applies LZ4 stream compression (fast, modest ratio).
	CodecLZ4 Codec = 1
	// CodecZSTD applies zstd stream compression (better ratio).
	CodecZSTD Codec = 2
)

const (
	magic   uint32 = 0x5350494F // "SPIO"
	version uint8  = 1
)

var (
	// ErrInvalidMagic indicates the stream is not a tableio stream.
	ErrInvalidMagic = errors.New("tableio: invalid magic")
	// ErrInvalidVersion indicates an unsupported stream version.
	ErrInvalidVersion = errors.New("tableio: unsupported version")
	// ErrUnknownCodec indicates a codec this build does not know.
	ErrUnknownCodec = errors.New("tableio: unknown codec")
)

// Writer writes a framed, optionally compressed stream. Close must be
// called to flush the codec; the underlying writer is not closed.
type Writer struct {
	payload io.Writer
	zw      *zstd.Encoder
	lw      *lz4.Writer
}

// NewWriter writes the stream header to w and returns a Writer whose
// Write appends to the payload through the chosen codec.
func NewWriter(w io.Writer, c Codec) (*Writer, error) {
	var hdr [6]byte
	binary.LittleEndian.PutUint32(hdr[0:], magic)
	hdr[4] = version
	hdr[5] = uint8(c)
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("tableio: write header: %w", err)
	}
	tw := &Writer{}
	switch c {
	case CodecNone:
		tw.payload = w
	case CodecLZ4:
		tw.lw = lz4.NewWriter(w)
		tw.payload = tw.lw
	case CodecZSTD:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("tableio: zstd writer: %w", err)
		}
		tw.zw = zw
		tw.payload = zw
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, c)
	}
	return tw, nil
}

// Write appends p to the payload.
func (w *Writer) Write(p []byte) (int, error) {
	return w.payload.Write(p)
}

// Close flushes and closes the codec. The underlying writer stays open.
func (w *Writer) Close() error {
	switch {
	case w.zw != nil:
		return w.zw.Close()
	case w.lw != nil:
		return w.lw.Close()
	}
	return nil
}

// Reader reads a framed stream written by Writer, transparently
// decompressing the payload.
type Reader struct {
	payload io.Reader
	zr      *zstd.Decoder
	codec   Codec
}

// NewReader reads and validates the stream header from r and returns a
// Reader positioned at the start of the payload.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("tableio: read header: %w", err)
	}
	if got := binary.LittleEndian.Uint32(hdr[0:]); got != magic {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, got)
	}
	if hdr[4] != version {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, hdr[4])
	}
	tr := &Reader{codec: Codec(hdr[5])}
	switch tr.codec {
	case CodecNone:
		tr.payload = r
	case CodecLZ4:
		tr.payload = lz4.NewReader(r)
	case CodecZSTD:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("tableio: zstd reader: %w", err)
		}
		tr.zr = zr
		tr.payload = zr
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, tr.codec)
	}
	return tr, nil
}

// Codec returns the codec recorded in the stream header.
func (r *Reader) Codec() Codec {
	return r.codec
}

// Read reads decompressed payload bytes.
func (r *Reader) Read(p []byte) (int, error) {
	return r.payload.Read(p)
}

// Close releases codec resources. The underlying reader stays open.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return nil
}
