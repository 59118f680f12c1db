// Package binio implements the little-endian stream primitives shared by
// the metadata, blob heap and PE layout code: fixed-size integers,
// ECMA-335 compressed integers, serialized strings and alignment padding.
package binio

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	// MaxCompressedUint32 is the largest value that fits the compressed
	// unsigned integer encoding.
	MaxCompressedUint32 = 0x1FFFFFFF

	minCompressedInt32 = -(1 << 28)
	maxCompressedInt32 = 1<<28 - 1

	// nullSerString marks a null SerString in custom attribute blobs.
	nullSerString = 0xFF
)

var (
	ErrValueTooLarge   = errors.New("value does not fit the compressed integer encoding")
	ErrUnexpectedEOF   = errors.New("unexpected end of stream")
	ErrInvalidEncoding = errors.New("invalid compressed integer encoding")
)

// Writer appends little-endian encoded values to an in-memory buffer.
// The zero value is ready to use.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written so far, which is also the
// offset at which the next value is written.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes. The slice aliases the buffer and is
// only valid until the next write.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Write implements io.Writer. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// WriteByte implements io.ByteWriter. It never fails.
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }

func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteASCII writes the bytes of s without a terminator.
func (w *Writer) WriteASCII(s string) {
	w.buf = append(w.buf, s...)
}

// WriteCompressedUint32 writes v using the 1, 2 or 4 byte big-endian
// encoding of ECMA-335 II.23.2.
func (w *Writer) WriteCompressedUint32(v uint32) error {
	switch {
	case v < 0x80:
		w.buf = append(w.buf, byte(v))
	case v < 0x4000:
		w.buf = append(w.buf, byte(0x80|v>>8), byte(v))
	case v <= MaxCompressedUint32:
		w.buf = append(w.buf, byte(0xC0|v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		return errors.Wrapf(ErrValueTooLarge, "%#x", v)
	}
	return nil
}

// WriteCompressedInt32 writes v using the rotated sign encoding used by
// array lower bounds. The width is chosen from the signed range, so small
// negative values in the 2 and 4 byte ranges keep their long form.
func (w *Writer) WriteCompressedInt32(v int32) error {
	var sign uint32
	if v < 0 {
		sign = 1
	}
	u := uint32(v)
	switch {
	case v >= -(1<<6) && v < 1<<6:
		w.buf = append(w.buf, byte((u&0x3F)<<1|sign))
	case v >= -(1<<13) && v < 1<<13:
		e := (u&0x1FFF)<<1 | sign
		w.buf = append(w.buf, byte(0x80|e>>8), byte(e))
	case v >= minCompressedInt32 && v <= maxCompressedInt32:
		e := (u&0x0FFFFFFF)<<1 | sign
		w.buf = append(w.buf, byte(0xC0|e>>24), byte(e>>16), byte(e>>8), byte(e))
	default:
		return errors.Wrapf(ErrValueTooLarge, "%d", v)
	}
	return nil
}

// WriteSerString writes a length-prefixed UTF-8 string. A nil pointer is
// written as the single null marker byte.
func (w *Writer) WriteSerString(s *string) error {
	if s == nil {
		w.buf = append(w.buf, nullSerString)
		return nil
	}
	if err := w.WriteCompressedUint32(uint32(len(*s))); err != nil {
		return err
	}
	w.buf = append(w.buf, *s...)
	return nil
}

// Align pads the buffer with zero bytes up to the next multiple of n.
func (w *Writer) Align(n int) {
	if n <= 1 {
		return
	}
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

// CompressedUint32Size returns the number of bytes WriteCompressedUint32
// produces for v, or 0 if v cannot be encoded.
func CompressedUint32Size(v uint32) int {
	switch {
	case v < 0x80:
		return 1
	case v < 0x4000:
		return 2
	case v <= MaxCompressedUint32:
		return 4
	default:
		return 0
	}
}

// AlignUp rounds v up to the next multiple of alignment.
func AlignUp(v, alignment uint32) uint32 {
	if alignment <= 1 {
		return v
	}
	return (v + alignment - 1) &^ (alignment - 1)
}
