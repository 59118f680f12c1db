package binio

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Reader decodes little-endian values from a byte slice.
type Reader struct {
	data   []byte
	offset int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Offset() int    { return r.offset }
func (r *Reader) Len() int       { return len(r.data) }
func (r *Reader) Remaining() int { return len(r.data) - r.offset }

// Seek moves the read position to an absolute offset.
func (r *Reader) Seek(offset int) error {
	if offset < 0 || offset > len(r.data) {
		return errors.Wrapf(ErrUnexpectedEOF, "seek to %d of %d", offset, len(r.data))
	}
	r.offset = offset
	return nil
}

func (r *Reader) need(n int) error {
	if n < 0 || r.Remaining() < n {
		return errors.Wrapf(ErrUnexpectedEOF, "need %d bytes at offset %d, have %d", n, r.offset, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.offset:])
	r.offset += 8
	return v, nil
}

// ReadBytes returns the next n bytes. The slice aliases the underlying data.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// ReadCompressedUint32 decodes an ECMA-335 compressed unsigned integer.
func (r *Reader) ReadCompressedUint32() (uint32, error) {
	v, _, err := r.readCompressed()
	return v, err
}

// ReadCompressedInt32 decodes a rotated-sign compressed integer.
func (r *Reader) ReadCompressedInt32() (int32, error) {
	u, size, err := r.readCompressed()
	if err != nil {
		return 0, err
	}
	v := u >> 1
	if u&1 != 0 {
		switch size {
		case 1:
			v |= 0xFFFFFFC0
		case 2:
			v |= 0xFFFFE000
		default:
			v |= 0xF0000000
		}
	}
	return int32(v), nil
}

func (r *Reader) readCompressed() (uint32, int, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), 2, nil
	case b0&0xE0 == 0xC0:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, 0, err
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), 4, nil
	default:
		return 0, 0, errors.Wrapf(ErrInvalidEncoding, "lead byte %#x at offset %d", b0, r.offset-1)
	}
}

// ReadSerString decodes a SerString. A null string is returned as nil.
func (r *Reader) ReadSerString() (*string, error) {
	if err := r.need(1); err != nil {
		return nil, err
	}
	if r.data[r.offset] == nullSerString {
		r.offset++
		return nil, nil
	}
	n, err := r.ReadCompressedUint32()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, errors.Errorf("invalid UTF-8 in serialized string at offset %d", r.offset-len(b))
	}
	s := string(b)
	return &s, nil
}
