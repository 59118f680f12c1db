// Package segment lays out address-relative structures of a PE image.
//
// Layout is done in two passes. UpdateOffsets assigns every segment its
// file offset and RVA and computes its size; WriteTo then emits the bytes.
// Address queries are only valid between the two passes and after.
package segment

import (
	"io"

	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/binio"
)

var (
	ErrOffsetsNotComputed = errors.New("offsets have not been computed")
	ErrSizeMismatch       = errors.New("written size does not match the computed size")
)

// RelocationParameters locate a segment in the image.
type RelocationParameters struct {
	ImageBase uint64
	Offset    uint64
	RVA       uint32
	Is32Bit   bool
}

// Advance returns the parameters of the position n bytes further.
func (p RelocationParameters) Advance(n uint32) RelocationParameters {
	p.Offset += uint64(n)
	p.RVA += n
	return p
}

// Align returns the parameters of the next position aligned to
// alignment, which must be a power of two.
func (p RelocationParameters) Align(alignment uint32) RelocationParameters {
	aligned := binio.AlignUp(p.RVA, alignment)
	return p.Advance(aligned - p.RVA)
}

// Segment is a contiguous region of an image.
type Segment interface {
	// UpdateOffsets places the segment and computes its size.
	UpdateOffsets(p RelocationParameters) error
	// Size returns the number of bytes WriteTo emits.
	Size() uint32
	WriteTo(w io.Writer) (int64, error)
}

// Base records the placement of a segment. It is meant to be embedded.
type Base struct {
	params  RelocationParameters
	updated bool
}

func (b *Base) UpdateOffsets(p RelocationParameters) error {
	b.params = p
	b.updated = true
	return nil
}

func (b *Base) Placed() bool { return b.updated }

// RVA returns the address of the segment.
func (b *Base) RVA() (uint32, error) {
	if !b.updated {
		return 0, ErrOffsetsNotComputed
	}
	return b.params.RVA, nil
}

// Offset returns the file offset of the segment.
func (b *Base) Offset() (uint64, error) {
	if !b.updated {
		return 0, ErrOffsetsNotComputed
	}
	return b.params.Offset, nil
}

// Data is a segment of raw bytes.
type Data struct {
	Base
	data []byte
}

func NewData(data []byte) *Data { return &Data{data: data} }

func (d *Data) Size() uint32 { return uint32(len(d.data)) }

func (d *Data) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data)
	return int64(n), err
}
