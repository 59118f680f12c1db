package segment

import (
	"io"

	"github.com/pkg/errors"
)

type entry struct {
	segment   Segment
	alignment uint32
	rva       uint32
}

// Builder concatenates segments, aligning the start of each one. A
// Builder is itself a segment, so builders can be nested.
type Builder struct {
	Base
	entries []entry
	size    uint32
}

// Add appends s. Its RVA is aligned to alignment, which must be a power
// of two; 0 and 1 mean no alignment.
func (b *Builder) Add(s Segment, alignment uint32) {
	b.entries = append(b.entries, entry{segment: s, alignment: alignment})
}

func (b *Builder) Len() int { return len(b.entries) }

// Segments returns the added segments in layout order.
func (b *Builder) Segments() []Segment {
	out := make([]Segment, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.segment
	}
	return out
}

func (b *Builder) UpdateOffsets(p RelocationParameters) error {
	_ = b.Base.UpdateOffsets(p)
	current := p
	for i := range b.entries {
		e := &b.entries[i]
		current = current.Align(e.alignment)
		if err := e.segment.UpdateOffsets(current); err != nil {
			return errors.Wrapf(err, "segment %d", i)
		}
		e.rva = current.RVA
		current = current.Advance(e.segment.Size())
	}
	b.size = current.RVA - p.RVA
	return nil
}

// Size returns the total size including padding. It is 0 until the
// offsets are computed.
func (b *Builder) Size() uint32 { return b.size }

// SegmentRVA returns the RVA assigned to the i-th segment.
func (b *Builder) SegmentRVA(i int) (uint32, error) {
	if !b.Placed() {
		return 0, ErrOffsetsNotComputed
	}
	if i < 0 || i >= len(b.entries) {
		return 0, errors.Errorf("segment index %d out of range [0, %d)", i, len(b.entries))
	}
	return b.entries[i].rva, nil
}

// WriteTo writes the segments with zero padding between them. Each
// segment must write exactly the size it reported.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	start, err := b.RVA()
	if err != nil {
		return 0, err
	}
	var written int64
	for i, e := range b.entries {
		if pad := int64(e.rva-start) - written; pad > 0 {
			n, err := w.Write(make([]byte, pad))
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
		n, err := e.segment.WriteTo(w)
		written += n
		if err != nil {
			return written, errors.Wrapf(err, "segment %d", i)
		}
		if n != int64(e.segment.Size()) {
			return written, errors.Wrapf(ErrSizeMismatch, "segment %d wrote %d bytes, expected %d", i, n, e.segment.Size())
		}
	}
	return written, nil
}
