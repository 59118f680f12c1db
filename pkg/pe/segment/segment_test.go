package segment

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/clrmeta/pkg/builder"
)

func TestBuilder_Layout(t *testing.T) {
	var b Builder
	b.Add(NewData([]byte{1, 2, 3}), 0)
	b.Add(NewData([]byte{4, 5}), 4)
	b.Add(NewData([]byte{6}), 8)

	_, err := b.SegmentRVA(0)
	require.ErrorIs(t, err, ErrOffsetsNotComputed)
	_, err = b.WriteTo(io.Discard)
	require.ErrorIs(t, err, ErrOffsetsNotComputed)

	require.NoError(t, b.UpdateOffsets(RelocationParameters{Offset: 0x200, RVA: 0x2000}))
	assert.Equal(t, uint32(9), b.Size())

	for i, want := range []uint32{0x2000, 0x2004, 0x2008} {
		rva, err := b.SegmentRVA(i)
		require.NoError(t, err)
		assert.Equal(t, want, rva, "segment %d", i)
	}
	_, err = b.SegmentRVA(3)
	require.Error(t, err)

	offset, err := b.Segments()[2].(*Data).Offset()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x208), offset)

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(b.Size()), n)
	assert.Equal(t, []byte{1, 2, 3, 0, 4, 5, 0, 0, 6}, buf.Bytes())
}

func TestBuilder_Nested(t *testing.T) {
	var inner Builder
	inner.Add(NewData([]byte{1}), 0)
	inner.Add(NewData([]byte{2}), 2)

	var outer Builder
	outer.Add(NewData([]byte{9}), 0)
	outer.Add(&inner, 4)
	require.NoError(t, outer.UpdateOffsets(RelocationParameters{RVA: 0x1001}))

	rva, err := inner.RVA()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1004), rva)
	rva, err = inner.SegmentRVA(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1006), rva)

	var buf bytes.Buffer
	_, err = outer.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 0, 0, 1, 0, 2}, buf.Bytes())
	assert.Equal(t, uint32(buf.Len()), outer.Size())
}

// The metadata heaps are laid out one after the other on 4 byte
// boundaries.
func TestBuilder_MetadataStreams(t *testing.T) {
	strs := builder.NewStringsStreamBuffer()
	_, err := strs.Intern("Program")
	require.NoError(t, err)
	blobs := builder.NewBlobStreamBuffer()
	_, err = blobs.Intern([]byte{0x06, 0x08})
	require.NoError(t, err)

	var b Builder
	for _, s := range []*builder.Stream{strs.CreateStream(), blobs.CreateStream()} {
		b.Add(NewData(s.Data), 4)
	}
	require.NoError(t, b.UpdateOffsets(RelocationParameters{RVA: 0x2050}))

	rva, err := b.SegmentRVA(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2050+12), rva)

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(16), n)
	assert.Equal(t, []byte("\x00Program\x00\x00\x00\x00\x00\x02\x06\x08"), buf.Bytes())
}

type shortSegment struct{ Data }

func (s *shortSegment) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.data[:1])
	return int64(n), err
}

func TestBuilder_SizeMismatch(t *testing.T) {
	var b Builder
	b.Add(&shortSegment{Data{data: []byte{1, 2}}}, 0)
	require.NoError(t, b.UpdateOffsets(RelocationParameters{}))
	_, err := b.WriteTo(io.Discard)
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestRelocationParameters_Align(t *testing.T) {
	p := RelocationParameters{Offset: 0x401, RVA: 0x1001}
	got := p.Align(0x10)
	assert.Equal(t, RelocationParameters{Offset: 0x410, RVA: 0x1010}, got)
	assert.Equal(t, p, p.Align(1))
}
