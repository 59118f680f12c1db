package builder

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/binio"
	"github.com/grafana/clrmeta/pkg/metadata"
)

var ErrBlobTooLarge = errors.New("blob exceeds the maximum blob length")

// BlobStreamBuffer builds a #Blob heap. Interned blobs are stored once
// per distinct content: the index maps the content hash to the offsets of
// every blob with that hash, and candidates are compared byte by byte.
//
// The heap starts with the empty blob at offset 0.
type BlobStreamBuffer struct {
	buf     *binio.Writer
	index   *swiss.Map[uint64, []uint32]
	scratch *binio.Writer
}

func NewBlobStreamBuffer() *BlobStreamBuffer {
	b := &BlobStreamBuffer{
		buf:     binio.NewWriter(4 << 10),
		index:   swiss.NewMap[uint64, []uint32](256),
		scratch: binio.NewWriter(256),
	}
	_ = b.buf.WriteByte(0)
	return b
}

func (b *BlobStreamBuffer) Size() uint32 { return uint32(b.buf.Len()) }

// Intern appends data with its compressed length prefix unless an equal
// blob is already present, and returns the offset of the prefix.
//
// Empty data is not appended: it shares offset 0 with the null blob, which
// also reads as a zero-length blob.
func (b *BlobStreamBuffer) Intern(data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if len(data) > binio.MaxCompressedUint32 {
		return 0, errors.Wrapf(ErrBlobTooLarge, "%d bytes", len(data))
	}
	h := xxhash.Sum64(data)
	bucket, _ := b.index.Get(h)
	for _, offset := range bucket {
		if bytes.Equal(b.blobAt(offset), data) {
			return offset, nil
		}
	}
	offset := uint32(b.buf.Len())
	if err := b.buf.WriteCompressedUint32(uint32(len(data))); err != nil {
		return 0, err
	}
	_, _ = b.buf.Write(data)
	b.index.Put(h, append(bucket, offset))
	return offset, nil
}

// AppendRaw appends data as is, without a length prefix. Raw data is
// never returned by Intern.
func (b *BlobStreamBuffer) AppendRaw(data []byte) uint32 {
	offset := uint32(b.buf.Len())
	_, _ = b.buf.Write(data)
	return offset
}

// InternSignature serializes sig and interns the result. A nil signature
// is the empty blob.
func (b *BlobStreamBuffer) InternSignature(sig metadata.BlobSignature) (uint32, error) {
	if sig == nil {
		return 0, nil
	}
	b.scratch.Reset()
	if err := sig.WriteTo(b.scratch); err != nil {
		return 0, errors.Wrap(err, "serialize signature")
	}
	return b.Intern(b.scratch.Bytes())
}

// Blob returns the content of the interned blob at offset. The slice
// aliases the heap and is only valid until the next write.
func (b *BlobStreamBuffer) Blob(offset uint32) ([]byte, error) {
	r := binio.NewReader(b.buf.Bytes())
	if err := r.Seek(int(offset)); err != nil {
		return nil, err
	}
	n, err := r.ReadCompressedUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// blobAt returns the blob content of an offset taken from the index.
func (b *BlobStreamBuffer) blobAt(offset uint32) []byte {
	data, err := b.Blob(offset)
	if err != nil {
		return nil
	}
	return data
}

func (b *BlobStreamBuffer) CreateStream() *Stream {
	return newStream(BlobStreamName, b.buf.Bytes())
}
