package builder

import (
	"encoding/binary"

	"github.com/dolthub/swiss"
	"github.com/google/uuid"

	"github.com/grafana/clrmeta/pkg/binio"
)

const guidSize = 16

// GuidStreamBuffer builds a #GUID heap. GUIDs are addressed by their
// 1-based index; index 0 is the nil GUID.
type GuidStreamBuffer struct {
	buf   *binio.Writer
	index *swiss.Map[uuid.UUID, uint32]
}

func NewGuidStreamBuffer() *GuidStreamBuffer {
	return &GuidStreamBuffer{
		buf:   binio.NewWriter(guidSize * 4),
		index: swiss.NewMap[uuid.UUID, uint32](4),
	}
}

func (g *GuidStreamBuffer) Len() int { return g.buf.Len() / guidSize }

// Intern returns the index of id, appending it if it is not present.
func (g *GuidStreamBuffer) Intern(id uuid.UUID) uint32 {
	if id == uuid.Nil {
		return 0
	}
	if index, ok := g.index.Get(id); ok {
		return index
	}
	// The first three groups are stored little-endian.
	g.buf.WriteUint32(binary.BigEndian.Uint32(id[0:4]))
	g.buf.WriteUint16(binary.BigEndian.Uint16(id[4:6]))
	g.buf.WriteUint16(binary.BigEndian.Uint16(id[6:8]))
	_, _ = g.buf.Write(id[8:])
	index := uint32(g.Len())
	g.index.Put(id, index)
	return index
}

func (g *GuidStreamBuffer) CreateStream() *Stream {
	return newStream(GuidStreamName, g.buf.Bytes())
}
