// Package builder implements the metadata heap buffers (#Blob, #Strings
// and #GUID) and the indexer that interns a module's blobs into them.
package builder

import "github.com/grafana/clrmeta/pkg/binio"

const (
	BlobStreamName    = "#Blob"
	StringsStreamName = "#Strings"
	GuidStreamName    = "#GUID"

	streamAlignment = 4
)

// Stream is an immutable snapshot of a heap, padded to a multiple of four
// bytes.
type Stream struct {
	Name string
	Data []byte
}

func (s *Stream) Size() uint32 { return uint32(len(s.Data)) }

func newStream(name string, data []byte) *Stream {
	w := binio.NewWriter(int(binio.AlignUp(uint32(len(data)), streamAlignment)))
	_, _ = w.Write(data)
	w.Align(streamAlignment)
	return &Stream{Name: name, Data: w.Bytes()}
}
