package builder

import (
	"strings"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/binio"
)

var ErrEmbeddedNul = errors.New("string contains a NUL character")

// StringsStreamBuffer builds a #Strings heap of NUL-terminated UTF-8
// identifiers. Offset 0 is the empty string.
type StringsStreamBuffer struct {
	buf   *binio.Writer
	index *swiss.Map[string, uint32]
}

func NewStringsStreamBuffer() *StringsStreamBuffer {
	s := &StringsStreamBuffer{
		buf:   binio.NewWriter(4 << 10),
		index: swiss.NewMap[string, uint32](256),
	}
	_ = s.buf.WriteByte(0)
	return s
}

func (s *StringsStreamBuffer) Size() uint32 { return uint32(s.buf.Len()) }

// Intern returns the offset of str, appending it if it is not present.
func (s *StringsStreamBuffer) Intern(str string) (uint32, error) {
	if str == "" {
		return 0, nil
	}
	if strings.IndexByte(str, 0) >= 0 {
		return 0, errors.Wrapf(ErrEmbeddedNul, "%q", str)
	}
	if offset, ok := s.index.Get(str); ok {
		return offset, nil
	}
	offset := uint32(s.buf.Len())
	s.buf.WriteASCII(str)
	_ = s.buf.WriteByte(0)
	s.index.Put(str, offset)
	return offset, nil
}

func (s *StringsStreamBuffer) CreateStream() *Stream {
	return newStream(StringsStreamName, s.buf.Bytes())
}
