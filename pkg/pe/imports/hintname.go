// Package imports builds the hint-name table of a PE import directory.
package imports

import (
	"io"

	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/binio"
	"github.com/grafana/clrmeta/pkg/pe/segment"
)

var (
	ErrOffsetsNotComputed = segment.ErrOffsetsNotComputed
	ErrUnknownEntry       = errors.New("entry is not part of the table")
	ErrInvalidName        = errors.New("import names must be ASCII without NUL characters")
)

const hintNameAlignment = 2

// Symbol is a function or variable imported from a module. Symbols
// without a name are imported by ordinal and have no hint-name entry.
type Symbol struct {
	Name    string
	Hint    uint16
	Ordinal uint16
}

func (s *Symbol) IsImportByName() bool { return s.Name != "" }

// Module is an imported DLL and the symbols imported from it.
type Module struct {
	Name    string
	Symbols []*Symbol
}

// HintNameTableBuffer lays out the hint-name pairs of every imported
// symbol followed by the name of its module.
//
// Each symbol imported by name is stored as a 2-byte hint, the ASCII name
// and a NUL terminator, padded to a 2-byte boundary. The module name and
// its terminator follow the symbols of the module.
type HintNameTableBuffer struct {
	segment.Base

	modules           []*Module
	moduleNameOffsets map[*Module]uint32
	hintNameOffsets   map[*Symbol]uint32
	length            uint32
}

func NewHintNameTableBuffer() *HintNameTableBuffer {
	return &HintNameTableBuffer{}
}

func (b *HintNameTableBuffer) AddModule(m *Module) {
	b.modules = append(b.modules, m)
}

func (b *HintNameTableBuffer) Modules() []*Module { return b.modules }

type visitor interface {
	hintName(s *Symbol, offset uint32) error
	moduleName(m *Module, offset uint32) error
}

// walk visits every entry of the table in layout order. Both passes go
// through walk so that they agree on order and alignment.
func (b *HintNameTableBuffer) walk(v visitor) (uint32, error) {
	var offset uint32
	for _, m := range b.modules {
		for _, s := range m.Symbols {
			if !s.IsImportByName() {
				continue
			}
			if err := v.hintName(s, offset); err != nil {
				return 0, err
			}
			offset = binio.AlignUp(offset+2+uint32(len(s.Name))+1, hintNameAlignment)
		}
		if err := v.moduleName(m, offset); err != nil {
			return 0, err
		}
		offset += uint32(len(m.Name)) + 1
	}
	return offset, nil
}

type offsetPass struct{ *HintNameTableBuffer }

func (p offsetPass) hintName(s *Symbol, offset uint32) error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	p.hintNameOffsets[s] = offset
	return nil
}

func (p offsetPass) moduleName(m *Module, offset uint32) error {
	if err := validateName(m.Name); err != nil {
		return err
	}
	p.moduleNameOffsets[m] = offset
	return nil
}

// UpdateOffsets computes the offset of every entry and the table size.
func (b *HintNameTableBuffer) UpdateOffsets(p segment.RelocationParameters) error {
	b.Base = segment.Base{}
	b.moduleNameOffsets = make(map[*Module]uint32, len(b.modules))
	b.hintNameOffsets = make(map[*Symbol]uint32)
	length, err := b.walk(offsetPass{b})
	if err != nil {
		return err
	}
	b.length = length
	return b.Base.UpdateOffsets(p)
}

// Size returns the table size. It is 0 until the offsets are computed.
func (b *HintNameTableBuffer) Size() uint32 { return b.length }

// ModuleNameRVA returns the address of the name of m.
func (b *HintNameTableBuffer) ModuleNameRVA(m *Module) (uint32, error) {
	rva, err := b.RVA()
	if err != nil {
		return 0, err
	}
	offset, ok := b.moduleNameOffsets[m]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownEntry, "module %s", m.Name)
	}
	return rva + offset, nil
}

// HintNameRVA returns the address of the hint-name pair of s.
func (b *HintNameTableBuffer) HintNameRVA(s *Symbol) (uint32, error) {
	rva, err := b.RVA()
	if err != nil {
		return 0, err
	}
	offset, ok := b.hintNameOffsets[s]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownEntry, "symbol %s", s.Name)
	}
	return rva + offset, nil
}

type writePass struct {
	w *binio.Writer
}

func (p writePass) hintName(s *Symbol, offset uint32) error {
	if err := p.seek(offset); err != nil {
		return err
	}
	p.w.WriteUint16(s.Hint)
	p.w.WriteASCII(s.Name)
	_ = p.w.WriteByte(0)
	p.w.Align(hintNameAlignment)
	return nil
}

func (p writePass) moduleName(m *Module, offset uint32) error {
	if err := p.seek(offset); err != nil {
		return err
	}
	p.w.WriteASCII(m.Name)
	return p.w.WriteByte(0)
}

func (p writePass) seek(offset uint32) error {
	if uint32(p.w.Len()) != offset {
		return errors.Wrapf(segment.ErrSizeMismatch, "entry written at %d, expected %d", p.w.Len(), offset)
	}
	return nil
}

// WriteTo emits the table. The offsets must have been computed and the
// modules must not have changed since.
func (b *HintNameTableBuffer) WriteTo(w io.Writer) (int64, error) {
	if !b.Placed() {
		return 0, ErrOffsetsNotComputed
	}
	buf := binio.NewWriter(int(b.length))
	length, err := b.walk(writePass{w: buf})
	if err != nil {
		return 0, err
	}
	if length != b.length || uint32(buf.Len()) != b.length {
		return 0, errors.Wrapf(segment.ErrSizeMismatch, "wrote %d bytes, expected %d", buf.Len(), b.length)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func validateName(name string) error {
	for i := 0; i < len(name); i++ {
		if c := name[i]; c == 0 || c > 0x7F {
			return errors.Wrapf(ErrInvalidName, "%q", name)
		}
	}
	return nil
}
