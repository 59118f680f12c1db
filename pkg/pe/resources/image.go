package resources

import (
	"debug/pe"
	"io"

	"github.com/pkg/errors"
)

const resourceDirectoryIndex = 2

var ErrUnmappedAddress = errors.New("address is not mapped by any section")

type section struct {
	name           string
	virtualAddress uint32
	virtualSize    uint32
	rawSize        uint32
	data           io.ReaderAt
}

// Image translates RVAs to the sections of an opened PE file.
type Image struct {
	resourceRVA uint32
	sections    []section
}

// NewImage adapts f. The file must stay open while the image is used.
func NewImage(f *pe.File) *Image {
	img := &Image{}
	switch h := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if h.NumberOfRvaAndSizes > resourceDirectoryIndex {
			img.resourceRVA = h.DataDirectory[resourceDirectoryIndex].VirtualAddress
		}
	case *pe.OptionalHeader64:
		if h.NumberOfRvaAndSizes > resourceDirectoryIndex {
			img.resourceRVA = h.DataDirectory[resourceDirectoryIndex].VirtualAddress
		}
	}
	for _, s := range f.Sections {
		img.sections = append(img.sections, section{
			name:           s.Name,
			virtualAddress: s.VirtualAddress,
			virtualSize:    s.VirtualSize,
			rawSize:        s.Size,
			data:           s,
		})
	}
	return img
}

func (img *Image) ResourceDirectoryRVA() uint32 { return img.resourceRVA }

// ReadRVA reads n bytes at rva. The range must lie within one section.
// Bytes past the raw data of a section read as zero.
func (img *Image) ReadRVA(rva uint32, n int) ([]byte, error) {
	for _, s := range img.sections {
		size := max(s.virtualSize, s.rawSize)
		if rva < s.virtualAddress || rva-s.virtualAddress >= size {
			continue
		}
		offset := rva - s.virtualAddress
		if uint64(offset)+uint64(n) > uint64(size) {
			return nil, errors.Wrapf(ErrUnmappedAddress, "%d bytes at %#x cross the end of section %s", n, rva, s.name)
		}
		buf := make([]byte, n)
		if offset >= s.rawSize {
			return buf, nil
		}
		readable := min(uint32(n), s.rawSize-offset)
		if _, err := s.data.ReadAt(buf[:readable], int64(offset)); err != nil {
			return nil, errors.Wrapf(err, "read section %s", s.name)
		}
		return buf, nil
	}
	return nil, errors.Wrapf(ErrUnmappedAddress, "%#x", rva)
}
