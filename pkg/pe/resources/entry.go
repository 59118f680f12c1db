// Package resources decodes the entries of a PE resource directory.
package resources

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"

	"github.com/grafana/clrmeta/pkg/binio"
)

const (
	// EntrySize is the size of a directory entry record.
	EntrySize = 8
	// DirectoryHeaderSize is the size of the header preceding the entries
	// of a directory.
	DirectoryHeaderSize = 16

	highBit    = 0x80000000
	offsetMask = 0x7FFFFFFF
)

var (
	ErrInvalidNameOffset = &FormatError{fmt.Errorf("invalid resource name offset")}
	ErrTruncatedEntry    = &FormatError{fmt.Errorf("truncated resource directory entry")}
)

// FormatError reports malformed resource directory data.
type FormatError struct{ err error }

func (e *FormatError) Error() string {
	return e.err.Error()
}

// AddressTranslator reads image data by RVA. It is supplied by the reader
// hosting the image.
type AddressTranslator interface {
	// ResourceDirectoryRVA returns the RVA of the root resource directory.
	ResourceDirectoryRVA() uint32
	// ReadRVA returns n bytes starting at rva.
	ReadRVA(rva uint32, n int) ([]byte, error)
}

// DirectoryEntry is a record of a resource directory. It identifies its
// child either by a numeric ID or by name, and points to either a data
// entry or a subdirectory.
type DirectoryEntry struct {
	IDOrNameOffset    uint32
	DataOrSubDirField uint32
	// Name is set for entries identified by name.
	Name string
}

func (e *DirectoryEntry) IsByName() bool { return e.IDOrNameOffset&highBit != 0 }

// ID returns the numeric identifier of entries not identified by name.
func (e *DirectoryEntry) ID() uint32 { return e.IDOrNameOffset }

// NameOffset returns the offset of the name relative to the root
// resource directory.
func (e *DirectoryEntry) NameOffset() uint32 { return e.IDOrNameOffset & offsetMask }

func (e *DirectoryEntry) IsSubdirectory() bool { return e.DataOrSubDirField&highBit != 0 }

func (e *DirectoryEntry) IsData() bool { return !e.IsSubdirectory() }

// Offset returns the offset of the data entry or subdirectory relative
// to the root resource directory.
func (e *DirectoryEntry) Offset() uint32 { return e.DataOrSubDirField & offsetMask }

func (e *DirectoryEntry) String() string {
	kind := "data"
	if e.IsSubdirectory() {
		kind = "directory"
	}
	if e.IsByName() {
		return fmt.Sprintf("%q -> %s@%#x", e.Name, kind, e.Offset())
	}
	return fmt.Sprintf("#%d -> %s@%#x", e.ID(), kind, e.Offset())
}

// ReadDirectoryEntry decodes the entry at the current position of r.
// Names are read through t.
func ReadDirectoryEntry(r *binio.Reader, t AddressTranslator) (*DirectoryEntry, error) {
	if r.Remaining() < EntrySize {
		return nil, errors.Wrapf(ErrTruncatedEntry, "%d bytes left at offset %d", r.Remaining(), r.Offset())
	}
	e := new(DirectoryEntry)
	e.IDOrNameOffset, _ = r.ReadUint32()
	e.DataOrSubDirField, _ = r.ReadUint32()
	if e.IsByName() {
		name, err := readName(t, t.ResourceDirectoryRVA()+e.NameOffset())
		if err != nil {
			return nil, err
		}
		e.Name = name
	}
	return e, nil
}

// readName decodes a length-prefixed UTF-16LE string. The length counts
// UTF-16 code units.
func readName(t AddressTranslator, rva uint32) (string, error) {
	prefix, err := t.ReadRVA(rva, 2)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidNameOffset, "name at %#x: %v", rva, err)
	}
	length, err := binio.NewReader(prefix).ReadUint16()
	if err != nil {
		return "", errors.Wrapf(ErrInvalidNameOffset, "name at %#x: %v", rva, err)
	}
	n := int(length)
	data, err := t.ReadRVA(rva+2, 2*n)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidNameOffset, "name of %d characters at %#x: %v", n, rva, err)
	}
	name, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidNameOffset, "name at %#x: %v", rva, err)
	}
	return string(name), nil
}

// Directory is a decoded resource directory table.
type Directory struct {
	Characteristics uint32
	TimeDateStamp   uint32
	MajorVersion    uint16
	MinorVersion    uint16
	Entries         []*DirectoryEntry
}

// ReadDirectory decodes the directory at offset, relative to the root
// resource directory, with its named and ID entries.
func ReadDirectory(t AddressTranslator, offset uint32) (*Directory, error) {
	rva := t.ResourceDirectoryRVA() + offset
	header, err := t.ReadRVA(rva, DirectoryHeaderSize)
	if err != nil {
		return nil, errors.Wrapf(ErrTruncatedEntry, "directory at %#x: %v", rva, err)
	}
	r := binio.NewReader(header)
	d := new(Directory)
	d.Characteristics, _ = r.ReadUint32()
	d.TimeDateStamp, _ = r.ReadUint32()
	d.MajorVersion, _ = r.ReadUint16()
	d.MinorVersion, _ = r.ReadUint16()
	named, _ := r.ReadUint16()
	ids, _ := r.ReadUint16()

	count := int(named) + int(ids)
	data, err := t.ReadRVA(rva+DirectoryHeaderSize, count*EntrySize)
	if err != nil {
		return nil, errors.Wrapf(ErrTruncatedEntry, "%d entries at %#x: %v", count, rva+DirectoryHeaderSize, err)
	}
	r = binio.NewReader(data)
	d.Entries = make([]*DirectoryEntry, 0, count)
	for i := 0; i < count; i++ {
		e, err := ReadDirectoryEntry(r, t)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		d.Entries = append(d.Entries, e)
	}
	return d, nil
}
