package builder

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/metadata"
)

// Column names the blob column of a metadata row.
type Column uint8

const (
	ColumnSignature Column = iota
	ColumnValue
	ColumnNativeType
)

func (c Column) String() string {
	switch c {
	case ColumnSignature:
		return "Signature"
	case ColumnValue:
		return "Value"
	case ColumnNativeType:
		return "NativeType"
	}
	return fmt.Sprintf("Column(%d)", uint8(c))
}

// BlobKey addresses a blob column of a metadata row.
type BlobKey struct {
	Token  metadata.Token
	Column Column
}

// indexedTables lists the tables with blob columns in table order.
var indexedTables = []metadata.TableIndex{
	metadata.TableField,
	metadata.TableMethod,
	metadata.TableParam,
	metadata.TableMemberRef,
	metadata.TableConstant,
	metadata.TableCustomAttribute,
	metadata.TableStandAloneSig,
	metadata.TableProperty,
	metadata.TableTypeSpec,
	metadata.TableMethodSpec,
}

// BlobIndexer interns the blobs referenced by the rows of a module and
// remembers the offset assigned to each row column.
type BlobIndexer struct {
	blobs   *BlobStreamBuffer
	offsets *swiss.Map[BlobKey, uint32]
}

func NewBlobIndexer(blobs *BlobStreamBuffer) *BlobIndexer {
	return &BlobIndexer{
		blobs:   blobs,
		offsets: swiss.NewMap[BlobKey, uint32](256),
	}
}

func (x *BlobIndexer) Blobs() *BlobStreamBuffer { return x.blobs }

// Offset returns the blob offset of a row column. Columns holding the
// empty blob are indexed with offset 0.
func (x *BlobIndexer) Offset(tok metadata.Token, column Column) (uint32, bool) {
	return x.offsets.Get(BlobKey{Token: tok, Column: column})
}

func (x *BlobIndexer) Len() int { return x.offsets.Count() }

// IndexModule interns the signatures, constant values, custom attribute
// arguments and marshal descriptors of every member registered in m.
func (x *BlobIndexer) IndexModule(m *metadata.Module) error {
	for _, table := range indexedTables {
		for _, member := range m.Members(table) {
			if err := x.indexMember(member); err != nil {
				return errors.Wrapf(err, "index %s", member.Token())
			}
		}
	}
	return nil
}

func (x *BlobIndexer) indexMember(member metadata.Member) error {
	tok := member.Token()
	switch v := member.(type) {
	case *metadata.FieldDefinition:
		if err := x.signature(tok, nilSignature(v.FieldSignature())); err != nil {
			return err
		}
		return x.raw(tok, ColumnNativeType, v.MarshalDescriptor())
	case *metadata.MethodDefinition:
		return x.signature(tok, nilSignature(v.MethodSignature()))
	case *metadata.ParameterDefinition:
		return x.raw(tok, ColumnNativeType, v.MarshalDescriptor())
	case *metadata.MemberReference:
		return x.signature(tok, v.Signature())
	case *metadata.Constant:
		return x.raw(tok, ColumnValue, v.Value)
	case *metadata.CustomAttribute:
		return x.put(tok, ColumnValue, nilSignature(v.Signature()))
	case *metadata.StandAloneSignature:
		return x.signature(tok, v.Signature())
	case *metadata.PropertyDefinition:
		return x.signature(tok, nilSignature(v.Signature()))
	case *metadata.TypeSpecification:
		return x.signature(tok, v.Signature())
	case *metadata.MethodSpecification:
		return x.signature(tok, nilSignature(v.Signature()))
	}
	return nil
}

func (x *BlobIndexer) signature(tok metadata.Token, sig metadata.BlobSignature) error {
	return x.put(tok, ColumnSignature, sig)
}

func (x *BlobIndexer) put(tok metadata.Token, column Column, sig metadata.BlobSignature) error {
	offset, err := x.blobs.InternSignature(sig)
	if err != nil {
		return errors.Wrap(err, column.String())
	}
	x.offsets.Put(BlobKey{Token: tok, Column: column}, offset)
	return nil
}

func (x *BlobIndexer) raw(tok metadata.Token, column Column, data []byte) error {
	if data == nil {
		return nil
	}
	offset, err := x.blobs.Intern(data)
	if err != nil {
		return errors.Wrap(err, column.String())
	}
	x.offsets.Put(BlobKey{Token: tok, Column: column}, offset)
	return nil
}

// nilSignature converts a typed nil signature pointer to a nil interface.
func nilSignature[T interface {
	*E
	metadata.BlobSignature
}, E any](sig T) metadata.BlobSignature {
	if sig == nil {
		return nil
	}
	return sig
}
