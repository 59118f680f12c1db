package metadata

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/binio"
)

// ElementType is the leading byte of a type signature.
type ElementType uint8

const (
	ElementTypeEnd         ElementType = 0x00
	ElementTypeVoid        ElementType = 0x01
	ElementTypeBoolean     ElementType = 0x02
	ElementTypeChar        ElementType = 0x03
	ElementTypeI1          ElementType = 0x04
	ElementTypeU1          ElementType = 0x05
	ElementTypeI2          ElementType = 0x06
	ElementTypeU2          ElementType = 0x07
	ElementTypeI4          ElementType = 0x08
	ElementTypeU4          ElementType = 0x09
	ElementTypeI8          ElementType = 0x0A
	ElementTypeU8          ElementType = 0x0B
	ElementTypeR4          ElementType = 0x0C
	ElementTypeR8          ElementType = 0x0D
	ElementTypeString      ElementType = 0x0E
	ElementTypePtr         ElementType = 0x0F
	ElementTypeByRef       ElementType = 0x10
	ElementTypeValueType   ElementType = 0x11
	ElementTypeClass       ElementType = 0x12
	ElementTypeVar         ElementType = 0x13
	ElementTypeArray       ElementType = 0x14
	ElementTypeGenericInst ElementType = 0x15
	ElementTypeTypedByRef  ElementType = 0x16
	ElementTypeI           ElementType = 0x18
	ElementTypeU           ElementType = 0x19
	ElementTypeFnPtr       ElementType = 0x1B
	ElementTypeObject      ElementType = 0x1C
	ElementTypeSzArray     ElementType = 0x1D
	ElementTypeMVar        ElementType = 0x1E
	ElementTypeCModReqD    ElementType = 0x1F
	ElementTypeCModOpt     ElementType = 0x20
	ElementTypeSentinel    ElementType = 0x41
	ElementTypePinned      ElementType = 0x45
	ElementTypeType        ElementType = 0x50
	ElementTypeBoxed       ElementType = 0x51
	ElementTypeField       ElementType = 0x53
	ElementTypeProperty    ElementType = 0x54
	ElementTypeEnum        ElementType = 0x55
)

var corLibNames = map[ElementType]string{
	ElementTypeVoid:       "Void",
	ElementTypeBoolean:    "Boolean",
	ElementTypeChar:       "Char",
	ElementTypeI1:         "SByte",
	ElementTypeU1:         "Byte",
	ElementTypeI2:         "Int16",
	ElementTypeU2:         "UInt16",
	ElementTypeI4:         "Int32",
	ElementTypeU4:         "UInt32",
	ElementTypeI8:         "Int64",
	ElementTypeU8:         "UInt64",
	ElementTypeR4:         "Single",
	ElementTypeR8:         "Double",
	ElementTypeString:     "String",
	ElementTypeTypedByRef: "TypedReference",
	ElementTypeI:          "IntPtr",
	ElementTypeU:          "UIntPtr",
	ElementTypeObject:     "Object",
}

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrNotCorLibType      = errors.New("element type is not a core library type")
)

// BlobSignature is a value serialized into the blob heap.
type BlobSignature interface {
	WriteTo(w *binio.Writer) error
}

// TypeSignature describes a type inside a blob signature.
type TypeSignature interface {
	BlobSignature
	ElementType() ElementType
	Namespace() string
	Name() string
	FullName() string
	isTypeSignature()
}

// CorLibTypeSignature is one of the primitive types encoded by element
// type alone.
type CorLibTypeSignature struct {
	Type ElementType
}

// CorLib returns the signature of a primitive element type.
func CorLib(et ElementType) (*CorLibTypeSignature, error) {
	if _, ok := corLibNames[et]; !ok {
		return nil, errors.Wrapf(ErrNotCorLibType, "%#02x", uint8(et))
	}
	return &CorLibTypeSignature{Type: et}, nil
}

// MustCorLib is like CorLib but panics on element types that are not
// primitives. It is intended for static signatures.
func MustCorLib(et ElementType) *CorLibTypeSignature {
	sig, err := CorLib(et)
	if err != nil {
		panic(err)
	}
	return sig
}

func (s *CorLibTypeSignature) isTypeSignature() {}

func (s *CorLibTypeSignature) ElementType() ElementType { return s.Type }

func (s *CorLibTypeSignature) Namespace() string { return "System" }

func (s *CorLibTypeSignature) Name() string { return corLibNames[s.Type] }

func (s *CorLibTypeSignature) FullName() string { return "System." + s.Name() }

func (s *CorLibTypeSignature) WriteTo(w *binio.Writer) error {
	return w.WriteByte(byte(s.Type))
}

// TypeDefOrRefSignature references a class or value type by token.
type TypeDefOrRefSignature struct {
	Type        TypeDefOrRef
	IsValueType bool
}

func (s *TypeDefOrRefSignature) isTypeSignature() {}

func (s *TypeDefOrRefSignature) ElementType() ElementType {
	if s.IsValueType {
		return ElementTypeValueType
	}
	return ElementTypeClass
}

func (s *TypeDefOrRefSignature) Namespace() string { return s.Type.Namespace() }

func (s *TypeDefOrRefSignature) Name() string { return s.Type.Name() }

func (s *TypeDefOrRefSignature) FullName() string { return s.Type.FullName() }

func (s *TypeDefOrRefSignature) WriteTo(w *binio.Writer) error {
	if s.Type == nil {
		return errors.Wrap(ErrMalformedSignature, "type reference without a type")
	}
	_ = w.WriteByte(byte(s.ElementType()))
	return writeTypeDefOrRef(w, s.Type)
}

// TypeDefOrRefCodedIndex encodes a type as the TypeDefOrRef coded index
// used inside signatures.
func TypeDefOrRefCodedIndex(t TypeDefOrRef) (uint32, error) {
	tok := t.Token()
	if tok.IsNil() {
		return 0, errors.Wrapf(ErrUnassignedToken, "type %s", t.FullName())
	}
	var tag uint32
	switch tok.Table() {
	case TableTypeDef:
		tag = 0
	case TableTypeRef:
		tag = 1
	case TableTypeSpec:
		tag = 2
	default:
		return 0, errors.Wrapf(ErrInvalidToken, "%s is not a TypeDefOrRef", tok)
	}
	return tok.RID()<<2 | tag, nil
}

func writeTypeDefOrRef(w *binio.Writer, t TypeDefOrRef) error {
	idx, err := TypeDefOrRefCodedIndex(t)
	if err != nil {
		return err
	}
	return w.WriteCompressedUint32(idx)
}

// typeSpecificationBase is shared by signatures that wrap another type.
type typeSpecificationBase struct {
	BaseType TypeSignature
}

func (s *typeSpecificationBase) isTypeSignature() {}

func (s *typeSpecificationBase) Namespace() string { return s.BaseType.Namespace() }

func (s *typeSpecificationBase) write(w *binio.Writer, et ElementType) error {
	if s.BaseType == nil {
		return errors.Wrapf(ErrMalformedSignature, "element type %#02x without a base type", uint8(et))
	}
	_ = w.WriteByte(byte(et))
	return s.BaseType.WriteTo(w)
}

type PointerTypeSignature struct{ typeSpecificationBase }

func NewPointer(base TypeSignature) *PointerTypeSignature {
	return &PointerTypeSignature{typeSpecificationBase{BaseType: base}}
}

func (s *PointerTypeSignature) ElementType() ElementType { return ElementTypePtr }

func (s *PointerTypeSignature) Name() string { return s.BaseType.Name() + "*" }

func (s *PointerTypeSignature) FullName() string { return s.BaseType.FullName() + "*" }

func (s *PointerTypeSignature) WriteTo(w *binio.Writer) error { return s.write(w, ElementTypePtr) }

type ByReferenceTypeSignature struct{ typeSpecificationBase }

func NewByReference(base TypeSignature) *ByReferenceTypeSignature {
	return &ByReferenceTypeSignature{typeSpecificationBase{BaseType: base}}
}

func (s *ByReferenceTypeSignature) ElementType() ElementType { return ElementTypeByRef }

func (s *ByReferenceTypeSignature) Name() string { return s.BaseType.Name() + "&" }

func (s *ByReferenceTypeSignature) FullName() string { return s.BaseType.FullName() + "&" }

func (s *ByReferenceTypeSignature) WriteTo(w *binio.Writer) error {
	return s.write(w, ElementTypeByRef)
}

// SzArrayTypeSignature is a single-dimension zero-based array.
type SzArrayTypeSignature struct{ typeSpecificationBase }

func NewSzArray(base TypeSignature) *SzArrayTypeSignature {
	return &SzArrayTypeSignature{typeSpecificationBase{BaseType: base}}
}

func (s *SzArrayTypeSignature) ElementType() ElementType { return ElementTypeSzArray }

func (s *SzArrayTypeSignature) Name() string { return s.BaseType.Name() + "[]" }

func (s *SzArrayTypeSignature) FullName() string { return s.BaseType.FullName() + "[]" }

func (s *SzArrayTypeSignature) WriteTo(w *binio.Writer) error {
	return s.write(w, ElementTypeSzArray)
}

// PinnedTypeSignature marks a local variable as pinned.
type PinnedTypeSignature struct{ typeSpecificationBase }

func NewPinned(base TypeSignature) *PinnedTypeSignature {
	return &PinnedTypeSignature{typeSpecificationBase{BaseType: base}}
}

func (s *PinnedTypeSignature) ElementType() ElementType { return ElementTypePinned }

func (s *PinnedTypeSignature) Name() string { return s.BaseType.Name() }

func (s *PinnedTypeSignature) FullName() string { return s.BaseType.FullName() + " pinned" }

func (s *PinnedTypeSignature) WriteTo(w *binio.Writer) error {
	return s.write(w, ElementTypePinned)
}

type BoxedTypeSignature struct{ typeSpecificationBase }

func NewBoxed(base TypeSignature) *BoxedTypeSignature {
	return &BoxedTypeSignature{typeSpecificationBase{BaseType: base}}
}

func (s *BoxedTypeSignature) ElementType() ElementType { return ElementTypeBoxed }

func (s *BoxedTypeSignature) Name() string { return s.BaseType.Name() }

func (s *BoxedTypeSignature) FullName() string { return "boxed " + s.BaseType.FullName() }

func (s *BoxedTypeSignature) WriteTo(w *binio.Writer) error {
	return s.write(w, ElementTypeBoxed)
}

// CustomModifierTypeSignature attaches a modreq or modopt to a type.
type CustomModifierTypeSignature struct {
	typeSpecificationBase
	ModifierType TypeDefOrRef
	IsRequired   bool
}

func NewCustomModifier(modifier TypeDefOrRef, required bool, base TypeSignature) *CustomModifierTypeSignature {
	return &CustomModifierTypeSignature{
		typeSpecificationBase: typeSpecificationBase{BaseType: base},
		ModifierType:          modifier,
		IsRequired:            required,
	}
}

func (s *CustomModifierTypeSignature) ElementType() ElementType {
	if s.IsRequired {
		return ElementTypeCModReqD
	}
	return ElementTypeCModOpt
}

func (s *CustomModifierTypeSignature) Name() string { return s.BaseType.Name() }

func (s *CustomModifierTypeSignature) FullName() string {
	kind := "modopt"
	if s.IsRequired {
		kind = "modreq"
	}
	return fmt.Sprintf("%s %s(%s)", s.BaseType.FullName(), kind, s.ModifierType.FullName())
}

func (s *CustomModifierTypeSignature) WriteTo(w *binio.Writer) error {
	if s.ModifierType == nil || s.BaseType == nil {
		return errors.Wrap(ErrMalformedSignature, "incomplete custom modifier")
	}
	_ = w.WriteByte(byte(s.ElementType()))
	if err := writeTypeDefOrRef(w, s.ModifierType); err != nil {
		return err
	}
	return s.BaseType.WriteTo(w)
}

// ArrayDimension is one dimension of a multi-dimensional array. Nil
// fields are unspecified.
type ArrayDimension struct {
	Size       *uint32
	LowerBound *int32
}

// ArrayTypeSignature is a general array with explicit rank, sizes and
// lower bounds.
type ArrayTypeSignature struct {
	typeSpecificationBase
	Dimensions []ArrayDimension
}

func NewArray(base TypeSignature, dims ...ArrayDimension) *ArrayTypeSignature {
	return &ArrayTypeSignature{typeSpecificationBase: typeSpecificationBase{BaseType: base}, Dimensions: dims}
}

func (s *ArrayTypeSignature) ElementType() ElementType { return ElementTypeArray }

func (s *ArrayTypeSignature) suffix() string {
	return "[" + strings.Repeat(",", max(len(s.Dimensions)-1, 0)) + "]"
}

func (s *ArrayTypeSignature) Name() string { return s.BaseType.Name() + s.suffix() }

func (s *ArrayTypeSignature) FullName() string { return s.BaseType.FullName() + s.suffix() }

func (s *ArrayTypeSignature) WriteTo(w *binio.Writer) error {
	if err := s.write(w, ElementTypeArray); err != nil {
		return err
	}
	if err := w.WriteCompressedUint32(uint32(len(s.Dimensions))); err != nil {
		return err
	}
	// Sizes and lower bounds are only encoded for the leading dimensions
	// that specify them.
	var sizes []uint32
	for _, d := range s.Dimensions {
		if d.Size == nil {
			break
		}
		sizes = append(sizes, *d.Size)
	}
	var bounds []int32
	for _, d := range s.Dimensions {
		if d.LowerBound == nil {
			break
		}
		bounds = append(bounds, *d.LowerBound)
	}
	if err := w.WriteCompressedUint32(uint32(len(sizes))); err != nil {
		return err
	}
	for _, v := range sizes {
		if err := w.WriteCompressedUint32(v); err != nil {
			return err
		}
	}
	if err := w.WriteCompressedUint32(uint32(len(bounds))); err != nil {
		return err
	}
	for _, v := range bounds {
		if err := w.WriteCompressedInt32(v); err != nil {
			return err
		}
	}
	return nil
}

// GenericInstanceTypeSignature instantiates a generic type.
type GenericInstanceTypeSignature struct {
	GenericType   TypeDefOrRef
	IsValueType   bool
	TypeArguments []TypeSignature
}

func NewGenericInstance(genericType TypeDefOrRef, isValueType bool, args ...TypeSignature) *GenericInstanceTypeSignature {
	return &GenericInstanceTypeSignature{GenericType: genericType, IsValueType: isValueType, TypeArguments: args}
}

func (s *GenericInstanceTypeSignature) isTypeSignature() {}

func (s *GenericInstanceTypeSignature) ElementType() ElementType { return ElementTypeGenericInst }

func (s *GenericInstanceTypeSignature) Namespace() string { return s.GenericType.Namespace() }

func (s *GenericInstanceTypeSignature) argumentList() string {
	names := make([]string, len(s.TypeArguments))
	for i, a := range s.TypeArguments {
		names[i] = a.FullName()
	}
	return "<" + strings.Join(names, ", ") + ">"
}

func (s *GenericInstanceTypeSignature) Name() string {
	return s.GenericType.Name() + s.argumentList()
}

func (s *GenericInstanceTypeSignature) FullName() string {
	return s.GenericType.FullName() + s.argumentList()
}

func (s *GenericInstanceTypeSignature) WriteTo(w *binio.Writer) error {
	if s.GenericType == nil {
		return errors.Wrap(ErrMalformedSignature, "generic instance without a generic type")
	}
	_ = w.WriteByte(byte(ElementTypeGenericInst))
	et := ElementTypeClass
	if s.IsValueType {
		et = ElementTypeValueType
	}
	_ = w.WriteByte(byte(et))
	if err := writeTypeDefOrRef(w, s.GenericType); err != nil {
		return err
	}
	return writeTypeList(w, s.TypeArguments)
}

func writeTypeList(w *binio.Writer, types []TypeSignature) error {
	if err := w.WriteCompressedUint32(uint32(len(types))); err != nil {
		return err
	}
	for _, t := range types {
		if t == nil {
			return errors.Wrap(ErrMalformedSignature, "nil type in list")
		}
		if err := t.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

type GenericParameterKind uint8

const (
	GenericParameterKindType GenericParameterKind = iota
	GenericParameterKindMethod
)

// GenericParameterSignature references a generic parameter by position.
type GenericParameterSignature struct {
	Kind  GenericParameterKind
	Index uint32
}

func (s *GenericParameterSignature) isTypeSignature() {}

func (s *GenericParameterSignature) ElementType() ElementType {
	if s.Kind == GenericParameterKindMethod {
		return ElementTypeMVar
	}
	return ElementTypeVar
}

func (s *GenericParameterSignature) Namespace() string { return "" }

func (s *GenericParameterSignature) Name() string {
	if s.Kind == GenericParameterKindMethod {
		return fmt.Sprintf("!!%d", s.Index)
	}
	return fmt.Sprintf("!%d", s.Index)
}

func (s *GenericParameterSignature) FullName() string { return s.Name() }

func (s *GenericParameterSignature) WriteTo(w *binio.Writer) error {
	_ = w.WriteByte(byte(s.ElementType()))
	return w.WriteCompressedUint32(s.Index)
}

// FunctionPointerTypeSignature is a pointer to a method with the given
// signature.
type FunctionPointerTypeSignature struct {
	Signature *MethodSignature
}

func (s *FunctionPointerTypeSignature) isTypeSignature() {}

func (s *FunctionPointerTypeSignature) ElementType() ElementType { return ElementTypeFnPtr }

func (s *FunctionPointerTypeSignature) Namespace() string { return "" }

func (s *FunctionPointerTypeSignature) Name() string { return s.FullName() }

func (s *FunctionPointerTypeSignature) FullName() string {
	return "method " + s.Signature.String()
}

func (s *FunctionPointerTypeSignature) WriteTo(w *binio.Writer) error {
	if s.Signature == nil {
		return errors.Wrap(ErrMalformedSignature, "function pointer without a signature")
	}
	_ = w.WriteByte(byte(ElementTypeFnPtr))
	return s.Signature.WriteTo(w)
}
