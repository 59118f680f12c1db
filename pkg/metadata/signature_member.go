package metadata

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/binio"
)

// CallingConventionAttributes is the leading byte of member signatures.
type CallingConventionAttributes uint8

const (
	CallingConventionDefault         CallingConventionAttributes = 0x00
	CallingConventionC               CallingConventionAttributes = 0x01
	CallingConventionStdCall         CallingConventionAttributes = 0x02
	CallingConventionThisCall        CallingConventionAttributes = 0x03
	CallingConventionFastCall        CallingConventionAttributes = 0x04
	CallingConventionVarArg          CallingConventionAttributes = 0x05
	CallingConventionField           CallingConventionAttributes = 0x06
	CallingConventionLocal           CallingConventionAttributes = 0x07
	CallingConventionProperty        CallingConventionAttributes = 0x08
	CallingConventionUnmanaged       CallingConventionAttributes = 0x09
	CallingConventionGenericInstance CallingConventionAttributes = 0x0A
	CallingConventionMask            CallingConventionAttributes = 0x0F
	CallingConventionGeneric         CallingConventionAttributes = 0x10
	CallingConventionHasThis         CallingConventionAttributes = 0x20
	CallingConventionExplicitThis    CallingConventionAttributes = 0x40
)

// MethodSignature describes the calling convention, return type and
// parameter types of a method.
type MethodSignature struct {
	Attributes             CallingConventionAttributes
	GenericParameterCount  uint32
	ReturnType             TypeSignature
	ParameterTypes         []TypeSignature
	SentinelParameterTypes []TypeSignature
}

// NewStaticMethodSignature returns a default calling convention signature.
func NewStaticMethodSignature(ret TypeSignature, params ...TypeSignature) *MethodSignature {
	return &MethodSignature{ReturnType: ret, ParameterTypes: params}
}

// NewInstanceMethodSignature returns a signature with an implicit this.
func NewInstanceMethodSignature(ret TypeSignature, params ...TypeSignature) *MethodSignature {
	return &MethodSignature{Attributes: CallingConventionHasThis, ReturnType: ret, ParameterTypes: params}
}

func (s *MethodSignature) isMemberSignature() {}

func (s *MethodSignature) HasThis() bool {
	return s.Attributes&CallingConventionHasThis != 0
}

func (s *MethodSignature) ExplicitThis() bool {
	return s.Attributes&CallingConventionExplicitThis != 0
}

func (s *MethodSignature) IsGeneric() bool {
	return s.Attributes&CallingConventionGeneric != 0
}

func (s *MethodSignature) WriteTo(w *binio.Writer) error {
	if s.ReturnType == nil {
		return errors.Wrap(ErrMalformedSignature, "method signature without a return type")
	}
	_ = w.WriteByte(byte(s.Attributes))
	if s.IsGeneric() {
		if err := w.WriteCompressedUint32(s.GenericParameterCount); err != nil {
			return err
		}
	}
	count := len(s.ParameterTypes) + len(s.SentinelParameterTypes)
	if err := w.WriteCompressedUint32(uint32(count)); err != nil {
		return err
	}
	if err := s.ReturnType.WriteTo(w); err != nil {
		return err
	}
	for _, p := range s.ParameterTypes {
		if p == nil {
			return errors.Wrap(ErrMalformedSignature, "nil parameter type")
		}
		if err := p.WriteTo(w); err != nil {
			return err
		}
	}
	if len(s.SentinelParameterTypes) > 0 {
		_ = w.WriteByte(byte(ElementTypeSentinel))
		for _, p := range s.SentinelParameterTypes {
			if p == nil {
				return errors.Wrap(ErrMalformedSignature, "nil sentinel parameter type")
			}
			if err := p.WriteTo(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *MethodSignature) String() string {
	var b strings.Builder
	if s.HasThis() {
		b.WriteString("instance ")
	}
	if s.ReturnType != nil {
		b.WriteString(s.ReturnType.FullName())
	}
	b.WriteString(" (")
	for i, p := range s.ParameterTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.FullName())
	}
	if len(s.SentinelParameterTypes) > 0 {
		b.WriteString(", ...")
		for _, p := range s.SentinelParameterTypes {
			b.WriteString(", ")
			b.WriteString(p.FullName())
		}
	}
	b.WriteString(")")
	return b.String()
}

// FieldSignature describes the type of a field.
type FieldSignature struct {
	FieldType TypeSignature
}

func NewFieldSignature(t TypeSignature) *FieldSignature {
	return &FieldSignature{FieldType: t}
}

func (s *FieldSignature) isMemberSignature() {}

func (s *FieldSignature) WriteTo(w *binio.Writer) error {
	if s.FieldType == nil {
		return errors.Wrap(ErrMalformedSignature, "field signature without a type")
	}
	_ = w.WriteByte(byte(CallingConventionField))
	return s.FieldType.WriteTo(w)
}

// PropertySignature describes the type and index parameters of a
// property.
type PropertySignature struct {
	HasThis        bool
	PropertyType   TypeSignature
	ParameterTypes []TypeSignature
}

func (s *PropertySignature) WriteTo(w *binio.Writer) error {
	if s.PropertyType == nil {
		return errors.Wrap(ErrMalformedSignature, "property signature without a type")
	}
	lead := CallingConventionProperty
	if s.HasThis {
		lead |= CallingConventionHasThis
	}
	_ = w.WriteByte(byte(lead))
	if err := w.WriteCompressedUint32(uint32(len(s.ParameterTypes))); err != nil {
		return err
	}
	if err := s.PropertyType.WriteTo(w); err != nil {
		return err
	}
	for _, p := range s.ParameterTypes {
		if p == nil {
			return errors.Wrap(ErrMalformedSignature, "nil property parameter type")
		}
		if err := p.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// LocalVariablesSignature lists the local variable types of a method body.
type LocalVariablesSignature struct {
	VariableTypes []TypeSignature
}

func (s *LocalVariablesSignature) WriteTo(w *binio.Writer) error {
	_ = w.WriteByte(byte(CallingConventionLocal))
	return writeTypeList(w, s.VariableTypes)
}

// GenericInstanceMethodSignature lists the type arguments of a generic
// method instantiation.
type GenericInstanceMethodSignature struct {
	TypeArguments []TypeSignature
}

func (s *GenericInstanceMethodSignature) WriteTo(w *binio.Writer) error {
	_ = w.WriteByte(byte(CallingConventionGenericInstance))
	return writeTypeList(w, s.TypeArguments)
}
