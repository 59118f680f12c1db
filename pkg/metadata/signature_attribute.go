package metadata

import (
	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/binio"
)

const customAttributeProlog = 0x0001

// CustomAttributeSignature holds the constructor arguments and the named
// field and property assignments of a custom attribute.
type CustomAttributeSignature struct {
	FixedArguments []*CustomAttributeArgument
	NamedArguments []*CustomAttributeNamedArgument
}

// CustomAttributeArgument is a typed argument value. Arrays carry one
// element per item; scalars carry exactly one element.
//
// Elements hold Go values matching the argument type: bool, int8..uint64,
// float32, float64, a *string or string for strings, a TypeSignature for
// System.Type arguments, and BoxedArgument for System.Object arguments.
// Enum values use the Go integer type of their underlying type.
type CustomAttributeArgument struct {
	ArgumentType TypeSignature
	Elements     []any
	IsNullArray  bool
}

// BoxedArgument is a value passed where System.Object is expected. It
// carries its own type.
type BoxedArgument struct {
	Type  TypeSignature
	Value any
}

type NamedArgumentKind uint8

const (
	NamedArgumentField    NamedArgumentKind = NamedArgumentKind(ElementTypeField)
	NamedArgumentProperty NamedArgumentKind = NamedArgumentKind(ElementTypeProperty)
)

// CustomAttributeNamedArgument assigns a field or property of the
// attribute.
type CustomAttributeNamedArgument struct {
	Kind         NamedArgumentKind
	MemberName   string
	ArgumentType TypeSignature
	Argument     *CustomAttributeArgument
}

func (s *CustomAttributeSignature) WriteTo(w *binio.Writer) error {
	w.WriteUint16(customAttributeProlog)
	for i, arg := range s.FixedArguments {
		if err := arg.writeTo(w); err != nil {
			return errors.Wrapf(err, "fixed argument %d", i)
		}
	}
	w.WriteUint16(uint16(len(s.NamedArguments)))
	for _, arg := range s.NamedArguments {
		if arg.Argument == nil {
			return errors.Wrapf(ErrMalformedSignature, "named argument %s without a value", arg.MemberName)
		}
		_ = w.WriteByte(byte(arg.Kind))
		if err := writeFieldOrPropType(w, arg.ArgumentType); err != nil {
			return errors.Wrapf(err, "named argument %s", arg.MemberName)
		}
		name := arg.MemberName
		if err := w.WriteSerString(&name); err != nil {
			return err
		}
		if err := arg.Argument.writeTo(w); err != nil {
			return errors.Wrapf(err, "named argument %s", arg.MemberName)
		}
	}
	return nil
}

func (a *CustomAttributeArgument) writeTo(w *binio.Writer) error {
	if a.ArgumentType == nil {
		return errors.Wrap(ErrMalformedSignature, "argument without a type")
	}
	if arr, ok := a.ArgumentType.(*SzArrayTypeSignature); ok {
		if a.IsNullArray {
			w.WriteUint32(0xFFFFFFFF)
			return nil
		}
		w.WriteUint32(uint32(len(a.Elements)))
		for _, e := range a.Elements {
			if err := writeElement(w, arr.BaseType, e); err != nil {
				return err
			}
		}
		return nil
	}
	if len(a.Elements) != 1 {
		return errors.Wrapf(ErrMalformedSignature, "scalar argument of type %s has %d elements", a.ArgumentType.FullName(), len(a.Elements))
	}
	return writeElement(w, a.ArgumentType, a.Elements[0])
}

func isObject(t TypeSignature) bool {
	c, ok := t.(*CorLibTypeSignature)
	return ok && c.Type == ElementTypeObject
}

func writeElement(w *binio.Writer, t TypeSignature, v any) error {
	if isObject(t) {
		b, ok := v.(BoxedArgument)
		if !ok {
			return errors.Wrapf(ErrMalformedSignature, "object argument holds %T, not a boxed value", v)
		}
		if err := writeFieldOrPropType(w, b.Type); err != nil {
			return err
		}
		return writeElement(w, b.Type, b.Value)
	}
	switch x := v.(type) {
	case nil:
		return w.WriteSerString(nil)
	case bool:
		var b byte
		if x {
			b = 1
		}
		return w.WriteByte(b)
	case int8:
		return w.WriteByte(byte(x))
	case uint8:
		return w.WriteByte(x)
	case int16:
		w.WriteUint16(uint16(x))
	case uint16:
		w.WriteUint16(x)
	case int32:
		w.WriteUint32(uint32(x))
	case uint32:
		w.WriteUint32(x)
	case int64:
		w.WriteUint64(uint64(x))
	case uint64:
		w.WriteUint64(x)
	case float32:
		w.WriteFloat32(x)
	case float64:
		w.WriteFloat64(x)
	case string:
		return w.WriteSerString(&x)
	case *string:
		return w.WriteSerString(x)
	case TypeSignature:
		name := x.FullName()
		return w.WriteSerString(&name)
	default:
		return errors.Wrapf(ErrMalformedSignature, "unsupported argument value %T", v)
	}
	return nil
}

func writeFieldOrPropType(w *binio.Writer, t TypeSignature) error {
	switch x := t.(type) {
	case *CorLibTypeSignature:
		if x.Type == ElementTypeObject {
			return w.WriteByte(byte(ElementTypeBoxed))
		}
		return w.WriteByte(byte(x.Type))
	case *SzArrayTypeSignature:
		_ = w.WriteByte(byte(ElementTypeSzArray))
		return writeFieldOrPropType(w, x.BaseType)
	case *TypeDefOrRefSignature:
		if x.FullName() == "System.Type" {
			return w.WriteByte(byte(ElementTypeType))
		}
		_ = w.WriteByte(byte(ElementTypeEnum))
		name := x.FullName()
		return w.WriteSerString(&name)
	case nil:
		return errors.Wrap(ErrMalformedSignature, "missing argument type")
	default:
		return errors.Wrapf(ErrMalformedSignature, "type %s cannot appear in a custom attribute", t.FullName())
	}
}
