package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// SignatureComparer compares members and signatures structurally: two
// members are equal when they name the same entity, regardless of the
// module graph they live in. A type definition and a type reference to
// it from another module compare equal.
type SignatureComparer struct {
	// IgnoreAssemblyVersion treats assemblies that differ only in
	// version as the same scope.
	IgnoreAssemblyVersion bool
}

// Key returns the canonical encoding of a member. Equal members have
// equal keys.
func (c SignatureComparer) Key(m Member) []byte {
	k := keyWriter{cmp: c}
	k.member(m)
	return k.buf
}

// SignatureKey returns the canonical encoding of a type signature.
func (c SignatureComparer) SignatureKey(s TypeSignature) []byte {
	k := keyWriter{cmp: c}
	k.typeSig(s)
	return k.buf
}

func (c SignatureComparer) Equal(a, b Member) bool {
	return bytes.Equal(c.Key(a), c.Key(b))
}

func (c SignatureComparer) EqualSignatures(a, b TypeSignature) bool {
	return bytes.Equal(c.SignatureKey(a), c.SignatureKey(b))
}

// Hash returns a 64-bit hash consistent with Equal.
func (c SignatureComparer) Hash(m Member) uint64 {
	return xxhash.Sum64(c.Key(m))
}

func (c SignatureComparer) HashSignature(s TypeSignature) uint64 {
	return xxhash.Sum64(c.SignatureKey(s))
}

type keyWriter struct {
	cmp SignatureComparer
	buf []byte
}

func (k *keyWriter) tag(b byte) { k.buf = append(k.buf, b) }

func (k *keyWriter) str(s string) {
	k.buf = binary.AppendUvarint(k.buf, uint64(len(s)))
	k.buf = append(k.buf, s...)
}

func (k *keyWriter) num(v uint64) { k.buf = binary.AppendUvarint(k.buf, v) }

func (k *keyWriter) member(m Member) {
	switch x := m.(type) {
	case nil:
		k.tag('0')
	case *TypeDefinition, *TypeReference:
		k.tag('T')
		k.typeName(x.(TypeDefOrRef))
	case *TypeSpecification:
		k.tag('S')
		k.typeSig(x.Signature())
	case *MethodDefinition:
		k.tag('M')
		k.declaringType(x)
		k.str(x.Name())
		k.methodSig(x.MethodSignature())
	case *FieldDefinition:
		k.tag('F')
		k.declaringType(x)
		k.str(x.Name())
		k.fieldSig(x.FieldSignature())
	case *MemberReference:
		if x.IsField() {
			k.tag('F')
			k.member(x.Parent())
			k.str(x.Name())
			k.fieldSig(x.FieldSignature())
			return
		}
		k.tag('M')
		k.member(x.Parent())
		k.str(x.Name())
		k.methodSig(x.MethodSignature())
	case *MethodSpecification:
		k.tag('G')
		k.member(x.Method())
		if s := x.Signature(); s != nil {
			k.typeList(s.TypeArguments)
		}
	case *PropertyDefinition:
		k.tag('P')
		k.declaringType(x)
		k.str(x.Name())
		if s := x.Signature(); s != nil {
			k.typeSig(s.PropertyType)
			k.typeList(s.ParameterTypes)
		}
	case *EventDefinition:
		k.tag('E')
		k.declaringType(x)
		k.str(x.Name())
	case *GenericParameter:
		k.tag('X')
		if mod := x.Module(); mod != nil {
			owner, _ := mod.Owner(x)
			k.member(owner)
		}
		k.num(uint64(x.Number()))
	case *StandAloneSignature:
		k.tag('L')
		switch s := x.Signature().(type) {
		case *LocalVariablesSignature:
			k.typeList(s.VariableTypes)
		case *MethodSignature:
			k.methodSig(s)
		}
	case *AssemblyReference:
		k.tag('A')
		k.assembly(x.Identity())
	case *ModuleReference:
		k.tag('R')
		k.str(x.Name())
	case *Module:
		k.tag('D')
		k.moduleScope(x)
	default:
		k.tag('?')
		k.str(fmt.Sprintf("%T", m))
		k.num(uint64(m.Token()))
	}
}

// declaringType encodes the type owning a definition, or nothing for
// members that were never attached.
func (k *keyWriter) declaringType(m Member) {
	if mod := m.Module(); mod != nil {
		if t, ok := mod.DeclaringType(m); ok {
			k.tag('T')
			k.typeName(t)
			return
		}
	}
	k.tag('-')
}

func (k *keyWriter) typeName(t TypeDefOrRef) {
	switch x := t.(type) {
	case *TypeDefinition:
		if decl, ok := x.DeclaringType(); ok {
			k.typeName(decl)
			k.tag('/')
			k.str(x.Name())
			return
		}
		k.moduleScope(x.Module())
		k.str(x.Namespace())
		k.str(x.Name())
	case *TypeReference:
		switch scope := x.Scope().(type) {
		case *TypeReference:
			k.typeName(scope)
			k.tag('/')
			k.str(x.Name())
			return
		case *AssemblyReference:
			k.assembly(scope.Identity())
		case *ModuleReference:
			k.tag('m')
			k.str(scope.Name())
		case *Module:
			k.moduleScope(scope)
		default:
			k.tag('?')
		}
		k.str(x.Namespace())
		k.str(x.Name())
	case *TypeSpecification:
		k.tag('S')
		k.typeSig(x.Signature())
	default:
		k.tag('?')
	}
}

func (k *keyWriter) moduleScope(m *Module) {
	switch {
	case m == nil:
		k.tag('?')
	case m.Assembly() != nil:
		k.assembly(*m.Assembly())
	default:
		k.tag('m')
		k.str(m.Name())
	}
}

func (k *keyWriter) assembly(id AssemblyIdentity) {
	k.tag('a')
	k.str(id.Name)
	if !k.cmp.IgnoreAssemblyVersion {
		k.str(id.Version.String())
	}
	k.str(id.Culture)
	k.str(string(id.PublicKeyToken))
}

func (k *keyWriter) methodSig(s *MethodSignature) {
	if s == nil {
		k.tag('0')
		return
	}
	k.tag(byte(s.Attributes))
	k.num(uint64(s.GenericParameterCount))
	k.typeSig(s.ReturnType)
	k.typeList(s.ParameterTypes)
	k.typeList(s.SentinelParameterTypes)
}

func (k *keyWriter) fieldSig(s *FieldSignature) {
	if s == nil {
		k.tag('0')
		return
	}
	k.typeSig(s.FieldType)
}

func (k *keyWriter) typeList(types []TypeSignature) {
	k.num(uint64(len(types)))
	for _, t := range types {
		k.typeSig(t)
	}
}

func (k *keyWriter) typeSig(s TypeSignature) {
	if s == nil {
		k.tag('0')
		return
	}
	k.tag(byte(s.ElementType()))
	switch x := s.(type) {
	case *CorLibTypeSignature:
	case *TypeDefOrRefSignature:
		k.typeName(x.Type)
	case *PointerTypeSignature:
		k.typeSig(x.BaseType)
	case *ByReferenceTypeSignature:
		k.typeSig(x.BaseType)
	case *SzArrayTypeSignature:
		k.typeSig(x.BaseType)
	case *PinnedTypeSignature:
		k.typeSig(x.BaseType)
	case *BoxedTypeSignature:
		k.typeSig(x.BaseType)
	case *CustomModifierTypeSignature:
		k.typeName(x.ModifierType)
		k.typeSig(x.BaseType)
	case *ArrayTypeSignature:
		k.typeSig(x.BaseType)
		k.num(uint64(len(x.Dimensions)))
		for _, d := range x.Dimensions {
			if d.Size != nil {
				k.tag('s')
				k.num(uint64(*d.Size))
			}
			if d.LowerBound != nil {
				k.tag('l')
				k.num(uint64(uint32(*d.LowerBound)))
			}
			k.tag(',')
		}
	case *GenericInstanceTypeSignature:
		k.typeName(x.GenericType)
		k.typeList(x.TypeArguments)
	case *GenericParameterSignature:
		k.num(uint64(x.Index))
	case *FunctionPointerTypeSignature:
		k.methodSig(x.Signature)
	default:
		k.str(fmt.Sprintf("%T", s))
	}
}
