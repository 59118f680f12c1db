package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/clrmeta/pkg/binio"
)

func encode(t *testing.T, sig BlobSignature) []byte {
	t.Helper()
	w := binio.NewWriter(16)
	require.NoError(t, sig.WriteTo(w))
	return w.Bytes()
}

func TestSignature_Encoding(t *testing.T) {
	m := newTestModule()
	asm := NewAssemblyReference(AssemblyIdentity{Name: "System.Runtime"})
	list := NewTypeReference(asm, "System.Collections.Generic", "List`1")
	_, err := m.Register(asm)
	require.NoError(t, err)
	_, err = m.Register(list)
	require.NoError(t, err)
	first := newTestType("Lib", "First")
	point := newTestType("Lib", "Point")
	require.NoError(t, m.AddType(first))
	require.NoError(t, m.AddType(point))

	i4 := MustCorLib(ElementTypeI4)
	str := MustCorLib(ElementTypeString)
	mvar0 := &GenericParameterSignature{Kind: GenericParameterKindMethod, Index: 0}
	zero := int32(0)

	for _, tc := range []struct {
		name     string
		sig      BlobSignature
		expected []byte
	}{
		{
			name:     "field",
			sig:      NewFieldSignature(i4),
			expected: []byte{0x06, 0x08},
		},
		{
			name:     "instance method",
			sig:      NewInstanceMethodSignature(MustCorLib(ElementTypeVoid), i4, str),
			expected: []byte{0x20, 0x02, 0x01, 0x08, 0x0E},
		},
		{
			name: "generic method",
			sig: &MethodSignature{
				Attributes:            CallingConventionGeneric,
				GenericParameterCount: 1,
				ReturnType:            mvar0,
				ParameterTypes:        []TypeSignature{NewSzArray(mvar0)},
			},
			expected: []byte{0x10, 0x01, 0x01, 0x1E, 0x00, 0x1D, 0x1E, 0x00},
		},
		{
			name: "vararg method",
			sig: &MethodSignature{
				Attributes:             CallingConventionVarArg,
				ReturnType:             MustCorLib(ElementTypeVoid),
				ParameterTypes:         []TypeSignature{str},
				SentinelParameterTypes: []TypeSignature{i4},
			},
			expected: []byte{0x05, 0x02, 0x01, 0x0E, 0x41, 0x08},
		},
		{
			name:     "class reference",
			sig:      NewFieldSignature(list.ToTypeSignature(false)),
			expected: []byte{0x06, 0x12, 0x05},
		},
		{
			name:     "value type definition",
			sig:      NewFieldSignature(point.ToTypeSignature(true)),
			expected: []byte{0x06, 0x11, 0x08},
		},
		{
			name:     "generic instance",
			sig:      NewFieldSignature(NewGenericInstance(list, false, i4)),
			expected: []byte{0x06, 0x15, 0x12, 0x05, 0x01, 0x08},
		},
		{
			name:     "array with lower bounds",
			sig:      NewFieldSignature(NewArray(i4, ArrayDimension{LowerBound: &zero}, ArrayDimension{LowerBound: &zero})),
			expected: []byte{0x06, 0x14, 0x08, 0x02, 0x00, 0x02, 0x00, 0x00},
		},
		{
			name:     "required modifier",
			sig:      NewFieldSignature(NewCustomModifier(first, true, i4)),
			expected: []byte{0x06, 0x1F, 0x04, 0x08},
		},
		{
			name:     "locals",
			sig:      &LocalVariablesSignature{VariableTypes: []TypeSignature{i4, NewPinned(NewByReference(str))}},
			expected: []byte{0x07, 0x02, 0x08, 0x45, 0x10, 0x0E},
		},
		{
			name:     "instance property",
			sig:      &PropertySignature{HasThis: true, PropertyType: i4},
			expected: []byte{0x28, 0x00, 0x08},
		},
		{
			name:     "method instantiation",
			sig:      &GenericInstanceMethodSignature{TypeArguments: []TypeSignature{str}},
			expected: []byte{0x0A, 0x01, 0x0E},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, encode(t, tc.sig))
		})
	}
}

func TestSignature_Errors(t *testing.T) {
	unregistered := newTestType("Lib", "Loose")
	w := binio.NewWriter(0)
	require.ErrorIs(t, NewFieldSignature(unregistered.ToTypeSignature(false)).WriteTo(w), ErrUnassignedToken)
	require.ErrorIs(t, NewFieldSignature(nil).WriteTo(w), ErrMalformedSignature)
	require.ErrorIs(t, (&MethodSignature{}).WriteTo(w), ErrMalformedSignature)

	_, err := CorLib(ElementTypeClass)
	require.ErrorIs(t, err, ErrNotCorLibType)
	assert.Panics(t, func() { MustCorLib(ElementTypeSzArray) })
}

func TestSignature_Names(t *testing.T) {
	m := newTestModule()
	list := NewTypeReference(m, "System.Collections.Generic", "List`1")
	i4 := MustCorLib(ElementTypeI4)

	assert.Equal(t, "System.Int32", i4.FullName())
	assert.Equal(t, "System.Int32[]", NewSzArray(i4).FullName())
	assert.Equal(t, "System.Int32[,]", NewArray(i4, ArrayDimension{}, ArrayDimension{}).FullName())
	assert.Equal(t, "System.Int32*", NewPointer(i4).FullName())
	assert.Equal(t, "System.Collections.Generic.List`1<System.Int32>", NewGenericInstance(list, false, i4).FullName())
	assert.Equal(t, "!!1", (&GenericParameterSignature{Kind: GenericParameterKindMethod, Index: 1}).FullName())
	assert.Equal(t, "instance System.Void (System.Int32)", NewInstanceMethodSignature(MustCorLib(ElementTypeVoid), i4).String())

	spec := NewTypeSpecification(NewGenericInstance(list, false, i4))
	assert.Equal(t, "System.Collections.Generic", spec.Namespace())
	assert.Equal(t, "List`1<System.Int32>", spec.Name())
}

func TestCustomAttributeSignature(t *testing.T) {
	m := newTestModule()
	color := newTestType("Lib", "Color")
	require.NoError(t, m.AddType(color))
	i4 := MustCorLib(ElementTypeI4)
	str := MustCorLib(ElementTypeString)

	for _, tc := range []struct {
		name     string
		sig      *CustomAttributeSignature
		expected []byte
	}{
		{
			name:     "empty",
			sig:      &CustomAttributeSignature{},
			expected: []byte{0x01, 0x00, 0x00, 0x00},
		},
		{
			name: "fixed and named",
			sig: &CustomAttributeSignature{
				FixedArguments: []*CustomAttributeArgument{
					{ArgumentType: str, Elements: []any{"ab"}},
					{ArgumentType: i4, Elements: []any{int32(1)}},
				},
				NamedArguments: []*CustomAttributeNamedArgument{{
					Kind:         NamedArgumentProperty,
					MemberName:   "Name",
					ArgumentType: str,
					Argument:     &CustomAttributeArgument{ArgumentType: str, Elements: []any{"x"}},
				}},
			},
			expected: []byte{
				0x01, 0x00,
				0x02, 'a', 'b',
				0x01, 0x00, 0x00, 0x00,
				0x01, 0x00,
				0x54, 0x0E, 0x04, 'N', 'a', 'm', 'e', 0x01, 'x',
			},
		},
		{
			name: "null string and null array",
			sig: &CustomAttributeSignature{
				FixedArguments: []*CustomAttributeArgument{
					{ArgumentType: str, Elements: []any{nil}},
					{ArgumentType: NewSzArray(i4), IsNullArray: true},
				},
			},
			expected: []byte{0x01, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00},
		},
		{
			name: "array",
			sig: &CustomAttributeSignature{
				FixedArguments: []*CustomAttributeArgument{
					{ArgumentType: NewSzArray(MustCorLib(ElementTypeU1)), Elements: []any{uint8(1), uint8(2)}},
				},
			},
			expected: []byte{0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x00},
		},
		{
			name: "boxed value and enum field",
			sig: &CustomAttributeSignature{
				FixedArguments: []*CustomAttributeArgument{
					{ArgumentType: MustCorLib(ElementTypeObject), Elements: []any{BoxedArgument{Type: i4, Value: int32(3)}}},
				},
				NamedArguments: []*CustomAttributeNamedArgument{{
					Kind:         NamedArgumentField,
					MemberName:   "C",
					ArgumentType: color.ToTypeSignature(true),
					Argument:     &CustomAttributeArgument{ArgumentType: color.ToTypeSignature(true), Elements: []any{int32(2)}},
				}},
			},
			expected: []byte{
				0x01, 0x00,
				0x08, 0x03, 0x00, 0x00, 0x00,
				0x01, 0x00,
				0x53, 0x55, 0x09, 'L', 'i', 'b', '.', 'C', 'o', 'l', 'o', 'r', 0x01, 'C', 0x02, 0x00, 0x00, 0x00,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, encode(t, tc.sig))
		})
	}
}

func TestCustomAttributeSignature_Errors(t *testing.T) {
	w := binio.NewWriter(0)
	sig := &CustomAttributeSignature{
		FixedArguments: []*CustomAttributeArgument{{ArgumentType: MustCorLib(ElementTypeI4)}},
	}
	require.ErrorIs(t, sig.WriteTo(w), ErrMalformedSignature)

	sig = &CustomAttributeSignature{
		FixedArguments: []*CustomAttributeArgument{
			{ArgumentType: MustCorLib(ElementTypeObject), Elements: []any{int32(1)}},
		},
	}
	require.ErrorIs(t, sig.WriteTo(w), ErrMalformedSignature)
}
