package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule() *Module {
	return NewModule("Lib.dll", &AssemblyIdentity{Name: "Lib", Version: Version{Major: 1}})
}

func newTestType(ns, name string) *TypeDefinition {
	return NewTypeDefinition(ns, name, TypePublic)
}

func TestToken(t *testing.T) {
	tok := NewToken(TableMethod, 0x1234)
	assert.Equal(t, TableMethod, tok.Table())
	assert.Equal(t, uint32(0x1234), tok.RID())
	assert.False(t, tok.IsNil())
	assert.Equal(t, "06001234", tok.String())
	assert.True(t, NewToken(TableTypeRef, 0).IsNil())
	assert.Equal(t, "Method", TableMethod.String())
	assert.Equal(t, "Table(0x30)", TableIndex(0x30).String())
}

func TestModule_AddType(t *testing.T) {
	m := newTestModule()
	typ := newTestType("Lib", "Widget")
	field := NewFieldDefinition("count", FieldPrivate, NewFieldSignature(MustCorLib(ElementTypeI4)))
	method := NewMethodDefinition("Run", MethodPublic, NewInstanceMethodSignature(MustCorLib(ElementTypeVoid)))
	require.NoError(t, typ.AddField(field))
	require.NoError(t, typ.AddMethod(method))

	// Children of an unregistered type are registered together with it.
	assert.True(t, field.Token().IsNil())
	require.NoError(t, m.AddType(typ))

	assert.Equal(t, NewToken(TableTypeDef, 1), typ.Token())
	assert.Equal(t, NewToken(TableField, 1), field.Token())
	assert.Equal(t, NewToken(TableMethod, 1), method.Token())
	assert.True(t, m.Contains(field))
	assert.True(t, m.Contains(method))

	decl, ok := method.DeclaringType()
	require.True(t, ok)
	assert.Same(t, typ, decl)
	assert.Equal(t, "Lib.Widget::Run", method.String())

	// Members added to a registered type are registered immediately.
	other := NewFieldDefinition("other", FieldPrivate, NewFieldSignature(MustCorLib(ElementTypeString)))
	require.NoError(t, typ.AddField(other))
	assert.Equal(t, NewToken(TableField, 2), other.Token())

	found, ok := m.LookupMember(NewToken(TableField, 2))
	require.True(t, ok)
	assert.Same(t, other, found)
	_, ok = m.LookupMember(NewToken(TableField, 3))
	assert.False(t, ok)
}

func TestModule_NestedTypes(t *testing.T) {
	m := newTestModule()
	outer := newTestType("Lib", "Outer")
	inner := NewTypeDefinition("", "Inner", TypeNestedPublic)
	require.NoError(t, outer.AddNestedType(inner))
	require.NoError(t, m.AddType(outer))

	assert.Equal(t, "Lib.Outer+Inner", inner.FullName())
	assert.True(t, inner.IsNested())
	assert.False(t, outer.IsNested())
	assert.Equal(t, []*TypeDefinition{outer, inner}, m.AllTypes())
	assert.Equal(t, []*TypeDefinition{outer}, m.TopLevelTypes())
}

func TestModule_SingleOwner(t *testing.T) {
	m := newTestModule()
	a := newTestType("Lib", "A")
	b := newTestType("Lib", "B")
	field := NewFieldDefinition("f", FieldPublic, NewFieldSignature(MustCorLib(ElementTypeI4)))
	require.NoError(t, a.AddField(field))
	require.ErrorIs(t, b.AddField(field), ErrAlreadyOwned)

	require.NoError(t, m.AddType(a))
	require.ErrorIs(t, m.AddType(a), ErrAlreadyOwned)

	ca := NewCustomAttribute(nil, nil)
	require.NoError(t, a.AddCustomAttribute(ca))
	require.ErrorIs(t, m.AddCustomAttribute(ca), ErrAlreadyOwned)

	parent, ok := ca.Parent()
	require.True(t, ok)
	assert.Same(t, a, parent)
}

func TestModule_Register(t *testing.T) {
	m := newTestModule()
	asm := NewAssemblyReference(AssemblyIdentity{Name: "System.Runtime", Version: Version{Major: 8}})
	ref := NewTypeReference(asm, "System", "Object")

	tok, err := m.Register(asm)
	require.NoError(t, err)
	assert.Equal(t, NewToken(TableAssemblyRef, 1), tok)

	tok, err = m.Register(ref)
	require.NoError(t, err)
	assert.Equal(t, NewToken(TableTypeRef, 1), tok)

	again, err := m.Register(ref)
	require.NoError(t, err)
	assert.Equal(t, tok, again)

	other := newTestModule()
	_, err = other.Register(ref)
	require.ErrorIs(t, err, ErrForeignMember)
	assert.False(t, other.Contains(ref))

	_, err = m.Register(plainMember{})
	require.ErrorIs(t, err, ErrNotRegistrable)

	assert.Equal(t, []*AssemblyReference{asm}, m.AssemblyReferences())
	assert.Empty(t, m.ModuleReferences())
}

type plainMember struct{}

func (plainMember) Token() Token { return 0 }

func (plainMember) Module() *Module { return nil }

func TestModule_RegisterAt(t *testing.T) {
	m := newTestModule()
	ref := NewTypeReference(m, "System", "Object")
	require.NoError(t, m.RegisterAt(NewToken(TableTypeRef, 5), ref))
	assert.Equal(t, NewToken(TableTypeRef, 5), ref.Token())
	require.NoError(t, m.RegisterAt(NewToken(TableTypeRef, 5), ref))

	require.ErrorIs(t, m.RegisterAt(NewToken(TableTypeRef, 5), NewTypeReference(m, "System", "String")), ErrTokenInUse)
	require.ErrorIs(t, m.RegisterAt(NewToken(TableTypeDef, 1), NewTypeReference(m, "System", "Int32")), ErrInvalidToken)
	require.ErrorIs(t, m.RegisterAt(NewToken(TableTypeRef, 0), NewTypeReference(m, "System", "Int32")), ErrInvalidToken)

	// Fresh registrations continue after the highest occupied row.
	next := NewTypeReference(m, "System", "Int64")
	tok, err := m.Register(next)
	require.NoError(t, err)
	assert.Equal(t, NewToken(TableTypeRef, 6), tok)
	assert.Len(t, m.Members(TableTypeRef), 2)
}

func TestModule_Rollback(t *testing.T) {
	m := newTestModule()
	kept := newTestType("Lib", "Kept")
	require.NoError(t, m.AddType(kept))

	cp := m.Checkpoint()
	added := newTestType("Lib", "Added")
	method := NewMethodDefinition("M", MethodPublic|MethodStatic, NewStaticMethodSignature(MustCorLib(ElementTypeVoid)))
	require.NoError(t, added.AddMethod(method))
	require.NoError(t, m.AddType(added))
	ref := NewTypeReference(m, "System", "Object")
	_, err := m.Register(ref)
	require.NoError(t, err)
	require.NoError(t, m.AddCustomAttribute(NewCustomAttribute(nil, nil)))

	m.Rollback(cp)

	assert.Equal(t, []*TypeDefinition{kept}, m.TopLevelTypes())
	assert.Empty(t, m.CustomAttributes())
	assert.Empty(t, m.Members(TableMethod))
	assert.Empty(t, m.Members(TableTypeRef))
	assert.Nil(t, added.Module())
	assert.True(t, added.Token().IsNil())
	assert.False(t, m.Contains(method))
	_, ok := m.Owner(method)
	assert.False(t, ok)

	// Rolled back members can be added again.
	require.NoError(t, m.AddType(added))
	assert.Equal(t, NewToken(TableTypeDef, 2), added.Token())
	assert.Equal(t, NewToken(TableMethod, 1), method.Token())
	require.NoError(t, m.Verify())
}

func TestModule_Verify(t *testing.T) {
	m := newTestModule()
	asm := NewAssemblyReference(AssemblyIdentity{Name: "System.Runtime"})
	object := NewTypeReference(asm, "System", "Object")

	typ := newTestType("Lib", "Widget")
	typ.SetBaseType(object)
	field := NewFieldDefinition("self", FieldPrivate, NewFieldSignature(typ.ToTypeSignature(false)))
	require.NoError(t, typ.AddField(field))
	require.NoError(t, m.AddType(typ))

	err := m.Verify()
	require.ErrorContains(t, err, ErrUnregisteredReference.Error())

	_, err = m.Register(asm)
	require.NoError(t, err)
	_, err = m.Register(object)
	require.NoError(t, err)
	require.NoError(t, m.Verify())

	// References into another module are reported.
	other := newTestModule()
	foreign := newTestType("Other", "Thing")
	require.NoError(t, other.AddType(foreign))
	method := NewMethodDefinition("Make", MethodPublic|MethodStatic, NewStaticMethodSignature(foreign.ToTypeSignature(false)))
	require.NoError(t, typ.AddMethod(method))
	require.ErrorContains(t, m.Verify(), "Lib.Widget::Make")
}
