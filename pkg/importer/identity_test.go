package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/clrmeta/pkg/metadata"
)

func TestIdentityMap(t *testing.T) {
	f := newFixture(t)
	ids := NewIdentityMap(metadata.SignatureComparer{})

	clone := metadata.NewTypeDefinition("Lib", "Widget", metadata.TypePublic)
	require.NoError(t, ids.Add(f.widget, clone))
	require.NoError(t, ids.Add(f.widget, clone))
	require.ErrorIs(t, ids.Add(f.widget, f.program), ErrDuplicate)
	assert.Equal(t, 1, ids.Len())

	// Structurally equal references find the clone of the definition.
	ref := metadata.NewTypeReference(metadata.NewAssemblyReference(libIdentity), "Lib", "Widget")
	got, ok := ids.Lookup(ref)
	require.True(t, ok)
	assert.Same(t, clone, got)

	_, ok = ids.Lookup(f.inner)
	assert.False(t, ok)
	_, ok = ids.Get(f.run)
	assert.False(t, ok)
	assert.Equal(t, int64(1), ids.Hits())
	assert.Equal(t, int64(1), ids.Misses())

	runClone := metadata.NewMethodDefinition("Run", metadata.MethodPublic, f.run.MethodSignature())
	require.NoError(t, ids.Add(f.run, runClone))
	require.NoError(t, ids.Add(f.size, f.size))

	var order []metadata.Member
	ids.Range(func(original, _ metadata.Member) bool {
		order = append(order, original)
		return true
	})
	assert.Equal(t, []metadata.Member{f.widget, f.run, f.size}, order)

	ids.Truncate(1)
	assert.Equal(t, 1, ids.Len())
	_, ok = ids.Get(f.run)
	assert.False(t, ok)
	_, ok = ids.Get(f.size)
	assert.False(t, ok)
	got, ok = ids.Get(f.widget)
	require.True(t, ok)
	assert.Same(t, clone, got)

	// Entries can be added again after a truncation.
	require.NoError(t, ids.Add(f.run, runClone))
	assert.Equal(t, 2, ids.Len())

	ids.Truncate(-1)
	assert.Zero(t, ids.Len())
	_, ok = ids.Get(f.widget)
	assert.False(t, ok)
}

func TestIdentityImporter_PrefersClones(t *testing.T) {
	f := newFixture(t)
	ids := NewIdentityMap(metadata.SignatureComparer{})
	imp := WithIdentityMap(f.app, ids)
	assert.Same(t, f.app, imp.Target())
	assert.Same(t, ids, imp.IdentityMap())

	clone := metadata.NewTypeDefinition("App", "Widget", metadata.TypePublic)
	require.NoError(t, f.app.AddType(clone))
	require.NoError(t, ids.Add(f.widget, clone))

	got, err := imp.ImportType(f.widget)
	require.NoError(t, err)
	assert.Same(t, clone, got)

	// Signatures reached while building a new reference use the clone too.
	helper := metadata.NewTypeDefinition("Lib", "Helper", metadata.TypePublic)
	use := metadata.NewMethodDefinition("Use", metadata.MethodPublic|metadata.MethodStatic,
		metadata.NewStaticMethodSignature(metadata.MustCorLib(metadata.ElementTypeVoid), f.widget.ToTypeSignature(false)))
	require.NoError(t, helper.AddMethod(use))
	require.NoError(t, f.lib.AddType(helper))

	method, err := imp.ImportMethod(use)
	require.NoError(t, err)
	ref, ok := method.(*metadata.MemberReference)
	require.True(t, ok)
	assert.Equal(t, "Lib.Helper", ref.Parent().(*metadata.TypeReference).FullName())
	param := ref.MethodSignature().ParameterTypes[0].(*metadata.TypeDefOrRefSignature)
	assert.Same(t, clone, param.Type)

	member, err := imp.ImportMember(use)
	require.NoError(t, err)
	assert.Same(t, ref, member)

	spec := metadata.NewMethodSpecification(f.make, &metadata.GenericInstanceMethodSignature{
		TypeArguments: []metadata.TypeSignature{f.widget.ToTypeSignature(false)},
	})
	imported, err := imp.ImportMethodSpecification(spec)
	require.NoError(t, err)
	arg := imported.Signature().TypeArguments[0].(*metadata.TypeDefOrRefSignature)
	assert.Same(t, clone, arg.Type)

	require.NoError(t, f.app.Verify())
	assert.Positive(t, ids.Hits())
}

func TestIdentityImporter_MemberKinds(t *testing.T) {
	f := newFixture(t)
	ids := NewIdentityMap(metadata.SignatureComparer{})
	imp := WithIdentityMap(f.app, ids)

	// Kinds without a reference form only resolve through the map.
	param := metadata.NewGenericParameter(0, "T", 0)
	require.NoError(t, f.make.AddGenericParameter(param))
	_, err := imp.ImportMember(param)
	require.ErrorIs(t, err, ErrUnsupportedMember)

	cloneParam := metadata.NewGenericParameter(0, "T", 0)
	require.NoError(t, ids.Add(param, cloneParam))
	got, err := imp.ImportMember(param)
	require.NoError(t, err)
	assert.Same(t, cloneParam, got)

	// A clone of the wrong kind is reported.
	require.NoError(t, ids.Add(f.size, f.program))
	_, err = imp.ImportField(f.size)
	require.ErrorIs(t, err, ErrUnexpectedImport)

	got, err = imp.ImportMember(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
