package cloner

import (
	"flag"
	"testing"

	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/grafana/clrmeta/pkg/builder"
	"github.com/grafana/clrmeta/pkg/metadata"
)

var (
	runtimeRef   = metadata.NewAssemblyReference(metadata.AssemblyIdentity{Name: "System.Runtime", Version: metadata.Version{Major: 8}})
	objectRef    = metadata.NewTypeReference(runtimeRef, "System", "Object")
	exceptionRef = metadata.NewTypeReference(runtimeRef, "System", "Exception")
	obsoleteRef  = metadata.NewTypeReference(runtimeRef, "System", "ObsoleteAttribute")
)

func i4() metadata.TypeSignature { return metadata.MustCorLib(metadata.ElementTypeI4) }

type source struct {
	module  *metadata.Module
	counter *metadata.TypeDefinition
	node    *metadata.TypeDefinition

	value    *metadata.FieldDefinition
	max      *metadata.FieldDefinition
	add      *metadata.MethodDefinition
	classify *metadata.MethodDefinition
	safe     *metadata.MethodDefinition
	getValue *metadata.MethodDefinition
	prop     *metadata.PropertyDefinition
}

func newSource(t *testing.T) *source {
	t.Helper()
	s := &source{
		module:  metadata.NewModule("Lib.dll", &metadata.AssemblyIdentity{Name: "Lib", Version: metadata.Version{Major: 1}}),
		counter: metadata.NewTypeDefinition("Lib", "Counter", metadata.TypePublic),
		node:    metadata.NewTypeDefinition("", "Node", metadata.TypeNestedPublic),
	}
	s.counter.SetBaseType(objectRef)
	s.counter.SetClassLayout(&metadata.ClassLayout{PackingSize: 4})
	require.NoError(t, s.counter.AddNestedType(s.node))
	require.NoError(t, s.node.AddField(metadata.NewFieldDefinition("next", metadata.FieldPublic, metadata.NewFieldSignature(s.node.ToTypeSignature(false)))))

	s.value = metadata.NewFieldDefinition("value", metadata.FieldPrivate, metadata.NewFieldSignature(i4()))
	s.max = metadata.NewFieldDefinition("Max", metadata.FieldPublic|metadata.FieldStatic|metadata.FieldLiteral, metadata.NewFieldSignature(i4()))
	require.NoError(t, s.counter.AddField(s.value))
	require.NoError(t, s.counter.AddField(s.max))
	require.NoError(t, s.max.SetConstant(metadata.NewConstant(metadata.ElementTypeI4, []byte{10, 0, 0, 0})))

	s.add = metadata.NewMethodDefinition("Add", metadata.MethodPublic, metadata.NewInstanceMethodSignature(i4(), i4()))
	s.classify = metadata.NewMethodDefinition("Classify", metadata.MethodPublic|metadata.MethodStatic, metadata.NewStaticMethodSignature(i4(), i4()))
	s.safe = metadata.NewMethodDefinition("Safe", metadata.MethodPublic|metadata.MethodStatic, metadata.NewStaticMethodSignature(metadata.MustCorLib(metadata.ElementTypeVoid)))
	s.getValue = metadata.NewMethodDefinition("get_Value", metadata.MethodPublic|metadata.MethodSpecialName, metadata.NewInstanceMethodSignature(i4()))
	for _, m := range []*metadata.MethodDefinition{s.add, s.classify, s.safe, s.getValue} {
		require.NoError(t, s.counter.AddMethod(m))
	}
	require.NoError(t, s.add.AddParameterDefinition(metadata.NewParameterDefinition(1, "amount", 0)))

	s.prop = metadata.NewPropertyDefinition("Value", 0, &metadata.PropertySignature{HasThis: true, PropertyType: i4()})
	require.NoError(t, s.counter.AddProperty(s.prop))
	s.prop.AddSemantics(metadata.MethodSemantics{Attributes: metadata.SemanticsGetter, Method: s.getValue})

	obsoleteCtor := metadata.NewMemberReference(obsoleteRef, ".ctor", metadata.NewInstanceMethodSignature(
		metadata.MustCorLib(metadata.ElementTypeVoid), metadata.MustCorLib(metadata.ElementTypeString)))
	message := "use Total"
	require.NoError(t, s.counter.AddCustomAttribute(metadata.NewCustomAttribute(obsoleteCtor, &metadata.CustomAttributeSignature{
		FixedArguments: []*metadata.CustomAttributeArgument{{
			ArgumentType: metadata.MustCorLib(metadata.ElementTypeString),
			Elements:     []any{&message},
		}},
	})))

	s.add.SetBody(s.addBody(t))
	s.classify.SetBody(s.classifyBody())
	s.safe.SetBody(s.safeBody())
	getBody := metadata.NewMethodBody()
	getBody.Instructions.Add(metadata.LdargS, s.getValue.Parameters()[0])
	getBody.Instructions.Add(metadata.Ldfld, s.value)
	getBody.Instructions.Add(metadata.Ret, nil)
	s.getValue.SetBody(getBody)

	require.NoError(t, s.module.AddType(s.counter))
	return s
}

// addBody adds the argument and counts down to Max with a forward and a
// backward branch.
func (s *source) addBody(t *testing.T) *metadata.MethodBody {
	params := s.add.Parameters()
	body := metadata.NewMethodBody()
	require.NoError(t, body.SetLocalsSignature(metadata.NewStandAloneSignature(&metadata.LocalVariablesSignature{
		VariableTypes: []metadata.TypeSignature{i4()},
	})))
	local := body.LocalVariables()[0]
	l := &body.Instructions

	l.Add(metadata.LdargS, params[0])
	l.Add(metadata.Ldfld, s.value)
	l.Add(metadata.LdargS, params[1])
	l.Add(metadata.Add, nil)
	l.Add(metadata.StlocS, local)
	loop := l.Add(metadata.LdlocS, local)
	l.Add(metadata.Ldsfld, s.max)
	done := &metadata.Instruction{OpCode: metadata.LdlocS, Operand: local}
	l.Add(metadata.BltS, done)
	l.Add(metadata.LdlocS, local)
	l.Add(metadata.LdcI41, nil)
	l.Add(metadata.Sub, nil)
	l.Add(metadata.StlocS, local)
	l.Add(metadata.BrS, loop)
	l.Append(done)
	l.Add(metadata.Ret, nil)
	l.CalculateOffsets()
	return body
}

func (s *source) classifyBody() *metadata.MethodBody {
	body := metadata.NewMethodBody()
	l := &body.Instructions
	caseA := &metadata.Instruction{OpCode: metadata.LdcI40}
	caseB := &metadata.Instruction{OpCode: metadata.LdcI41}
	caseC := &metadata.Instruction{OpCode: metadata.LdcI4S, Operand: int8(2)}
	fallback := &metadata.Instruction{OpCode: metadata.LdcI4M1}

	l.Add(metadata.LdargS, s.classify.Parameters()[0])
	l.Add(metadata.Switch, []*metadata.Instruction{caseA, caseB, caseC})
	l.Add(metadata.BrS, fallback)
	for _, ins := range []*metadata.Instruction{caseA, caseB, caseC, fallback} {
		l.Append(ins)
		l.Add(metadata.Ret, nil)
	}
	l.CalculateOffsets()
	return body
}

// safeBody calls Classify inside a region protected by a filter and a
// typed catch.
func (s *source) safeBody() *metadata.MethodBody {
	body := metadata.NewMethodBody()
	l := &body.Instructions
	end := &metadata.Instruction{OpCode: metadata.Ret}

	tryStart := l.Add(metadata.LdcI40, nil)
	l.Add(metadata.Call, s.classify)
	l.Add(metadata.Pop, nil)
	l.Add(metadata.LeaveS, end)
	filterStart := l.Add(metadata.Pop, nil)
	l.Add(metadata.LdcI41, nil)
	l.Add(metadata.Endfilter, nil)
	handlerStart := l.Add(metadata.Pop, nil)
	l.Add(metadata.LeaveS, end)
	l.Append(end)
	l.CalculateOffsets()

	body.ExceptionHandlers = []*metadata.ExceptionHandler{
		{
			HandlerType:  metadata.HandlerFilter,
			TryStart:     tryStart,
			TryEnd:       filterStart,
			FilterStart:  filterStart,
			HandlerStart: handlerStart,
			HandlerEnd:   end,
		},
		{
			HandlerType:   metadata.HandlerException,
			TryStart:      tryStart,
			TryEnd:        filterStart,
			HandlerStart:  handlerStart,
			HandlerEnd:    nil,
			ExceptionType: exceptionRef,
		},
	}
	return body
}

func newTarget() *metadata.Module {
	return metadata.NewModule("App.dll", &metadata.AssemblyIdentity{Name: "App", Version: metadata.Version{Major: 1}})
}

func newCloner(t *testing.T, target *metadata.Module, reg prometheus.Registerer) *Cloner {
	t.Helper()
	c, err := New(log.NewNopLogger(), Config{VerifyBodies: true}, reg, target)
	require.NoError(t, err)
	return c
}

func cloned[T metadata.Member](t *testing.T, res *Result, original metadata.Member) T {
	t.Helper()
	m, ok := res.ClonedMember(original)
	require.True(t, ok, "%T %s has no clone", original, original.Token())
	clone, ok := m.(T)
	require.True(t, ok, "%T cloned as %T", original, m)
	return clone
}

func instructionText(body *metadata.MethodBody) []string {
	return lo.Map(body.Instructions.Items(), func(ins *metadata.Instruction, _ int) string { return ins.String() })
}

func TestCloneTypes_Structure(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	c := newCloner(t, target, nil)

	res, err := c.CloneTypes(src.counter)
	require.NoError(t, err)
	require.Len(t, res.Types, 1)
	counter := res.Types[0]
	assert.Equal(t, "Lib.Counter", counter.FullName())
	assert.Same(t, target, counter.Module())
	assert.Equal(t, []*metadata.TypeDefinition{counter}, target.TopLevelTypes())

	base, ok := counter.BaseType().(*metadata.TypeReference)
	require.True(t, ok)
	assert.Equal(t, "System.Object", base.FullName())
	assert.True(t, target.Contains(base))
	assert.Equal(t, &metadata.ClassLayout{PackingSize: 4}, counter.ClassLayout())

	node := cloned[*metadata.TypeDefinition](t, res, src.node)
	require.Equal(t, []*metadata.TypeDefinition{node}, counter.NestedTypes())
	next := node.Fields()[0].FieldSignature().FieldType.(*metadata.TypeDefOrRefSignature)
	assert.Same(t, node, next.Type)

	max := cloned[*metadata.FieldDefinition](t, res, src.max)
	require.NotNil(t, max.Constant())
	assert.Equal(t, src.max.Constant().Value, max.Constant().Value)
	assert.NotSame(t, &src.max.Constant().Value[0], &max.Constant().Value[0])

	add := cloned[*metadata.MethodDefinition](t, res, src.add)
	amount, ok := add.ParameterDefinition(1)
	require.True(t, ok)
	assert.Equal(t, "amount", amount.Name())
	if diff := cmp.Diff(instructionText(src.add.Body()), instructionText(add.Body())); diff != "" {
		t.Errorf("cloned body differs (-original +clone):\n%s", diff)
	}
	assert.Same(t, add.Body().LocalVariables()[0], add.Body().Instructions.Items()[4].Operand)
	assert.Same(t, add.Parameters()[1], add.Body().Instructions.Items()[2].Operand)
	assert.Same(t, max, add.Body().Instructions.Items()[6].Operand)

	prop := cloned[*metadata.PropertyDefinition](t, res, src.prop)
	getter, ok := prop.Getter()
	require.True(t, ok)
	assert.Same(t, cloned[*metadata.MethodDefinition](t, res, src.getValue), getter)

	require.Len(t, counter.CustomAttributes(), 1)
	ca := counter.CustomAttributes()[0]
	assert.True(t, target.Contains(ca))
	assert.True(t, target.Contains(ca.Constructor()))
	attrType, ok := ca.AttributeType()
	require.True(t, ok)
	assert.Equal(t, "System.ObsoleteAttribute", attrType.FullName())
	assert.Equal(t, "use Total", *ca.Signature().FixedArguments[0].Elements[0].(*string))

	// Every external scope is referenced once.
	assert.Len(t, target.AssemblyReferences(), 1)
	require.NoError(t, target.Verify())
}

// Cloned members encode to the same blobs as their originals.
func TestCloneTypes_BlobIndex(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	res, err := newCloner(t, target, nil).CloneTypes(src.counter)
	require.NoError(t, err)

	original := builder.NewBlobIndexer(builder.NewBlobStreamBuffer())
	require.NoError(t, original.IndexModule(src.module))
	clone := builder.NewBlobIndexer(builder.NewBlobStreamBuffer())
	require.NoError(t, clone.IndexModule(target))

	blob := func(x *builder.BlobIndexer, tok metadata.Token, column builder.Column) []byte {
		t.Helper()
		offset, ok := x.Offset(tok, column)
		require.True(t, ok, "%s %s", tok, column)
		data, err := x.Blobs().Blob(offset)
		require.NoError(t, err)
		return data
	}
	for _, m := range []metadata.Member{src.value, src.max, src.add, src.classify} {
		c, ok := res.ClonedMember(m)
		require.True(t, ok)
		assert.Equal(t, blob(original, m.Token(), builder.ColumnSignature), blob(clone, c.Token(), builder.ColumnSignature), "%s", m.Token())
	}
	constant := cloned[*metadata.FieldDefinition](t, res, src.max).Constant()
	assert.Equal(t, []byte{10, 0, 0, 0}, blob(clone, constant.Token(), builder.ColumnValue))
}

// newGenericBox builds
//
//	[DebuggerDisplay("{Value}", Target = typeof(Box<>))]
//	public class Box<T> : IEquatable<Box<T>> where T : IComparable<T>
//
// with a generic method, a P/Invoke method, an event and an explicit
// interface method implementation.
func newGenericBox(t *testing.T) *metadata.TypeDefinition {
	t.Helper()
	mod := metadata.NewModule("Lib.dll", &metadata.AssemblyIdentity{Name: "Lib", Version: metadata.Version{Major: 1}})
	box := metadata.NewTypeDefinition("Lib", "Box`1", metadata.TypePublic)
	box.SetBaseType(objectRef)

	typeArg := &metadata.GenericParameterSignature{Kind: metadata.GenericParameterKindType, Index: 0}
	icomparable := metadata.NewTypeReference(runtimeRef, "System", "IComparable`1")
	param := metadata.NewGenericParameter(0, "T", 0)
	require.NoError(t, box.AddGenericParameter(param))
	require.NoError(t, param.AddConstraint(metadata.NewGenericParameterConstraint(
		metadata.NewTypeSpecification(metadata.NewGenericInstance(icomparable, false, typeArg)))))

	self := metadata.NewGenericInstance(box, false, typeArg)
	equatable := metadata.NewTypeSpecification(metadata.NewGenericInstance(
		metadata.NewTypeReference(runtimeRef, "System", "IEquatable`1"), false, self))
	require.NoError(t, box.AddInterface(metadata.NewInterfaceImplementation(equatable)))

	boolean := metadata.MustCorLib(metadata.ElementTypeBoolean)
	void := metadata.MustCorLib(metadata.ElementTypeVoid)
	equals := metadata.NewMethodDefinition("Equals", metadata.MethodPublic|metadata.MethodVirtual, metadata.NewInstanceMethodSignature(boolean, self))
	require.NoError(t, box.AddMethod(equals))
	body := metadata.NewMethodBody()
	body.Instructions.Add(metadata.LdcI40, nil)
	body.Instructions.Add(metadata.Ret, nil)
	equals.SetBody(body)
	box.AddMethodImplementation(metadata.MethodImplementation{
		Declaration: metadata.NewMemberReference(equatable, "Equals", metadata.NewInstanceMethodSignature(boolean, typeArg)),
		Body:        equals,
	})

	methodArg := &metadata.GenericParameterSignature{Kind: metadata.GenericParameterKindMethod, Index: 0}
	convert := metadata.NewMethodDefinition("Convert", metadata.MethodPublic|metadata.MethodStatic, &metadata.MethodSignature{
		Attributes:            metadata.CallingConventionGeneric,
		GenericParameterCount: 1,
		ReturnType:            methodArg,
		ParameterTypes:        []metadata.TypeSignature{methodArg},
	})
	require.NoError(t, box.AddMethod(convert))
	u := metadata.NewGenericParameter(0, "U", metadata.GenericParameterReferenceTypeConstraint)
	require.NoError(t, convert.AddGenericParameter(u))
	require.NoError(t, u.AddConstraint(metadata.NewGenericParameterConstraint(box)))

	beep := metadata.NewMethodDefinition("MessageBeep", metadata.MethodPublic|metadata.MethodStatic|metadata.MethodPInvokeImpl,
		metadata.NewStaticMethodSignature(boolean, metadata.MustCorLib(metadata.ElementTypeU4)))
	require.NoError(t, box.AddMethod(beep))
	require.NoError(t, beep.SetImplementationMap(metadata.NewImplementationMap(
		metadata.NewModuleReference("user32.dll"), "MessageBeep", metadata.ImplMapSupportsLastError|metadata.ImplMapCallConvWinapi)))

	handler := metadata.NewTypeReference(runtimeRef, "System", "EventHandler")
	addChanged := metadata.NewMethodDefinition("add_Changed", metadata.MethodPublic|metadata.MethodSpecialName,
		metadata.NewInstanceMethodSignature(void, handler.ToTypeSignature(false)))
	require.NoError(t, box.AddMethod(addChanged))
	addBody := metadata.NewMethodBody()
	addBody.Instructions.Add(metadata.Ret, nil)
	addChanged.SetBody(addBody)
	changed := metadata.NewEventDefinition("Changed", 0, handler)
	require.NoError(t, box.AddEvent(changed))
	changed.AddSemantics(metadata.MethodSemantics{Attributes: metadata.SemanticsAddOn, Method: addChanged})

	display := metadata.NewTypeReference(runtimeRef, "System.Diagnostics", "DebuggerDisplayAttribute")
	ctor := metadata.NewMemberReference(display, ".ctor", metadata.NewInstanceMethodSignature(void, metadata.MustCorLib(metadata.ElementTypeString)))
	typeOf := metadata.NewTypeReference(runtimeRef, "System", "Type").ToTypeSignature(false)
	require.NoError(t, box.AddCustomAttribute(metadata.NewCustomAttribute(ctor, &metadata.CustomAttributeSignature{
		FixedArguments: []*metadata.CustomAttributeArgument{{
			ArgumentType: metadata.MustCorLib(metadata.ElementTypeString),
			Elements:     []any{"{Value}"},
		}},
		NamedArguments: []*metadata.CustomAttributeNamedArgument{{
			Kind:         metadata.NamedArgumentProperty,
			MemberName:   "Target",
			ArgumentType: typeOf,
			Argument: &metadata.CustomAttributeArgument{
				ArgumentType: typeOf,
				Elements:     []any{box.ToTypeSignature(false)},
			},
		}},
	})))

	require.NoError(t, mod.AddType(box))
	return box
}

func TestCloneTypes_Generics(t *testing.T) {
	box := newGenericBox(t)
	target := newTarget()
	res, err := newCloner(t, target, nil).CloneTypes(box)
	require.NoError(t, err)
	clone := res.Types[0]
	assert.Equal(t, "Lib.Box`1", clone.FullName())

	// Type generic parameter and its IComparable<T> constraint.
	require.Len(t, clone.GenericParameters(), 1)
	param := clone.GenericParameters()[0]
	assert.Equal(t, "T", param.Name())
	assert.NotSame(t, box.GenericParameters()[0], param)
	assert.Same(t, param, cloned[*metadata.GenericParameter](t, res, box.GenericParameters()[0]))
	require.Len(t, param.Constraints(), 1)
	constraint, ok := param.Constraints()[0].Constraint().(*metadata.TypeSpecification)
	require.True(t, ok)
	assert.True(t, target.Contains(constraint))
	icomparable := constraint.Signature().(*metadata.GenericInstanceTypeSignature)
	assert.Equal(t, "System.IComparable`1", icomparable.GenericType.FullName())
	assert.True(t, target.Contains(icomparable.GenericType))
	assert.Equal(t, []metadata.TypeSignature{&metadata.GenericParameterSignature{Kind: metadata.GenericParameterKindType}}, icomparable.TypeArguments)

	// Method generic parameter constrained to the declaring type.
	convert, ok := clone.Method("Convert")
	require.True(t, ok)
	assert.Equal(t, uint32(1), convert.MethodSignature().GenericParameterCount)
	require.Len(t, convert.GenericParameters(), 1)
	u := convert.GenericParameters()[0]
	assert.Equal(t, "U", u.Name())
	assert.Equal(t, metadata.GenericParameterReferenceTypeConstraint, u.Attributes())
	require.Len(t, u.Constraints(), 1)
	assert.Same(t, clone, u.Constraints()[0].Constraint())

	// The P/Invoke scope is referenced from the target.
	beep, ok := clone.Method("MessageBeep")
	require.True(t, ok)
	im := beep.ImplementationMap()
	require.NotNil(t, im)
	assert.Equal(t, "MessageBeep", im.ImportName)
	assert.Equal(t, metadata.ImplMapSupportsLastError|metadata.ImplMapCallConvWinapi, im.Attributes)
	original, _ := box.Method("MessageBeep")
	assert.NotSame(t, original.ImplementationMap().Scope, im.Scope)
	assert.Equal(t, "user32.dll", im.Scope.Name())
	assert.True(t, target.Contains(im.Scope))
	assert.Len(t, target.ModuleReferences(), 1)

	// Events keep their type and accessors.
	require.Len(t, clone.Events(), 1)
	changed := clone.Events()[0]
	assert.Equal(t, "System.EventHandler", changed.EventType().FullName())
	assert.True(t, target.Contains(changed.EventType()))
	addChanged, ok := clone.Method("add_Changed")
	require.True(t, ok)
	require.Len(t, changed.Semantics(), 1)
	assert.Equal(t, metadata.SemanticsAddOn, changed.Semantics()[0].Attributes)
	assert.Same(t, addChanged, changed.Semantics()[0].Method)

	// IEquatable<Box<T>> is instantiated over the clone.
	require.Len(t, clone.Interfaces(), 1)
	iface, ok := clone.Interfaces()[0].Interface().(*metadata.TypeSpecification)
	require.True(t, ok)
	assert.True(t, target.Contains(iface))
	equatable := iface.Signature().(*metadata.GenericInstanceTypeSignature)
	assert.Equal(t, "System.IEquatable`1", equatable.GenericType.FullName())
	self, ok := equatable.TypeArguments[0].(*metadata.GenericInstanceTypeSignature)
	require.True(t, ok)
	assert.Same(t, clone, self.GenericType)

	equals, ok := clone.Method("Equals")
	require.True(t, ok)
	require.Len(t, clone.MethodImplementations(), 1)
	impl := clone.MethodImplementations()[0]
	assert.Same(t, equals, impl.Body)
	decl, ok := impl.Declaration.(*metadata.MemberReference)
	require.True(t, ok)
	assert.Equal(t, "Equals", decl.Name())
	assert.True(t, target.Contains(decl))

	// Named arguments keep their member name, with types imported.
	require.Len(t, clone.CustomAttributes(), 1)
	sig := clone.CustomAttributes()[0].Signature()
	assert.Equal(t, "{Value}", sig.FixedArguments[0].Elements[0])
	require.Len(t, sig.NamedArguments, 1)
	named := sig.NamedArguments[0]
	assert.Equal(t, metadata.NamedArgumentProperty, named.Kind)
	assert.Equal(t, "Target", named.MemberName)
	typeOf := named.ArgumentType.(*metadata.TypeDefOrRefSignature).Type
	assert.Equal(t, "System.Type", typeOf.FullName())
	assert.True(t, target.Contains(typeOf))
	value, ok := named.Argument.Elements[0].(*metadata.TypeDefOrRefSignature)
	require.True(t, ok)
	assert.Same(t, clone, value.Type)

	require.NoError(t, target.Verify())
}

func TestCloneTypes_AlreadyCloned(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	c := newCloner(t, target, nil)
	first, err := c.CloneTypes(src.counter)
	require.NoError(t, err)
	mapped := c.IdentityMap().Len()

	_, err = c.CloneTypes(src.counter)
	require.ErrorIs(t, err, ErrAlreadyCloned)
	// Cloning the nested type alone is rejected too.
	_, err = c.CloneTypes(src.node)
	require.ErrorIs(t, err, ErrAlreadyCloned)
	assert.Equal(t, mapped, c.IdentityMap().Len())
	assert.Equal(t, first.Types, target.TopLevelTypes())

	// A new cloner makes an independent copy.
	other := newTarget()
	second, err := newCloner(t, other, nil).CloneType(src.counter)
	require.NoError(t, err)
	assert.NotSame(t, first.Types[0], second)
	assert.Same(t, other, second.Module())
}

func TestNew_DefaultLogger(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	c, err := New(nil, Config{}, nil, target)
	require.NoError(t, err)
	_, err = c.CloneTypes(src.counter)
	require.NoError(t, err)

	// The abort path logs too.
	c, err = New(nil, Config{MaxTypes: 1}, nil, newTarget())
	require.NoError(t, err)
	_, err = c.CloneTypes(src.counter)
	require.ErrorIs(t, err, ErrTooManyTypes)
}

func TestCloneTypes_BranchFixup(t *testing.T) {
	src := newSource(t)
	c := newCloner(t, newTarget(), nil)
	res, err := c.CloneTypes(src.counter)
	require.NoError(t, err)

	body := cloned[*metadata.MethodDefinition](t, res, src.add).Body()
	original := src.add.Body().Instructions.Items()
	items := body.Instructions.Items()
	require.Len(t, items, len(original))

	for i, ins := range items {
		if !ins.OpCode.IsBranch() {
			continue
		}
		target, ok := ins.Operand.(*metadata.Instruction)
		require.True(t, ok)
		assert.True(t, body.Instructions.Contains(target), "%s", ins)
		assert.Equal(t, original[i].Operand.(*metadata.Instruction).Offset, target.Offset)
		assert.NotSame(t, original[i].Operand, target)
	}

	// blt.s jumps forward past the loop, br.s jumps back to its head.
	forward := items[7].Operand.(*metadata.Instruction)
	backward := items[12].Operand.(*metadata.Instruction)
	assert.Greater(t, forward.Offset, items[7].Offset)
	assert.Less(t, backward.Offset, items[12].Offset)
	assert.Same(t, items[5], backward)
	assert.Same(t, items[13], forward)
}

func TestCloneTypes_SwitchFixup(t *testing.T) {
	src := newSource(t)
	c := newCloner(t, newTarget(), nil)
	res, err := c.CloneTypes(src.counter)
	require.NoError(t, err)

	body := cloned[*metadata.MethodDefinition](t, res, src.classify).Body()
	originalTargets := src.classify.Body().Instructions.Items()[1].Operand.([]*metadata.Instruction)
	targets, ok := body.Instructions.Items()[1].Operand.([]*metadata.Instruction)
	require.True(t, ok)
	require.Len(t, targets, 3)
	for i, target := range targets {
		assert.True(t, body.Instructions.Contains(target))
		assert.Equal(t, originalTargets[i].Offset, target.Offset)
		assert.Equal(t, originalTargets[i].OpCode, target.OpCode)
	}
	assert.Equal(t, int8(2), targets[2].Operand)
}

func TestCloneTypes_ExceptionHandlers(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	c := newCloner(t, target, nil)
	res, err := c.CloneTypes(src.counter)
	require.NoError(t, err)

	safe := cloned[*metadata.MethodDefinition](t, res, src.safe)
	body := safe.Body()
	require.Len(t, body.ExceptionHandlers, 2)
	for i, h := range body.ExceptionHandlers {
		orig := src.safe.Body().ExceptionHandlers[i]
		assert.Equal(t, orig.HandlerType, h.HandlerType)
		assert.Equal(t, orig.TryStart.Offset, h.TryStart.Offset)
		assert.Equal(t, orig.TryEnd.Offset, h.TryEnd.Offset)
		assert.Equal(t, orig.HandlerStart.Offset, h.HandlerStart.Offset)
		assert.True(t, body.Instructions.Contains(h.TryStart))
		assert.True(t, body.Instructions.Contains(h.HandlerStart))
	}

	filter := body.ExceptionHandlers[0]
	require.NotNil(t, filter.FilterStart)
	assert.Same(t, filter.TryEnd, filter.FilterStart)
	assert.True(t, body.Instructions.Contains(filter.HandlerEnd))
	assert.Nil(t, filter.ExceptionType)

	catch := body.ExceptionHandlers[1]
	assert.Nil(t, catch.FilterStart)
	assert.Nil(t, catch.HandlerEnd)
	require.NotNil(t, catch.ExceptionType)
	assert.Equal(t, "System.Exception", catch.ExceptionType.FullName())
	assert.True(t, target.Contains(catch.ExceptionType))

	// The call resolves to the cloned method rather than a reference.
	assert.Same(t, cloned[*metadata.MethodDefinition](t, res, src.classify), body.Instructions.Items()[1].Operand)
}

func TestCloneTypes_IdentityReuse(t *testing.T) {
	src := newSource(t)
	user := metadata.NewTypeDefinition("Lib", "User", metadata.TypePublic)
	run := metadata.NewMethodDefinition("Run", metadata.MethodPublic|metadata.MethodStatic, metadata.NewStaticMethodSignature(
		metadata.MustCorLib(metadata.ElementTypeVoid), src.counter.ToTypeSignature(false)))
	require.NoError(t, user.AddMethod(run))
	body := metadata.NewMethodBody()
	body.Instructions.Add(metadata.LdargS, run.Parameters()[0])
	body.Instructions.Add(metadata.LdcI41, nil)
	body.Instructions.Add(metadata.Callvirt, src.add)
	body.Instructions.Add(metadata.Pop, nil)
	body.Instructions.Add(metadata.Ret, nil)
	run.SetBody(body)
	require.NoError(t, src.module.AddType(user))

	target := newTarget()
	c := newCloner(t, target, nil)
	first, err := c.CloneTypes(src.counter)
	require.NoError(t, err)
	second, err := c.CloneTypes(user)
	require.NoError(t, err)

	runClone := cloned[*metadata.MethodDefinition](t, second, run)
	param := runClone.MethodSignature().ParameterTypes[0].(*metadata.TypeDefOrRefSignature)
	assert.Same(t, first.Types[0], param.Type)
	assert.Same(t, cloned[*metadata.MethodDefinition](t, first, src.add), runClone.Body().Instructions.Items()[2].Operand)
	// The attribute constructor is the only member reference.
	assert.Len(t, target.Members(metadata.TableMemberRef), 1)

	// Later lookups through the importer keep preferring the clones.
	imported, err := c.Importer().ImportType(src.counter)
	require.NoError(t, err)
	assert.Same(t, first.Types[0], imported)
	require.NoError(t, target.Verify())
}

func TestCloneTypes_Rollback(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	reg := prometheus.NewRegistry()
	c := newCloner(t, target, reg)
	_, err := c.CloneTypes(src.counter)
	require.NoError(t, err)

	broken := metadata.NewTypeDefinition("Lib", "Broken", metadata.TypePublic)
	builderRef := metadata.NewTypeReference(metadata.NewAssemblyReference(metadata.AssemblyIdentity{Name: "System.Text"}), "System.Text", "StringBuilder")
	require.NoError(t, broken.AddField(metadata.NewFieldDefinition("sb", metadata.FieldPrivate, metadata.NewFieldSignature(builderRef.ToTypeSignature(false)))))
	bad := metadata.NewMethodDefinition("Bad", metadata.MethodPublic|metadata.MethodStatic, metadata.NewStaticMethodSignature(i4()))
	require.NoError(t, broken.AddMethod(bad))
	body := metadata.NewMethodBody()
	body.Instructions.Add(metadata.LdlocS, &metadata.LocalVariable{Index: 3, Type: i4()})
	body.Instructions.Add(metadata.Ret, nil)
	bad.SetBody(body)
	require.NoError(t, src.module.AddType(broken))

	types := target.TopLevelTypes()
	asmRefs := len(target.AssemblyReferences())
	fieldRows := len(target.Members(metadata.TableField))
	mapped := c.IdentityMap().Len()

	_, err = c.CloneTypes(broken)
	require.ErrorIs(t, err, ErrOperandOutOfRange)

	assert.Equal(t, types, target.TopLevelTypes())
	assert.Len(t, target.AssemblyReferences(), asmRefs)
	assert.Len(t, target.Members(metadata.TableField), fieldRows)
	assert.Equal(t, mapped, c.IdentityMap().Len())
	_, ok := c.IdentityMap().Get(broken)
	assert.False(t, ok)
	require.NoError(t, target.Verify())

	// The target stays usable: a fixed type clones cleanly afterwards.
	body.Instructions.Items()[0].Operand = nil
	body.Instructions.Items()[0].OpCode = metadata.LdcI40
	body.Instructions.CalculateOffsets()
	res, err := c.CloneTypes(broken)
	require.NoError(t, err)
	assert.Len(t, target.AssemblyReferences(), asmRefs+1)
	sb := cloned[*metadata.FieldDefinition](t, res, broken.Fields()[0])
	assert.True(t, target.Contains(sb.FieldSignature().FieldType.(*metadata.TypeDefOrRefSignature).Type))
	require.NoError(t, target.Verify())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.operations.WithLabelValues(statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.operations.WithLabelValues(statusFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.metrics.membersCloned.WithLabelValues(kindType)))
	assert.Positive(t, testutil.ToFloat64(c.metrics.identityLookups.WithLabelValues("hit")))
	n, err := testutil.GatherAndCount(reg, "clrmeta_cloner_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCloneTypes_DanglingBranch(t *testing.T) {
	src := newSource(t)
	other := metadata.NewMethodBody()
	foreign := other.Instructions.Add(metadata.Ret, nil)
	src.classify.Body().Instructions.Items()[2].Operand = foreign

	target := newTarget()
	c := newCloner(t, target, nil)
	_, err := c.CloneTypes(src.counter)
	require.ErrorIs(t, err, metadata.ErrDanglingInstruction)
	assert.Empty(t, target.TopLevelTypes())
	assert.Zero(t, c.IdentityMap().Len())
}

func TestCloneTypes_NestedRoot(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	c := newCloner(t, target, nil)

	node, err := c.CloneType(src.node)
	require.NoError(t, err)
	assert.False(t, node.IsNested())
	assert.Equal(t, metadata.TypePublic, node.Attributes()&metadata.TypeVisibilityMask)
	assert.Equal(t, []*metadata.TypeDefinition{node}, target.TopLevelTypes())

	// Cloning the enclosing type together with the nested one keeps the
	// nesting.
	res, err := newCloner(t, newTarget(), nil).CloneTypes(src.node, src.counter)
	require.NoError(t, err)
	require.Len(t, res.Types, 2)
	decl, ok := res.Types[0].DeclaringType()
	require.True(t, ok)
	assert.Same(t, res.Types[1], decl)
}

func TestCloneTypes_Limits(t *testing.T) {
	src := newSource(t)
	target := newTarget()
	c, err := New(log.NewNopLogger(), Config{MaxTypes: 1}, nil, target)
	require.NoError(t, err)
	_, err = c.CloneTypes(src.counter)
	require.ErrorIs(t, err, ErrTooManyTypes)
	assert.Empty(t, target.TopLevelTypes())

	c, err = New(log.NewNopLogger(), Config{MaxInstructions: 4}, nil, target)
	require.NoError(t, err)
	_, err = c.CloneTypes(src.counter)
	require.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Empty(t, target.TopLevelTypes())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{VerifyBodies: true}},
		{name: "limits", cfg: Config{MaxTypes: 10, MaxInstructions: 1000}},
		{name: "negative max types", cfg: Config{MaxTypes: -1}, wantErr: true},
		{name: "negative max instructions", cfg: Config{MaxInstructions: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}

	_, err := New(log.NewNopLogger(), Config{MaxTypes: -1}, nil, newTarget())
	require.Error(t, err)
}

func TestConfigYAML(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	require.NoError(t, yaml.Unmarshal([]byte(`
max_types: 50
max_instructions: 4096
ignore_assembly_version: true
`), &cfg))
	assert.Equal(t, Config{
		VerifyBodies:          true,
		MaxTypes:              50,
		MaxInstructions:       4096,
		IgnoreAssemblyVersion: true,
	}, cfg)
	require.NoError(t, cfg.Validate())
}
