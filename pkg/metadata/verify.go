package metadata

import (
	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
)

// ErrUnregisteredReference is reported for references to members that
// are not registered in the module that uses them.
var ErrUnregisteredReference = errors.New("reference to a member outside the module")

// Verify checks the structural invariants of the module: table slots
// match the tokens of their members, owner entries resolve, and every
// member referenced from a definition, signature, custom attribute or
// method body is registered in this module. All violations are reported.
func (m *Module) Verify() error {
	var errs multierror.MultiError
	v := verifier{m: m, errs: &errs}

	m.mu.Lock()
	for table, rows := range m.tables {
		for i, member := range rows {
			if member == nil || TableIndex(table) == TableModule {
				continue
			}
			want := NewToken(TableIndex(table), uint32(i+1))
			if member.Token() != want || member.Module() != m {
				errs.Add(errors.Errorf("row %s holds %T with token %s", want, member, member.Token()))
			}
		}
	}
	owners := make(map[Token]Token, len(m.owners))
	for k, o := range m.owners {
		owners[k] = o
	}
	m.mu.Unlock()

	for child, owner := range owners {
		if _, ok := m.LookupMember(owner); !ok {
			errs.Add(errors.Errorf("owner %s of %s is not registered", owner, child))
		}
	}

	for _, t := range m.AllTypes() {
		v.typeDefinition(t)
	}
	for _, ca := range m.CustomAttributes() {
		v.customAttribute(ca)
	}
	return errs.Err()
}

type verifier struct {
	m    *Module
	errs *multierror.MultiError
}

func (v verifier) ref(context string, member Member) {
	if member == nil {
		return
	}
	if !v.m.Contains(member) {
		v.errs.Add(errors.Wrapf(ErrUnregisteredReference, "%s: %T %s", context, member, member.Token()))
	}
}

func (v verifier) typeDefinition(t *TypeDefinition) {
	name := t.FullName()
	if base := t.BaseType(); base != nil {
		v.ref(name+" base type", base)
	}
	for _, impl := range t.Interfaces() {
		v.ref(name+" interface", impl.Interface())
	}
	for _, gp := range t.GenericParameters() {
		v.genericParameter(name, gp)
	}
	for _, f := range t.Fields() {
		if sig := f.FieldSignature(); sig != nil {
			v.typeSig(f.String(), sig.FieldType)
		}
		v.attributes(f.String(), f)
	}
	for _, method := range t.Methods() {
		v.method(method)
	}
	for _, p := range t.Properties() {
		for _, s := range p.Semantics() {
			v.ref(name+"."+p.Name()+" accessor", s.Method)
		}
		v.attributes(name+"."+p.Name(), p)
	}
	for _, e := range t.Events() {
		v.ref(name+"."+e.Name()+" event type", e.EventType())
		for _, s := range e.Semantics() {
			v.ref(name+"."+e.Name()+" accessor", s.Method)
		}
		v.attributes(name+"."+e.Name(), e)
	}
	for _, mi := range t.MethodImplementations() {
		v.ref(name+" method implementation", mi.Body)
		v.ref(name+" method implementation", mi.Declaration)
	}
	v.attributes(name, t)
}

func (v verifier) genericParameter(context string, gp *GenericParameter) {
	for _, c := range gp.Constraints() {
		v.ref(context+" constraint", c.Constraint())
	}
	v.attributes(context+" generic parameter", gp)
}

func (v verifier) method(method *MethodDefinition) {
	name := method.String()
	if sig := method.MethodSignature(); sig != nil {
		v.methodSig(name, sig)
	}
	for _, gp := range method.GenericParameters() {
		v.genericParameter(name, gp)
	}
	for _, p := range method.ParameterDefinitions() {
		v.attributes(name+" parameter", p)
	}
	v.attributes(name, method)
	body := method.Body()
	if body == nil {
		return
	}
	if err := body.Verify(method); err != nil {
		v.errs.Add(errors.Wrap(err, name))
	}
	if sig := body.LocalsSignature(); sig != nil {
		v.ref(name+" locals", sig)
		for _, t := range sig.LocalVariables().VariableTypes {
			v.typeSig(name+" locals", t)
		}
	}
	for _, ins := range body.Instructions.Items() {
		if member, ok := ins.Operand.(Member); ok {
			v.ref(name+" "+ins.String(), member)
		}
	}
	for _, h := range body.ExceptionHandlers {
		if h.ExceptionType != nil {
			v.ref(name+" catch type", h.ExceptionType)
		}
	}
}

func (v verifier) methodSig(context string, sig *MethodSignature) {
	v.typeSig(context, sig.ReturnType)
	for _, p := range sig.ParameterTypes {
		v.typeSig(context, p)
	}
	for _, p := range sig.SentinelParameterTypes {
		v.typeSig(context, p)
	}
}

func (v verifier) attributes(context string, owner HasCustomAttributes) {
	for _, ca := range owner.CustomAttributes() {
		v.customAttribute(ca)
	}
}

func (v verifier) customAttribute(ca *CustomAttribute) {
	v.ref("custom attribute constructor", ca.Constructor())
}

func (v verifier) typeSig(context string, s TypeSignature) {
	walkTypeSignature(s, func(t TypeDefOrRef) {
		v.ref(context, t)
	})
}

// walkTypeSignature calls fn for every type referenced by token inside s.
func walkTypeSignature(s TypeSignature, fn func(TypeDefOrRef)) {
	switch x := s.(type) {
	case *TypeDefOrRefSignature:
		fn(x.Type)
	case *PointerTypeSignature:
		walkTypeSignature(x.BaseType, fn)
	case *ByReferenceTypeSignature:
		walkTypeSignature(x.BaseType, fn)
	case *SzArrayTypeSignature:
		walkTypeSignature(x.BaseType, fn)
	case *PinnedTypeSignature:
		walkTypeSignature(x.BaseType, fn)
	case *BoxedTypeSignature:
		walkTypeSignature(x.BaseType, fn)
	case *ArrayTypeSignature:
		walkTypeSignature(x.BaseType, fn)
	case *CustomModifierTypeSignature:
		fn(x.ModifierType)
		walkTypeSignature(x.BaseType, fn)
	case *GenericInstanceTypeSignature:
		fn(x.GenericType)
		for _, a := range x.TypeArguments {
			walkTypeSignature(a, fn)
		}
	case *FunctionPointerTypeSignature:
		if x.Signature != nil {
			walkTypeSignature(x.Signature.ReturnType, fn)
			for _, p := range x.Signature.ParameterTypes {
				walkTypeSignature(p, fn)
			}
		}
	}
}
