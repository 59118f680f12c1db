package cloner

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/grafana/clrmeta/pkg/importer"
	"github.com/grafana/clrmeta/pkg/metadata"
)

const (
	kindType             = "type"
	kindField            = "field"
	kindMethod           = "method"
	kindProperty         = "property"
	kindEvent            = "event"
	kindGenericParameter = "generic_parameter"
	kindCustomAttribute  = "custom_attribute"
	kindBody             = "method_body"
)

type typePair struct {
	original *metadata.TypeDefinition
	clone    *metadata.TypeDefinition
}

// operation holds the state of one CloneTypes call.
type operation struct {
	*Cloner

	// types lists every cloned type in stub order: each root followed by
	// its nested types.
	types  []typePair
	counts map[string]int
}

func newOperation(c *Cloner) *operation {
	return &operation{Cloner: c, counts: make(map[string]int)}
}

func (op *operation) add(original, clone metadata.Member, kind string) error {
	if err := op.ids.Add(original, clone); err != nil {
		return err
	}
	op.counts[kind]++
	return nil
}

// collect returns the types that become top-level clones: those whose
// declaring type is not cloned as well.
func (op *operation) collect(types []*metadata.TypeDefinition) ([]*metadata.TypeDefinition, error) {
	included := make(map[*metadata.TypeDefinition]struct{})
	var walk func(t *metadata.TypeDefinition) error
	walk = func(t *metadata.TypeDefinition) error {
		if _, ok := included[t]; ok {
			return nil
		}
		if clone, ok := op.ids.Get(t); ok {
			return errors.Wrapf(ErrAlreadyCloned, "type %s is mapped to %s", t.FullName(), clone.Token())
		}
		included[t] = struct{}{}
		for _, nested := range t.NestedTypes() {
			if err := walk(nested); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range types {
		if t == nil {
			return nil, errors.New("cannot clone a nil type")
		}
		if err := walk(t); err != nil {
			return nil, err
		}
	}
	if op.cfg.MaxTypes > 0 && len(included) > op.cfg.MaxTypes {
		return nil, errors.Wrapf(ErrTooManyTypes, "%d types, limit is %d", len(included), op.cfg.MaxTypes)
	}
	roots := lo.Filter(lo.Uniq(types), func(t *metadata.TypeDefinition, _ int) bool {
		decl, ok := t.DeclaringType()
		if !ok {
			return true
		}
		_, nested := included[decl]
		return !nested
	})
	return roots, nil
}

// stub creates an empty clone of every type and records it before any
// member is cloned, so that members may reference any cloned type.
func (op *operation) stub(roots []*metadata.TypeDefinition) error {
	for _, root := range roots {
		clone := op.stubType(root)
		clone.SetAttributes(topLevelVisibility(root.Attributes()))
		if err := op.target.AddType(clone); err != nil {
			return errors.Wrapf(err, "add type %s", root.FullName())
		}
		if err := op.stubNested(root, clone); err != nil {
			return err
		}
	}
	return nil
}

func (op *operation) stubType(t *metadata.TypeDefinition) *metadata.TypeDefinition {
	clone := metadata.NewTypeDefinition(t.Namespace(), t.Name(), t.Attributes())
	op.types = append(op.types, typePair{original: t, clone: clone})
	return clone
}

func (op *operation) stubNested(original, clone *metadata.TypeDefinition) error {
	if err := op.add(original, clone, kindType); err != nil {
		return errors.Wrapf(err, "type %s", original.FullName())
	}
	for _, nested := range original.NestedTypes() {
		nestedClone := op.stubType(nested)
		if err := clone.AddNestedType(nestedClone); err != nil {
			return errors.Wrapf(err, "add nested type %s", nested.FullName())
		}
		if err := op.stubNested(nested, nestedClone); err != nil {
			return err
		}
	}
	return nil
}

// topLevelVisibility maps the visibility of a type that loses its
// declaring type.
func topLevelVisibility(a metadata.TypeAttributes) metadata.TypeAttributes {
	switch a & metadata.TypeVisibilityMask {
	case metadata.TypeNotPublic, metadata.TypePublic:
		return a
	case metadata.TypeNestedPublic:
		return a&^metadata.TypeVisibilityMask | metadata.TypePublic
	}
	return a &^ metadata.TypeVisibilityMask
}

// declare clones fields, method shells, properties and events. Method
// bodies and everything that may reference a method are left to finalize.
func (op *operation) declare() error {
	for _, p := range op.types {
		for _, f := range p.original.Fields() {
			if err := op.declareField(p.clone, f); err != nil {
				return errors.Wrapf(err, "clone field %s", f)
			}
		}
		for _, m := range p.original.Methods() {
			if err := op.declareMethod(p.clone, m); err != nil {
				return errors.Wrapf(err, "clone method %s", m)
			}
		}
		for _, prop := range p.original.Properties() {
			if err := op.declareProperty(p.clone, prop); err != nil {
				return errors.Wrapf(err, "clone property %s::%s", p.original.FullName(), prop.Name())
			}
		}
		for _, e := range p.original.Events() {
			if err := op.declareEvent(p.clone, e); err != nil {
				return errors.Wrapf(err, "clone event %s::%s", p.original.FullName(), e.Name())
			}
		}
	}
	return nil
}

func (op *operation) declareField(owner *metadata.TypeDefinition, f *metadata.FieldDefinition) error {
	sig, err := importer.ImportFieldSignature(op.imp, f.FieldSignature())
	if err != nil {
		return err
	}
	clone := metadata.NewFieldDefinition(f.Name(), f.Attributes(), sig)
	clone.SetMarshalDescriptor(copyBytes(f.MarshalDescriptor()))
	clone.SetInitialValue(copyBytes(f.InitialValue()))
	if offset := f.FieldOffset(); offset != nil {
		v := *offset
		clone.SetFieldOffset(&v)
	}
	if err := owner.AddField(clone); err != nil {
		return err
	}
	if c := f.Constant(); c != nil {
		if err := clone.SetConstant(cloneConstant(c)); err != nil {
			return err
		}
	}
	if im := f.ImplementationMap(); im != nil {
		cloneMap, err := op.cloneImplementationMap(im)
		if err != nil {
			return err
		}
		if err := clone.SetImplementationMap(cloneMap); err != nil {
			return err
		}
	}
	return op.add(f, clone, kindField)
}

func (op *operation) declareMethod(owner *metadata.TypeDefinition, m *metadata.MethodDefinition) error {
	sig, err := importer.ImportMethodSignature(op.imp, m.MethodSignature())
	if err != nil {
		return err
	}
	clone := metadata.NewMethodDefinition(m.Name(), m.Attributes(), sig)
	clone.SetImplAttributes(m.ImplAttributes())
	if err := owner.AddMethod(clone); err != nil {
		return err
	}
	for _, p := range m.ParameterDefinitions() {
		pc := metadata.NewParameterDefinition(p.Sequence(), p.Name(), p.Attributes())
		pc.SetMarshalDescriptor(copyBytes(p.MarshalDescriptor()))
		if err := clone.AddParameterDefinition(pc); err != nil {
			return errors.Wrapf(err, "parameter %d", p.Sequence())
		}
		if c := p.Constant(); c != nil {
			if err := pc.SetConstant(cloneConstant(c)); err != nil {
				return errors.Wrapf(err, "parameter %d", p.Sequence())
			}
		}
	}
	if im := m.ImplementationMap(); im != nil {
		cloneMap, err := op.cloneImplementationMap(im)
		if err != nil {
			return err
		}
		if err := clone.SetImplementationMap(cloneMap); err != nil {
			return err
		}
	}
	return op.add(m, clone, kindMethod)
}

func (op *operation) declareProperty(owner *metadata.TypeDefinition, p *metadata.PropertyDefinition) error {
	sig, err := importer.ImportPropertySignature(op.imp, p.Signature())
	if err != nil {
		return err
	}
	clone := metadata.NewPropertyDefinition(p.Name(), p.Attributes(), sig)
	if err := owner.AddProperty(clone); err != nil {
		return err
	}
	if c := p.Constant(); c != nil {
		if err := clone.SetConstant(cloneConstant(c)); err != nil {
			return err
		}
	}
	return op.add(p, clone, kindProperty)
}

func (op *operation) declareEvent(owner *metadata.TypeDefinition, e *metadata.EventDefinition) error {
	var eventType metadata.TypeDefOrRef
	if t := e.EventType(); t != nil {
		var err error
		if eventType, err = op.imp.ImportType(t); err != nil {
			return err
		}
	}
	clone := metadata.NewEventDefinition(e.Name(), e.Attributes(), eventType)
	if err := owner.AddEvent(clone); err != nil {
		return err
	}
	return op.add(e, clone, kindEvent)
}

func (op *operation) cloneImplementationMap(im *metadata.ImplementationMap) (*metadata.ImplementationMap, error) {
	scope, err := importer.ImportModuleReference(op.imp, im.Scope)
	if err != nil {
		return nil, errors.Wrapf(err, "import scope of %s", im.ImportName)
	}
	return metadata.NewImplementationMap(scope, im.ImportName, im.Attributes), nil
}

// finalize resolves everything that may reference any cloned member:
// base types, interfaces, generic parameters, method bodies, semantics,
// method implementations and custom attributes.
func (op *operation) finalize() error {
	for _, p := range op.types {
		if err := op.finalizeType(p.original, p.clone); err != nil {
			return errors.Wrapf(err, "finalize type %s", p.original.FullName())
		}
	}
	// Custom attributes go last: their constructors and arguments may
	// reference any cloned member.
	for _, p := range op.types {
		if err := op.cloneTypeAttributes(p.original, p.clone); err != nil {
			return errors.Wrapf(err, "custom attributes of %s", p.original.FullName())
		}
	}
	return nil
}

func (op *operation) finalizeType(original, clone *metadata.TypeDefinition) error {
	if base := original.BaseType(); base != nil {
		imported, err := op.imp.ImportType(base)
		if err != nil {
			return errors.Wrap(err, "base type")
		}
		clone.SetBaseType(imported)
	}
	if l := original.ClassLayout(); l != nil {
		layout := *l
		clone.SetClassLayout(&layout)
	}
	for _, impl := range original.Interfaces() {
		iface, err := op.imp.ImportType(impl.Interface())
		if err != nil {
			return errors.Wrap(err, "interface")
		}
		if err := clone.AddInterface(metadata.NewInterfaceImplementation(iface)); err != nil {
			return err
		}
	}
	if err := op.cloneGenericParameters(original.GenericParameters(), clone.AddGenericParameter); err != nil {
		return err
	}
	for _, m := range original.Methods() {
		mc, err := op.clonedMethod(m)
		if err != nil {
			return err
		}
		if err := op.cloneGenericParameters(m.GenericParameters(), mc.AddGenericParameter); err != nil {
			return errors.Wrapf(err, "method %s", m)
		}
		if err := op.cloneBody(m, mc); err != nil {
			return errors.Wrapf(err, "body of %s", m)
		}
	}
	for _, prop := range original.Properties() {
		pc, err := clonedAs[*metadata.PropertyDefinition](op, prop)
		if err != nil {
			return err
		}
		for _, s := range prop.Semantics() {
			method, err := op.clonedMethod(s.Method)
			if err != nil {
				return errors.Wrapf(err, "accessor of property %s", prop.Name())
			}
			pc.AddSemantics(metadata.MethodSemantics{Attributes: s.Attributes, Method: method})
		}
	}
	for _, e := range original.Events() {
		ec, err := clonedAs[*metadata.EventDefinition](op, e)
		if err != nil {
			return err
		}
		for _, s := range e.Semantics() {
			method, err := op.clonedMethod(s.Method)
			if err != nil {
				return errors.Wrapf(err, "accessor of event %s", e.Name())
			}
			ec.AddSemantics(metadata.MethodSemantics{Attributes: s.Attributes, Method: method})
		}
	}
	for _, impl := range original.MethodImplementations() {
		decl, err := op.imp.ImportMethod(impl.Declaration)
		if err != nil {
			return errors.Wrap(err, "method implementation declaration")
		}
		body, err := op.imp.ImportMethod(impl.Body)
		if err != nil {
			return errors.Wrap(err, "method implementation body")
		}
		clone.AddMethodImplementation(metadata.MethodImplementation{Declaration: decl, Body: body})
	}
	return nil
}

func (op *operation) cloneGenericParameters(params []*metadata.GenericParameter, attach func(*metadata.GenericParameter) error) error {
	clones := make([]*metadata.GenericParameter, len(params))
	for i, p := range params {
		clones[i] = metadata.NewGenericParameter(p.Number(), p.Name(), p.Attributes())
		if err := attach(clones[i]); err != nil {
			return errors.Wrapf(err, "generic parameter %s", p.Name())
		}
		if err := op.add(p, clones[i], kindGenericParameter); err != nil {
			return errors.Wrapf(err, "generic parameter %s", p.Name())
		}
	}
	// Constraints may reference any parameter of the list.
	for i, p := range params {
		for _, constraint := range p.Constraints() {
			t, err := op.imp.ImportType(constraint.Constraint())
			if err != nil {
				return errors.Wrapf(err, "constraint of %s", p.Name())
			}
			if err := clones[i].AddConstraint(metadata.NewGenericParameterConstraint(t)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (op *operation) clonedMethod(m *metadata.MethodDefinition) (*metadata.MethodDefinition, error) {
	if m == nil {
		return nil, errors.Wrap(ErrNotCloned, "nil method")
	}
	return clonedAs[*metadata.MethodDefinition](op, m)
}

func clonedAs[T metadata.Member](op *operation, original metadata.Member) (T, error) {
	var zero T
	m, ok := op.ids.Get(original)
	if !ok {
		return zero, errors.Wrapf(ErrNotCloned, "%T %s", original, original.Token())
	}
	t, ok := m.(T)
	if !ok {
		return zero, errors.Wrapf(importer.ErrUnexpectedImport, "%T cloned as %T", original, m)
	}
	return t, nil
}

func cloneConstant(c *metadata.Constant) *metadata.Constant {
	return metadata.NewConstant(c.Type, bytes.Clone(c.Value))
}

func copyBytes[T ~[]byte](b T) T {
	if b == nil {
		return nil
	}
	return T(bytes.Clone(b))
}
