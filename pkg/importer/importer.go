// Package importer turns references to members of other modules into
// references that are valid inside a target module.
package importer

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/grafana/clrmeta/pkg/metadata"
)

var (
	ErrMissingScope      = errors.New("reference has no resolution scope")
	ErrUnsupportedMember = errors.New("member kind cannot be imported")
	ErrUnexpectedImport  = errors.New("import produced a member of an unexpected kind")
)

// Importer translates members into members usable in a target module.
// Implementations either return an existing member of the target, such as
// a clone, or mint a new reference row in it.
type Importer interface {
	ImportType(t metadata.TypeDefOrRef) (metadata.TypeDefOrRef, error)
	ImportMethod(m metadata.MethodDefOrRef) (metadata.MethodDefOrRef, error)
	ImportField(f metadata.FieldDescriptor) (metadata.FieldDescriptor, error)
	ImportMethodSpecification(s *metadata.MethodSpecification) (*metadata.MethodSpecification, error)
	// ImportMember imports any member kind, dispatching on its type.
	ImportMember(m metadata.Member) (metadata.Member, error)
}

// ReferenceImporter is the default importer. Members of the target module
// are returned unchanged; everything else becomes a reference row in the
// target. References are created once per structurally distinct member.
type ReferenceImporter struct {
	target *metadata.Module
	cmp    metadata.SignatureComparer
	// outer receives nested imports so that decorators see every member
	// reached while importing a signature or a parent.
	outer Importer

	created *swiss.Map[uint64, []metadata.Member]
}

// New returns a default importer for target.
func New(target *metadata.Module) *ReferenceImporter {
	r := &ReferenceImporter{
		target:  target,
		created: swiss.NewMap[uint64, []metadata.Member](64),
	}
	r.outer = r
	return r
}

// Target returns the module references are created in.
func (r *ReferenceImporter) Target() *metadata.Module { return r.target }

func (r *ReferenceImporter) owned(m metadata.Member) bool {
	return m.Module() == r.target && r.target.Contains(m)
}

// find returns a reference created earlier for a member structurally
// equal to m. References removed from the target by a rollback are
// skipped.
func (r *ReferenceImporter) find(m metadata.Member) (metadata.Member, bool) {
	bucket, ok := r.created.Get(r.cmp.Hash(m))
	if !ok {
		return nil, false
	}
	return lo.Find(bucket, func(c metadata.Member) bool {
		return r.target.Contains(c) && r.cmp.Equal(c, m)
	})
}

// remember registers ref in the target and indexes it under key.
func (r *ReferenceImporter) remember(key, ref metadata.Member) error {
	if _, err := r.target.Register(ref); err != nil {
		return errors.Wrapf(err, "register %T", ref)
	}
	h := r.cmp.Hash(key)
	bucket, _ := r.created.Get(h)
	r.created.Put(h, append(bucket, ref))
	return nil
}

func (r *ReferenceImporter) ImportType(t metadata.TypeDefOrRef) (metadata.TypeDefOrRef, error) {
	if t == nil {
		return nil, nil
	}
	if r.owned(t) {
		return t, nil
	}
	if found, ok := r.find(t); ok {
		return found.(metadata.TypeDefOrRef), nil
	}
	switch x := t.(type) {
	case *metadata.TypeDefinition:
		return r.importTypeDefinition(x)
	case *metadata.TypeReference:
		return r.importTypeReference(x)
	case *metadata.TypeSpecification:
		sig, err := ImportTypeSignature(r.outer, x.Signature())
		if err != nil {
			return nil, errors.Wrapf(err, "import type specification %s", x.FullName())
		}
		spec := metadata.NewTypeSpecification(sig)
		if err := r.remember(x, spec); err != nil {
			return nil, err
		}
		return spec, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedMember, "%T", t)
}

func (r *ReferenceImporter) importTypeDefinition(t *metadata.TypeDefinition) (metadata.TypeDefOrRef, error) {
	var scope metadata.ResolutionScope
	if decl, ok := t.DeclaringType(); ok {
		imported, err := r.outer.ImportType(decl)
		if err != nil {
			return nil, errors.Wrapf(err, "import declaring type of %s", t.FullName())
		}
		switch d := imported.(type) {
		case *metadata.TypeReference:
			scope = d
		case *metadata.TypeDefinition:
			// The enclosing type was cloned into the target; the nested
			// type is expected next to it.
			for _, nested := range d.NestedTypes() {
				if nested.Name() == t.Name() {
					return nested, nil
				}
			}
			return nil, errors.Wrapf(ErrMissingScope, "nested type %s is not declared by %s", t.Name(), d.FullName())
		default:
			return nil, errors.Wrapf(ErrUnexpectedImport, "declaring type of %s imported as %T", t.FullName(), imported)
		}
	} else {
		if t.Module() == nil {
			return nil, errors.Wrapf(ErrMissingScope, "type %s is not part of a module", t.FullName())
		}
		var err error
		if scope, err = r.moduleScope(t.Module()); err != nil {
			return nil, err
		}
	}
	ref := metadata.NewTypeReference(scope, t.Namespace(), t.Name())
	if err := r.remember(t, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *ReferenceImporter) importTypeReference(t *metadata.TypeReference) (metadata.TypeDefOrRef, error) {
	if def, ok := r.targetDefinition(t); ok {
		return def, nil
	}
	scope, err := r.importScope(t.Scope())
	if err != nil {
		return nil, errors.Wrapf(err, "import scope of %s", t.FullName())
	}
	if def, ok := scope.(*metadata.TypeDefinition); ok {
		for _, nested := range def.NestedTypes() {
			if nested.Name() == t.Name() {
				return nested, nil
			}
		}
		return nil, errors.Wrapf(ErrMissingScope, "nested type %s is not declared by %s", t.Name(), def.FullName())
	}
	rs, ok := scope.(metadata.ResolutionScope)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedImport, "scope of %s imported as %T", t.FullName(), scope)
	}
	ref := metadata.NewTypeReference(rs, t.Namespace(), t.Name())
	if err := r.remember(t, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// targetDefinition resolves a reference into the target's own assembly to
// the type defined there.
func (r *ReferenceImporter) targetDefinition(t *metadata.TypeReference) (*metadata.TypeDefinition, bool) {
	if r.target.Assembly() == nil {
		return nil, false
	}
	scope := t.Scope()
	for {
		outer, ok := scope.(*metadata.TypeReference)
		if !ok {
			break
		}
		scope = outer.Scope()
	}
	asm, ok := scope.(*metadata.AssemblyReference)
	if !ok || !r.cmp.Equal(asm, metadata.NewAssemblyReference(*r.target.Assembly())) {
		return nil, false
	}
	for _, def := range r.target.AllTypes() {
		if r.cmp.Equal(def, t) {
			return def, true
		}
	}
	return nil, false
}

// importScope imports the resolution scope of a type reference. Enclosing
// type references may resolve to a type definition of the target.
func (r *ReferenceImporter) importScope(scope metadata.ResolutionScope) (metadata.Member, error) {
	switch s := scope.(type) {
	case nil:
		return nil, ErrMissingScope
	case *metadata.Module:
		return r.moduleScope(s)
	case *metadata.AssemblyReference:
		return r.assemblyReference(s.Identity())
	case *metadata.ModuleReference:
		return r.moduleReference(s.Name())
	case *metadata.TypeReference:
		return r.outer.ImportType(s)
	}
	return nil, errors.Wrapf(ErrUnsupportedMember, "resolution scope %T", scope)
}

// moduleScope returns the scope that references types of mod from the
// target.
func (r *ReferenceImporter) moduleScope(mod *metadata.Module) (metadata.ResolutionScope, error) {
	if mod == r.target {
		return r.target, nil
	}
	asm := mod.Assembly()
	if asm != nil {
		own := r.target.Assembly()
		if own == nil || !r.cmp.Equal(metadata.NewAssemblyReference(*asm), metadata.NewAssemblyReference(*own)) {
			return r.assemblyReference(*asm)
		}
	}
	// Modules of the target's own assembly, or modules without an
	// assembly manifest, are referenced by file name.
	return r.moduleReference(mod.Name())
}

func (r *ReferenceImporter) assemblyReference(id metadata.AssemblyIdentity) (*metadata.AssemblyReference, error) {
	ref := metadata.NewAssemblyReference(id)
	if found, ok := r.find(ref); ok {
		return found.(*metadata.AssemblyReference), nil
	}
	if existing, ok := lo.Find(r.target.AssemblyReferences(), func(a *metadata.AssemblyReference) bool {
		return r.cmp.Equal(a, ref)
	}); ok {
		return existing, nil
	}
	if err := r.remember(ref, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *ReferenceImporter) moduleReference(name string) (*metadata.ModuleReference, error) {
	ref := metadata.NewModuleReference(name)
	if found, ok := r.find(ref); ok {
		return found.(*metadata.ModuleReference), nil
	}
	if existing, ok := lo.Find(r.target.ModuleReferences(), func(m *metadata.ModuleReference) bool {
		return m.Name() == name
	}); ok {
		return existing, nil
	}
	if err := r.remember(ref, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *ReferenceImporter) ImportMethod(m metadata.MethodDefOrRef) (metadata.MethodDefOrRef, error) {
	if m == nil {
		return nil, nil
	}
	if r.owned(m) {
		return m, nil
	}
	if found, ok := r.find(m); ok {
		return found.(metadata.MethodDefOrRef), nil
	}
	parent, err := r.memberParent(m)
	if err != nil {
		return nil, errors.Wrapf(err, "import parent of method %s", m.Name())
	}
	sig, err := ImportMethodSignature(r.outer, m.MethodSignature())
	if err != nil {
		return nil, errors.Wrapf(err, "import signature of method %s", m.Name())
	}
	ref := metadata.NewMemberReference(parent, m.Name(), sig)
	if err := r.remember(m, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *ReferenceImporter) ImportField(f metadata.FieldDescriptor) (metadata.FieldDescriptor, error) {
	if f == nil {
		return nil, nil
	}
	if r.owned(f) {
		return f, nil
	}
	if found, ok := r.find(f); ok {
		return found.(metadata.FieldDescriptor), nil
	}
	parent, err := r.memberParent(f)
	if err != nil {
		return nil, errors.Wrapf(err, "import parent of field %s", f.Name())
	}
	sig, err := ImportFieldSignature(r.outer, f.FieldSignature())
	if err != nil {
		return nil, errors.Wrapf(err, "import signature of field %s", f.Name())
	}
	ref := metadata.NewMemberReference(parent, f.Name(), sig)
	if err := r.remember(f, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// memberParent imports the parent a member reference to m needs: the
// declaring type of a definition, or the parent of a reference.
func (r *ReferenceImporter) memberParent(m metadata.Member) (metadata.MemberRefParent, error) {
	var parent metadata.Member
	switch x := m.(type) {
	case *metadata.MemberReference:
		parent = x.Parent()
	case *metadata.MethodDefinition:
		decl, ok := x.DeclaringType()
		if !ok {
			return nil, errors.Wrapf(ErrMissingScope, "method %s has no declaring type", x.Name())
		}
		parent = decl
	case *metadata.FieldDefinition:
		decl, ok := x.DeclaringType()
		if !ok {
			return nil, errors.Wrapf(ErrMissingScope, "field %s has no declaring type", x.Name())
		}
		parent = decl
	default:
		return nil, errors.Wrapf(ErrUnsupportedMember, "%T", m)
	}

	var imported metadata.Member
	var err error
	switch p := parent.(type) {
	case nil:
		return nil, ErrMissingScope
	case metadata.TypeDefOrRef:
		imported, err = r.outer.ImportType(p)
	case *metadata.ModuleReference:
		imported, err = r.moduleReference(p.Name())
	case *metadata.MethodDefinition:
		imported, err = r.outer.ImportMethod(p)
	default:
		return nil, errors.Wrapf(ErrUnsupportedMember, "member reference parent %T", parent)
	}
	if err != nil {
		return nil, err
	}
	mp, ok := imported.(metadata.MemberRefParent)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedImport, "parent imported as %T", imported)
	}
	return mp, nil
}

func (r *ReferenceImporter) ImportMethodSpecification(s *metadata.MethodSpecification) (*metadata.MethodSpecification, error) {
	if s == nil {
		return nil, nil
	}
	if r.owned(s) {
		return s, nil
	}
	if found, ok := r.find(s); ok {
		return found.(*metadata.MethodSpecification), nil
	}
	method, err := r.outer.ImportMethod(s.Method())
	if err != nil {
		return nil, errors.Wrapf(err, "import generic method %s", s.Name())
	}
	if s.Signature() == nil {
		return nil, errors.Wrapf(metadata.ErrMalformedSignature, "method specification %s without instantiation", s.Name())
	}
	args, err := ImportTypeSignatures(r.outer, s.Signature().TypeArguments)
	if err != nil {
		return nil, errors.Wrapf(err, "import type arguments of %s", s.Name())
	}
	spec := metadata.NewMethodSpecification(method, &metadata.GenericInstanceMethodSignature{TypeArguments: args})
	if err := r.remember(s, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func (r *ReferenceImporter) ImportMember(m metadata.Member) (metadata.Member, error) {
	if ref, ok := m.(*metadata.ModuleReference); ok {
		if r.owned(ref) {
			return ref, nil
		}
		return r.moduleReference(ref.Name())
	}
	return importMember(r, r.importStandAloneSignature, m)
}

func (r *ReferenceImporter) importStandAloneSignature(s *metadata.StandAloneSignature) (*metadata.StandAloneSignature, error) {
	if r.owned(s) {
		return s, nil
	}
	if found, ok := r.find(s); ok {
		return found.(*metadata.StandAloneSignature), nil
	}
	var sig metadata.BlobSignature
	var err error
	switch x := s.Signature().(type) {
	case *metadata.LocalVariablesSignature:
		sig, err = ImportLocalVariables(r.outer, x)
	case *metadata.MethodSignature:
		sig, err = ImportMethodSignature(r.outer, x)
	default:
		err = errors.Wrapf(metadata.ErrMalformedSignature, "standalone signature %T", x)
	}
	if err != nil {
		return nil, err
	}
	out := metadata.NewStandAloneSignature(sig)
	if err := r.remember(s, out); err != nil {
		return nil, err
	}
	return out, nil
}

// importMember dispatches m to the matching method of imp.
func importMember(imp Importer, standalone func(*metadata.StandAloneSignature) (*metadata.StandAloneSignature, error), m metadata.Member) (metadata.Member, error) {
	var out metadata.Member
	var err error
	switch x := m.(type) {
	case nil:
		return nil, nil
	case *metadata.MethodSpecification:
		out, err = imp.ImportMethodSpecification(x)
	case *metadata.MemberReference:
		if x.IsField() {
			out, err = imp.ImportField(x)
		} else {
			out, err = imp.ImportMethod(x)
		}
	case metadata.TypeDefOrRef:
		out, err = imp.ImportType(x)
	case *metadata.MethodDefinition:
		out, err = imp.ImportMethod(x)
	case *metadata.FieldDefinition:
		out, err = imp.ImportField(x)
	case *metadata.StandAloneSignature:
		out, err = standalone(x)
	default:
		return nil, errors.Wrapf(ErrUnsupportedMember, "%T", m)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
