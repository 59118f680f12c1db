package metadata

import (
	"encoding/hex"
	"fmt"
)

// Version is a four-part assembly version.
type Version struct {
	Major, Minor, Build, Revision uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// AssemblyIdentity names an assembly.
type AssemblyIdentity struct {
	Name           string
	Version        Version
	Culture        string
	PublicKeyToken []byte
}

func (a AssemblyIdentity) FullName() string {
	culture := a.Culture
	if culture == "" {
		culture = "neutral"
	}
	token := "null"
	if len(a.PublicKeyToken) > 0 {
		token = hex.EncodeToString(a.PublicKeyToken)
	}
	return fmt.Sprintf("%s, Version=%s, Culture=%s, PublicKeyToken=%s", a.Name, a.Version, culture, token)
}

// AssemblyReference is a reference to another assembly.
type AssemblyReference struct {
	entity

	identity         AssemblyIdentity
	customAttributes lazy[[]*CustomAttribute]
}

func NewAssemblyReference(identity AssemblyIdentity) *AssemblyReference {
	a := &AssemblyReference{identity: identity}
	a.customAttributes.set(nil)
	return a
}

func (a *AssemblyReference) table() TableIndex { return TableAssemblyRef }

func (a *AssemblyReference) children() []Member { return asMembers(a.CustomAttributes()) }

func (a *AssemblyReference) isResolutionScope() {}

func (a *AssemblyReference) Identity() AssemblyIdentity { return a.identity }

func (a *AssemblyReference) Name() string { return a.identity.Name }

func (a *AssemblyReference) CustomAttributes() []*CustomAttribute {
	return a.customAttributes.get()
}

func (a *AssemblyReference) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(a, &a.customAttributes, ca)
}

// ModuleReference is a reference to another module by file name. It scopes
// types of other modules of the same assembly and native imports.
type ModuleReference struct {
	entity

	name             string
	customAttributes lazy[[]*CustomAttribute]
}

func NewModuleReference(name string) *ModuleReference {
	r := &ModuleReference{name: name}
	r.customAttributes.set(nil)
	return r
}

func (r *ModuleReference) table() TableIndex { return TableModuleRef }

func (r *ModuleReference) children() []Member { return asMembers(r.CustomAttributes()) }

func (r *ModuleReference) isResolutionScope() {}

func (r *ModuleReference) isMemberRefParent() {}

func (r *ModuleReference) Name() string { return r.name }

func (r *ModuleReference) CustomAttributes() []*CustomAttribute {
	return r.customAttributes.get()
}

func (r *ModuleReference) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(r, &r.customAttributes, ca)
}

// TypeReference is a reference to a type defined in another scope.
type TypeReference struct {
	entity

	scope            ResolutionScope
	namespace        string
	name             string
	customAttributes lazy[[]*CustomAttribute]
}

func NewTypeReference(scope ResolutionScope, namespace, name string) *TypeReference {
	t := &TypeReference{scope: scope, namespace: namespace, name: name}
	t.customAttributes.set(nil)
	return t
}

func (t *TypeReference) table() TableIndex { return TableTypeRef }

func (t *TypeReference) children() []Member { return asMembers(t.CustomAttributes()) }

func (t *TypeReference) isTypeDefOrRef() {}

func (t *TypeReference) isMemberRefParent() {}

func (t *TypeReference) isResolutionScope() {}

func (t *TypeReference) Scope() ResolutionScope { return t.scope }

func (t *TypeReference) Namespace() string { return t.namespace }

func (t *TypeReference) Name() string { return t.name }

func (t *TypeReference) FullName() string {
	if outer, ok := t.scope.(*TypeReference); ok {
		return outer.FullName() + "+" + t.name
	}
	return joinTypeName(t.namespace, t.name)
}

func (t *TypeReference) ToTypeSignature(isValueType bool) TypeSignature {
	return &TypeDefOrRefSignature{Type: t, IsValueType: isValueType}
}

func (t *TypeReference) CustomAttributes() []*CustomAttribute {
	return t.customAttributes.get()
}

func (t *TypeReference) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(t, &t.customAttributes, ca)
}

func (t *TypeReference) String() string { return t.FullName() }

// TypeSpecification is a type described by a signature, such as a generic
// instantiation or an array.
type TypeSpecification struct {
	entity

	signature        TypeSignature
	customAttributes lazy[[]*CustomAttribute]
}

func NewTypeSpecification(signature TypeSignature) *TypeSpecification {
	t := &TypeSpecification{signature: signature}
	t.customAttributes.set(nil)
	return t
}

func (t *TypeSpecification) table() TableIndex { return TableTypeSpec }

func (t *TypeSpecification) children() []Member { return asMembers(t.CustomAttributes()) }

func (t *TypeSpecification) isTypeDefOrRef() {}

func (t *TypeSpecification) isMemberRefParent() {}

func (t *TypeSpecification) Signature() TypeSignature { return t.signature }

func (t *TypeSpecification) Namespace() string { return t.signature.Namespace() }

func (t *TypeSpecification) Name() string { return t.signature.Name() }

func (t *TypeSpecification) FullName() string { return t.signature.FullName() }

func (t *TypeSpecification) ToTypeSignature(bool) TypeSignature { return t.signature }

func (t *TypeSpecification) CustomAttributes() []*CustomAttribute {
	return t.customAttributes.get()
}

func (t *TypeSpecification) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(t, &t.customAttributes, ca)
}

// MemberSignature is the signature of a member reference: a method or a
// field signature.
type MemberSignature interface {
	BlobSignature
	isMemberSignature()
}

// MemberReference references a field or method through its parent and
// signature.
type MemberReference struct {
	entity

	parent           MemberRefParent
	name             string
	signature        MemberSignature
	customAttributes lazy[[]*CustomAttribute]
}

func NewMemberReference(parent MemberRefParent, name string, signature MemberSignature) *MemberReference {
	r := &MemberReference{parent: parent, name: name, signature: signature}
	r.customAttributes.set(nil)
	return r
}

func (r *MemberReference) table() TableIndex { return TableMemberRef }

func (r *MemberReference) children() []Member { return asMembers(r.CustomAttributes()) }

func (r *MemberReference) isMethodDefOrRef() {}

func (r *MemberReference) isFieldDescriptor() {}

func (r *MemberReference) isCustomAttributeType() {}

func (r *MemberReference) Parent() MemberRefParent { return r.parent }

func (r *MemberReference) Name() string { return r.name }

func (r *MemberReference) Signature() MemberSignature { return r.signature }

func (r *MemberReference) IsField() bool {
	_, ok := r.signature.(*FieldSignature)
	return ok
}

func (r *MemberReference) IsMethod() bool {
	_, ok := r.signature.(*MethodSignature)
	return ok
}

// MethodSignature returns the signature of a method reference, or nil
// for field references.
func (r *MemberReference) MethodSignature() *MethodSignature {
	sig, _ := r.signature.(*MethodSignature)
	return sig
}

// FieldSignature returns the signature of a field reference, or nil for
// method references.
func (r *MemberReference) FieldSignature() *FieldSignature {
	sig, _ := r.signature.(*FieldSignature)
	return sig
}

func (r *MemberReference) CustomAttributes() []*CustomAttribute {
	return r.customAttributes.get()
}

func (r *MemberReference) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(r, &r.customAttributes, ca)
}

func (r *MemberReference) String() string {
	if t, ok := r.parent.(TypeDefOrRef); ok {
		return t.FullName() + "::" + r.name
	}
	return r.name
}

// MethodSpecification is an instantiation of a generic method.
type MethodSpecification struct {
	entity

	method           MethodDefOrRef
	signature        *GenericInstanceMethodSignature
	customAttributes lazy[[]*CustomAttribute]
}

func NewMethodSpecification(method MethodDefOrRef, signature *GenericInstanceMethodSignature) *MethodSpecification {
	s := &MethodSpecification{method: method, signature: signature}
	s.customAttributes.set(nil)
	return s
}

func (s *MethodSpecification) table() TableIndex { return TableMethodSpec }

func (s *MethodSpecification) children() []Member { return asMembers(s.CustomAttributes()) }

func (s *MethodSpecification) Method() MethodDefOrRef { return s.method }

func (s *MethodSpecification) Name() string { return s.method.Name() }

func (s *MethodSpecification) Signature() *GenericInstanceMethodSignature { return s.signature }

func (s *MethodSpecification) CustomAttributes() []*CustomAttribute {
	return s.customAttributes.get()
}

func (s *MethodSpecification) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(s, &s.customAttributes, ca)
}

// StandAloneSignature wraps a signature referenced by token, such as the
// local variables of a method body or the target of a calli.
type StandAloneSignature struct {
	entity

	signature BlobSignature
}

func NewStandAloneSignature(signature BlobSignature) *StandAloneSignature {
	return &StandAloneSignature{signature: signature}
}

func (s *StandAloneSignature) table() TableIndex { return TableStandAloneSig }

func (s *StandAloneSignature) Signature() BlobSignature { return s.signature }

// LocalVariables returns the wrapped locals signature, or nil.
func (s *StandAloneSignature) LocalVariables() *LocalVariablesSignature {
	sig, _ := s.signature.(*LocalVariablesSignature)
	return sig
}
