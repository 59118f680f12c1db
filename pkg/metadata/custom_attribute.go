package metadata

// CustomAttribute attaches a constructor call and its serialized
// arguments to a member.
type CustomAttribute struct {
	entity

	constructor CustomAttributeType
	signature   *CustomAttributeSignature
}

func NewCustomAttribute(constructor CustomAttributeType, signature *CustomAttributeSignature) *CustomAttribute {
	if signature == nil {
		signature = &CustomAttributeSignature{}
	}
	return &CustomAttribute{constructor: constructor, signature: signature}
}

func (ca *CustomAttribute) table() TableIndex { return TableCustomAttribute }

func (ca *CustomAttribute) Constructor() CustomAttributeType { return ca.constructor }

func (ca *CustomAttribute) Signature() *CustomAttributeSignature { return ca.signature }

// Parent returns the member the attribute is attached to.
func (ca *CustomAttribute) Parent() (Member, bool) {
	if ca.module == nil {
		return nil, false
	}
	return ca.module.Owner(ca)
}

// AttributeType returns the type declaring the constructor.
func (ca *CustomAttribute) AttributeType() (TypeDefOrRef, bool) {
	switch ctor := ca.constructor.(type) {
	case *MethodDefinition:
		t, ok := ctor.DeclaringType()
		if !ok {
			return nil, false
		}
		return t, true
	case *MemberReference:
		t, ok := ctor.Parent().(TypeDefOrRef)
		return t, ok
	}
	return nil, false
}
