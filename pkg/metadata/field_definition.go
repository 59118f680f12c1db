package metadata

// MarshalDescriptor is the raw native marshalling blob of a field or
// parameter. It is carried through unchanged.
type MarshalDescriptor []byte

// FieldDefinition is a field declared by a type.
type FieldDefinition struct {
	entity

	name              lazy[string]
	attributes        lazy[FieldAttributes]
	signature         lazy[*FieldSignature]
	constant          lazy[*Constant]
	implementationMap lazy[*ImplementationMap]
	marshalDescriptor lazy[MarshalDescriptor]
	fieldOffset       lazy[*uint32]
	initialValue      lazy[[]byte]
	customAttributes  lazy[[]*CustomAttribute]
}

func NewFieldDefinition(name string, attributes FieldAttributes, signature *FieldSignature) *FieldDefinition {
	f := &FieldDefinition{}
	f.name.set(name)
	f.attributes.set(attributes)
	f.signature.set(signature)
	f.constant.set(nil)
	f.implementationMap.set(nil)
	f.marshalDescriptor.set(nil)
	f.fieldOffset.set(nil)
	f.initialValue.set(nil)
	f.customAttributes.set(nil)
	return f
}

func newSerializedFieldDefinition(m *Module, tok Token) *FieldDefinition {
	f := &FieldDefinition{}
	row := new(lazy[FieldDefinitionRow])
	row.init(func() FieldDefinitionRow { return m.source.FieldDefinition(tok) })
	f.name.init(func() string { return row.get().Name })
	f.attributes.init(func() FieldAttributes { return row.get().Attributes })
	f.signature.init(func() *FieldSignature { return row.get().Signature })
	f.constant.init(func() *Constant { return m.loadConstant(tok, row.get().Constant) })
	f.implementationMap.init(func() *ImplementationMap {
		return m.loadImplementationMap(tok, row.get().ImplementationMap)
	})
	f.marshalDescriptor.init(func() MarshalDescriptor { return row.get().MarshalDescriptor })
	f.fieldOffset.init(func() *uint32 { return row.get().FieldOffset })
	f.initialValue.init(func() []byte { return row.get().InitialValue })
	f.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(f) })
	return f
}

func (f *FieldDefinition) table() TableIndex { return TableField }

func (f *FieldDefinition) children() []Member {
	out := asMembers(f.CustomAttributes())
	if c := f.Constant(); c != nil {
		out = append(out, c)
	}
	if im := f.ImplementationMap(); im != nil {
		out = append(out, im)
	}
	return out
}

func (f *FieldDefinition) isFieldDescriptor() {}

func (f *FieldDefinition) Name() string { return f.name.get() }

func (f *FieldDefinition) SetName(name string) { f.name.set(name) }

func (f *FieldDefinition) Attributes() FieldAttributes { return f.attributes.get() }

func (f *FieldDefinition) SetAttributes(a FieldAttributes) { f.attributes.set(a) }

func (f *FieldDefinition) IsStatic() bool { return f.Attributes().Has(FieldStatic) }

func (f *FieldDefinition) FieldSignature() *FieldSignature { return f.signature.get() }

func (f *FieldDefinition) SetSignature(sig *FieldSignature) { f.signature.set(sig) }

// DeclaringType returns the type declaring the field.
func (f *FieldDefinition) DeclaringType() (*TypeDefinition, bool) {
	if f.module == nil {
		return nil, false
	}
	return f.module.DeclaringType(f)
}

func (f *FieldDefinition) Constant() *Constant { return f.constant.get() }

func (f *FieldDefinition) SetConstant(c *Constant) error {
	if c == nil {
		f.constant.set(nil)
		return nil
	}
	return attachOne(f, &f.constant, c)
}

func (f *FieldDefinition) ImplementationMap() *ImplementationMap { return f.implementationMap.get() }

func (f *FieldDefinition) SetImplementationMap(im *ImplementationMap) error {
	if im == nil {
		f.implementationMap.set(nil)
		return nil
	}
	return attachOne(f, &f.implementationMap, im)
}

func (f *FieldDefinition) MarshalDescriptor() MarshalDescriptor { return f.marshalDescriptor.get() }

func (f *FieldDefinition) SetMarshalDescriptor(d MarshalDescriptor) { f.marshalDescriptor.set(d) }

// FieldOffset is the explicit layout offset, or nil.
func (f *FieldDefinition) FieldOffset() *uint32 { return f.fieldOffset.get() }

func (f *FieldDefinition) SetFieldOffset(offset *uint32) { f.fieldOffset.set(offset) }

// InitialValue is the data a static field is mapped to, or nil.
func (f *FieldDefinition) InitialValue() []byte { return f.initialValue.get() }

func (f *FieldDefinition) SetInitialValue(data []byte) { f.initialValue.set(data) }

func (f *FieldDefinition) CustomAttributes() []*CustomAttribute { return f.customAttributes.get() }

func (f *FieldDefinition) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(f, &f.customAttributes, ca)
}

func (f *FieldDefinition) String() string {
	if t, ok := f.DeclaringType(); ok {
		return t.FullName() + "::" + f.Name()
	}
	return f.Name()
}
