package metadata

// ParameterDefinition carries the name, attributes and default value of a
// method parameter. Sequence 0 describes the return value.
type ParameterDefinition struct {
	entity

	sequence          lazy[uint16]
	name              lazy[string]
	attributes        lazy[ParameterAttributes]
	constant          lazy[*Constant]
	marshalDescriptor lazy[MarshalDescriptor]
	customAttributes  lazy[[]*CustomAttribute]
}

func NewParameterDefinition(sequence uint16, name string, attributes ParameterAttributes) *ParameterDefinition {
	p := &ParameterDefinition{}
	p.sequence.set(sequence)
	p.name.set(name)
	p.attributes.set(attributes)
	p.constant.set(nil)
	p.marshalDescriptor.set(nil)
	p.customAttributes.set(nil)
	return p
}

func newSerializedParameterDefinition(m *Module, tok Token) *ParameterDefinition {
	p := &ParameterDefinition{}
	row := new(lazy[ParameterDefinitionRow])
	row.init(func() ParameterDefinitionRow { return m.source.ParameterDefinition(tok) })
	p.sequence.init(func() uint16 { return row.get().Sequence })
	p.name.init(func() string { return row.get().Name })
	p.attributes.init(func() ParameterAttributes { return row.get().Attributes })
	p.constant.init(func() *Constant { return m.loadConstant(tok, row.get().Constant) })
	p.marshalDescriptor.init(func() MarshalDescriptor { return row.get().MarshalDescriptor })
	p.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(p) })
	return p
}

func (p *ParameterDefinition) table() TableIndex { return TableParam }

func (p *ParameterDefinition) children() []Member {
	out := asMembers(p.CustomAttributes())
	if c := p.Constant(); c != nil {
		out = append(out, c)
	}
	return out
}

func (p *ParameterDefinition) Sequence() uint16 { return p.sequence.get() }

func (p *ParameterDefinition) Name() string { return p.name.get() }

func (p *ParameterDefinition) Attributes() ParameterAttributes { return p.attributes.get() }

func (p *ParameterDefinition) Constant() *Constant { return p.constant.get() }

func (p *ParameterDefinition) SetConstant(c *Constant) error {
	if c == nil {
		p.constant.set(nil)
		return nil
	}
	return attachOne(p, &p.constant, c)
}

func (p *ParameterDefinition) MarshalDescriptor() MarshalDescriptor {
	return p.marshalDescriptor.get()
}

func (p *ParameterDefinition) SetMarshalDescriptor(d MarshalDescriptor) {
	p.marshalDescriptor.set(d)
}

func (p *ParameterDefinition) CustomAttributes() []*CustomAttribute {
	return p.customAttributes.get()
}

func (p *ParameterDefinition) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(p, &p.customAttributes, ca)
}
