package metadata

// GenericParameter is a type or method generic parameter.
type GenericParameter struct {
	entity

	number           lazy[uint16]
	name             lazy[string]
	attributes       lazy[GenericParameterAttributes]
	constraints      lazy[[]*GenericParameterConstraint]
	customAttributes lazy[[]*CustomAttribute]
}

func NewGenericParameter(number uint16, name string, attributes GenericParameterAttributes) *GenericParameter {
	p := &GenericParameter{}
	p.number.set(number)
	p.name.set(name)
	p.attributes.set(attributes)
	p.constraints.set(nil)
	p.customAttributes.set(nil)
	return p
}

func newSerializedGenericParameter(m *Module, tok Token) *GenericParameter {
	p := &GenericParameter{}
	row := new(lazy[GenericParameterRow])
	row.init(func() GenericParameterRow { return m.source.GenericParameter(tok) })
	p.number.init(func() uint16 { return row.get().Number })
	p.name.init(func() string { return row.get().Name })
	p.attributes.init(func() GenericParameterAttributes { return row.get().Attributes })
	p.constraints.init(func() []*GenericParameterConstraint {
		rows := row.get().Constraints
		out := make([]*GenericParameterConstraint, 0, len(rows))
		for _, r := range rows {
			c := &GenericParameterConstraint{constraint: r.Constraint}
			c.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(c) })
			m.place(tok, r.Token, c)
			out = append(out, c)
		}
		return out
	})
	p.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(p) })
	return p
}

func (p *GenericParameter) table() TableIndex { return TableGenericParam }

func (p *GenericParameter) children() []Member {
	return append(asMembers(p.Constraints()), asMembers(p.CustomAttributes())...)
}

func (p *GenericParameter) Number() uint16 { return p.number.get() }

func (p *GenericParameter) Name() string { return p.name.get() }

func (p *GenericParameter) Attributes() GenericParameterAttributes { return p.attributes.get() }

func (p *GenericParameter) Constraints() []*GenericParameterConstraint {
	return p.constraints.get()
}

func (p *GenericParameter) AddConstraint(c *GenericParameterConstraint) error {
	return attach(p, &p.constraints, c)
}

func (p *GenericParameter) CustomAttributes() []*CustomAttribute {
	return p.customAttributes.get()
}

func (p *GenericParameter) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(p, &p.customAttributes, ca)
}

// GenericParameterConstraint restricts the type arguments of a generic
// parameter.
type GenericParameterConstraint struct {
	entity

	constraint       TypeDefOrRef
	customAttributes lazy[[]*CustomAttribute]
}

func NewGenericParameterConstraint(constraint TypeDefOrRef) *GenericParameterConstraint {
	c := &GenericParameterConstraint{constraint: constraint}
	c.customAttributes.set(nil)
	return c
}

func (c *GenericParameterConstraint) table() TableIndex { return TableGenericParamConstraint }

func (c *GenericParameterConstraint) children() []Member { return asMembers(c.CustomAttributes()) }

func (c *GenericParameterConstraint) Constraint() TypeDefOrRef { return c.constraint }

func (c *GenericParameterConstraint) CustomAttributes() []*CustomAttribute {
	return c.customAttributes.get()
}

func (c *GenericParameterConstraint) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(c, &c.customAttributes, ca)
}
