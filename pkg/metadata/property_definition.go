package metadata

// MethodSemantics links a property or event to one of its accessor
// methods.
type MethodSemantics struct {
	Attributes MethodSemanticsAttributes
	Method     *MethodDefinition
}

// PropertyDefinition is a property declared by a type.
type PropertyDefinition struct {
	entity

	name             lazy[string]
	attributes       lazy[PropertyAttributes]
	signature        lazy[*PropertySignature]
	constant         lazy[*Constant]
	semantics        lazy[[]MethodSemantics]
	customAttributes lazy[[]*CustomAttribute]
}

func NewPropertyDefinition(name string, attributes PropertyAttributes, signature *PropertySignature) *PropertyDefinition {
	p := &PropertyDefinition{}
	p.name.set(name)
	p.attributes.set(attributes)
	p.signature.set(signature)
	p.constant.set(nil)
	p.semantics.set(nil)
	p.customAttributes.set(nil)
	return p
}

func newSerializedPropertyDefinition(m *Module, tok Token) *PropertyDefinition {
	p := &PropertyDefinition{}
	row := new(lazy[PropertyDefinitionRow])
	row.init(func() PropertyDefinitionRow { return m.source.PropertyDefinition(tok) })
	p.name.init(func() string { return row.get().Name })
	p.attributes.init(func() PropertyAttributes { return row.get().Attributes })
	p.signature.init(func() *PropertySignature { return row.get().Signature })
	p.constant.init(func() *Constant { return m.loadConstant(tok, row.get().Constant) })
	p.semantics.init(func() []MethodSemantics { return row.get().Semantics })
	p.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(p) })
	return p
}

func (p *PropertyDefinition) table() TableIndex { return TableProperty }

func (p *PropertyDefinition) children() []Member {
	out := asMembers(p.CustomAttributes())
	if c := p.Constant(); c != nil {
		out = append(out, c)
	}
	return out
}

func (p *PropertyDefinition) Name() string { return p.name.get() }

func (p *PropertyDefinition) Attributes() PropertyAttributes { return p.attributes.get() }

func (p *PropertyDefinition) Signature() *PropertySignature { return p.signature.get() }

func (p *PropertyDefinition) SetSignature(sig *PropertySignature) { p.signature.set(sig) }

func (p *PropertyDefinition) Constant() *Constant { return p.constant.get() }

func (p *PropertyDefinition) SetConstant(c *Constant) error {
	if c == nil {
		p.constant.set(nil)
		return nil
	}
	return attachOne(p, &p.constant, c)
}

// Semantics returns the accessor links in declaration order.
func (p *PropertyDefinition) Semantics() []MethodSemantics { return p.semantics.get() }

func (p *PropertyDefinition) AddSemantics(s MethodSemantics) {
	p.semantics.set(append(p.Semantics(), s))
}

// Getter returns the get accessor.
func (p *PropertyDefinition) Getter() (*MethodDefinition, bool) {
	return semanticsMethod(p.Semantics(), SemanticsGetter)
}

// Setter returns the set accessor.
func (p *PropertyDefinition) Setter() (*MethodDefinition, bool) {
	return semanticsMethod(p.Semantics(), SemanticsSetter)
}

func semanticsMethod(list []MethodSemantics, kind MethodSemanticsAttributes) (*MethodDefinition, bool) {
	for _, s := range list {
		if s.Attributes&kind != 0 {
			return s.Method, true
		}
	}
	return nil, false
}

func (p *PropertyDefinition) DeclaringType() (*TypeDefinition, bool) {
	if p.module == nil {
		return nil, false
	}
	return p.module.DeclaringType(p)
}

func (p *PropertyDefinition) CustomAttributes() []*CustomAttribute {
	return p.customAttributes.get()
}

func (p *PropertyDefinition) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(p, &p.customAttributes, ca)
}

// EventDefinition is an event declared by a type.
type EventDefinition struct {
	entity

	name             lazy[string]
	attributes       lazy[EventAttributes]
	eventType        lazy[TypeDefOrRef]
	semantics        lazy[[]MethodSemantics]
	customAttributes lazy[[]*CustomAttribute]
}

func NewEventDefinition(name string, attributes EventAttributes, eventType TypeDefOrRef) *EventDefinition {
	e := &EventDefinition{}
	e.name.set(name)
	e.attributes.set(attributes)
	e.eventType.set(eventType)
	e.semantics.set(nil)
	e.customAttributes.set(nil)
	return e
}

func newSerializedEventDefinition(m *Module, tok Token) *EventDefinition {
	e := &EventDefinition{}
	row := new(lazy[EventDefinitionRow])
	row.init(func() EventDefinitionRow { return m.source.EventDefinition(tok) })
	e.name.init(func() string { return row.get().Name })
	e.attributes.init(func() EventAttributes { return row.get().Attributes })
	e.eventType.init(func() TypeDefOrRef { return row.get().EventType })
	e.semantics.init(func() []MethodSemantics { return row.get().Semantics })
	e.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(e) })
	return e
}

func (e *EventDefinition) table() TableIndex { return TableEvent }

func (e *EventDefinition) children() []Member { return asMembers(e.CustomAttributes()) }

func (e *EventDefinition) Name() string { return e.name.get() }

func (e *EventDefinition) Attributes() EventAttributes { return e.attributes.get() }

func (e *EventDefinition) EventType() TypeDefOrRef { return e.eventType.get() }

func (e *EventDefinition) SetEventType(t TypeDefOrRef) { e.eventType.set(t) }

func (e *EventDefinition) Semantics() []MethodSemantics { return e.semantics.get() }

func (e *EventDefinition) AddSemantics(s MethodSemantics) {
	e.semantics.set(append(e.Semantics(), s))
}

func (e *EventDefinition) DeclaringType() (*TypeDefinition, bool) {
	if e.module == nil {
		return nil, false
	}
	return e.module.DeclaringType(e)
}

func (e *EventDefinition) CustomAttributes() []*CustomAttribute {
	return e.customAttributes.get()
}

func (e *EventDefinition) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(e, &e.customAttributes, ca)
}
