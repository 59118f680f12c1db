package metadata

import "sync"

// MethodDefinition is a method declared by a type.
type MethodDefinition struct {
	entity

	name                 lazy[string]
	attributes           lazy[MethodAttributes]
	implAttributes       lazy[MethodImplAttributes]
	signature            lazy[*MethodSignature]
	parameterDefinitions lazy[[]*ParameterDefinition]
	genericParameters    lazy[[]*GenericParameter]
	implementationMap    lazy[*ImplementationMap]
	body                 lazy[*MethodBody]
	customAttributes     lazy[[]*CustomAttribute]

	paramsMu   sync.Mutex
	parameters []*Parameter
}

// Parameter is a slot in the parameter list derived from a method
// signature. Instance methods have the implicit this parameter at index 0.
type Parameter struct {
	Index    int
	Sequence uint16
	Type     TypeSignature
	IsThis   bool
}

func NewMethodDefinition(name string, attributes MethodAttributes, signature *MethodSignature) *MethodDefinition {
	m := &MethodDefinition{}
	m.name.set(name)
	m.attributes.set(attributes)
	m.implAttributes.set(MethodImplIL)
	m.signature.set(signature)
	m.parameterDefinitions.set(nil)
	m.genericParameters.set(nil)
	m.implementationMap.set(nil)
	m.body.set(nil)
	m.customAttributes.set(nil)
	return m
}

func newSerializedMethodDefinition(mod *Module, tok Token) *MethodDefinition {
	m := &MethodDefinition{}
	row := new(lazy[MethodDefinitionRow])
	row.init(func() MethodDefinitionRow { return mod.source.MethodDefinition(tok) })
	m.name.init(func() string { return row.get().Name })
	m.attributes.init(func() MethodAttributes { return row.get().Attributes })
	m.implAttributes.init(func() MethodImplAttributes { return row.get().ImplAttributes })
	m.signature.init(func() *MethodSignature { return row.get().Signature })
	m.parameterDefinitions.init(func() []*ParameterDefinition {
		return materializeAll[*ParameterDefinition](mod, tok, row.get().Parameters)
	})
	m.genericParameters.init(func() []*GenericParameter {
		return materializeAll[*GenericParameter](mod, tok, row.get().GenericParameters)
	})
	m.implementationMap.init(func() *ImplementationMap {
		return mod.loadImplementationMap(tok, row.get().ImplementationMap)
	})
	m.body.init(func() *MethodBody { return mod.source.MethodBody(tok) })
	m.customAttributes.init(func() []*CustomAttribute { return mod.loadCustomAttributes(m) })
	return m
}

func (m *MethodDefinition) table() TableIndex { return TableMethod }

func (m *MethodDefinition) children() []Member {
	var out []Member
	out = append(out, asMembers(m.ParameterDefinitions())...)
	out = append(out, asMembers(m.GenericParameters())...)
	out = append(out, asMembers(m.CustomAttributes())...)
	if im := m.ImplementationMap(); im != nil {
		out = append(out, im)
	}
	return out
}

func (m *MethodDefinition) isMethodDefOrRef() {}

func (m *MethodDefinition) isCustomAttributeType() {}

func (m *MethodDefinition) isMemberRefParent() {}

func (m *MethodDefinition) Name() string { return m.name.get() }

func (m *MethodDefinition) SetName(name string) { m.name.set(name) }

func (m *MethodDefinition) Attributes() MethodAttributes { return m.attributes.get() }

func (m *MethodDefinition) SetAttributes(a MethodAttributes) { m.attributes.set(a) }

func (m *MethodDefinition) ImplAttributes() MethodImplAttributes { return m.implAttributes.get() }

func (m *MethodDefinition) SetImplAttributes(a MethodImplAttributes) { m.implAttributes.set(a) }

func (m *MethodDefinition) IsStatic() bool { return m.Attributes().Has(MethodStatic) }

func (m *MethodDefinition) MethodSignature() *MethodSignature { return m.signature.get() }

// SetSignature replaces the signature and resets the derived parameter
// list.
func (m *MethodDefinition) SetSignature(sig *MethodSignature) {
	m.signature.set(sig)
	m.paramsMu.Lock()
	m.parameters = nil
	m.paramsMu.Unlock()
}

// Parameters returns the parameter slots derived from the signature.
func (m *MethodDefinition) Parameters() []*Parameter {
	m.paramsMu.Lock()
	defer m.paramsMu.Unlock()
	if m.parameters != nil {
		return m.parameters
	}
	sig := m.MethodSignature()
	if sig == nil {
		return nil
	}
	params := make([]*Parameter, 0, len(sig.ParameterTypes)+1)
	if sig.HasThis() && !sig.ExplicitThis() {
		params = append(params, &Parameter{Index: 0, IsThis: true})
	}
	for i, pt := range sig.ParameterTypes {
		params = append(params, &Parameter{
			Index:    len(params),
			Sequence: uint16(i + 1),
			Type:     pt,
		})
	}
	m.parameters = params
	return params
}

// DeclaringType returns the type declaring the method.
func (m *MethodDefinition) DeclaringType() (*TypeDefinition, bool) {
	if m.module == nil {
		return nil, false
	}
	return m.module.DeclaringType(m)
}

func (m *MethodDefinition) ParameterDefinitions() []*ParameterDefinition {
	return m.parameterDefinitions.get()
}

func (m *MethodDefinition) AddParameterDefinition(p *ParameterDefinition) error {
	return attach(m, &m.parameterDefinitions, p)
}

// ParameterDefinition returns the definition with the given sequence
// number. Sequence 0 is the return value.
func (m *MethodDefinition) ParameterDefinition(sequence uint16) (*ParameterDefinition, bool) {
	for _, p := range m.ParameterDefinitions() {
		if p.Sequence() == sequence {
			return p, true
		}
	}
	return nil, false
}

func (m *MethodDefinition) GenericParameters() []*GenericParameter {
	return m.genericParameters.get()
}

func (m *MethodDefinition) AddGenericParameter(p *GenericParameter) error {
	return attach(m, &m.genericParameters, p)
}

func (m *MethodDefinition) ImplementationMap() *ImplementationMap {
	return m.implementationMap.get()
}

func (m *MethodDefinition) SetImplementationMap(im *ImplementationMap) error {
	if im == nil {
		m.implementationMap.set(nil)
		return nil
	}
	return attachOne(m, &m.implementationMap, im)
}

// Body returns the CIL body, or nil for abstract, runtime and P/Invoke
// methods.
func (m *MethodDefinition) Body() *MethodBody { return m.body.get() }

func (m *MethodDefinition) SetBody(b *MethodBody) { m.body.set(b) }

func (m *MethodDefinition) CustomAttributes() []*CustomAttribute {
	return m.customAttributes.get()
}

func (m *MethodDefinition) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(m, &m.customAttributes, ca)
}

func (m *MethodDefinition) String() string {
	if t, ok := m.DeclaringType(); ok {
		return t.FullName() + "::" + m.Name()
	}
	return m.Name()
}
