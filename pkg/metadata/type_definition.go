package metadata

// TypeDefinition is a type declared in a module.
type TypeDefinition struct {
	entity

	namespace             lazy[string]
	name                  lazy[string]
	attributes            lazy[TypeAttributes]
	baseType              lazy[TypeDefOrRef]
	interfaces            lazy[[]*InterfaceImplementation]
	classLayout           lazy[*ClassLayout]
	nestedTypes           lazy[[]*TypeDefinition]
	fields                lazy[[]*FieldDefinition]
	methods               lazy[[]*MethodDefinition]
	properties            lazy[[]*PropertyDefinition]
	events                lazy[[]*EventDefinition]
	genericParameters     lazy[[]*GenericParameter]
	methodImplementations lazy[[]MethodImplementation]
	customAttributes      lazy[[]*CustomAttribute]
}

// ClassLayout is the explicit packing and size of a type.
type ClassLayout struct {
	PackingSize uint16
	ClassSize   uint32
}

// MethodImplementation maps an interface method declaration to the body
// implementing it.
type MethodImplementation struct {
	Declaration MethodDefOrRef
	Body        MethodDefOrRef
}

func NewTypeDefinition(namespace, name string, attributes TypeAttributes) *TypeDefinition {
	t := &TypeDefinition{}
	t.namespace.set(namespace)
	t.name.set(name)
	t.attributes.set(attributes)
	t.baseType.set(nil)
	t.interfaces.set(nil)
	t.classLayout.set(nil)
	t.nestedTypes.set(nil)
	t.fields.set(nil)
	t.methods.set(nil)
	t.properties.set(nil)
	t.events.set(nil)
	t.genericParameters.set(nil)
	t.methodImplementations.set(nil)
	t.customAttributes.set(nil)
	return t
}

func newSerializedTypeDefinition(m *Module, tok Token) *TypeDefinition {
	t := &TypeDefinition{}
	row := new(lazy[TypeDefinitionRow])
	row.init(func() TypeDefinitionRow { return m.source.TypeDefinition(tok) })
	t.namespace.init(func() string { return row.get().Namespace })
	t.name.init(func() string { return row.get().Name })
	t.attributes.init(func() TypeAttributes { return row.get().Attributes })
	t.baseType.init(func() TypeDefOrRef { return row.get().BaseType })
	t.interfaces.init(func() []*InterfaceImplementation {
		rows := row.get().Interfaces
		out := make([]*InterfaceImplementation, 0, len(rows))
		for _, r := range rows {
			impl := &InterfaceImplementation{iface: r.Interface}
			impl.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(impl) })
			m.place(tok, r.Token, impl)
			out = append(out, impl)
		}
		return out
	})
	t.classLayout.init(func() *ClassLayout { return row.get().ClassLayout })
	t.nestedTypes.init(func() []*TypeDefinition {
		return materializeAll[*TypeDefinition](m, tok, row.get().NestedTypes)
	})
	t.fields.init(func() []*FieldDefinition {
		return materializeAll[*FieldDefinition](m, tok, row.get().Fields)
	})
	t.methods.init(func() []*MethodDefinition {
		return materializeAll[*MethodDefinition](m, tok, row.get().Methods)
	})
	t.properties.init(func() []*PropertyDefinition {
		return materializeAll[*PropertyDefinition](m, tok, row.get().Properties)
	})
	t.events.init(func() []*EventDefinition {
		return materializeAll[*EventDefinition](m, tok, row.get().Events)
	})
	t.genericParameters.init(func() []*GenericParameter {
		return materializeAll[*GenericParameter](m, tok, row.get().GenericParameters)
	})
	t.methodImplementations.init(func() []MethodImplementation { return row.get().MethodImplementations })
	t.customAttributes.init(func() []*CustomAttribute { return m.loadCustomAttributes(t) })
	return t
}

func (t *TypeDefinition) table() TableIndex { return TableTypeDef }

func (t *TypeDefinition) children() []Member {
	var out []Member
	out = append(out, asMembers(t.NestedTypes())...)
	out = append(out, asMembers(t.Fields())...)
	out = append(out, asMembers(t.Methods())...)
	out = append(out, asMembers(t.Properties())...)
	out = append(out, asMembers(t.Events())...)
	out = append(out, asMembers(t.GenericParameters())...)
	out = append(out, asMembers(t.Interfaces())...)
	out = append(out, asMembers(t.CustomAttributes())...)
	return out
}

func (t *TypeDefinition) isTypeDefOrRef() {}

func (t *TypeDefinition) isMemberRefParent() {}

func (t *TypeDefinition) Namespace() string { return t.namespace.get() }

func (t *TypeDefinition) SetNamespace(ns string) { t.namespace.set(ns) }

func (t *TypeDefinition) Name() string { return t.name.get() }

func (t *TypeDefinition) SetName(name string) { t.name.set(name) }

func (t *TypeDefinition) Attributes() TypeAttributes { return t.attributes.get() }

func (t *TypeDefinition) SetAttributes(a TypeAttributes) { t.attributes.set(a) }

// FullName returns the namespace-qualified name. Nested types are joined
// to their enclosing type with '+'.
func (t *TypeDefinition) FullName() string {
	if decl, ok := t.DeclaringType(); ok {
		return decl.FullName() + "+" + t.Name()
	}
	return joinTypeName(t.Namespace(), t.Name())
}

func joinTypeName(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "." + name
}

// DeclaringType returns the enclosing type of a nested type.
func (t *TypeDefinition) DeclaringType() (*TypeDefinition, bool) {
	if t.module == nil {
		return nil, false
	}
	return t.module.DeclaringType(t)
}

func (t *TypeDefinition) IsNested() bool {
	_, ok := t.DeclaringType()
	return ok
}

func (t *TypeDefinition) IsInterface() bool { return t.Attributes().Has(TypeInterface) }

// IsValueType reports whether the type derives from System.ValueType or
// System.Enum.
func (t *TypeDefinition) IsValueType() bool {
	base := t.BaseType()
	if base == nil {
		return false
	}
	switch base.FullName() {
	case "System.Enum":
		return true
	case "System.ValueType":
		return t.FullName() != "System.Enum"
	}
	return false
}

func (t *TypeDefinition) IsEnum() bool {
	base := t.BaseType()
	return base != nil && base.FullName() == "System.Enum"
}

func (t *TypeDefinition) ToTypeSignature(isValueType bool) TypeSignature {
	return &TypeDefOrRefSignature{Type: t, IsValueType: isValueType}
}

func (t *TypeDefinition) BaseType() TypeDefOrRef { return t.baseType.get() }

func (t *TypeDefinition) SetBaseType(base TypeDefOrRef) { t.baseType.set(base) }

func (t *TypeDefinition) ClassLayout() *ClassLayout { return t.classLayout.get() }

func (t *TypeDefinition) SetClassLayout(l *ClassLayout) { t.classLayout.set(l) }

func (t *TypeDefinition) NestedTypes() []*TypeDefinition { return t.nestedTypes.get() }

func (t *TypeDefinition) AddNestedType(nested *TypeDefinition) error {
	return attach(t, &t.nestedTypes, nested)
}

func (t *TypeDefinition) Fields() []*FieldDefinition { return t.fields.get() }

func (t *TypeDefinition) AddField(f *FieldDefinition) error {
	return attach(t, &t.fields, f)
}

func (t *TypeDefinition) Methods() []*MethodDefinition { return t.methods.get() }

func (t *TypeDefinition) AddMethod(method *MethodDefinition) error {
	return attach(t, &t.methods, method)
}

func (t *TypeDefinition) Properties() []*PropertyDefinition { return t.properties.get() }

func (t *TypeDefinition) AddProperty(p *PropertyDefinition) error {
	return attach(t, &t.properties, p)
}

func (t *TypeDefinition) Events() []*EventDefinition { return t.events.get() }

func (t *TypeDefinition) AddEvent(e *EventDefinition) error {
	return attach(t, &t.events, e)
}

func (t *TypeDefinition) GenericParameters() []*GenericParameter { return t.genericParameters.get() }

func (t *TypeDefinition) AddGenericParameter(p *GenericParameter) error {
	return attach(t, &t.genericParameters, p)
}

func (t *TypeDefinition) Interfaces() []*InterfaceImplementation { return t.interfaces.get() }

func (t *TypeDefinition) AddInterface(impl *InterfaceImplementation) error {
	return attach(t, &t.interfaces, impl)
}

func (t *TypeDefinition) MethodImplementations() []MethodImplementation {
	return t.methodImplementations.get()
}

func (t *TypeDefinition) AddMethodImplementation(impl MethodImplementation) {
	t.methodImplementations.set(append(t.MethodImplementations(), impl))
}

func (t *TypeDefinition) CustomAttributes() []*CustomAttribute { return t.customAttributes.get() }

func (t *TypeDefinition) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(t, &t.customAttributes, ca)
}

// Method returns the first method with the given name.
func (t *TypeDefinition) Method(name string) (*MethodDefinition, bool) {
	for _, m := range t.Methods() {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Field returns the field with the given name.
func (t *TypeDefinition) Field(name string) (*FieldDefinition, bool) {
	for _, f := range t.Fields() {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

func (t *TypeDefinition) String() string { return t.FullName() }

// InterfaceImplementation records that a type implements an interface.
type InterfaceImplementation struct {
	entity

	iface            TypeDefOrRef
	customAttributes lazy[[]*CustomAttribute]
}

func NewInterfaceImplementation(iface TypeDefOrRef) *InterfaceImplementation {
	impl := &InterfaceImplementation{iface: iface}
	impl.customAttributes.set(nil)
	return impl
}

func (i *InterfaceImplementation) table() TableIndex { return TableInterfaceImpl }

func (i *InterfaceImplementation) children() []Member { return asMembers(i.CustomAttributes()) }

func (i *InterfaceImplementation) Interface() TypeDefOrRef { return i.iface }

func (i *InterfaceImplementation) CustomAttributes() []*CustomAttribute {
	return i.customAttributes.get()
}

func (i *InterfaceImplementation) AddCustomAttribute(ca *CustomAttribute) error {
	return attach(i, &i.customAttributes, ca)
}
