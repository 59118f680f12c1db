package metadata

// Source provides the rows of a module read from an existing image. The
// module calls it lazily, at most once per row and column group, and
// never while holding its own lock, so implementations may look up other
// members of the module (for example with LookupMember) while building a
// row.
type Source interface {
	// RowCount returns the number of rows the image has in a table. Rows
	// beyond the count are free for new members.
	RowCount(table TableIndex) uint32
	TopLevelTypes() []Token
	// Owner returns the token of the member owning tok.
	Owner(tok Token) (Token, bool)

	TypeDefinition(tok Token) TypeDefinitionRow
	FieldDefinition(tok Token) FieldDefinitionRow
	MethodDefinition(tok Token) MethodDefinitionRow
	MethodBody(tok Token) *MethodBody
	ParameterDefinition(tok Token) ParameterDefinitionRow
	PropertyDefinition(tok Token) PropertyDefinitionRow
	EventDefinition(tok Token) EventDefinitionRow
	GenericParameter(tok Token) GenericParameterRow
	CustomAttributes(owner Token) []CustomAttributeRow
}

type TypeDefinitionRow struct {
	Attributes            TypeAttributes
	Namespace             string
	Name                  string
	BaseType              TypeDefOrRef
	Interfaces            []InterfaceRow
	ClassLayout           *ClassLayout
	NestedTypes           []Token
	Fields                []Token
	Methods               []Token
	Properties            []Token
	Events                []Token
	GenericParameters     []Token
	MethodImplementations []MethodImplementation
}

type InterfaceRow struct {
	Token     Token
	Interface TypeDefOrRef
}

type FieldDefinitionRow struct {
	Attributes        FieldAttributes
	Name              string
	Signature         *FieldSignature
	Constant          *ConstantRow
	ImplementationMap *ImplementationMapRow
	MarshalDescriptor MarshalDescriptor
	FieldOffset       *uint32
	InitialValue      []byte
}

type MethodDefinitionRow struct {
	Attributes        MethodAttributes
	ImplAttributes    MethodImplAttributes
	Name              string
	Signature         *MethodSignature
	Parameters        []Token
	GenericParameters []Token
	ImplementationMap *ImplementationMapRow
}

type ParameterDefinitionRow struct {
	Sequence          uint16
	Name              string
	Attributes        ParameterAttributes
	Constant          *ConstantRow
	MarshalDescriptor MarshalDescriptor
}

type PropertyDefinitionRow struct {
	Attributes PropertyAttributes
	Name       string
	Signature  *PropertySignature
	Constant   *ConstantRow
	Semantics  []MethodSemantics
}

type EventDefinitionRow struct {
	Attributes EventAttributes
	Name       string
	EventType  TypeDefOrRef
	Semantics  []MethodSemantics
}

type GenericParameterRow struct {
	Number      uint16
	Name        string
	Attributes  GenericParameterAttributes
	Constraints []ConstraintRow
}

type ConstraintRow struct {
	Token      Token
	Constraint TypeDefOrRef
}

type ConstantRow struct {
	Token Token
	Type  ElementType
	Value []byte
}

type ImplementationMapRow struct {
	Token      Token
	Attributes ImplementationMapAttributes
	ImportName string
	Scope      *ModuleReference
}

type CustomAttributeRow struct {
	Token       Token
	Constructor CustomAttributeType
	Signature   *CustomAttributeSignature
}

// materialize returns the member stored under tok, creating a serialized
// member for definition tables on first access. A non-nil owner is
// recorded in the owner table.
func (m *Module) materialize(owner, tok Token) Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[tok.Table()]
	rid := tok.RID()
	if rid == 0 || int(rid) > len(rows) {
		return nil
	}
	if !owner.IsNil() {
		m.owners[tok] = owner
	}
	if cur := rows[rid-1]; cur != nil {
		return cur
	}
	var r registrable
	switch tok.Table() {
	case TableTypeDef:
		r = newSerializedTypeDefinition(m, tok)
	case TableField:
		r = newSerializedFieldDefinition(m, tok)
	case TableMethod:
		r = newSerializedMethodDefinition(m, tok)
	case TableParam:
		r = newSerializedParameterDefinition(m, tok)
	case TableProperty:
		r = newSerializedPropertyDefinition(m, tok)
	case TableEvent:
		r = newSerializedEventDefinition(m, tok)
	case TableGenericParam:
		r = newSerializedGenericParameter(m, tok)
	default:
		return nil
	}
	m.placeLocked(tok, r)
	m.loadedRows.Inc()
	return r
}

func (m *Module) placeLocked(tok Token, r registrable) {
	rows := m.tables[tok.Table()]
	for uint32(len(rows)) < tok.RID() {
		rows = append(rows, nil)
	}
	rows[tok.RID()-1] = r
	m.tables[tok.Table()] = rows
	b := r.base()
	b.token = tok
	b.module = m
	b.owned = true
}

// place stores a member built from a row, such as a custom attribute or a
// constant, under its image token and records its owner.
func (m *Module) place(owner, tok Token, r registrable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok.IsNil() {
		rows := m.tables[r.table()]
		tok = NewToken(r.table(), uint32(len(rows)+1))
	}
	m.placeLocked(tok, r)
	m.owners[tok] = owner
	m.loadedRows.Inc()
}

func materializeAll[T Member](m *Module, owner Token, tokens []Token) []T {
	out := make([]T, 0, len(tokens))
	for _, tok := range tokens {
		if t, ok := m.materialize(owner, tok).(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func (m *Module) loadCustomAttributes(owner Member) []*CustomAttribute {
	rows := m.source.CustomAttributes(owner.Token())
	out := make([]*CustomAttribute, 0, len(rows))
	for _, row := range rows {
		ca := NewCustomAttribute(row.Constructor, row.Signature)
		m.place(owner.Token(), row.Token, ca)
		out = append(out, ca)
	}
	return out
}

func (m *Module) loadConstant(owner Token, row *ConstantRow) *Constant {
	if row == nil {
		return nil
	}
	c := NewConstant(row.Type, row.Value)
	m.place(owner, row.Token, c)
	return c
}

func (m *Module) loadImplementationMap(owner Token, row *ImplementationMapRow) *ImplementationMap {
	if row == nil {
		return nil
	}
	im := NewImplementationMap(row.Scope, row.ImportName, row.Attributes)
	m.place(owner, row.Token, im)
	return im
}
