package metadata

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Module is the root of a metadata graph. It keeps the metadata tables:
// every registered member has a token whose RID is its row in the table,
// and every owned member has an entry in the owner table. Members keep a
// handle to their module and look up owners through it.
type Module struct {
	name     string
	mvid     uuid.UUID
	assembly *AssemblyIdentity
	source   Source

	mu     sync.Mutex
	tables [tableCount][]Member
	owners map[Token]Token

	types            lazy[[]*TypeDefinition]
	customAttributes lazy[[]*CustomAttribute]

	loadedRows atomic.Int64
}

// NewModule creates an empty module. A nil assembly identity creates a
// module that is not the manifest module of an assembly.
func NewModule(name string, assembly *AssemblyIdentity) *Module {
	m := &Module{
		name:     name,
		mvid:     uuid.New(),
		assembly: assembly,
		owners:   make(map[Token]Token),
	}
	m.tables[TableModule] = []Member{m}
	m.types.set(nil)
	m.customAttributes.set(nil)
	return m
}

// OpenModule creates a module whose definitions are loaded from src on
// first access.
func OpenModule(name string, mvid uuid.UUID, assembly *AssemblyIdentity, src Source) *Module {
	m := &Module{
		name:     name,
		mvid:     mvid,
		assembly: assembly,
		source:   src,
		owners:   make(map[Token]Token),
	}
	m.tables[TableModule] = []Member{m}
	for t := TableIndex(1); t < tableCount; t++ {
		if n := src.RowCount(t); n > 0 {
			m.tables[t] = make([]Member, n)
		}
	}
	m.types.init(func() []*TypeDefinition {
		tokens := src.TopLevelTypes()
		types := make([]*TypeDefinition, 0, len(tokens))
		for _, tok := range tokens {
			if t, ok := m.materialize(Token(0), tok).(*TypeDefinition); ok {
				types = append(types, t)
			}
		}
		return types
	})
	m.customAttributes.init(func() []*CustomAttribute {
		return m.loadCustomAttributes(m)
	})
	return m
}

func (m *Module) Token() Token { return NewToken(TableModule, 1) }

func (m *Module) Module() *Module { return m }

func (m *Module) Name() string { return m.name }

func (m *Module) Mvid() uuid.UUID { return m.mvid }

func (m *Module) Assembly() *AssemblyIdentity { return m.assembly }

func (m *Module) isResolutionScope() {}

func (m *Module) isMemberRefParent() {}

// LoadedRows returns the number of rows materialized from the source.
func (m *Module) LoadedRows() int64 { return m.loadedRows.Load() }

func (m *Module) CustomAttributes() []*CustomAttribute { return m.customAttributes.get() }

func (m *Module) AddCustomAttribute(ca *CustomAttribute) error {
	if ca.owned {
		return errors.Wrap(ErrAlreadyOwned, "custom attribute")
	}
	cas := m.customAttributes.get()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registerTreeLocked(m.Token(), ca); err != nil {
		return err
	}
	ca.owned = true
	m.customAttributes.set(append(cas, ca))
	return nil
}

// TopLevelTypes returns the types that are not nested in another type.
func (m *Module) TopLevelTypes() []*TypeDefinition { return m.types.get() }

// AddType registers t and everything it owns and appends it to the top
// level types.
func (m *Module) AddType(t *TypeDefinition) error {
	if t.owned {
		return errors.Wrapf(ErrAlreadyOwned, "type %s", t.FullName())
	}
	types := m.types.get()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registerTreeLocked(Token(0), t); err != nil {
		return err
	}
	t.owned = true
	m.types.set(append(types, t))
	return nil
}

// AllTypes returns every type definition of the module, nested types
// following their enclosing type.
func (m *Module) AllTypes() []*TypeDefinition {
	var out []*TypeDefinition
	var walk func([]*TypeDefinition)
	walk = func(types []*TypeDefinition) {
		for _, t := range types {
			out = append(out, t)
			walk(t.NestedTypes())
		}
	}
	walk(m.TopLevelTypes())
	return out
}

// Register assigns a fresh token to member and records it in the table.
// Members the registered member owns are registered with it. Registering
// a member twice returns its existing token.
func (m *Module) Register(member Member) (Token, error) {
	r, ok := member.(registrable)
	if !ok {
		return 0, errors.Wrapf(ErrNotRegistrable, "%T", member)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registerTreeLocked(Token(0), r); err != nil {
		return 0, err
	}
	return r.Token(), nil
}

// RegisterAt records member under a specific token. It is used by readers
// that preserve the row layout of an existing image.
func (m *Module) RegisterAt(tok Token, member Member) error {
	r, ok := member.(registrable)
	if !ok {
		return errors.Wrapf(ErrNotRegistrable, "%T", member)
	}
	if tok.IsNil() || tok.Table() != r.table() {
		return errors.Wrapf(ErrInvalidToken, "%s for %T", tok, member)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := r.base()
	if b.module != nil {
		if b.module == m && b.token == tok {
			return nil
		}
		return errors.Wrapf(ErrForeignMember, "%T %s", member, b.token)
	}
	rows := m.tables[tok.Table()]
	for uint32(len(rows)) < tok.RID() {
		rows = append(rows, nil)
	}
	if cur := rows[tok.RID()-1]; cur != nil {
		return errors.Wrapf(ErrTokenInUse, "%s", tok)
	}
	rows[tok.RID()-1] = member
	m.tables[tok.Table()] = rows
	b.token = tok
	b.module = m
	return nil
}

func (m *Module) registerChild(owner, child registrable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerTreeLocked(owner.Token(), child)
}

func (m *Module) registerTreeLocked(owner Token, r registrable) error {
	b := r.base()
	switch b.module {
	case nil:
		table := r.table()
		rows := m.tables[table]
		if len(rows) >= maxRID {
			return errors.Errorf("table %s is full", table)
		}
		m.tables[table] = append(rows, r)
		b.token = NewToken(table, uint32(len(rows)+1))
		b.module = m
	case m:
		if owner.IsNil() {
			return nil
		}
	default:
		return errors.Wrapf(ErrForeignMember, "%T %s", r, b.token)
	}
	if !owner.IsNil() {
		m.owners[b.token] = owner
	}
	for _, c := range r.children() {
		cr, ok := c.(registrable)
		if !ok {
			continue
		}
		if err := m.registerTreeLocked(b.token, cr); err != nil {
			return err
		}
	}
	return nil
}

// LookupMember returns the member registered under tok, loading it from
// the source when the module was opened from one.
func (m *Module) LookupMember(tok Token) (Member, bool) {
	if tok == m.Token() {
		return m, true
	}
	m.mu.Lock()
	rows := m.tables[tok.Table()]
	var member Member
	if rid := tok.RID(); rid > 0 && int(rid) <= len(rows) {
		member = rows[rid-1]
	}
	m.mu.Unlock()
	if member != nil {
		return member, true
	}
	if m.source == nil {
		return nil, false
	}
	member = m.materialize(Token(0), tok)
	return member, member != nil
}

// Members returns the registered or already loaded members of a table in
// row order.
func (m *Module) Members(table TableIndex) []Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Member, 0, len(m.tables[table]))
	for _, member := range m.tables[table] {
		if member != nil {
			out = append(out, member)
		}
	}
	return out
}

// Contains reports whether member is registered in this module.
func (m *Module) Contains(member Member) bool {
	if member == nil || member.Module() != m {
		return false
	}
	if member == Member(m) {
		return true
	}
	tok := member.Token()
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[tok.Table()]
	rid := tok.RID()
	return rid > 0 && int(rid) <= len(rows) && rows[rid-1] == member
}

// Owner returns the member that owns member.
func (m *Module) Owner(member Member) (Member, bool) {
	if member == nil || member.Module() != m {
		return nil, false
	}
	m.mu.Lock()
	owner, ok := m.owners[member.Token()]
	m.mu.Unlock()
	if !ok && m.source != nil {
		owner, ok = m.source.Owner(member.Token())
	}
	if !ok {
		return nil, false
	}
	return m.LookupMember(owner)
}

// DeclaringType returns the type that declares member. Top-level types
// and members not owned by a type report false.
func (m *Module) DeclaringType(member Member) (*TypeDefinition, bool) {
	owner, ok := m.Owner(member)
	if !ok {
		return nil, false
	}
	t, ok := owner.(*TypeDefinition)
	return t, ok
}

// AssemblyReferences returns the registered assembly references.
func (m *Module) AssemblyReferences() []*AssemblyReference {
	return membersOf[*AssemblyReference](m, TableAssemblyRef)
}

// ModuleReferences returns the registered module references.
func (m *Module) ModuleReferences() []*ModuleReference {
	return membersOf[*ModuleReference](m, TableModuleRef)
}

func membersOf[T Member](m *Module, table TableIndex) []T {
	var out []T
	for _, member := range m.Members(table) {
		if t, ok := member.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Checkpoint captures the table sizes so that a failed multi-step
// mutation can be undone with Rollback.
type Checkpoint struct {
	rows  [tableCount]int
	types int
	cas   int
}

func (m *Module) Checkpoint() Checkpoint {
	var cp Checkpoint
	cp.types = len(m.TopLevelTypes())
	cp.cas = len(m.CustomAttributes())
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tables {
		cp.rows[i] = len(m.tables[i])
	}
	return cp
}

// Rollback removes every member registered after cp was taken along with
// their owner entries, and truncates the top-level types. Members that
// were removed lose their module handle.
func (m *Module) Rollback(cp Checkpoint) {
	if types := m.TopLevelTypes(); len(types) > cp.types {
		for _, t := range types[cp.types:] {
			t.owned = false
		}
		m.types.set(types[:cp.types])
	}
	if cas := m.CustomAttributes(); len(cas) > cp.cas {
		m.customAttributes.set(cas[:cp.cas])
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tables {
		rows := m.tables[i]
		if len(rows) <= cp.rows[i] {
			continue
		}
		for _, member := range rows[cp.rows[i]:] {
			r, ok := member.(registrable)
			if !ok {
				continue
			}
			b := r.base()
			delete(m.owners, b.token)
			b.module = nil
			b.token = NewToken(b.token.Table(), 0)
		}
		m.tables[i] = rows[:cp.rows[i]]
	}
}
