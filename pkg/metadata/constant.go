package metadata

// Constant is the default value of a field, parameter or property,
// stored as its element type and raw little-endian bytes.
type Constant struct {
	entity

	Type  ElementType
	Value []byte
}

func NewConstant(t ElementType, value []byte) *Constant {
	return &Constant{Type: t, Value: value}
}

func (c *Constant) table() TableIndex { return TableConstant }

// ImplementationMap describes the native export a P/Invoke method or
// field forwards to.
type ImplementationMap struct {
	entity

	Scope      *ModuleReference
	ImportName string
	Attributes ImplementationMapAttributes
}

func NewImplementationMap(scope *ModuleReference, importName string, attributes ImplementationMapAttributes) *ImplementationMap {
	return &ImplementationMap{Scope: scope, ImportName: importName, Attributes: attributes}
}

func (im *ImplementationMap) table() TableIndex { return TableImplMap }
