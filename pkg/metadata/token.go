package metadata

import "fmt"

// TableIndex identifies a metadata table. The values match the table
// numbers of ECMA-335 II.22.
type TableIndex uint8

const (
	TableModule                 TableIndex = 0x00
	TableTypeRef                TableIndex = 0x01
	TableTypeDef                TableIndex = 0x02
	TableField                  TableIndex = 0x04
	TableMethod                 TableIndex = 0x06
	TableParam                  TableIndex = 0x08
	TableInterfaceImpl          TableIndex = 0x09
	TableMemberRef              TableIndex = 0x0A
	TableConstant               TableIndex = 0x0B
	TableCustomAttribute        TableIndex = 0x0C
	TableStandAloneSig          TableIndex = 0x11
	TableEvent                  TableIndex = 0x14
	TableProperty               TableIndex = 0x17
	TableModuleRef              TableIndex = 0x1A
	TableTypeSpec               TableIndex = 0x1B
	TableImplMap                TableIndex = 0x1C
	TableAssembly               TableIndex = 0x20
	TableAssemblyRef            TableIndex = 0x23
	TableGenericParam           TableIndex = 0x2A
	TableMethodSpec             TableIndex = 0x2B
	TableGenericParamConstraint TableIndex = 0x2C

	tableCount = 0x2D
)

var tableNames = map[TableIndex]string{
	TableModule:                 "Module",
	TableTypeRef:                "TypeRef",
	TableTypeDef:                "TypeDef",
	TableField:                  "Field",
	TableMethod:                 "Method",
	TableParam:                  "Param",
	TableInterfaceImpl:          "InterfaceImpl",
	TableMemberRef:              "MemberRef",
	TableConstant:               "Constant",
	TableCustomAttribute:        "CustomAttribute",
	TableStandAloneSig:          "StandAloneSig",
	TableEvent:                  "Event",
	TableProperty:               "Property",
	TableModuleRef:              "ModuleRef",
	TableTypeSpec:               "TypeSpec",
	TableImplMap:                "ImplMap",
	TableAssembly:               "Assembly",
	TableAssemblyRef:            "AssemblyRef",
	TableGenericParam:           "GenericParam",
	TableMethodSpec:             "MethodSpec",
	TableGenericParamConstraint: "GenericParamConstraint",
}

func (t TableIndex) String() string {
	if n, ok := tableNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Table(%#02x)", uint8(t))
}

// Token is a 32-bit metadata token: the table index in the top byte and
// the 1-based row identifier in the low 24 bits. A zero RID means the
// member has not been assigned a row.
type Token uint32

const maxRID = 0x00FFFFFF

func NewToken(table TableIndex, rid uint32) Token {
	return Token(uint32(table)<<24 | rid&maxRID)
}

func (t Token) Table() TableIndex { return TableIndex(t >> 24) }
func (t Token) RID() uint32       { return uint32(t) & maxRID }

// IsNil reports whether the token does not reference any row.
func (t Token) IsNil() bool { return t.RID() == 0 }

func (t Token) String() string {
	return fmt.Sprintf("%08X", uint32(t))
}
