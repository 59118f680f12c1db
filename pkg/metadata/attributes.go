package metadata

type TypeAttributes uint32

const (
	TypeNotPublic          TypeAttributes = 0x00000000
	TypePublic             TypeAttributes = 0x00000001
	TypeNestedPublic       TypeAttributes = 0x00000002
	TypeNestedPrivate      TypeAttributes = 0x00000003
	TypeNestedFamily       TypeAttributes = 0x00000004
	TypeNestedAssembly     TypeAttributes = 0x00000005
	TypeVisibilityMask     TypeAttributes = 0x00000007
	TypeSequentialLayout   TypeAttributes = 0x00000008
	TypeExplicitLayout     TypeAttributes = 0x00000010
	TypeLayoutMask         TypeAttributes = 0x00000018
	TypeInterface          TypeAttributes = 0x00000020
	TypeAbstract           TypeAttributes = 0x00000080
	TypeSealed             TypeAttributes = 0x00000100
	TypeSpecialName        TypeAttributes = 0x00000400
	TypeImport             TypeAttributes = 0x00001000
	TypeSerializable       TypeAttributes = 0x00002000
	TypeBeforeFieldInit    TypeAttributes = 0x00100000
	TypeRTSpecialName      TypeAttributes = 0x00000800
	TypeHasSecurity        TypeAttributes = 0x00040000
	TypeUnicodeClass       TypeAttributes = 0x00010000
	TypeAutoClass          TypeAttributes = 0x00020000
	TypeStringFormatMask   TypeAttributes = 0x00030000
	TypeWindowsRuntime     TypeAttributes = 0x00004000
	TypeClassSemanticsMask TypeAttributes = 0x00000020
)

func (a TypeAttributes) Has(flag TypeAttributes) bool { return a&flag == flag }

type FieldAttributes uint16

const (
	FieldPrivate         FieldAttributes = 0x0001
	FieldAssembly        FieldAttributes = 0x0003
	FieldFamily          FieldAttributes = 0x0004
	FieldPublic          FieldAttributes = 0x0006
	FieldAccessMask      FieldAttributes = 0x0007
	FieldStatic          FieldAttributes = 0x0010
	FieldInitOnly        FieldAttributes = 0x0020
	FieldLiteral         FieldAttributes = 0x0040
	FieldSpecialName     FieldAttributes = 0x0200
	FieldPInvokeImpl     FieldAttributes = 0x2000
	FieldRTSpecialName   FieldAttributes = 0x0400
	FieldHasFieldMarshal FieldAttributes = 0x1000
	FieldHasDefault      FieldAttributes = 0x8000
	FieldHasFieldRVA     FieldAttributes = 0x0100
)

func (a FieldAttributes) Has(flag FieldAttributes) bool { return a&flag == flag }

type MethodAttributes uint16

const (
	MethodPrivate       MethodAttributes = 0x0001
	MethodAssembly      MethodAttributes = 0x0003
	MethodFamily        MethodAttributes = 0x0004
	MethodPublic        MethodAttributes = 0x0006
	MethodAccessMask    MethodAttributes = 0x0007
	MethodStatic        MethodAttributes = 0x0010
	MethodFinal         MethodAttributes = 0x0020
	MethodVirtual       MethodAttributes = 0x0040
	MethodHideBySig     MethodAttributes = 0x0080
	MethodNewSlot       MethodAttributes = 0x0100
	MethodAbstract      MethodAttributes = 0x0400
	MethodSpecialName   MethodAttributes = 0x0800
	MethodRTSpecialName MethodAttributes = 0x1000
	MethodPInvokeImpl   MethodAttributes = 0x2000
)

func (a MethodAttributes) Has(flag MethodAttributes) bool { return a&flag == flag }

type MethodImplAttributes uint16

const (
	MethodImplIL             MethodImplAttributes = 0x0000
	MethodImplNative         MethodImplAttributes = 0x0001
	MethodImplRuntime        MethodImplAttributes = 0x0003
	MethodImplCodeTypeMask   MethodImplAttributes = 0x0003
	MethodImplUnmanaged      MethodImplAttributes = 0x0004
	MethodImplNoInlining     MethodImplAttributes = 0x0008
	MethodImplInternalCall   MethodImplAttributes = 0x1000
	MethodImplSynchronized   MethodImplAttributes = 0x0020
	MethodImplPreserveSig    MethodImplAttributes = 0x0080
	MethodImplAggressiveOpts MethodImplAttributes = 0x0200
)

type ParameterAttributes uint16

const (
	ParameterIn              ParameterAttributes = 0x0001
	ParameterOut             ParameterAttributes = 0x0002
	ParameterOptional        ParameterAttributes = 0x0010
	ParameterHasDefault      ParameterAttributes = 0x1000
	ParameterHasFieldMarshal ParameterAttributes = 0x2000
)

type PropertyAttributes uint16

const (
	PropertySpecialName   PropertyAttributes = 0x0200
	PropertyRTSpecialName PropertyAttributes = 0x0400
	PropertyHasDefault    PropertyAttributes = 0x1000
)

type EventAttributes uint16

const (
	EventSpecialName   EventAttributes = 0x0200
	EventRTSpecialName EventAttributes = 0x0400
)

type GenericParameterAttributes uint16

const (
	GenericParameterCovariant                      GenericParameterAttributes = 0x0001
	GenericParameterContravariant                  GenericParameterAttributes = 0x0002
	GenericParameterReferenceTypeConstraint        GenericParameterAttributes = 0x0004
	GenericParameterNotNullableValueTypeConstraint GenericParameterAttributes = 0x0008
	GenericParameterDefaultConstructorConstraint   GenericParameterAttributes = 0x0010
)

type MethodSemanticsAttributes uint16

const (
	SemanticsSetter   MethodSemanticsAttributes = 0x0001
	SemanticsGetter   MethodSemanticsAttributes = 0x0002
	SemanticsOther    MethodSemanticsAttributes = 0x0004
	SemanticsAddOn    MethodSemanticsAttributes = 0x0008
	SemanticsRemoveOn MethodSemanticsAttributes = 0x0010
	SemanticsFire     MethodSemanticsAttributes = 0x0020
)

type ImplementationMapAttributes uint16

const (
	ImplMapNoMangle          ImplementationMapAttributes = 0x0001
	ImplMapCharSetAnsi       ImplementationMapAttributes = 0x0002
	ImplMapCharSetUnicode    ImplementationMapAttributes = 0x0004
	ImplMapSupportsLastError ImplementationMapAttributes = 0x0040
	ImplMapCallConvWinapi    ImplementationMapAttributes = 0x0100
	ImplMapCallConvCdecl     ImplementationMapAttributes = 0x0200
	ImplMapCallConvStdcall   ImplementationMapAttributes = 0x0300
)
