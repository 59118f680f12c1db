package metadata

// OperandType describes the encoding of an instruction operand.
type OperandType uint8

const (
	InlineNone OperandType = iota
	ShortInlineBrTarget
	InlineBrTarget
	InlineSwitch
	ShortInlineI
	InlineI
	InlineI8
	ShortInlineR
	InlineR
	InlineString
	InlineField
	InlineMethod
	InlineType
	InlineTok
	InlineSig
	ShortInlineVar
	InlineVar
	ShortInlineArgument
	InlineArgument
)

// OpCode is a CIL operation. Two-byte opcodes have 0xFE as their high
// byte.
type OpCode struct {
	Name        string
	Value       uint16
	OperandType OperandType
}

// Size returns the encoded size of the opcode itself.
func (op OpCode) Size() int {
	if op.Value > 0xFF {
		return 2
	}
	return 1
}

func (op OpCode) String() string { return op.Name }

func (op OpCode) IsBranch() bool {
	return op.OperandType == ShortInlineBrTarget || op.OperandType == InlineBrTarget
}

var (
	Nop         = OpCode{"nop", 0x00, InlineNone}
	Ldarg0      = OpCode{"ldarg.0", 0x02, InlineNone}
	Ldarg1      = OpCode{"ldarg.1", 0x03, InlineNone}
	Ldarg2      = OpCode{"ldarg.2", 0x04, InlineNone}
	Ldarg3      = OpCode{"ldarg.3", 0x05, InlineNone}
	Ldloc0      = OpCode{"ldloc.0", 0x06, InlineNone}
	Ldloc1      = OpCode{"ldloc.1", 0x07, InlineNone}
	Ldloc2      = OpCode{"ldloc.2", 0x08, InlineNone}
	Ldloc3      = OpCode{"ldloc.3", 0x09, InlineNone}
	Stloc0      = OpCode{"stloc.0", 0x0A, InlineNone}
	Stloc1      = OpCode{"stloc.1", 0x0B, InlineNone}
	Stloc2      = OpCode{"stloc.2", 0x0C, InlineNone}
	Stloc3      = OpCode{"stloc.3", 0x0D, InlineNone}
	LdargS      = OpCode{"ldarg.s", 0x0E, ShortInlineArgument}
	LdargaS     = OpCode{"ldarga.s", 0x0F, ShortInlineArgument}
	StargS      = OpCode{"starg.s", 0x10, ShortInlineArgument}
	LdlocS      = OpCode{"ldloc.s", 0x11, ShortInlineVar}
	LdlocaS     = OpCode{"ldloca.s", 0x12, ShortInlineVar}
	StlocS      = OpCode{"stloc.s", 0x13, ShortInlineVar}
	Ldnull      = OpCode{"ldnull", 0x14, InlineNone}
	LdcI4M1     = OpCode{"ldc.i4.m1", 0x15, InlineNone}
	LdcI40      = OpCode{"ldc.i4.0", 0x16, InlineNone}
	LdcI41      = OpCode{"ldc.i4.1", 0x17, InlineNone}
	LdcI4S      = OpCode{"ldc.i4.s", 0x1F, ShortInlineI}
	LdcI4       = OpCode{"ldc.i4", 0x20, InlineI}
	LdcI8       = OpCode{"ldc.i8", 0x21, InlineI8}
	LdcR4       = OpCode{"ldc.r4", 0x22, ShortInlineR}
	LdcR8       = OpCode{"ldc.r8", 0x23, InlineR}
	Dup         = OpCode{"dup", 0x25, InlineNone}
	Pop         = OpCode{"pop", 0x26, InlineNone}
	Call        = OpCode{"call", 0x28, InlineMethod}
	Calli       = OpCode{"calli", 0x29, InlineSig}
	Ret         = OpCode{"ret", 0x2A, InlineNone}
	BrS         = OpCode{"br.s", 0x2B, ShortInlineBrTarget}
	BrfalseS    = OpCode{"brfalse.s", 0x2C, ShortInlineBrTarget}
	BrtrueS     = OpCode{"brtrue.s", 0x2D, ShortInlineBrTarget}
	BeqS        = OpCode{"beq.s", 0x2E, ShortInlineBrTarget}
	BltS        = OpCode{"blt.s", 0x32, ShortInlineBrTarget}
	Br          = OpCode{"br", 0x38, InlineBrTarget}
	Brfalse     = OpCode{"brfalse", 0x39, InlineBrTarget}
	Brtrue      = OpCode{"brtrue", 0x3A, InlineBrTarget}
	Beq         = OpCode{"beq", 0x3B, InlineBrTarget}
	Blt         = OpCode{"blt", 0x3F, InlineBrTarget}
	Switch      = OpCode{"switch", 0x45, InlineSwitch}
	Add         = OpCode{"add", 0x58, InlineNone}
	Sub         = OpCode{"sub", 0x59, InlineNone}
	Mul         = OpCode{"mul", 0x5A, InlineNone}
	ConvI4      = OpCode{"conv.i4", 0x69, InlineNone}
	Callvirt    = OpCode{"callvirt", 0x6F, InlineMethod}
	Ldobj       = OpCode{"ldobj", 0x71, InlineType}
	Ldstr       = OpCode{"ldstr", 0x72, InlineString}
	Newobj      = OpCode{"newobj", 0x73, InlineMethod}
	Castclass   = OpCode{"castclass", 0x74, InlineType}
	Isinst      = OpCode{"isinst", 0x75, InlineType}
	Unbox       = OpCode{"unbox", 0x79, InlineType}
	Throw       = OpCode{"throw", 0x7A, InlineNone}
	Ldfld       = OpCode{"ldfld", 0x7B, InlineField}
	Ldflda      = OpCode{"ldflda", 0x7C, InlineField}
	Stfld       = OpCode{"stfld", 0x7D, InlineField}
	Ldsfld      = OpCode{"ldsfld", 0x7E, InlineField}
	Ldsflda     = OpCode{"ldsflda", 0x7F, InlineField}
	Stsfld      = OpCode{"stsfld", 0x80, InlineField}
	Box         = OpCode{"box", 0x8C, InlineType}
	Newarr      = OpCode{"newarr", 0x8D, InlineType}
	Ldlen       = OpCode{"ldlen", 0x8E, InlineNone}
	Ldelema     = OpCode{"ldelema", 0x8F, InlineType}
	UnboxAny    = OpCode{"unbox.any", 0xA5, InlineType}
	Ldtoken     = OpCode{"ldtoken", 0xD0, InlineTok}
	Endfinally  = OpCode{"endfinally", 0xDC, InlineNone}
	Leave       = OpCode{"leave", 0xDD, InlineBrTarget}
	LeaveS      = OpCode{"leave.s", 0xDE, ShortInlineBrTarget}
	Ceq         = OpCode{"ceq", 0xFE01, InlineNone}
	Cgt         = OpCode{"cgt", 0xFE02, InlineNone}
	Clt         = OpCode{"clt", 0xFE04, InlineNone}
	Ldftn       = OpCode{"ldftn", 0xFE06, InlineMethod}
	Ldvirtftn   = OpCode{"ldvirtftn", 0xFE07, InlineMethod}
	Ldarg       = OpCode{"ldarg", 0xFE09, InlineArgument}
	Ldarga      = OpCode{"ldarga", 0xFE0A, InlineArgument}
	Starg       = OpCode{"starg", 0xFE0B, InlineArgument}
	Ldloc       = OpCode{"ldloc", 0xFE0C, InlineVar}
	Ldloca      = OpCode{"ldloca", 0xFE0D, InlineVar}
	Stloc       = OpCode{"stloc", 0xFE0E, InlineVar}
	Endfilter   = OpCode{"endfilter", 0xFE11, InlineNone}
	Initobj     = OpCode{"initobj", 0xFE15, InlineType}
	Rethrow     = OpCode{"rethrow", 0xFE1A, InlineNone}
	Sizeof      = OpCode{"sizeof", 0xFE1C, InlineType}
	Constrained = OpCode{"constrained.", 0xFE16, InlineType}
)

// OperandSize returns the encoded operand size for op given the operand.
// Switch operands depend on the number of targets.
func OperandSize(op OpCode, operand any) int {
	switch op.OperandType {
	case InlineNone:
		return 0
	case ShortInlineBrTarget, ShortInlineI, ShortInlineVar, ShortInlineArgument:
		return 1
	case InlineVar, InlineArgument:
		return 2
	case InlineI8, InlineR:
		return 8
	case InlineSwitch:
		targets, _ := operand.([]*Instruction)
		return 4 + 4*len(targets)
	default:
		return 4
	}
}
