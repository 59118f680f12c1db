package metadata

import (
	"fmt"
	"sort"

	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
)

var (
	ErrDanglingInstruction = errors.New("instruction is not part of the method body")
	ErrForeignVariable     = errors.New("local variable is not declared by the method body")
	ErrForeignParameter    = errors.New("parameter is not declared by the method")
	ErrInvalidOperand      = errors.New("operand does not match the opcode")
)

// Instruction is a single CIL instruction. Branch operands are
// *Instruction, switch operands []*Instruction, variable operands
// *LocalVariable, argument operands *Parameter and token operands Member.
type Instruction struct {
	Offset  int
	OpCode  OpCode
	Operand any
}

func (i *Instruction) Size() int {
	return i.OpCode.Size() + OperandSize(i.OpCode, i.Operand)
}

func (i *Instruction) String() string {
	if i.Operand == nil {
		return fmt.Sprintf("IL_%04X: %s", i.Offset, i.OpCode.Name)
	}
	switch x := i.Operand.(type) {
	case *Instruction:
		return fmt.Sprintf("IL_%04X: %s IL_%04X", i.Offset, i.OpCode.Name, x.Offset)
	case *LocalVariable:
		return fmt.Sprintf("IL_%04X: %s V_%d", i.Offset, i.OpCode.Name, x.Index)
	case *Parameter:
		return fmt.Sprintf("IL_%04X: %s A_%d", i.Offset, i.OpCode.Name, x.Index)
	}
	return fmt.Sprintf("IL_%04X: %s %v", i.Offset, i.OpCode.Name, i.Operand)
}

// InstructionList is the ordered instruction stream of a body. Offsets
// are kept ascending.
type InstructionList struct {
	items []*Instruction
}

func (l *InstructionList) Len() int { return len(l.items) }

func (l *InstructionList) Items() []*Instruction { return l.items }

// Add appends an instruction placed directly after the last one.
func (l *InstructionList) Add(op OpCode, operand any) *Instruction {
	ins := &Instruction{OpCode: op, Operand: operand}
	if n := len(l.items); n > 0 {
		last := l.items[n-1]
		ins.Offset = last.Offset + last.Size()
	}
	l.items = append(l.items, ins)
	return ins
}

// Append adds an instruction keeping its offset.
func (l *InstructionList) Append(ins *Instruction) {
	l.items = append(l.items, ins)
}

// CalculateOffsets recomputes offsets from the instruction sizes.
func (l *InstructionList) CalculateOffsets() {
	offset := 0
	for _, ins := range l.items {
		ins.Offset = offset
		offset += ins.Size()
	}
}

// CodeSize returns the size of the encoded instruction stream.
func (l *InstructionList) CodeSize() int {
	if len(l.items) == 0 {
		return 0
	}
	last := l.items[len(l.items)-1]
	return last.Offset + last.Size()
}

// GetByOffset returns the instruction starting at offset.
func (l *InstructionList) GetByOffset(offset int) (*Instruction, bool) {
	i := sort.Search(len(l.items), func(i int) bool { return l.items[i].Offset >= offset })
	if i < len(l.items) && l.items[i].Offset == offset {
		return l.items[i], true
	}
	return nil, false
}

// Contains reports whether ins is part of the list.
func (l *InstructionList) Contains(ins *Instruction) bool {
	found, ok := l.GetByOffset(ins.Offset)
	return ok && found == ins
}

type ExceptionHandlerType uint8

const (
	HandlerException ExceptionHandlerType = 0
	HandlerFilter    ExceptionHandlerType = 1
	HandlerFinally   ExceptionHandlerType = 2
	HandlerFault     ExceptionHandlerType = 4
)

// ExceptionHandler is a protected region and its handler. End boundaries
// reference the first instruction after the region; nil means the end of
// the body.
type ExceptionHandler struct {
	HandlerType   ExceptionHandlerType
	TryStart      *Instruction
	TryEnd        *Instruction
	HandlerStart  *Instruction
	HandlerEnd    *Instruction
	FilterStart   *Instruction
	ExceptionType TypeDefOrRef
}

// LocalVariable is a slot declared by the locals signature of a body.
type LocalVariable struct {
	Index int
	Type  TypeSignature
}

// MethodBody is the CIL implementation of a method.
type MethodBody struct {
	InitLocals        bool
	MaxStack          uint16
	Instructions      InstructionList
	ExceptionHandlers []*ExceptionHandler

	localsSignature *StandAloneSignature
	locals          []*LocalVariable
}

func NewMethodBody() *MethodBody {
	return &MethodBody{InitLocals: true, MaxStack: 8}
}

func (b *MethodBody) LocalsSignature() *StandAloneSignature { return b.localsSignature }

// SetLocalsSignature replaces the locals signature and rebuilds the local
// variable slots from it.
func (b *MethodBody) SetLocalsSignature(sig *StandAloneSignature) error {
	b.localsSignature = sig
	b.locals = nil
	if sig == nil {
		return nil
	}
	lv := sig.LocalVariables()
	if lv == nil {
		return errors.Wrap(ErrMalformedSignature, "standalone signature does not declare local variables")
	}
	b.locals = make([]*LocalVariable, len(lv.VariableTypes))
	for i, t := range lv.VariableTypes {
		b.locals[i] = &LocalVariable{Index: i, Type: t}
	}
	return nil
}

func (b *MethodBody) LocalVariables() []*LocalVariable { return b.locals }

// Verify checks that every branch target, switch target, handler boundary
// and variable operand belongs to this body, and that argument operands
// belong to owner when it is given.
func (b *MethodBody) Verify(owner *MethodDefinition) error {
	var errs multierror.MultiError
	var params []*Parameter
	if owner != nil {
		params = owner.Parameters()
	}
	for _, ins := range b.Instructions.Items() {
		switch ins.OpCode.OperandType {
		case ShortInlineBrTarget, InlineBrTarget:
			target, ok := ins.Operand.(*Instruction)
			if !ok {
				errs.Add(errors.Wrapf(ErrInvalidOperand, "%s", ins))
			} else if !b.Instructions.Contains(target) {
				errs.Add(errors.Wrapf(ErrDanglingInstruction, "branch target of %s", ins))
			}
		case InlineSwitch:
			targets, ok := ins.Operand.([]*Instruction)
			if !ok {
				errs.Add(errors.Wrapf(ErrInvalidOperand, "%s", ins))
				continue
			}
			for i, t := range targets {
				if t == nil || !b.Instructions.Contains(t) {
					errs.Add(errors.Wrapf(ErrDanglingInstruction, "switch target %d of %s", i, ins))
				}
			}
		case ShortInlineVar, InlineVar:
			v, ok := ins.Operand.(*LocalVariable)
			if !ok {
				errs.Add(errors.Wrapf(ErrInvalidOperand, "%s", ins))
			} else if v.Index < 0 || v.Index >= len(b.locals) || b.locals[v.Index] != v {
				errs.Add(errors.Wrapf(ErrForeignVariable, "%s", ins))
			}
		case ShortInlineArgument, InlineArgument:
			p, ok := ins.Operand.(*Parameter)
			if !ok {
				errs.Add(errors.Wrapf(ErrInvalidOperand, "%s", ins))
			} else if owner != nil && (p.Index < 0 || p.Index >= len(params) || params[p.Index] != p) {
				errs.Add(errors.Wrapf(ErrForeignParameter, "%s", ins))
			}
		}
	}
	for i, h := range b.ExceptionHandlers {
		for _, boundary := range []*Instruction{h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd, h.FilterStart} {
			if boundary != nil && !b.Instructions.Contains(boundary) {
				errs.Add(errors.Wrapf(ErrDanglingInstruction, "boundary of exception handler %d", i))
			}
		}
		if h.TryStart == nil || h.HandlerStart == nil {
			errs.Add(errors.Wrapf(ErrDanglingInstruction, "exception handler %d has no start", i))
		}
	}
	return errs.Err()
}
