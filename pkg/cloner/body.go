package cloner

import (
	"github.com/pkg/errors"

	"github.com/grafana/clrmeta/pkg/importer"
	"github.com/grafana/clrmeta/pkg/metadata"
)

// cloneBody copies the body of original into clone. Operands are
// translated in a first sub-pass; branch and switch targets, which may
// point forward, are resolved by offset once every instruction exists.
func (op *operation) cloneBody(original, clone *metadata.MethodDefinition) error {
	body := original.Body()
	if body == nil {
		return nil
	}
	items := body.Instructions.Items()
	if op.cfg.MaxInstructions > 0 && len(items) > op.cfg.MaxInstructions {
		return errors.Wrapf(ErrBodyTooLarge, "%d instructions, limit is %d", len(items), op.cfg.MaxInstructions)
	}

	out := metadata.NewMethodBody()
	out.InitLocals = body.InitLocals
	out.MaxStack = body.MaxStack
	if sig := body.LocalsSignature(); sig != nil {
		imported, err := importer.ImportStandAloneSignature(op.imp, sig)
		if err != nil {
			return errors.Wrap(err, "import local variables")
		}
		if err := out.SetLocalsSignature(imported); err != nil {
			return err
		}
	}

	params := clone.Parameters()
	locals := out.LocalVariables()
	for _, ins := range items {
		operand, err := op.cloneOperand(ins, params, locals)
		if err != nil {
			return errors.Wrapf(err, "operand of %s", ins)
		}
		out.Instructions.Append(&metadata.Instruction{Offset: ins.Offset, OpCode: ins.OpCode, Operand: operand})
	}

	cloned := out.Instructions.Items()
	resolve := func(target *metadata.Instruction) (*metadata.Instruction, error) {
		if target == nil || !body.Instructions.Contains(target) {
			return nil, metadata.ErrDanglingInstruction
		}
		t, ok := out.Instructions.GetByOffset(target.Offset)
		if !ok {
			return nil, errors.Wrapf(metadata.ErrDanglingInstruction, "IL_%04X", target.Offset)
		}
		return t, nil
	}
	for i, ins := range items {
		switch x := ins.Operand.(type) {
		case *metadata.Instruction:
			t, err := resolve(x)
			if err != nil {
				return errors.Wrapf(err, "branch target of %s", ins)
			}
			cloned[i].Operand = t
		case []*metadata.Instruction:
			targets := make([]*metadata.Instruction, len(x))
			for j, target := range x {
				t, err := resolve(target)
				if err != nil {
					return errors.Wrapf(err, "switch target %d of %s", j, ins)
				}
				targets[j] = t
			}
			cloned[i].Operand = targets
		}
	}

	for i, h := range body.ExceptionHandlers {
		ch, err := op.cloneExceptionHandler(h, resolve)
		if err != nil {
			return errors.Wrapf(err, "exception handler %d", i)
		}
		out.ExceptionHandlers = append(out.ExceptionHandlers, ch)
	}

	if op.cfg.VerifyBodies {
		if err := out.Verify(clone); err != nil {
			return err
		}
	}
	clone.SetBody(out)
	op.counts[kindBody]++
	return nil
}

func (op *operation) cloneOperand(ins *metadata.Instruction, params []*metadata.Parameter, locals []*metadata.LocalVariable) (any, error) {
	switch x := ins.Operand.(type) {
	case nil:
		return nil, nil
	case *metadata.Instruction, []*metadata.Instruction:
		// Resolved once every instruction has been copied.
		return nil, nil
	case *metadata.LocalVariable:
		if x.Index < 0 || x.Index >= len(locals) {
			return nil, errors.Wrapf(ErrOperandOutOfRange, "local variable %d of %d", x.Index, len(locals))
		}
		return locals[x.Index], nil
	case *metadata.Parameter:
		if x.Index < 0 || x.Index >= len(params) {
			return nil, errors.Wrapf(ErrOperandOutOfRange, "parameter %d of %d", x.Index, len(params))
		}
		return params[x.Index], nil
	case metadata.Member:
		return op.imp.ImportMember(x)
	}
	// Constants and strings are immutable values.
	return ins.Operand, nil
}

func (op *operation) cloneExceptionHandler(h *metadata.ExceptionHandler, resolve func(*metadata.Instruction) (*metadata.Instruction, error)) (*metadata.ExceptionHandler, error) {
	out := &metadata.ExceptionHandler{HandlerType: h.HandlerType}
	// End boundaries may be nil for regions reaching the end of the body.
	boundaries := []struct {
		name     string
		src      *metadata.Instruction
		dst      **metadata.Instruction
		optional bool
	}{
		{"try start", h.TryStart, &out.TryStart, false},
		{"try end", h.TryEnd, &out.TryEnd, true},
		{"handler start", h.HandlerStart, &out.HandlerStart, false},
		{"handler end", h.HandlerEnd, &out.HandlerEnd, true},
		{"filter start", h.FilterStart, &out.FilterStart, h.HandlerType != metadata.HandlerFilter},
	}
	for _, b := range boundaries {
		if b.src == nil {
			if !b.optional {
				return nil, errors.Wrapf(metadata.ErrDanglingInstruction, "missing %s", b.name)
			}
			continue
		}
		t, err := resolve(b.src)
		if err != nil {
			return nil, errors.Wrap(err, b.name)
		}
		*b.dst = t
	}
	if h.ExceptionType != nil {
		t, err := op.imp.ImportType(h.ExceptionType)
		if err != nil {
			return nil, errors.Wrap(err, "catch type")
		}
		out.ExceptionType = t
	}
	return out, nil
}
