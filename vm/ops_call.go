package vm

import (
	"fmt"

	"github.com/wudi/harp/bytecode"
	"github.com/wudi/harp/codeobj"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

// --- calls (190-199) ---

func (vm *Interpreter) execCall(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_CALL_SUB:
		name, err := f.str(inst.Op1, opcodes.IS_STR)
		if err != nil {
			return stepResult{}, err
		}
		code, err := vm.Globals.MustLookupCode(name)
		if err != nil {
			return stepResult{}, err
		}
		return vm.dispatchCall(f, inst, code)
	case opcodes.OP_CALL_BUILTIN:
		// Builtins are registered package-qualified (runtime/builtins.go
		// installs them under "main::"); CALL_BUILTIN lets the compiler
		// emit the bare name and have the interpreter qualify it, so a
		// parser never needs to know the builtin/user-sub namespace split.
		name, err := f.str(inst.Op1, opcodes.IS_STR)
		if err != nil {
			return stepResult{}, err
		}
		code, err := vm.Globals.MustLookupCode("main::" + name)
		if err != nil {
			return stepResult{}, err
		}
		return vm.dispatchCall(f, inst, code)
	case opcodes.OP_CALL_METHOD:
		return vm.execCallMethod(f, inst)
	default:
		return stepResult{}, fmt.Errorf("unhandled call opcode %s", inst.Opcode)
	}
}

// dispatchCall applies code (a *codeobj.Instance) to the argument list
// carried in Op2, in scalar calling context (spec.md §4.5's default for
// a call appearing as an ordinary expression — compileCall wraps the
// result with SCALAR_TO_LIST itself when list context is required, so
// the interpreter need not thread context through the call site).
func (vm *Interpreter) dispatchCall(f *frame, inst opcodes.Instruction, code interface{}) (stepResult, error) {
	inst2, ok := code.(*codeobj.Instance)
	if !ok {
		return stepResult{}, fmt.Errorf("call target is not a code object (%T)", code)
	}
	argsVal, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	results, err := inst2.Apply(bundleElems(argsVal), codeobj.CtxScalar)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, firstOrUndef(results)))
}

func firstOrUndef(vs []*values.Value) *values.Value {
	if len(vs) == 0 {
		return values.Undef()
	}
	return vs[0]
}

// execCallMethod resolves Op2's [invocant, argsList] bundle (the
// compiler's compileMethodCall convention) and dispatches to
// invocant::method — the narrow method-resolution stand-in spec.md §6
// leaves to an external collaborator; this core only supports the
// simplest single-package-name invocant shape (no @ISA walk, no MRO —
// see DESIGN.md's dropped OOP-machinery entry).
func (vm *Interpreter) execCallMethod(f *frame, inst opcodes.Instruction) (stepResult, error) {
	method, err := f.str(inst.Op1, opcodes.IS_STR)
	if err != nil {
		return stepResult{}, err
	}
	bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	invocant := bundleAt(bundle, 0)
	argsList := bundleAt(bundle, 1)

	qualified := invocant.ToString() + "::" + method
	code, err := vm.Globals.MustLookupCode(qualified)
	if err != nil {
		return stepResult{}, err
	}
	inst2, ok := code.(*codeobj.Instance)
	if !ok {
		return stepResult{}, fmt.Errorf("method target is not a code object (%T)", code)
	}
	args := append([]*values.Value{invocant}, bundleElems(argsList)...)
	results, err := inst2.Apply(args, codeobj.CtxScalar)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, firstOrUndef(results)))
}

// --- control-flow markers (200-209) ---

func (vm *Interpreter) execControlFlowMarker(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_CREATE_LAST:
		return f.createMarker(inst, values.CFLast)
	case opcodes.OP_CREATE_NEXT:
		return f.createMarker(inst, values.CFNext)
	case opcodes.OP_CREATE_REDO:
		return f.createMarker(inst, values.CFRedo)
	case opcodes.OP_CREATE_GOTO:
		sub, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		cf := &values.ControlFlow{Kind: values.CFGoto, Label: sub.ToString(), Source: f.chunk.SourceName, Line: f.chunk.LineAt(f.pc)}
		return advance2(f.setReg(inst.Result, values.NewControlFlow(cf)))
	case opcodes.OP_IS_CONTROL_FLOW:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, boolVal(v.IsControlFlow())))
	case opcodes.OP_GET_CONTROL_FLOW_TYPE:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if !v.IsControlFlow() {
			return advance2(f.setReg(inst.Result, values.Undef()))
		}
		return advance2(f.setReg(inst.Result, values.NewString(controlFlowName(v.CF.Kind))))
	default:
		return stepResult{}, fmt.Errorf("unhandled control-flow-marker opcode %s", inst.Opcode)
	}
}

func (f *frame) createMarker(inst opcodes.Instruction, kind values.ControlFlowKind) (stepResult, error) {
	label, err := f.str(inst.Op1, opcodes.IS_STR)
	if err != nil {
		return stepResult{}, err
	}
	cf := &values.ControlFlow{Kind: kind, Label: label, Source: f.chunk.SourceName, Line: f.chunk.LineAt(f.pc)}
	return advance2(f.setReg(inst.Result, values.NewControlFlow(cf)))
}

func boolVal(b bool) *values.Value {
	if b {
		return values.NewInt(1)
	}
	return values.NewString("")
}

func controlFlowName(k values.ControlFlowKind) string {
	switch k {
	case values.CFLast:
		return "last"
	case values.CFNext:
		return "next"
	case values.CFRedo:
		return "redo"
	case values.CFGoto:
		return "goto"
	case values.CFTailCall:
		return "tailcall"
	default:
		return "unknown"
	}
}

// --- references (210-219) ---

func (vm *Interpreter) execReference(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_CREATE_REF:
		target, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, values.NewRef(target)))
	case opcodes.OP_DEREF, opcodes.OP_DEREF_ARRAY, opcodes.OP_DEREF_HASH:
		ref, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if ref.Kind != values.KindRef || ref.Ref == nil {
			return stepResult{}, fmt.Errorf("Can't use value as a reference")
		}
		return advance2(f.setReg(inst.Result, ref.Ref))
	case opcodes.OP_GET_TYPE:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, values.NewString(kindName(v.Kind))))
	default:
		return stepResult{}, fmt.Errorf("unhandled reference opcode %s", inst.Opcode)
	}
}

func kindName(k values.Kind) string {
	switch k {
	case values.KindUndef:
		return ""
	case values.KindInt, values.KindFloat, values.KindString:
		return "SCALAR"
	case values.KindRef:
		return "REF"
	case values.KindArray:
		return "ARRAY"
	case values.KindHash:
		return "HASH"
	case values.KindCode:
		return "CODE"
	case values.KindGlob:
		return "GLOB"
	case values.KindControlFlow:
		return "CONTROLFLOW"
	default:
		return "UNKNOWN"
	}
}

// --- closures (300-309) ---

func (vm *Interpreter) execClosure(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_CREATE_CLOSURE:
		tmplVal, err := f.read(inst.Op1, opcodes.IS_CONST)
		if err != nil {
			return stepResult{}, err
		}
		template, ok := tmplVal.Code.(*bytecode.Chunk)
		if !ok {
			return stepResult{}, fmt.Errorf("closure template constant is not a chunk (%T)", tmplVal.Code)
		}
		capturesVal, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		closure := codeobj.NewClosure(template, bundleElems(capturesVal))
		return advance2(f.setReg(inst.Result, values.NewCode(closure)))
	case opcodes.OP_STORE_GLOBAL_CODE:
		name, err := f.str(inst.Op1, opcodes.IS_STR)
		if err != nil {
			return stepResult{}, err
		}
		v, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		vm.Globals.RegisterCode(name, v.Code)
		return advance()
	case opcodes.OP_SET_SCALAR:
		target, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		v, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		*target = *v
		return advance()
	default:
		return stepResult{}, fmt.Errorf("unhandled closure opcode %s", inst.Opcode)
	}
}
