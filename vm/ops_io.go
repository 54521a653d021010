package vm

import (
	"fmt"
	"math/rand"

	"github.com/wudi/harp/codeobj"
	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
)

// --- I/O (220-229) ---

func (vm *Interpreter) execIO(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_PRINT, opcodes.OP_SAY:
		list, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		fh, err := f.optionalOperand(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		var v *values.Value
		if inst.Opcode == opcodes.OP_SAY {
			v, err = runtime.Say(bundleElems(list), fh)
		} else {
			v, err = runtime.Print(bundleElems(list), fh)
		}
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	case opcodes.OP_SELECT:
		fh, err := f.optionalOperand(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		v, err := runtime.Select(fh)
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	case opcodes.OP_OPEN:
		bundle, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		v, err := runtime.Open(bundleAt(bundle, 0).ToString(), bundleAt(bundle, 1).ToString())
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	case opcodes.OP_READLINE:
		fh, err := f.optionalOperand(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		v, err := runtime.Readline(fh)
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	default:
		return stepResult{}, fmt.Errorf("unhandled I/O opcode %s", inst.Opcode)
	}
}

// optionalOperand reads an operand that may legitimately be absent
// (IS_UNUSED), returning nil rather than Undef(). runtime/io.go's
// resolveGlob treats a nil and an undef filehandle alike and falls back
// to the selected default for both.
func (f *frame) optionalOperand(val uint32, t opcodes.OpType) (*values.Value, error) {
	if t == opcodes.IS_UNUSED {
		return nil, nil
	}
	return f.read(val, t)
}

// --- misc (230-249) ---

func (vm *Interpreter) execMisc(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_DIE:
		msg, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		pos := diag.Position{Source: f.chunk.SourceName, Line: f.chunk.LineAt(f.pc)}
		return stepResult{}, runtime.Die(msg.ToString(), pos, f.pc)
	case opcodes.OP_WARN:
		msg, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		runtime.Warn(msg.ToString(), diag.Position{Source: f.chunk.SourceName, Line: f.chunk.LineAt(f.pc)})
		return advance()
	case opcodes.OP_REQUIRE:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		result, err := runtime.Require(v)
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, result))
	case opcodes.OP_RANGE:
		return vm.execRange(f, inst)
	case opcodes.OP_RAND:
		limit := 1.0
		if opcodes.DecodeOpType1(inst.OpType1) != opcodes.IS_UNUSED {
			v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
			if err != nil {
				return stepResult{}, err
			}
			limit = v.ToFloat()
		}
		return advance2(f.setReg(inst.Result, values.NewFloat(rand.Float64()*limit)))
	case opcodes.OP_MAP:
		return vm.execMapGrep(f, inst, true)
	case opcodes.OP_GREP:
		return vm.execMapGrep(f, inst, false)
	case opcodes.OP_SORT:
		return vm.execSort(f, inst)
	case opcodes.OP_DEFINED:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, boolVal(!v.IsUndef())))
	case opcodes.OP_REF:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if v.Kind != values.KindRef {
			return advance2(f.setReg(inst.Result, values.NewString("")))
		}
		return advance2(f.setReg(inst.Result, values.NewString(kindName(v.Ref.Kind))))
	case opcodes.OP_BLESS:
		// Class machinery (@ISA walks, method resolution) is an external
		// collaborator's concern this core excludes (DESIGN.md's dropped
		// OOP-machinery entry); BLESS is an identity op so the opcode
		// still round-trips a ref through bytecode unmolested.
		ref, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, ref))
	case opcodes.OP_ISA:
		return advance2(f.setReg(inst.Result, boolVal(false)))
	default:
		return stepResult{}, fmt.Errorf("unhandled misc opcode %s", inst.Opcode)
	}
}

func (vm *Interpreter) execRange(f *frame, inst opcodes.Instruction) (stepResult, error) {
	bundle, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	lo, hi := bundleAt(bundle, 0).ToInt(), bundleAt(bundle, 1).ToInt()
	if hi < lo {
		return advance2(f.setReg(inst.Result, values.NewArray(nil)))
	}
	out := make([]*values.Value, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, values.NewInt(i))
	}
	return advance2(f.setReg(inst.Result, values.NewArray(out)))
}

func (f *frame) codeAt(val uint32, t opcodes.OpType) (*codeobj.Instance, error) {
	v, err := f.read(val, t)
	if err != nil {
		return nil, err
	}
	inst, ok := v.Code.(*codeobj.Instance)
	if !ok {
		return nil, fmt.Errorf("expected a code reference, got %T", v.Code)
	}
	return inst, nil
}

func (vm *Interpreter) execMapGrep(f *frame, inst opcodes.Instruction, isMap bool) (stepResult, error) {
	code, err := f.codeAt(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	list, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	var out []*values.Value
	for _, elem := range bundleElems(list) {
		results, err := code.Apply([]*values.Value{elem}, codeobj.CtxScalar)
		if err != nil {
			return stepResult{}, err
		}
		r := firstOrUndef(results)
		if isMap {
			out = append(out, r)
		} else if r.Truthy() {
			out = append(out, elem)
		}
	}
	return advance2(f.setReg(inst.Result, values.NewArray(out)))
}

func (vm *Interpreter) execSort(f *frame, inst opcodes.Instruction) (stepResult, error) {
	code, err := f.codeAt(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	list, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	var sortErr error
	result, err := runtime.ArraySort(list, func(a, b *values.Value) bool {
		if sortErr != nil {
			return false
		}
		results, err := code.Apply([]*values.Value{a, b}, codeobj.CtxScalar)
		if err != nil {
			sortErr = err
			return false
		}
		return firstOrUndef(results).ToInt() < 0
	})
	if err != nil {
		return stepResult{}, err
	}
	if sortErr != nil {
		return stepResult{}, sortErr
	}
	return advance2(f.setReg(inst.Result, result))
}
