package vm

import (
	"fmt"

	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
)

// binaryOp reads both operands per their tags, propagates a
// control-flow marker observed in either, and otherwise hands the pair
// to fn, writing the result into inst.Result.
func (f *frame) binaryOp(inst opcodes.Instruction, fn func(a, b *values.Value) (*values.Value, error)) (stepResult, error) {
	a, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	if done, r, err := propagateIfMarker(a); done {
		return r, err
	}
	b, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	if done, r, err := propagateIfMarker(b); done {
		return r, err
	}
	v, err := fn(a, b)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

func (f *frame) unaryOp(inst opcodes.Instruction, fn func(a *values.Value) (*values.Value, error)) (stepResult, error) {
	a, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	if done, r, err := propagateIfMarker(a); done {
		return r, err
	}
	v, err := fn(a)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

// --- arithmetic (60-89) ---

func (vm *Interpreter) execArithmetic(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_ADD:
		return f.binaryOp(inst, runtime.Add)
	case opcodes.OP_SUB:
		return f.binaryOp(inst, runtime.Sub)
	case opcodes.OP_MUL:
		return f.binaryOp(inst, runtime.Mul)
	case opcodes.OP_DIV:
		return f.binaryOp(inst, runtime.Div)
	case opcodes.OP_MOD:
		return f.binaryOp(inst, runtime.Mod)
	case opcodes.OP_POW:
		return f.binaryOp(inst, runtime.Pow)
	case opcodes.OP_NEG:
		return f.unaryOp(inst, runtime.Neg)
	case opcodes.OP_ADD_IMM:
		return f.immArith(inst, runtime.Add)
	case opcodes.OP_SUB_IMM:
		return f.immArith(inst, runtime.Sub)
	case opcodes.OP_MUL_IMM:
		return f.immArith(inst, runtime.Mul)
	default:
		return stepResult{}, fmt.Errorf("unhandled arithmetic opcode %s", inst.Opcode)
	}
}

// immArith is the reg-plus-immediate fast path: Op1 is always a
// register, Op2 is always a decoded 32-bit immediate regardless of its
// nominal tag, matching the compiler's fast-path encoding convention.
func (f *frame) immArith(inst opcodes.Instruction, fn func(a, b *values.Value) (*values.Value, error)) (stepResult, error) {
	a, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	if done, r, err := propagateIfMarker(a); done {
		return r, err
	}
	v, err := fn(a, values.NewInt(int64(int32(inst.Op2))))
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

// --- string ops (90-109) ---

func (vm *Interpreter) execString(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_CONCAT:
		return f.binaryOp(inst, runtime.Concat)
	case opcodes.OP_REPEAT:
		return f.binaryOp(inst, runtime.Repeat)
	case opcodes.OP_LENGTH:
		return f.unaryOp(inst, runtime.Length)
	case opcodes.OP_SUBSTR:
		return f.execSubstr(inst)
	case opcodes.OP_JOIN:
		return f.execJoin(inst)
	default:
		return stepResult{}, fmt.Errorf("unhandled string opcode %s", inst.Opcode)
	}
}

// execSubstr reads Op2 as a 2-element bundle [offset, length] the same
// way ARRAY_SET's bundle carries [key, value] (compiler/stmt.go's
// storeIndex convention) since SUBSTR needs three logical inputs but an
// Instruction only carries two value operands plus a result.
func (f *frame) execSubstr(inst opcodes.Instruction) (stepResult, error) {
	s, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	var offset, length *values.Value
	if bundle != nil && bundle.Kind == values.KindArray && len(bundle.Arr.Elems) > 0 {
		offset = bundle.Arr.Elems[0]
		if len(bundle.Arr.Elems) > 1 {
			length = bundle.Arr.Elems[1]
		}
	} else {
		offset = values.NewInt(0)
	}
	v, err := runtime.Substr(s, offset, length)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

func (f *frame) execJoin(inst opcodes.Instruction) (stepResult, error) {
	sep, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	list, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	var parts []*values.Value
	if list != nil && list.Kind == values.KindArray {
		parts = list.Arr.Elems
	}
	v, err := runtime.Join(sep, parts)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, v))
}

// --- compare (110-129) ---

func (vm *Interpreter) execCompare(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_NUM_EQ:
		return f.binaryOp(inst, runtime.NumEq)
	case opcodes.OP_NUM_NE:
		return f.binaryOp(inst, runtime.NumNe)
	case opcodes.OP_NUM_LT:
		return f.binaryOp(inst, runtime.NumLt)
	case opcodes.OP_NUM_GT:
		return f.binaryOp(inst, runtime.NumGt)
	case opcodes.OP_NUM_LE:
		return f.binaryOp(inst, runtime.NumLe)
	case opcodes.OP_NUM_GE:
		return f.binaryOp(inst, runtime.NumGe)
	case opcodes.OP_NUM_CMP:
		return f.binaryOp(inst, runtime.NumSpaceship)
	case opcodes.OP_STR_EQ:
		return f.binaryOp(inst, runtime.StrEq)
	case opcodes.OP_STR_NE:
		return f.binaryOp(inst, runtime.StrNe)
	case opcodes.OP_STR_LT:
		return f.binaryOp(inst, runtime.StrLt)
	case opcodes.OP_STR_GT:
		return f.binaryOp(inst, runtime.StrGt)
	case opcodes.OP_STR_LE:
		return f.binaryOp(inst, runtime.StrLe)
	case opcodes.OP_STR_GE:
		return f.binaryOp(inst, runtime.StrGe)
	case opcodes.OP_STR_CMP:
		return f.binaryOp(inst, runtime.StrCmp)
	default:
		return stepResult{}, fmt.Errorf("unhandled compare opcode %s", inst.Opcode)
	}
}

// --- logical (130-139) ---

func (vm *Interpreter) execLogical(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_NOT:
		return f.unaryOp(inst, runtime.Not)
	case opcodes.OP_AND:
		return f.binaryOp(inst, func(a, b *values.Value) (*values.Value, error) {
			if a.Truthy() && b.Truthy() {
				return values.NewInt(1), nil
			}
			return values.NewString(""), nil
		})
	case opcodes.OP_OR:
		return f.binaryOp(inst, func(a, b *values.Value) (*values.Value, error) {
			if a.Truthy() || b.Truthy() {
				return values.NewInt(1), nil
			}
			return values.NewString(""), nil
		})
	case opcodes.OP_BW_AND:
		return f.binaryOp(inst, runtime.BitAnd)
	case opcodes.OP_BW_OR:
		return f.binaryOp(inst, runtime.BitOr)
	case opcodes.OP_BW_XOR:
		return f.binaryOp(inst, runtime.BitXor)
	case opcodes.OP_BW_NOT:
		return f.unaryOp(inst, runtime.BitNot)
	default:
		return stepResult{}, fmt.Errorf("unhandled logical opcode %s", inst.Opcode)
	}
}
