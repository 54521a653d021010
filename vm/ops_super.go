package vm

import (
	"fmt"

	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
)

// --- superinstructions (250-269) ---

// execSuperinstruction covers the increment/decrement/compound-assign
// family (spec.md §4.2's superinstruction rationale: one dispatch
// instead of read+op+write as three). INC_REG/DEC_REG and the PRE_*/
// POST_* forms write the new value back into Op1's register and also
// produce a Result. The compound-assign forms (ADD_ASSIGN through
// BW_XOR_ASSIGN) write only Result and leave Op1's register untouched;
// the destination is updated by the store the compiler emits right
// after them, which for a lexical replaces the register's value rather
// than writing into the existing cell.
func (vm *Interpreter) execSuperinstruction(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_INC_REG:
		return f.mutatingUnary(inst, func(v *values.Value) (*values.Value, error) { return runtime.Add(v, values.NewInt(1)) })
	case opcodes.OP_DEC_REG:
		return f.mutatingUnary(inst, func(v *values.Value) (*values.Value, error) { return runtime.Sub(v, values.NewInt(1)) })
	case opcodes.OP_PRE_INC:
		return f.incDec(inst, runtime.Add, false)
	case opcodes.OP_PRE_DEC:
		return f.incDec(inst, runtime.Sub, false)
	case opcodes.OP_POST_INC:
		return f.incDec(inst, runtime.Add, true)
	case opcodes.OP_POST_DEC:
		return f.incDec(inst, runtime.Sub, true)
	case opcodes.OP_ADD_ASSIGN:
		return f.compoundAssign(inst, runtime.Add)
	case opcodes.OP_SUB_ASSIGN:
		return f.compoundAssign(inst, runtime.Sub)
	case opcodes.OP_MUL_ASSIGN:
		return f.compoundAssign(inst, runtime.Mul)
	case opcodes.OP_DIV_ASSIGN:
		return f.compoundAssign(inst, runtime.Div)
	case opcodes.OP_MOD_ASSIGN:
		return f.compoundAssign(inst, runtime.Mod)
	case opcodes.OP_CONCAT_ASSIGN:
		return f.compoundAssign(inst, runtime.Concat)
	case opcodes.OP_ADD_ASSIGN_INT:
		cur, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		v, err := runtime.Add(cur, values.NewInt(int64(int32(inst.Op2))))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	case opcodes.OP_BW_AND_ASSIGN:
		return f.bitwiseAssign(inst, func(a, b int64) int64 { return a & b })
	case opcodes.OP_BW_OR_ASSIGN:
		return f.bitwiseAssign(inst, func(a, b int64) int64 { return a | b })
	case opcodes.OP_BW_XOR_ASSIGN:
		return f.bitwiseAssign(inst, func(a, b int64) int64 { return a ^ b })
	default:
		return stepResult{}, fmt.Errorf("unhandled superinstruction opcode %s", inst.Opcode)
	}
}

// mutatingUnary applies fn to the value in Op1's register, writing the
// new value both back into that register and into Result.
func (f *frame) mutatingUnary(inst opcodes.Instruction, fn func(v *values.Value) (*values.Value, error)) (stepResult, error) {
	cur, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	nv, err := fn(cur)
	if err != nil {
		return stepResult{}, err
	}
	if err := f.setReg(inst.Op1, nv); err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, nv))
}

// incDec implements PRE_*/POST_*: Op1 names the variable's own
// register, which is mutated in place; Result gets the new value for a
// prefix form or the value as observed before mutation for postfix.
func (f *frame) incDec(inst opcodes.Instruction, fn func(a, b *values.Value) (*values.Value, error), postfix bool) (stepResult, error) {
	cur, err := f.regAt(inst.Op1)
	if err != nil {
		return stepResult{}, err
	}
	nv, err := fn(cur, values.NewInt(1))
	if err != nil {
		return stepResult{}, err
	}
	if err := f.setReg(inst.Op1, nv); err != nil {
		return stepResult{}, err
	}
	if postfix {
		return advance2(f.setReg(inst.Result, cur))
	}
	return advance2(f.setReg(inst.Result, nv))
}

func (f *frame) compoundAssign(inst opcodes.Instruction, fn func(a, b *values.Value) (*values.Value, error)) (stepResult, error) {
	cur, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	rhs, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	nv, err := fn(cur, rhs)
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, nv))
}

func (f *frame) bitwiseAssign(inst opcodes.Instruction, fn func(a, b int64) int64) (stepResult, error) {
	cur, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	rhs, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
	if err != nil {
		return stepResult{}, err
	}
	return advance2(f.setReg(inst.Result, values.NewInt(fn(cur.ToInt(), rhs.ToInt()))))
}
