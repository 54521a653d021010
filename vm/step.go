package vm

import (
	"fmt"

	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

// stepKind tells run() what to do with the frame's pc after one step.
type stepKind byte

const (
	stepAdvance stepKind = iota // pc++
	stepJump                    // pc = target
	stepReturn                  // invocation complete
)

type stepResult struct {
	kind   stepKind
	target int
	values []*values.Value
}

func advance() (stepResult, error)              { return stepResult{kind: stepAdvance}, nil }
func jumpTo(target uint32) (stepResult, error)   { return stepResult{kind: stepJump, target: int(target)}, nil }
func ret(vs []*values.Value) (stepResult, error) { return stepResult{kind: stepReturn, values: vs}, nil }

// step executes exactly one instruction against f, delegating operator
// and container work to package runtime (spec.md §4.3: "the interpreter
// never performs type coercion itself; it only threads register values
// through operator calls").
func (vm *Interpreter) step(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch {
	case inst.Opcode <= opcodes.OP_GOTO_IF_TRUE:
		return vm.execControl(f, inst)
	case inst.Opcode >= opcodes.OP_MOVE && inst.Opcode <= opcodes.OP_LOAD_UNDEF:
		return vm.execRegisterOp(f, inst)
	case inst.Opcode >= opcodes.OP_LOAD_GLOBAL_SCALAR && inst.Opcode <= opcodes.OP_LOAD_GLOBAL_CODE:
		return vm.execGlobalAccess(f, inst)
	case inst.Opcode >= opcodes.OP_ADD && inst.Opcode <= opcodes.OP_MUL_IMM:
		return vm.execArithmetic(f, inst)
	case inst.Opcode >= opcodes.OP_CONCAT && inst.Opcode <= opcodes.OP_JOIN:
		return vm.execString(f, inst)
	case inst.Opcode >= opcodes.OP_NUM_EQ && inst.Opcode <= opcodes.OP_STR_CMP:
		return vm.execCompare(f, inst)
	case inst.Opcode >= opcodes.OP_NOT && inst.Opcode <= opcodes.OP_BW_NOT:
		return vm.execLogical(f, inst)
	case inst.Opcode >= opcodes.OP_ARRAY_CREATE && inst.Opcode <= opcodes.OP_ARRAY_REVERSE:
		return vm.execArrayOp(f, inst)
	case inst.Opcode >= opcodes.OP_HASH_CREATE && inst.Opcode <= opcodes.OP_HASH_SLICE_DELETE:
		return vm.execHashOp(f, inst)
	case inst.Opcode >= opcodes.OP_CALL_SUB && inst.Opcode <= opcodes.OP_CALL_BUILTIN:
		return vm.execCall(f, inst)
	case inst.Opcode >= opcodes.OP_CREATE_LAST && inst.Opcode <= opcodes.OP_GET_CONTROL_FLOW_TYPE:
		return vm.execControlFlowMarker(f, inst)
	case inst.Opcode >= opcodes.OP_CREATE_REF && inst.Opcode <= opcodes.OP_GET_TYPE:
		return vm.execReference(f, inst)
	case inst.Opcode >= opcodes.OP_PRINT && inst.Opcode <= opcodes.OP_READLINE:
		return vm.execIO(f, inst)
	case inst.Opcode >= opcodes.OP_DIE && inst.Opcode <= opcodes.OP_ISA:
		return vm.execMisc(f, inst)
	case inst.Opcode >= opcodes.OP_INC_REG && inst.Opcode <= opcodes.OP_BW_XOR_ASSIGN:
		return vm.execSuperinstruction(f, inst)
	case inst.Opcode >= opcodes.OP_EVAL_TRY && inst.Opcode <= opcodes.OP_EVAL_END:
		return vm.execEval(f, inst)
	case inst.Opcode >= opcodes.OP_CREATE_LIST && inst.Opcode <= opcodes.OP_FOREACH_NEXT_OR_EXIT:
		return vm.execListIterator(f, inst)
	case inst.Opcode >= opcodes.OP_CREATE_CLOSURE && inst.Opcode <= opcodes.OP_SET_SCALAR:
		return vm.execClosure(f, inst)
	case inst.Opcode == opcodes.OP_SLOW_OP:
		return vm.execSlowOp(f, inst)
	default:
		return stepResult{}, fmt.Errorf("unknown opcode %s", inst.Opcode)
	}
}

// --- operand read/write helpers (spec.md §3's fixed operand encoding) ---

func (f *frame) regAt(idx uint32) (*values.Value, error) {
	if int(idx) >= len(f.regs) {
		return nil, fmt.Errorf("register index %d out of range (count=%d)", idx, len(f.regs))
	}
	return f.regs[idx], nil
}

func (f *frame) setReg(idx uint32, v *values.Value) error {
	if int(idx) >= len(f.regs) {
		return fmt.Errorf("register index %d out of range (count=%d)", idx, len(f.regs))
	}
	f.regs[idx] = v
	return nil
}

// read resolves an operand per its OpType tag: a register's current
// value, a constant-pool entry, an interned string, or a decoded
// immediate. IS_JUMP operands are never read as values — callers fetch
// them directly off the Instruction field instead.
func (f *frame) read(val uint32, t opcodes.OpType) (*values.Value, error) {
	switch t {
	case opcodes.IS_UNUSED:
		return values.Undef(), nil
	case opcodes.IS_REG:
		return f.regAt(val)
	case opcodes.IS_CONST:
		if int(val) >= len(f.chunk.Constants) {
			return nil, fmt.Errorf("constant index %d out of range", val)
		}
		return f.chunk.Constants[val], nil
	case opcodes.IS_STR:
		if int(val) >= len(f.chunk.Strings) {
			return nil, fmt.Errorf("string index %d out of range", val)
		}
		return values.NewString(f.chunk.Strings[val]), nil
	case opcodes.IS_IMM:
		return values.NewInt(int64(int32(val))), nil
	default:
		return nil, fmt.Errorf("unsupported operand type %s", t)
	}
}

func (f *frame) str(val uint32, t opcodes.OpType) (string, error) {
	v, err := f.read(val, t)
	if err != nil {
		return "", err
	}
	return v.ToString(), nil
}

// propagateIfMarker is the control-flow-marker propagation rule of
// spec.md §4.3: "any opcode that observes a marker in a register from
// which a normal value is expected MUST propagate the marker by
// returning it immediately."
func propagateIfMarker(v *values.Value) (bool, stepResult, error) {
	if v.IsControlFlow() {
		r, err := ret([]*values.Value{v})
		return true, r, err
	}
	return false, stepResult{}, nil
}

// --- control flow (0-19) ---

func (vm *Interpreter) execControl(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_NOP:
		return advance()
	case opcodes.OP_RETURN:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return ret([]*values.Value{v})
	case opcodes.OP_GOTO:
		return jumpTo(inst.Op1)
	case opcodes.OP_GOTO_IF_FALSE:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if done, r, err := propagateIfMarker(v); done {
			return r, err
		}
		if !v.Truthy() {
			return jumpTo(inst.Result)
		}
		return advance()
	case opcodes.OP_GOTO_IF_TRUE:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		if done, r, err := propagateIfMarker(v); done {
			return r, err
		}
		if v.Truthy() {
			return jumpTo(inst.Result)
		}
		return advance()
	default:
		return stepResult{}, fmt.Errorf("unhandled control opcode %s", inst.Opcode)
	}
}

// --- register ops (20-39) ---

func (vm *Interpreter) execRegisterOp(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_MOVE:
		v, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	case opcodes.OP_LOAD_CONST:
		v, err := f.read(inst.Op1, opcodes.IS_CONST)
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	case opcodes.OP_LOAD_INT:
		// Always allocates a fresh scalar (spec.md §4.3's mandated
		// default), so later in-place increment doesn't alias another
		// register that happened to load the same immediate.
		return advance2(f.setReg(inst.Result, values.NewInt(int64(int32(inst.Op1)))))
	case opcodes.OP_LOAD_STRING:
		v, err := f.read(inst.Op1, opcodes.IS_STR)
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))
	case opcodes.OP_LOAD_UNDEF:
		return advance2(f.setReg(inst.Result, values.Undef()))
	default:
		return stepResult{}, fmt.Errorf("unhandled register opcode %s", inst.Opcode)
	}
}

func advance2(err error) (stepResult, error) {
	if err != nil {
		return stepResult{}, err
	}
	return advance()
}

// --- global access (40-59) ---

func (vm *Interpreter) execGlobalAccess(f *frame, inst opcodes.Instruction) (stepResult, error) {
	name, err := f.str(inst.Op1, opcodes.IS_STR)
	if err != nil {
		return stepResult{}, err
	}
	switch inst.Opcode {
	case opcodes.OP_LOAD_GLOBAL_SCALAR:
		return advance2(f.setReg(inst.Result, vm.Globals.GlobalScalar(name)))
	case opcodes.OP_STORE_GLOBAL_SCALAR:
		v, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		vm.Globals.SetGlobalScalar(name, v)
		return advance()
	case opcodes.OP_LOAD_GLOBAL_ARRAY:
		return advance2(f.setReg(inst.Result, vm.Globals.GlobalArray(name)))
	case opcodes.OP_STORE_GLOBAL_ARRAY:
		v, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		*vm.Globals.GlobalArray(name) = *v
		return advance()
	case opcodes.OP_LOAD_GLOBAL_HASH:
		return advance2(f.setReg(inst.Result, vm.Globals.GlobalHash(name)))
	case opcodes.OP_STORE_GLOBAL_HASH:
		v, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		*vm.Globals.GlobalHash(name) = *v
		return advance()
	case opcodes.OP_LOAD_GLOBAL_CODE:
		code, err := vm.Globals.MustLookupCode(name)
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, values.NewCode(code)))
	default:
		return stepResult{}, fmt.Errorf("unhandled global-access opcode %s", inst.Opcode)
	}
}
