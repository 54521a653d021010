package vm

import (
	"fmt"

	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

// --- eval (270-279) ---

// execEval implements the eval-catch stack of spec.md §3/§4.3.
// EVAL_TRY's Op1 is patched in place by compiler/expr.go's
// compileEvalExpr to the instruction offset of the matching
// EVAL_CATCH, read here as a raw jump target rather than through the
// typed f.read path (Patch does not update the operand's type nibble,
// so Op1 still nominally tags IS_UNUSED — see bytecode.Chunk.Patch).
func (vm *Interpreter) execEval(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch inst.Opcode {
	case opcodes.OP_EVAL_TRY:
		f.evalCatch = append(f.evalCatch, int(inst.Op1))
		return advance()
	case opcodes.OP_EVAL_CATCH:
		return advance2(f.setReg(inst.Result, values.Undef()))
	case opcodes.OP_EVAL_END:
		if len(f.evalCatch) > 0 {
			f.evalCatch = f.evalCatch[:len(f.evalCatch)-1]
		}
		return advance()
	default:
		return stepResult{}, fmt.Errorf("unhandled eval opcode %s", inst.Opcode)
	}
}
