// The secondary SLOW_OP dispatch table (spec.md §4.4): a single opcode
// whose sub-id nibble (the low four bits of OpType2, opcodes.DecodeSubID)
// selects among the handful of operations too rare or too collaborator-
// dependent to earn their own top-level opcode. Keeping them behind one
// dispatch point means adding a new rare op never grows the dense
// opcode table or the jump-table-friendly switch in step.go.
package vm

import (
	"fmt"
	"time"

	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
)

const (
	slowEvalString byte = iota
	slowPhaseGet
	slowPhasePut
	slowLocaltime
	slowStrftime
	slowPlatformUnavailable
)

func (vm *Interpreter) execSlowOp(f *frame, inst opcodes.Instruction) (stepResult, error) {
	switch opcodes.DecodeSubID(inst.OpType2) {
	case slowEvalString:
		// Dynamic `eval "source string"` needs the lexer/parser this
		// core deliberately excludes (spec.md §1's Non-goals); report a
		// typed, catchable error rather than pretending to support it.
		return stepResult{}, &diag.Error{
			Kind: diag.PlatformUnavailableError,
			Msg:  "eval STRING requires an external parser collaborator",
			Pos:  diag.Position{Source: f.chunk.SourceName, Line: f.chunk.LineAt(f.pc)},
			PC:   f.pc,
		}

	case slowPhaseGet:
		name, err := f.str(inst.Op1, opcodes.IS_STR)
		if err != nil {
			return stepResult{}, err
		}
		phaseID, err := f.str(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		store, err := vm.phases()
		if err != nil {
			return stepResult{}, err
		}
		v, _, err := store.Get(name, phaseID)
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))

	case slowPhasePut:
		name, err := f.str(inst.Op1, opcodes.IS_STR)
		if err != nil {
			return stepResult{}, err
		}
		bundle, err := f.read(inst.Op2, opcodes.DecodeOpType2(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		phaseID := bundleAt(bundle, 0).ToString()
		value := bundleAt(bundle, 1)
		store, err := vm.phases()
		if err != nil {
			return stepResult{}, err
		}
		if err := store.Put(name, phaseID, value); err != nil {
			return stepResult{}, err
		}
		return advance()

	case slowLocaltime:
		epoch, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, values.NewArray(runtime.Localtime(epoch))))

	case slowStrftime:
		bundle, err := f.read(inst.Op1, opcodes.DecodeOpType1(inst.OpType1))
		if err != nil {
			return stepResult{}, err
		}
		layout := bundleAt(bundle, 0).ToString()
		epoch := bundleAt(bundle, 1).ToInt()
		v, err := runtime.Strftime(layout, time.Unix(epoch, 0))
		if err != nil {
			return stepResult{}, err
		}
		return advance2(f.setReg(inst.Result, v))

	case slowPlatformUnavailable:
		return stepResult{}, &diag.Error{
			Kind: diag.PlatformUnavailableError,
			Msg:  "this operation is not available on the host platform",
			Pos:  diag.Position{Source: f.chunk.SourceName, Line: f.chunk.LineAt(f.pc)},
			PC:   f.pc,
		}

	default:
		return stepResult{}, fmt.Errorf("unknown slow-op sub-id %d", opcodes.DecodeSubID(inst.OpType2))
	}
}
