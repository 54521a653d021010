// Package vm is the switch-dispatched register machine of spec.md §4.3:
// it executes a bytecode.Chunk with a given argument vector and calling
// context, returning a value list that may carry a non-local control-flow
// marker in place of a normal result.
//
// Grounded on vm/vm.go's dispatch-loop shape (a flat `for { fetch,
// execute, advance pc }` loop, decorateError wrapping, per-run
// profileState) and vm/instruction_executor.go's operand-read/write
// split — generalized from the teacher's PHP call-frame-stack model to
// spec.md §3's flat per-invocation register file, with host-Go
// recursion standing in for the teacher's explicit CallFrame stack on
// every nested CALL_SUB (spec.md §5).
package vm

import (
	"fmt"
	"sync"

	"github.com/wudi/harp/bytecode"
	"github.com/wudi/harp/codeobj"
	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/registry"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
)

func init() {
	codeobj.SetInterpreter(func(chunk *bytecode.Chunk, captured, args []*values.Value, ctx codeobj.Context) ([]*values.Value, error) {
		return defaultInterpreter.Apply(chunk, captured, args, ctx)
	})
}

// Interpreter holds the process-wide instrumentation (profiler) shared
// across every invocation, the way the teacher's VirtualMachine keeps
// one profileState for the whole run. It carries no per-invocation
// state — that lives entirely in the register file local to Apply —
// so a single Interpreter value is safe to reuse across concurrent
// top-level invocations to the extent the value layer is (spec.md §5).
type Interpreter struct {
	Globals *registry.Table
	profile *profileState

	// Tracer, when set, is called before every instruction dispatch
	// (SPEC_FULL.md §3's single-step debugger hook, vm/trace.go).
	Tracer Tracer

	phaseOnce  sync.Once
	phaseStore *runtime.PhaseStore
	phaseErr   error
}

// phases lazily opens the phase-variable store (SPEC_FULL.md §3's sqlite
// wiring) on first use, so an Interpreter that never touches a persistent
// variable never pays for the connection.
func (vm *Interpreter) phases() (*runtime.PhaseStore, error) {
	vm.phaseOnce.Do(func() {
		vm.phaseStore, vm.phaseErr = runtime.NewPhaseStore()
	})
	return vm.phaseStore, vm.phaseErr
}

var defaultInterpreter = New(runtime.Globals)

// New constructs an Interpreter bound to the given symbol table.
func New(globals *registry.Table) *Interpreter {
	return &Interpreter{Globals: globals, profile: newProfileState()}
}

// Profile returns the interpreter's hot-spot profiler (SPEC_FULL.md §3).
func (vm *Interpreter) Profile() *profileState { return vm.profile }

// frame is the live state of one invocation: register file, program
// counter, and eval-catch stack (spec.md §4.3). Unlike the teacher's
// CallFrame it is never stacked — nested CALL_SUB opcodes recurse on
// the host call stack into a fresh Apply/frame instead (spec.md §5).
type frame struct {
	chunk     *bytecode.Chunk
	regs      []*values.Value
	pc        int
	evalCatch []int // LIFO of instruction offsets (spec.md §3)
	self      *values.Value
}

// Apply runs chunk to completion with the given captured vector (nil
// for a non-closure) and argument vector, returning a value list
// (spec.md §4.5's apply(args, context) contract). A returned value list
// of length 1 whose sole element IsControlFlow() is a marker the caller
// must recognize and either consume or re-propagate (spec.md §3).
func (vm *Interpreter) Apply(chunk *bytecode.Chunk, captured, args []*values.Value, ctx codeobj.Context) ([]*values.Value, error) {
	regs := make([]*values.Value, chunk.RegisterCount)
	regs[RegSelf] = values.NewCode(chunk)
	regs[RegArgs] = values.NewArray(append([]*values.Value{}, args...))
	regs[RegContext] = values.NewInt(int64(ctx))
	for i := 0; i < chunk.CaptureCount && i < len(captured); i++ {
		regs[FirstLocal+uint32(i)] = captured[i]
	}
	for i := range regs {
		if regs[i] == nil {
			regs[i] = values.Undef()
		}
	}

	f := &frame{chunk: chunk, regs: regs, self: regs[RegSelf]}
	return vm.run(f)
}

// Reserved register indices, mirrored from the compiler package's own
// constants (spec.md §3); duplicated here rather than imported to keep
// vm independent of compiler (the interpreter never depends on how
// bytecode was produced, only on the Chunk it produced).
const (
	RegSelf    uint32 = 0
	RegArgs    uint32 = 1
	RegContext uint32 = 2
	FirstLocal uint32 = 3
)

func (vm *Interpreter) run(f *frame) ([]*values.Value, error) {
	for {
		if f.pc < 0 || f.pc >= len(f.chunk.Instructions) {
			return []*values.Value{values.Undef()}, nil
		}
		inst := f.chunk.Instructions[f.pc]
		vm.profile.observe(f.pc, inst)
		if vm.Tracer != nil {
			if err := vm.Tracer(StepEvent{PC: f.pc, Instruction: inst, Chunk: f.chunk, Registers: f.regs}); err != nil {
				return nil, err
			}
		}

		result, err := vm.step(f, inst)
		if err != nil {
			if handled, newPC := vm.catchException(f, err); handled {
				f.pc = newPC
				continue
			}
			return nil, vm.decorateError(f, inst, err)
		}
		switch result.kind {
		case stepAdvance:
			f.pc++
		case stepJump:
			f.pc = result.target
		case stepReturn:
			return result.values, nil
		}
	}
}

// catchException implements spec.md §4.3's exception path: pop the top
// eval-catch offset if one exists, stash the message in the process
// error variable ($@ equivalent), and resume there; otherwise report
// unhandled so the caller decorates and propagates.
func (vm *Interpreter) catchException(f *frame, err error) (bool, int) {
	if len(f.evalCatch) == 0 {
		return false, 0
	}
	n := len(f.evalCatch)
	target := f.evalCatch[n-1]
	f.evalCatch = f.evalCatch[:n-1]
	vm.Globals.SetGlobalScalar("@", values.NewString(runtime.CatchEval(err)))
	return true, target
}

func (vm *Interpreter) decorateError(f *frame, inst opcodes.Instruction, err error) error {
	pos := diag.Position{Source: f.chunk.SourceName, Line: f.chunk.LineAt(f.pc)}
	if die, ok := err.(*diag.Die); ok {
		if die.Pos.Source == "" {
			die.Pos = pos
		}
		if die.PC == 0 {
			die.PC = f.pc
		}
		return die
	}
	return diag.NewInterpreterError(fmt.Sprintf("%s: %v", inst.Opcode, err), pos, f.pc)
}
