package vm

import (
	"github.com/wudi/harp/bytecode"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

// StepEvent is handed to an Interpreter's Tracer once per instruction,
// before it executes (SPEC_FULL.md §3's interactive stepper hook). It
// exposes exactly the state a single-step debugger needs: where
// execution is, what is about to run, and the live register file —
// never a copy, so the stepper sees assignments from the instruction
// that just ran without Apply having to thread anything extra through.
type StepEvent struct {
	PC          int
	Instruction opcodes.Instruction
	Chunk       *bytecode.Chunk
	Registers   []*values.Value
}

// Tracer, if set, is invoked before every instruction dispatch. A
// non-nil error aborts the run immediately with that error, giving a
// stepper a way to implement "quit" without the vm package knowing
// anything about terminals or readline.
type Tracer func(StepEvent) error
