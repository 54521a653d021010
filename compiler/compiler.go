// Package compiler lowers an AST (compiler/ast) into a bytecode.Chunk
// (spec.md §2, §4.2). It is a recursive AST visitor that, for each
// node, emits instructions and hands the parent a "last-result
// register" — 3-address code without an explicit expression-stack
// abstraction, the same shape the teacher's compiler.go uses.
package compiler

import (
	"fmt"

	"github.com/wudi/harp/bytecode"
	"github.com/wudi/harp/compiler/ast"
	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

// Reserved register indices (spec.md §3).
const (
	RegSelf    uint32 = 0
	RegArgs    uint32 = 1
	RegContext uint32 = 2
	firstLocal uint32 = 3
)

type loopFrame struct {
	label        string
	contOffset   int  // jump target for `next`/`redo` purposes is resolved per-kind below
	headerOffset int  // `redo`/loop-top target
	stepOffset   int  // `next` target: C-for's step, or loop's condition re-check
	exitPatches  []int
}

// Compiler walks an AST producing one bytecode.Chunk per subroutine
// (top-level program included). Nested SubLit bodies get their own
// Compiler, linked via parent for closure capture resolution.
type Compiler struct {
	chunk   *bytecode.Chunk
	scope   *Scope
	parent  *Compiler
	nextReg uint32

	loopStack []*loopFrame

	labels      map[string]int
	gotoPatches map[string][]int

	captureOrder     []string
	captureParentReg map[string]uint32
	captureLocalReg  map[string]uint32

	anonCounter *int
}

func newRootCompiler(sourceName string) *Compiler {
	counter := 0
	return &Compiler{
		chunk:            bytecode.NewChunk("main", sourceName),
		scope:            newScope(nil),
		nextReg:          firstLocal,
		labels:           map[string]int{},
		gotoPatches:      map[string][]int{},
		captureParentReg: map[string]uint32{},
		captureLocalReg:  map[string]uint32{},
		anonCounter:      &counter,
	}
}

// CompileProgram compiles a top-level program into a Chunk whose
// instruction stream ends with RETURN rN (spec.md §4.2's contract).
func CompileProgram(prog *ast.Program, sourceName string) (*bytecode.Chunk, error) {
	c := newRootCompiler(sourceName)
	last, err := c.compileBlock(prog.Body)
	if err != nil {
		return nil, err
	}
	if err := c.resolveGotos(); err != nil {
		return nil, err
	}
	c.emitReturn(last, prog.Line)
	c.chunk.RegisterCount = c.nextReg
	return c.chunk, nil
}

// compileSubBody compiles a named or anonymous subroutine body into its
// own Chunk. Each free-variable name is resolved against the enclosing
// compiler through c.resolveOuter, which yields the enclosing chunk's
// register holding it; those registers form the ordered capture list
// returned alongside the chunk (spec.md §4.2).
func (c *Compiler) compileSubBody(sub *ast.SubLit) (*bytecode.Chunk, []uint32, error) {
	free := freeScalarVars(sub.Body, func(name string) bool {
		_, ok := c.resolveOuter(name)
		return ok
	})

	name := sub.Name
	if name == "" {
		*c.anonCounter++
		name = fmt.Sprintf("__ANON__%d", *c.anonCounter)
	}

	child := &Compiler{
		chunk:            bytecode.NewChunk(name, c.chunk.SourceName),
		scope:            newScope(nil),
		parent:           c,
		nextReg:          firstLocal + uint32(len(free)),
		labels:           map[string]int{},
		gotoPatches:      map[string][]int{},
		captureParentReg: map[string]uint32{},
		captureLocalReg:  map[string]uint32{},
		anonCounter:      c.anonCounter,
	}
	child.chunk.CaptureCount = len(free)

	parentRegs := make([]uint32, len(free))
	for i, fname := range free {
		parentReg, ok := c.resolveOuter(fname)
		if !ok {
			return nil, nil, diag.NewCompileError("bad closure capture: "+fname, diag.Position{Source: sub.Source, Line: sub.Line})
		}
		localReg := firstLocal + uint32(i)
		child.scope.declare(fname, localReg)
		child.captureLocalReg[fname] = localReg
		parentRegs[i] = parentReg
	}

	last, err := child.compileBlock(sub.Body)
	if err != nil {
		return nil, nil, err
	}
	if err := child.resolveGotos(); err != nil {
		return nil, nil, err
	}
	child.emitReturn(last, sub.Line)
	child.chunk.RegisterCount = child.nextReg
	return child.chunk, parentRegs, nil
}

// resolveOuter looks a name up in this compiler's own scope chain; if
// not found, it checks this compiler's own captured slots, so a
// grandchild closure can still reach a grandparent's register through
// an already-captured local slot. It does not walk into the parent
// compiler.
func (c *Compiler) resolveOuter(name string) (uint32, bool) {
	if r, ok := c.scope.lookup(name); ok {
		return r, true
	}
	if r, ok := c.captureLocalReg[name]; ok {
		return r, true
	}
	return 0, false
}

func (c *Compiler) allocReg() uint32 {
	r := c.nextReg
	c.nextReg++
	return r
}

func (c *Compiler) emit(op opcodes.Opcode, t1, t2, rt opcodes.OpType, op1, op2, result uint32, line int) int {
	b1, b2 := opcodes.EncodeOpTypes(t1, t2, rt)
	return c.chunk.Emit(opcodes.Instruction{Opcode: op, OpType1: b1, OpType2: b2, Op1: op1, Op2: op2, Result: result}, line)
}

func (c *Compiler) emitReturn(reg uint32, line int) {
	c.emit(opcodes.OP_RETURN, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_UNUSED, reg, 0, 0, line)
}

// compileBlock compiles a statement list in a fresh nested Scope,
// returning the register holding the last expression's value (or a
// fresh undef register for an empty/void-only block), per spec.md
// §4.2's "RETURN rN" contract.
func (c *Compiler) compileBlock(body []ast.Node) (uint32, error) {
	saved := c.scope
	c.scope = newScope(saved)
	defer func() { c.scope = saved }()

	last := c.loadUndef(0)
	for _, stmt := range body {
		r, err := c.compileStmt(stmt)
		if err != nil {
			return 0, err
		}
		if r != noReg {
			last = r
		}
	}
	return last, nil
}

const noReg = ^uint32(0)

func (c *Compiler) loadUndef(line int) uint32 {
	r := c.allocReg()
	c.emit(opcodes.OP_LOAD_UNDEF, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_REG, 0, 0, r, line)
	return r
}
