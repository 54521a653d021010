package compiler

import (
	"fmt"

	"github.com/wudi/harp/compiler/ast"
	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/opcodes"
)

// compileStmt compiles one statement, returning the register holding its
// value for the enclosing block's "last expression" tracking, or noReg
// for statements that don't produce a value (loops, goto, label, bare
// return-free control flow).
func (c *Compiler) compileStmt(n ast.Node) (uint32, error) {
	switch s := n.(type) {
	case *ast.ExprStmt:
		return c.compileAssignOrExpr(s.Expr)

	case *ast.If:
		return noReg, c.compileIf(s)

	case *ast.While:
		return noReg, c.compileWhile(s)

	case *ast.CFor:
		return noReg, c.compileCFor(s)

	case *ast.Foreach:
		return noReg, c.compileForeach(s)

	case *ast.LoopControl:
		return noReg, c.compileLoopControl(s)

	case *ast.Goto:
		return noReg, c.compileGoto(s)

	case *ast.LabelStmt:
		c.labels[s.Name] = len(c.chunk.Instructions)
		return noReg, nil

	case *ast.Eval:
		r, err := c.compileEvalStmt(s)
		return r, err

	case *ast.Return:
		return noReg, c.compileReturn(s)

	case *ast.Block:
		r, err := c.compileBlock(s.Body)
		return r, err

	default:
		r, err := c.compileExpr(n)
		return r, err
	}
}

// compileAssignOrExpr is compileExpr for statement position; no
// difference in this core (every expression is also a valid statement),
// kept as a named hook so a future void-context optimization — skipping
// the result register for a CALL_SUB whose value nobody uses — has a
// single call site to change.
func (c *Compiler) compileAssignOrExpr(e ast.Node) (uint32, error) {
	return c.compileExpr(e)
}

// --- if/unless ---

func (c *Compiler) compileIf(s *ast.If) error {
	cond, err := c.compileExpr(s.Cond)
	if err != nil {
		return err
	}
	branchOp := opcodes.OP_GOTO_IF_FALSE
	if s.Unless {
		branchOp = opcodes.OP_GOTO_IF_TRUE
	}
	elseJump := c.emit(branchOp, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_JUMP, cond, 0, 0, s.Line)

	if _, err := c.compileBlock(s.Then); err != nil {
		return err
	}

	if len(s.Else) == 0 {
		c.chunk.PatchResult(elseJump, uint32(len(c.chunk.Instructions)))
		return nil
	}

	endJump := c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, 0, 0, 0, s.Line)
	c.chunk.PatchResult(elseJump, uint32(len(c.chunk.Instructions)))
	if _, err := c.compileBlock(s.Else); err != nil {
		return err
	}
	c.chunk.Patch(endJump, uint32(len(c.chunk.Instructions)))
	return nil
}

// --- while/until ---

func (c *Compiler) compileWhile(s *ast.While) error {
	headerOffset := len(c.chunk.Instructions)
	cond, err := c.compileExpr(s.Cond)
	if err != nil {
		return err
	}
	branchOp := opcodes.OP_GOTO_IF_FALSE
	if s.Until {
		branchOp = opcodes.OP_GOTO_IF_TRUE
	}
	exitJump := c.emit(branchOp, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_JUMP, cond, 0, 0, s.Line)

	frame := &loopFrame{label: s.Label, headerOffset: headerOffset, stepOffset: headerOffset}
	c.loopStack = append(c.loopStack, frame)
	if _, err := c.compileBlock(s.Body); err != nil {
		return err
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, uint32(headerOffset), 0, 0, s.Line)
	end := uint32(len(c.chunk.Instructions))
	c.chunk.PatchResult(exitJump, end)
	for _, p := range frame.exitPatches {
		c.chunk.PatchResult(p, end)
	}
	return nil
}

// --- C-style for ---

func (c *Compiler) compileCFor(s *ast.CFor) error {
	if s.Init != nil {
		if _, err := c.compileExpr(s.Init); err != nil {
			return err
		}
	}
	headerOffset := len(c.chunk.Instructions)
	var exitJump int
	hasExit := false
	if s.Cond != nil {
		cond, err := c.compileExpr(s.Cond)
		if err != nil {
			return err
		}
		exitJump = c.emit(opcodes.OP_GOTO_IF_FALSE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_JUMP, cond, 0, 0, s.Line)
		hasExit = true
	}

	frame := &loopFrame{label: s.Label, headerOffset: headerOffset}
	c.loopStack = append(c.loopStack, frame)
	if _, err := c.compileBlock(s.Body); err != nil {
		return err
	}

	stepOffset := len(c.chunk.Instructions)
	frame.stepOffset = stepOffset
	if s.Step != nil {
		if _, err := c.compileExpr(s.Step); err != nil {
			return err
		}
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, uint32(headerOffset), 0, 0, s.Line)
	end := uint32(len(c.chunk.Instructions))
	if hasExit {
		c.chunk.PatchResult(exitJump, end)
	}
	for _, p := range frame.exitPatches {
		c.chunk.PatchResult(p, end)
	}
	return nil
}

// --- foreach ---

// compileForeach lowers to the ITERATOR_CREATE / FOREACH_NEXT_OR_EXIT
// superinstruction pair (spec.md §4.2, opcodes 280-299): the iterator
// lives in its own register for the duration of the loop, and
// FOREACH_NEXT_OR_EXIT both advances it and branches out when exhausted
// in one instruction, binding the loop variable's register on the
// fallthrough path.
func (c *Compiler) compileForeach(s *ast.Foreach) error {
	listReg, err := c.compileExpr(s.List)
	if err != nil {
		return err
	}
	iterReg := c.allocReg()
	c.emit(opcodes.OP_ITERATOR_CREATE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, listReg, 0, iterReg, s.Line)

	varReg := c.allocReg()

	headerOffset := len(c.chunk.Instructions)
	// varReg rides in Op2, not Result: Result is a jump-target slot that
	// PatchResult overwrites once the loop's exit offset is known, so it
	// can never also carry the bound-variable register.
	exitJump := c.emit(opcodes.OP_FOREACH_NEXT_OR_EXIT, opcodes.IS_REG, opcodes.IS_REG, opcodes.IS_JUMP, iterReg, varReg, 0, s.Line)

	savedScope := c.scope
	c.scope = newScope(savedScope)
	if s.Var != nil {
		c.scope.declare(s.Var.Name, varReg)
	}

	frame := &loopFrame{label: s.Label, headerOffset: headerOffset, stepOffset: headerOffset}
	c.loopStack = append(c.loopStack, frame)
	for _, stmt := range s.Body {
		if _, err := c.compileStmt(stmt); err != nil {
			c.scope = savedScope
			return err
		}
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	c.scope = savedScope

	c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, uint32(headerOffset), 0, 0, s.Line)
	end := uint32(len(c.chunk.Instructions))
	c.chunk.PatchResult(exitJump, end)
	for _, p := range frame.exitPatches {
		c.chunk.PatchResult(p, end)
	}
	return nil
}

// --- last/next/redo ---

// compileLoopControl implements spec.md §4.2's static-vs-marker split:
// an unlabelled or same-frame-labelled control that stays within the
// current chunk compiles to a direct jump; one that would have to cross
// a CALL_SUB/closure boundary to reach its target loop instead returns a
// control-flow marker value for the caller to recognize and re-dispatch
// (spec.md §3). Since this compiler never emits a call inside a loop
// body that could itself *be* the labelled loop, any label found
// anywhere on c.loopStack is still "statically local" to this chunk;
// only a label this chunk's loopStack does not contain needs the
// marker form, because it must belong to an enclosing chunk reached
// through a closure call.
func (c *Compiler) compileLoopControl(s *ast.LoopControl) error {
	frame := c.findLoopFrame(s.Label)
	if frame != nil {
		return c.emitStaticLoopControl(s, frame)
	}
	return c.emitMarkerLoopControl(s)
}

func (c *Compiler) findLoopFrame(label string) *loopFrame {
	if label == "" {
		if len(c.loopStack) == 0 {
			return nil
		}
		return c.loopStack[len(c.loopStack)-1]
	}
	for i := len(c.loopStack) - 1; i >= 0; i-- {
		if c.loopStack[i].label == label {
			return c.loopStack[i]
		}
	}
	return nil
}

func (c *Compiler) emitStaticLoopControl(s *ast.LoopControl, frame *loopFrame) error {
	switch s.Kind {
	case "next":
		c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, uint32(frame.stepOffset), 0, 0, s.Line)
	case "redo":
		c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, uint32(frame.headerOffset), 0, 0, s.Line)
	case "last":
		patch := c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, 0, 0, 0, s.Line)
		frame.exitPatches = append(frame.exitPatches, patch)
	default:
		return diag.NewCompileError("unknown loop control "+s.Kind, pos(s))
	}
	return nil
}

func (c *Compiler) emitMarkerLoopControl(s *ast.LoopControl) error {
	var op opcodes.Opcode
	switch s.Kind {
	case "last":
		op = opcodes.OP_CREATE_LAST
	case "next":
		op = opcodes.OP_CREATE_NEXT
	case "redo":
		op = opcodes.OP_CREATE_REDO
	default:
		return diag.NewCompileError("unknown loop control "+s.Kind, pos(s))
	}
	labelIdx := c.chunk.InternString(s.Label)
	dst := c.allocReg()
	c.emit(op, opcodes.IS_STR, opcodes.IS_UNUSED, opcodes.IS_REG, labelIdx, 0, dst, s.Line)
	c.emitReturn(dst, s.Line)
	return nil
}

// --- goto ---

func (c *Compiler) compileGoto(s *ast.Goto) error {
	if s.ToSub {
		subReg, err := c.compileExpr(s.SubValue)
		if err != nil {
			return err
		}
		dst := c.allocReg()
		c.emit(opcodes.OP_CREATE_GOTO, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, subReg, 0, dst, s.Line)
		c.emitReturn(dst, s.Line)
		return nil
	}
	if target, ok := c.labels[s.Label]; ok {
		c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, uint32(target), 0, 0, s.Line)
		return nil
	}
	patch := c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, 0, 0, 0, s.Line)
	c.gotoPatches[s.Label] = append(c.gotoPatches[s.Label], patch)
	return nil
}

// resolveGotos backpatches every forward `goto LABEL` recorded during
// this chunk's compilation against labels[] now that the whole body has
// been walked. An unresolved label at this point is a compile error:
// spec.md scopes `goto` to jumps within one chunk, so a dangling label
// can't be satisfied by an enclosing compiler the way a loop-control
// marker can.
func (c *Compiler) resolveGotos() error {
	for label, patches := range c.gotoPatches {
		target, ok := c.labels[label]
		if !ok {
			return diag.NewCompileError(fmt.Sprintf("goto to undefined label %q", label), diag.Position{Source: c.chunk.SourceName})
		}
		for _, p := range patches {
			c.chunk.Patch(p, uint32(target))
		}
	}
	return nil
}

// --- eval (statement form shares the expression-form lowering) ---

func (c *Compiler) compileEvalStmt(e *ast.Eval) (uint32, error) {
	return c.compileEvalExpr(e)
}

// --- return ---

func (c *Compiler) compileReturn(s *ast.Return) error {
	if s.Value == nil {
		c.emitReturn(c.loadUndef(s.Line), s.Line)
		return nil
	}
	r, err := c.compileExpr(s.Value)
	if err != nil {
		return err
	}
	c.emitReturn(r, s.Line)
	return nil
}

// --- assignment ---

func (c *Compiler) compileAssign(a *ast.Assign) (uint32, error) {
	if a.Op != "=" {
		return c.compileCompoundAssign(a)
	}
	if decl, ok := a.Target.(*ast.Var); ok && decl.Declare {
		return c.compileDeclAssign(decl, a)
	}
	value, err := c.compileExpr(a.Value)
	if err != nil {
		return 0, err
	}
	return value, c.storeInto(a.Target, value, a.Line)
}

// compileDeclAssign handles `my $x = EXPR`: the target register IS the
// newly allocated local, so the assigned value is produced directly
// into it rather than produced-then-moved. When EXPR yields a register
// that existed before this declaration (another variable's), the value
// is moved into a fresh local instead, so the two never share a register.
func (c *Compiler) compileDeclAssign(decl *ast.Var, a *ast.Assign) (uint32, error) {
	before := c.nextReg
	value, err := c.compileExpr(a.Value)
	if err != nil {
		return 0, err
	}
	if value < before {
		local := c.allocReg()
		c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, value, 0, local, a.Line)
		value = local
	}
	c.scope.declare(decl.Name, value)
	return value, nil
}

func (c *Compiler) compileCompoundAssign(a *ast.Assign) (uint32, error) {
	op, ok := compoundOp[a.Op]
	if !ok {
		return 0, diag.NewCompileError("unsupported assignment operator "+a.Op, pos(a))
	}
	cur, err := c.compileExpr(a.Target)
	if err != nil {
		return 0, err
	}
	rhs, err := c.compileExpr(a.Value)
	if err != nil {
		return 0, err
	}
	dst := c.allocReg()
	c.emit(op, opcodes.IS_REG, opcodes.IS_REG, opcodes.IS_REG, cur, rhs, dst, a.Line)
	return dst, c.storeInto(a.Target, dst, a.Line)
}

var compoundOp = map[string]opcodes.Opcode{
	"+=": opcodes.OP_ADD_ASSIGN, "-=": opcodes.OP_SUB_ASSIGN, "*=": opcodes.OP_MUL_ASSIGN,
	"/=": opcodes.OP_DIV_ASSIGN, "%=": opcodes.OP_MOD_ASSIGN, ".=": opcodes.OP_CONCAT_ASSIGN,
	"&=": opcodes.OP_BW_AND_ASSIGN, "|=": opcodes.OP_BW_OR_ASSIGN, "^=": opcodes.OP_BW_XOR_ASSIGN,
}

// storeInto writes value into target's storage location: a lexical's
// register (plain MOVE), or a global scalar/array/hash slot.
func (c *Compiler) storeInto(target ast.Node, value uint32, line int) error {
	v, ok := target.(*ast.Var)
	if !ok {
		if ix, ok := target.(*ast.Index); ok {
			return c.storeIndex(ix, value, line)
		}
		return diag.NewCompileError("invalid assignment target", pos(target))
	}
	if v.Sigil == ast.SigilScalar && !v.Global {
		reg, ok := c.scope.lookup(v.Name)
		if !ok {
			reg, ok = c.captureLocalReg[v.Name]
		}
		if !ok {
			return diag.NewCompileError("undeclared lexical variable $"+v.Name, pos(v))
		}
		c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, value, 0, reg, line)
		return nil
	}

	idx := c.chunk.InternString(v.Name)
	var op opcodes.Opcode
	switch v.Sigil {
	case ast.SigilScalar:
		op = opcodes.OP_STORE_GLOBAL_SCALAR
	case ast.SigilArray:
		op = opcodes.OP_STORE_GLOBAL_ARRAY
	case ast.SigilHash:
		op = opcodes.OP_STORE_GLOBAL_HASH
	}
	c.emit(op, opcodes.IS_STR, opcodes.IS_REG, opcodes.IS_UNUSED, idx, value, 0, line)
	return nil
}

func (c *Compiler) storeIndex(ix *ast.Index, value uint32, line int) error {
	cont, err := c.compileExpr(ix.Container)
	if err != nil {
		return err
	}
	key, err := c.compileExpr(ix.Key)
	if err != nil {
		return err
	}
	bundle := c.emitList([]uint32{key, value}, line)
	op := opcodes.OP_ARRAY_SET
	if ix.Sigil == ast.SigilHash {
		op = opcodes.OP_HASH_SET
	}
	c.emit(op, opcodes.IS_REG, opcodes.IS_REG, opcodes.IS_UNUSED, cont, bundle, 0, line)
	return nil
}
