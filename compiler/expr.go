package compiler

import (
	"fmt"

	"github.com/wudi/harp/compiler/ast"
	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/opcodes"
	"github.com/wudi/harp/values"
)

func (c *Compiler) compileExpr(n ast.Node) (uint32, error) {
	switch v := n.(type) {
	case *ast.IntLit:
		r := c.allocReg()
		c.emit(opcodes.OP_LOAD_INT, opcodes.IS_IMM, opcodes.IS_UNUSED, opcodes.IS_REG, uint32(v.Value), 0, r, v.Line)
		return r, nil

	case *ast.FloatLit:
		idx := c.chunk.AddConstant(values.NewFloat(v.Value))
		r := c.allocReg()
		c.emit(opcodes.OP_LOAD_CONST, opcodes.IS_CONST, opcodes.IS_UNUSED, opcodes.IS_REG, idx, 0, r, v.Line)
		return r, nil

	case *ast.StringLit:
		idx := c.chunk.InternString(v.Value)
		r := c.allocReg()
		c.emit(opcodes.OP_LOAD_STRING, opcodes.IS_STR, opcodes.IS_UNUSED, opcodes.IS_REG, idx, 0, r, v.Line)
		return r, nil

	case *ast.UndefLit:
		return c.loadUndef(v.Line), nil

	case *ast.Var:
		return c.compileVarRead(v)

	case *ast.BinOp:
		return c.compileBinOp(v)

	case *ast.UnaryOp:
		return c.compileUnaryOp(v)

	case *ast.Assign:
		return c.compileAssign(v)

	case *ast.Ternary:
		return c.compileTernary(v)

	case *ast.Index:
		return c.compileIndexRead(v)

	case *ast.Slice:
		return c.compileSliceRead(v)

	case *ast.ListLit:
		return c.compileListLit(v)

	case *ast.Call:
		return c.compileCall(v)

	case *ast.MethodCall:
		return c.compileMethodCall(v)

	case *ast.Ref:
		return c.compileRef(v)

	case *ast.Deref:
		return c.compileDeref(v)

	case *ast.SubLit:
		return c.compileClosureLit(v)

	case *ast.Eval:
		return c.compileEvalExpr(v)

	default:
		return 0, diag.NewCompileError(fmt.Sprintf("unsupported expression node %T", n), pos(n))
	}
}

func pos(n ast.Node) diag.Position {
	p := n.Pos()
	return diag.Position{Source: p.Source, Line: p.Line}
}

// --- variables ---

func (c *Compiler) compileVarRead(v *ast.Var) (uint32, error) {
	if v.Sigil == ast.SigilScalar && !v.Global {
		if r, ok := c.scope.lookup(v.Name); ok {
			return r, nil
		}
		if r, ok := c.captureLocalReg[v.Name]; ok {
			return r, nil
		}
		return 0, diag.NewCompileError("undeclared lexical variable $"+v.Name, pos(v))
	}

	idx := c.chunk.InternString(v.Name)
	r := c.allocReg()
	switch v.Sigil {
	case ast.SigilScalar:
		c.emit(opcodes.OP_LOAD_GLOBAL_SCALAR, opcodes.IS_STR, opcodes.IS_UNUSED, opcodes.IS_REG, idx, 0, r, v.Line)
	case ast.SigilArray:
		c.emit(opcodes.OP_LOAD_GLOBAL_ARRAY, opcodes.IS_STR, opcodes.IS_UNUSED, opcodes.IS_REG, idx, 0, r, v.Line)
	case ast.SigilHash:
		c.emit(opcodes.OP_LOAD_GLOBAL_HASH, opcodes.IS_STR, opcodes.IS_UNUSED, opcodes.IS_REG, idx, 0, r, v.Line)
	}
	return r, nil
}

// --- binary / compare / logical ---

var arithOp = map[string]opcodes.Opcode{
	"+": opcodes.OP_ADD, "-": opcodes.OP_SUB, "*": opcodes.OP_MUL,
	"/": opcodes.OP_DIV, "%": opcodes.OP_MOD, "**": opcodes.OP_POW,
}

var numCmpOp = map[string]opcodes.Opcode{
	"==": opcodes.OP_NUM_EQ, "!=": opcodes.OP_NUM_NE, "<": opcodes.OP_NUM_LT,
	">": opcodes.OP_NUM_GT, "<=": opcodes.OP_NUM_LE, ">=": opcodes.OP_NUM_GE,
	"<=>": opcodes.OP_NUM_CMP,
}

var strCmpOp = map[string]opcodes.Opcode{
	"eq": opcodes.OP_STR_EQ, "ne": opcodes.OP_STR_NE, "lt": opcodes.OP_STR_LT,
	"gt": opcodes.OP_STR_GT, "le": opcodes.OP_STR_LE, "ge": opcodes.OP_STR_GE,
	"cmp": opcodes.OP_STR_CMP,
}

var bitwiseOp = map[string]opcodes.Opcode{
	"&": opcodes.OP_BW_AND, "|": opcodes.OP_BW_OR, "^": opcodes.OP_BW_XOR,
}

func (c *Compiler) compileBinOp(b *ast.BinOp) (uint32, error) {
	switch b.Op {
	case "&&", "and":
		return c.compileShortCircuit(b, true)
	case "||", "or":
		return c.compileShortCircuit(b, false)
	case "//":
		return c.compileDefinedOr(b)
	case ".":
		return c.compileBinary(b, opcodes.OP_CONCAT)
	}
	if op, ok := arithOp[b.Op]; ok {
		return c.compileBinary(b, op)
	}
	if op, ok := numCmpOp[b.Op]; ok {
		return c.compileBinary(b, op)
	}
	if op, ok := strCmpOp[b.Op]; ok {
		return c.compileBinary(b, op)
	}
	if op, ok := bitwiseOp[b.Op]; ok {
		return c.compileBinary(b, op)
	}
	return 0, diag.NewCompileError("unsupported binary operator "+b.Op, pos(b))
}

func (c *Compiler) compileBinary(b *ast.BinOp, op opcodes.Opcode) (uint32, error) {
	lr, err := c.compileExpr(b.Left)
	if err != nil {
		return 0, err
	}
	rr, err := c.compileExpr(b.Right)
	if err != nil {
		return 0, err
	}
	dst := c.allocReg()
	c.emit(op, opcodes.IS_REG, opcodes.IS_REG, opcodes.IS_REG, lr, rr, dst, b.Line)
	return dst, nil
}

// compileShortCircuit lowers &&/and (isAnd=true) and ||/or
// (isAnd=false) per spec.md §4.2: evaluate left into a result
// register, branch on truthiness, evaluate right only if needed,
// overwrite the result register, fall through. No binary opcode is
// ever emitted for these.
func (c *Compiler) compileShortCircuit(b *ast.BinOp, isAnd bool) (uint32, error) {
	lr, err := c.compileExpr(b.Left)
	if err != nil {
		return 0, err
	}
	result := c.allocReg()
	c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, lr, 0, result, b.Line)

	var branchOp opcodes.Opcode
	if isAnd {
		branchOp = opcodes.OP_GOTO_IF_FALSE
	} else {
		branchOp = opcodes.OP_GOTO_IF_TRUE
	}
	branch := c.emit(branchOp, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_JUMP, result, 0, 0, b.Line)

	rr, err := c.compileExpr(b.Right)
	if err != nil {
		return 0, err
	}
	c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, rr, 0, result, b.Line)

	end := len(c.chunk.Instructions)
	c.chunk.PatchResult(branch, uint32(end))
	return result, nil
}

// compileDefinedOr lowers `//`: branches on definedness, not truthiness.
func (c *Compiler) compileDefinedOr(b *ast.BinOp) (uint32, error) {
	lr, err := c.compileExpr(b.Left)
	if err != nil {
		return 0, err
	}
	result := c.allocReg()
	c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, lr, 0, result, b.Line)

	definedReg := c.allocReg()
	c.emit(opcodes.OP_DEFINED, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, result, 0, definedReg, b.Line)
	branch := c.emit(opcodes.OP_GOTO_IF_TRUE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_JUMP, definedReg, 0, 0, b.Line)

	rr, err := c.compileExpr(b.Right)
	if err != nil {
		return 0, err
	}
	c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, rr, 0, result, b.Line)

	end := len(c.chunk.Instructions)
	c.chunk.PatchResult(branch, uint32(end))
	return result, nil
}

// --- unary ---

func (c *Compiler) compileUnaryOp(u *ast.UnaryOp) (uint32, error) {
	switch u.Op {
	case "-":
		r, err := c.compileExpr(u.Operand)
		if err != nil {
			return 0, err
		}
		dst := c.allocReg()
		c.emit(opcodes.OP_NEG, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, r, 0, dst, u.Line)
		return dst, nil
	case "!":
		r, err := c.compileExpr(u.Operand)
		if err != nil {
			return 0, err
		}
		dst := c.allocReg()
		c.emit(opcodes.OP_NOT, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, r, 0, dst, u.Line)
		return dst, nil
	case "~":
		r, err := c.compileExpr(u.Operand)
		if err != nil {
			return 0, err
		}
		dst := c.allocReg()
		c.emit(opcodes.OP_BW_NOT, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, r, 0, dst, u.Line)
		return dst, nil
	case "++", "--":
		return c.compileIncDec(u)
	default:
		return 0, diag.NewCompileError("unsupported unary operator "+u.Op, pos(u))
	}
}

func (c *Compiler) compileIncDec(u *ast.UnaryOp) (uint32, error) {
	target, ok := u.Operand.(*ast.Var)
	if !ok || target.Sigil != ast.SigilScalar || target.Global {
		return 0, diag.NewCompileError("++/-- requires a lexical scalar", pos(u))
	}
	reg, ok := c.scope.lookup(target.Name)
	if !ok {
		reg, ok = c.captureLocalReg[target.Name]
	}
	if !ok {
		return 0, diag.NewCompileError("undeclared lexical variable $"+target.Name, pos(u))
	}
	var op opcodes.Opcode
	switch {
	case u.Op == "++" && !u.Postfix:
		op = opcodes.OP_PRE_INC
	case u.Op == "++" && u.Postfix:
		op = opcodes.OP_POST_INC
	case u.Op == "--" && !u.Postfix:
		op = opcodes.OP_PRE_DEC
	default:
		op = opcodes.OP_POST_DEC
	}
	dst := c.allocReg()
	c.emit(op, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, reg, 0, dst, u.Line)
	return dst, nil
}

// --- ternary ---

func (c *Compiler) compileTernary(t *ast.Ternary) (uint32, error) {
	cond, err := c.compileExpr(t.Cond)
	if err != nil {
		return 0, err
	}
	result := c.allocReg()
	elseJump := c.emit(opcodes.OP_GOTO_IF_FALSE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_JUMP, cond, 0, 0, t.Line)

	thenReg, err := c.compileExpr(t.Then)
	if err != nil {
		return 0, err
	}
	c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, thenReg, 0, result, t.Line)
	endJump := c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, 0, 0, 0, t.Line)

	c.chunk.PatchResult(elseJump, uint32(len(c.chunk.Instructions)))
	elseReg, err := c.compileExpr(t.Else)
	if err != nil {
		return 0, err
	}
	c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, elseReg, 0, result, t.Line)

	c.chunk.Patch(endJump, uint32(len(c.chunk.Instructions)))
	return result, nil
}

// --- array/hash element access ---

func (c *Compiler) compileIndexRead(ix *ast.Index) (uint32, error) {
	cont, err := c.compileExpr(ix.Container)
	if err != nil {
		return 0, err
	}
	key, err := c.compileExpr(ix.Key)
	if err != nil {
		return 0, err
	}
	dst := c.allocReg()
	op := opcodes.OP_ARRAY_GET
	if ix.Sigil == ast.SigilHash {
		op = opcodes.OP_HASH_GET
	}
	c.emit(op, opcodes.IS_REG, opcodes.IS_REG, opcodes.IS_REG, cont, key, dst, ix.Line)
	return dst, nil
}

func (c *Compiler) compileSliceRead(s *ast.Slice) (uint32, error) {
	cont, err := c.compileExpr(s.Container)
	if err != nil {
		return 0, err
	}
	keyRegs := make([]uint32, len(s.Keys))
	for i, k := range s.Keys {
		r, err := c.compileExpr(k)
		if err != nil {
			return 0, err
		}
		keyRegs[i] = r
	}
	keysList := c.emitList(keyRegs, s.Line)
	dst := c.allocReg()
	op := opcodes.OP_ARRAY_SLICE
	if s.Sigil == ast.SigilHash {
		op = opcodes.OP_HASH_SLICE
	}
	c.emit(op, opcodes.IS_REG, opcodes.IS_REG, opcodes.IS_REG, cont, keysList, dst, s.Line)
	return dst, nil
}

// --- lists ---

func (c *Compiler) compileListLit(l *ast.ListLit) (uint32, error) {
	regs := make([]uint32, len(l.Elems))
	for i, e := range l.Elems {
		r, err := c.compileExpr(e)
		if err != nil {
			return 0, err
		}
		regs[i] = r
	}
	return c.emitList(regs, l.Line), nil
}

// emitList emits a count-prefixed CREATE_LIST: Op1 holds the element
// count, and the `count` registers starting at Op2 (r, r+1, ...) are
// consumed positionally. When the element registers are not already
// contiguous, each is first copied into a fresh contiguous run.
func (c *Compiler) emitList(regs []uint32, line int) uint32 {
	dst := c.allocReg()
	first := uint32(0)
	if len(regs) > 0 {
		first = regs[0]
		for i, r := range regs {
			if r != regs[0]+uint32(i) {
				first = c.nextReg
				for _, src := range regs {
					c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, src, 0, c.allocReg(), line)
				}
				break
			}
		}
	}
	c.emit(opcodes.OP_CREATE_LIST, opcodes.IS_IMM, opcodes.IS_REG, opcodes.IS_REG, uint32(len(regs)), first, dst, line)
	return dst
}

// --- calls ---

func (c *Compiler) compileCall(call *ast.Call) (uint32, error) {
	argRegs := make([]uint32, len(call.Args))
	for i, a := range call.Args {
		r, err := c.compileExpr(a)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	argsList := c.emitList(argRegs, call.Line)
	nameIdx := c.chunk.InternString(call.Name)
	dst := c.allocReg()
	c.emit(opcodes.OP_CALL_SUB, opcodes.IS_STR, opcodes.IS_REG, opcodes.IS_REG, nameIdx, argsList, dst, call.Line)
	if call.Context == ast.CtxList {
		listDst := c.allocReg()
		c.emit(opcodes.OP_SCALAR_TO_LIST, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, dst, 0, listDst, call.Line)
		return listDst, nil
	}
	return dst, nil
}

func (c *Compiler) compileMethodCall(m *ast.MethodCall) (uint32, error) {
	invocant, err := c.compileExpr(m.Invocant)
	if err != nil {
		return 0, err
	}
	argRegs := make([]uint32, len(m.Args))
	for i, a := range m.Args {
		r, err := c.compileExpr(a)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	argsList := c.emitList(argRegs, m.Line)
	nameIdx := c.chunk.InternString(m.Method)
	// CALL_METHOD takes the method name from Op1's string-pool index and
	// the invocant/arg-list pair from a synthesized 2-element list in Op2,
	// so a single 3-operand instruction still carries all three inputs.
	bundle := c.emitList([]uint32{invocant, argsList}, m.Line)
	dst := c.allocReg()
	c.emit(opcodes.OP_CALL_METHOD, opcodes.IS_STR, opcodes.IS_REG, opcodes.IS_REG, nameIdx, bundle, dst, m.Line)
	return dst, nil
}

// --- references ---

func (c *Compiler) compileRef(r *ast.Ref) (uint32, error) {
	target, err := c.compileExpr(r.Target)
	if err != nil {
		return 0, err
	}
	dst := c.allocReg()
	c.emit(opcodes.OP_CREATE_REF, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, target, 0, dst, r.Line)
	return dst, nil
}

func (c *Compiler) compileDeref(d *ast.Deref) (uint32, error) {
	target, err := c.compileExpr(d.Target)
	if err != nil {
		return 0, err
	}
	dst := c.allocReg()
	op := opcodes.OP_DEREF
	switch d.Sigil {
	case ast.SigilArray:
		op = opcodes.OP_DEREF_ARRAY
	case ast.SigilHash:
		op = opcodes.OP_DEREF_HASH
	}
	c.emit(op, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, target, 0, dst, d.Line)
	return dst, nil
}

// --- closures ---

func (c *Compiler) compileClosureLit(sub *ast.SubLit) (uint32, error) {
	childChunk, parentRegs, err := c.compileSubBody(sub)
	if err != nil {
		return 0, err
	}
	tmplIdx := c.chunk.AddConstant(values.NewCode(childChunk))
	capturesList := c.emitList(parentRegs, sub.Line)
	dst := c.allocReg()
	c.emit(opcodes.OP_CREATE_CLOSURE, opcodes.IS_CONST, opcodes.IS_REG, opcodes.IS_REG, tmplIdx, capturesList, dst, sub.Line)
	return dst, nil
}

// --- eval (expression form) ---

func (c *Compiler) compileEvalExpr(e *ast.Eval) (uint32, error) {
	result := c.allocReg()
	tryOffset := c.emit(opcodes.OP_EVAL_TRY, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, 0, 0, 0, e.Line)

	bodyReg, err := c.compileBlock(e.Body)
	if err != nil {
		return 0, err
	}
	c.emit(opcodes.OP_MOVE, opcodes.IS_REG, opcodes.IS_UNUSED, opcodes.IS_REG, bodyReg, 0, result, e.Line)
	c.emit(opcodes.OP_EVAL_END, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_UNUSED, 0, 0, 0, e.Line)
	skipCatch := c.emit(opcodes.OP_GOTO, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_JUMP, 0, 0, 0, e.Line)

	catchOffset := len(c.chunk.Instructions)
	c.chunk.Patch(tryOffset, uint32(catchOffset))
	c.emit(opcodes.OP_EVAL_CATCH, opcodes.IS_UNUSED, opcodes.IS_UNUSED, opcodes.IS_REG, 0, 0, result, e.Line)

	c.chunk.Patch(skipCatch, uint32(len(c.chunk.Instructions)))
	return result, nil
}
