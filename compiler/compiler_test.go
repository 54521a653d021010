package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/compiler/ast"
	"github.com/wudi/harp/opcodes"
)

func pos(line int) ast.Position { return ast.Position{Source: "test", Line: line} }

// TestCompileProgramEndsWithReturn verifies spec.md §4.2's contract that
// every compiled chunk's instruction stream ends with RETURN rN.
func TestCompileProgramEndsWithReturn(t *testing.T) {
	prog := &ast.Program{Position: pos(1), Body: []ast.Node{
		&ast.ExprStmt{Position: pos(1), Expr: &ast.IntLit{Position: pos(1), Value: 42}},
	}}
	chunk, err := CompileProgram(prog, "test")
	require.NoError(t, err)
	require.NotEmpty(t, chunk.Instructions)
	last := chunk.Instructions[len(chunk.Instructions)-1]
	assert.Equal(t, opcodes.OP_RETURN, last.Opcode)
}

// TestCompileProgramReservesFirstLocal verifies the register file
// starts allocating at firstLocal (3), leaving 0-2 for self/args/context
// (spec.md §3).
func TestCompileProgramReservesFirstLocal(t *testing.T) {
	prog := &ast.Program{Position: pos(1), Body: []ast.Node{
		&ast.ExprStmt{Position: pos(1), Expr: &ast.IntLit{Position: pos(1), Value: 1}},
	}}
	chunk, err := CompileProgram(prog, "test")
	require.NoError(t, err)
	// the LOAD_INT must target a register at or past firstLocal, never
	// one of the reserved self/args/context slots 0-2.
	var found bool
	for _, inst := range chunk.Instructions {
		if inst.Opcode == opcodes.OP_LOAD_INT {
			assert.GreaterOrEqual(t, inst.Result, firstLocal)
			found = true
		}
	}
	assert.True(t, found, "expected a LOAD_INT instruction")
}

// TestUndeclaredLexicalIsCompileError verifies reading a lexical that
// was never declared with `my` is rejected at compile time.
func TestUndeclaredLexicalIsCompileError(t *testing.T) {
	prog := &ast.Program{Position: pos(1), Body: []ast.Node{
		&ast.ExprStmt{Position: pos(1), Expr: &ast.Var{Position: pos(1), Sigil: ast.SigilScalar, Name: "nope"}},
	}}
	_, err := CompileProgram(prog, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared")
}

// TestClosureCapturesFreeVariable verifies a nested sub referencing an
// outer lexical compiles to a template chunk in the enclosing chunk's
// constant pool and a CREATE_CLOSURE instruction in the enclosing chunk.
func TestClosureCapturesFreeVariable(t *testing.T) {
	declBase := &ast.Assign{Position: pos(1), Op: "=", Target: &ast.Var{Position: pos(1), Sigil: ast.SigilScalar, Name: "base", Declare: true}, Value: &ast.IntLit{Position: pos(1), Value: 10}}
	sub := &ast.SubLit{Position: pos(2), Body: []ast.Node{
		&ast.ExprStmt{Position: pos(2), Expr: &ast.Var{Position: pos(2), Sigil: ast.SigilScalar, Name: "base"}},
	}}
	prog := &ast.Program{Position: pos(1), Body: []ast.Node{
		&ast.ExprStmt{Position: pos(1), Expr: declBase},
		&ast.ExprStmt{Position: pos(2), Expr: sub},
	}}
	chunk, err := CompileProgram(prog, "test")
	require.NoError(t, err)

	var sawCreateClosure bool
	for _, inst := range chunk.Instructions {
		if inst.Opcode == opcodes.OP_CREATE_CLOSURE {
			sawCreateClosure = true
		}
	}
	assert.True(t, sawCreateClosure, "expected a CREATE_CLOSURE instruction")
	require.NotEmpty(t, chunk.Constants, "closure template chunk should live in the constant pool")
}

// TestUnsupportedBinaryOperatorIsCompileError verifies an operator the
// compiler's tables don't recognize is reported as a compile error
// rather than silently emitting a wrong opcode.
func TestUnsupportedBinaryOperatorIsCompileError(t *testing.T) {
	prog := &ast.Program{Position: pos(1), Body: []ast.Node{
		&ast.ExprStmt{Position: pos(1), Expr: &ast.BinOp{Position: pos(1), Op: "???", Left: &ast.IntLit{Position: pos(1), Value: 1}, Right: &ast.IntLit{Position: pos(1), Value: 2}}},
	}}
	_, err := CompileProgram(prog, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported binary operator")
}
