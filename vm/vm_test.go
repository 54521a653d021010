package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/codeobj"
	"github.com/wudi/harp/compiler"
	"github.com/wudi/harp/compiler/ast"
	"github.com/wudi/harp/diag"
	"github.com/wudi/harp/registry"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
)

func p(line int) ast.Position { return ast.Position{Source: "test", Line: line} }

func scalar(name string, declare bool) *ast.Var {
	return &ast.Var{Position: p(1), Sigil: ast.SigilScalar, Name: name, Declare: declare}
}

func compileAndRun(t *testing.T, prog *ast.Program) []*values.Value {
	t.Helper()
	require.NoError(t, runtime.Bootstrap())
	chunk, err := compiler.CompileProgram(prog, "test")
	require.NoError(t, err)
	interp := New(runtime.Globals)
	results, err := interp.Apply(chunk, nil, nil, codeobj.CtxScalar)
	require.NoError(t, err)
	return results
}

// TestRegisterPersistenceAcrossJumps exercises a while loop: the
// accumulator and counter registers must survive every GOTO/GOTO_IF_FALSE
// round trip unmolested (spec.md §8).
func TestRegisterPersistenceAcrossJumps(t *testing.T) {
	declI := &ast.Assign{Position: p(1), Op: "=", Target: scalar("i", true), Value: &ast.IntLit{Position: p(1), Value: 0}}
	declSum := &ast.Assign{Position: p(2), Op: "=", Target: scalar("sum", true), Value: &ast.IntLit{Position: p(2), Value: 0}}
	loop := &ast.While{Position: p(3), Cond: &ast.BinOp{Position: p(3), Op: "<", Left: scalar("i", false), Right: &ast.IntLit{Position: p(3), Value: 5}},
		Body: []ast.Node{
			&ast.ExprStmt{Position: p(4), Expr: &ast.Assign{Position: p(4), Op: "+=", Target: scalar("sum", false), Value: scalar("i", false)}},
			&ast.ExprStmt{Position: p(5), Expr: &ast.Assign{Position: p(5), Op: "+=", Target: scalar("i", false), Value: &ast.IntLit{Position: p(5), Value: 1}}},
		},
	}
	read := &ast.ExprStmt{Position: p(6), Expr: scalar("sum", false)}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{
		&ast.ExprStmt{Position: p(1), Expr: declI},
		&ast.ExprStmt{Position: p(2), Expr: declSum},
		loop,
		read,
	}}

	results := compileAndRun(t, prog)
	require.Len(t, results, 1)
	assert.Equal(t, int64(10), results[0].ToInt()) // 0+1+2+3+4
}

// TestForeachNextOrExit exercises FOREACH_NEXT_OR_EXIT plus statically
// local next/last lowering (spec.md §8).
func TestForeachNextOrExit(t *testing.T) {
	declTotal := &ast.Assign{Position: p(1), Op: "=", Target: scalar("total", true), Value: &ast.IntLit{Position: p(1), Value: 0}}
	list := &ast.ListLit{Position: p(2), Elems: []ast.Node{
		&ast.IntLit{Position: p(2), Value: 1}, &ast.IntLit{Position: p(2), Value: 2}, &ast.IntLit{Position: p(2), Value: 3},
		&ast.IntLit{Position: p(2), Value: 4}, &ast.IntLit{Position: p(2), Value: 5},
	}}
	skipThree := &ast.If{Position: p(3), Cond: &ast.BinOp{Position: p(3), Op: "==", Left: scalar("v", false), Right: &ast.IntLit{Position: p(3), Value: 3}},
		Then: []ast.Node{&ast.LoopControl{Position: p(3), Kind: "next"}}}
	stopAtFive := &ast.If{Position: p(4), Cond: &ast.BinOp{Position: p(4), Op: "==", Left: scalar("v", false), Right: &ast.IntLit{Position: p(4), Value: 5}},
		Then: []ast.Node{&ast.LoopControl{Position: p(4), Kind: "last"}}}
	accumulate := &ast.ExprStmt{Position: p(5), Expr: &ast.Assign{Position: p(5), Op: "+=", Target: scalar("total", false), Value: scalar("v", false)}}
	loop := &ast.Foreach{Position: p(2), Var: scalar("v", true), List: list, Body: []ast.Node{skipThree, stopAtFive, accumulate}}
	read := &ast.ExprStmt{Position: p(6), Expr: scalar("total", false)}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: declTotal}, loop, read}}

	results := compileAndRun(t, prog)
	require.Len(t, results, 1)
	// 1 + 2 + 4 (3 skipped via next, loop exits at 5 via last)
	assert.Equal(t, int64(7), results[0].ToInt())
}

// TestShortCircuitAnd verifies && never evaluates its right operand once
// the left is false (spec.md §8's short-circuit correctness).
func TestShortCircuitAnd(t *testing.T) {
	require.NoError(t, runtime.Bootstrap())
	calls := 0
	runtime.Globals.RegisterCode("vmtest::sidefx", codeobj.NewNative("sidefx", func(args []*values.Value, _ codeobj.Context) ([]*values.Value, error) {
		calls++
		return []*values.Value{values.NewInt(1)}, nil
	}))

	and := &ast.BinOp{Position: p(1), Op: "&&",
		Left:  &ast.IntLit{Position: p(1), Value: 0},
		Right: &ast.Call{Position: p(1), Name: "vmtest::sidefx", Context: ast.CtxScalar},
	}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: and}}}

	results := compileAndRun(t, prog)
	require.Len(t, results, 1)
	assert.Equal(t, int64(0), results[0].ToInt())
	assert.Equal(t, 0, calls, "right operand of && must not run when left is false")

	or := &ast.BinOp{Position: p(1), Op: "||",
		Left:  &ast.IntLit{Position: p(1), Value: 1},
		Right: &ast.Call{Position: p(1), Name: "vmtest::sidefx", Context: ast.CtxScalar},
	}
	prog2 := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: or}}}
	results2 := compileAndRun(t, prog2)
	require.Len(t, results2, 1)
	assert.Equal(t, int64(1), results2[0].ToInt())
	assert.Equal(t, 0, calls, "right operand of || must not run when left is true")
}

// TestEvalIsolation verifies a die inside eval{} is caught at the
// nearest EVAL_TRY and never unwinds past it (spec.md §8).
func TestEvalIsolation(t *testing.T) {
	require.NoError(t, runtime.Bootstrap())
	runtime.Globals.RegisterCode("vmtest::boom", codeobj.NewNative("boom", func(args []*values.Value, _ codeobj.Context) ([]*values.Value, error) {
		msg := ""
		if len(args) > 0 {
			msg = args[0].ToString()
		}
		return nil, runtime.Die(msg, diag.Position{Source: "vmtest"}, -1)
	}))

	die := &ast.ExprStmt{Position: p(1), Expr: &ast.Call{Position: p(1), Name: "vmtest::boom", Args: []ast.Node{&ast.StringLit{Position: p(1), Value: "kaboom"}}}}
	ev := &ast.Eval{Position: p(1), Body: []ast.Node{die}}
	readErrVar := &ast.ExprStmt{Position: p(2), Expr: &ast.Var{Position: p(2), Sigil: ast.SigilScalar, Name: "@", Global: true}}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: ev}, readErrVar}}

	results := compileAndRun(t, prog)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ToString(), "kaboom")
}

// TestClosureCaptureAndCallInterchangeability verifies a closure reads
// its captured value, and that invoking it directly via
// codeobj.Instance.Apply twice gives the same result each time, the
// result CALL_SUB would produce (spec.md §8).
func TestClosureCaptureAndCallInterchangeability(t *testing.T) {
	declBase := &ast.Assign{Position: p(1), Op: "=", Target: scalar("base", true), Value: &ast.IntLit{Position: p(1), Value: 10}}
	body := []ast.Node{&ast.ExprStmt{Position: p(2), Expr: &ast.BinOp{Position: p(2), Op: "+", Left: scalar("base", false), Right: &ast.IntLit{Position: p(2), Value: 1}}}}
	sub := &ast.SubLit{Position: p(2), Body: body}
	declAdder := &ast.Assign{Position: p(2), Op: "=", Target: scalar("adder", true), Value: sub}
	read := &ast.ExprStmt{Position: p(3), Expr: scalar("adder", false)}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{
		&ast.ExprStmt{Position: p(1), Expr: declBase},
		&ast.ExprStmt{Position: p(2), Expr: declAdder},
		read,
	}}

	results := compileAndRun(t, prog)
	require.Len(t, results, 1)
	require.Equal(t, values.KindCode, results[0].Kind)
	adder, ok := results[0].Code.(*codeobj.Instance)
	require.True(t, ok)
	assert.True(t, adder.IsClosure())

	out1, err := adder.Apply(nil, codeobj.CtxScalar)
	require.NoError(t, err)
	out2, err := adder.Apply(nil, codeobj.CtxScalar)
	require.NoError(t, err)
	assert.Equal(t, int64(11), out1[0].ToInt())
	assert.Equal(t, int64(11), out2[0].ToInt())
}

// TestDispatchTotality runs arithmetic and string scenarios end to end,
// asserting every opcode reached by a small representative program
// dispatches without hitting the "unknown opcode" default case.
func TestDispatchTotality(t *testing.T) {
	assign := &ast.Assign{Position: p(1), Op: "=", Target: scalar("x", true), Value: &ast.BinOp{
		Position: p(1), Op: "-",
		Left: &ast.BinOp{Position: p(1), Op: "+",
			Left:  &ast.IntLit{Position: p(1), Value: 2},
			Right: &ast.BinOp{Position: p(1), Op: "*", Left: &ast.IntLit{Position: p(1), Value: 3}, Right: &ast.IntLit{Position: p(1), Value: 4}},
		},
		Right: &ast.IntLit{Position: p(1), Value: 1},
	}}
	read := &ast.ExprStmt{Position: p(2), Expr: scalar("x", false)}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: assign}, read}}

	results := compileAndRun(t, prog)
	require.Len(t, results, 1)
	assert.Equal(t, int64(13), results[0].ToInt())

	concat := &ast.BinOp{Position: p(1), Op: ".",
		Left:  &ast.BinOp{Position: p(1), Op: ".", Left: &ast.StringLit{Position: p(1), Value: "harp"}, Right: &ast.StringLit{Position: p(1), Value: "-"}},
		Right: &ast.StringLit{Position: p(1), Value: "vm"},
	}
	strProg := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: concat}}}
	strResults := compileAndRun(t, strProg)
	require.Len(t, strResults, 1)
	assert.Equal(t, "harp-vm", strResults[0].ToString())
}

// TestBitwiseOperatorsAndCompoundAssign exercises the numeric bitwise
// binary/unary ops and the bitwise compound-assign superinstructions
// end to end (spec.md §6 item 1, §4.1's "bitwise-and-assign").
func TestBitwiseOperatorsAndCompoundAssign(t *testing.T) {
	and := &ast.BinOp{Position: p(1), Op: "&", Left: &ast.IntLit{Position: p(1), Value: 6}, Right: &ast.IntLit{Position: p(1), Value: 3}}
	or := &ast.BinOp{Position: p(1), Op: "|", Left: &ast.IntLit{Position: p(1), Value: 6}, Right: &ast.IntLit{Position: p(1), Value: 1}}
	xor := &ast.BinOp{Position: p(1), Op: "^", Left: &ast.IntLit{Position: p(1), Value: 6}, Right: &ast.IntLit{Position: p(1), Value: 3}}
	not := &ast.UnaryOp{Position: p(1), Op: "~", Operand: &ast.IntLit{Position: p(1), Value: 0}}

	for _, tc := range []struct {
		name string
		expr ast.Node
		want int64
	}{
		{"and", and, 2},
		{"or", or, 7},
		{"xor", xor, 5},
		{"not", not, -1},
	} {
		prog := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: tc.expr}}}
		results := compileAndRun(t, prog)
		require.Len(t, results, 1)
		assert.Equal(t, tc.want, results[0].ToInt(), tc.name)
	}

	declX := &ast.Assign{Position: p(1), Op: "=", Target: scalar("x", true), Value: &ast.IntLit{Position: p(1), Value: 6}}
	andAssign := &ast.ExprStmt{Position: p(2), Expr: &ast.Assign{Position: p(2), Op: "&=", Target: scalar("x", false), Value: &ast.IntLit{Position: p(2), Value: 3}}}
	read := &ast.ExprStmt{Position: p(3), Expr: scalar("x", false)}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: declX}, andAssign, read}}
	results := compileAndRun(t, prog)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ToInt())
}

// TestTracerInvokedPerInstructionAndAbortsOnError verifies vm.Tracer
// (vm/trace.go) fires once per instruction and a non-nil Tracer error
// aborts the run immediately.
func TestTracerInvokedPerInstructionAndAbortsOnError(t *testing.T) {
	require.NoError(t, runtime.Bootstrap())
	assign := &ast.Assign{Position: p(1), Op: "=", Target: scalar("x", true), Value: &ast.IntLit{Position: p(1), Value: 1}}
	prog := &ast.Program{Position: p(1), Body: []ast.Node{&ast.ExprStmt{Position: p(1), Expr: assign}}}
	chunk, err := compiler.CompileProgram(prog, "test")
	require.NoError(t, err)

	interp := New(registry.New())
	seen := 0
	interp.Tracer = func(ev StepEvent) error {
		seen++
		return nil
	}
	_, err = interp.Apply(chunk, nil, nil, codeobj.CtxScalar)
	require.NoError(t, err)
	assert.Equal(t, len(chunk.Instructions), seen)

	abortErr := assert.AnError
	interp2 := New(registry.New())
	interp2.Tracer = func(ev StepEvent) error { return abortErr }
	_, err = interp2.Apply(chunk, nil, nil, codeobj.CtxScalar)
	assert.ErrorIs(t, err, abortErr)
}
