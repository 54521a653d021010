package compiler

import "github.com/wudi/harp/compiler/ast"

// freeScalarVars does a simple syntactic free-variable scan over a sub
// body: every lexical scalar `my $x` reference not declared by a `my`
// binding somewhere in the body itself, restricted to names the
// enclosing compiler actually has a register for. This is deliberately
// not a liveness/SSA analysis (spec.md §1 Non-goals) — just enough to
// fix the closure's captured-variable vector (spec.md §3, §4.2) before
// register numbering for the nested chunk begins.
func freeScalarVars(body []ast.Node, known func(name string) bool) []string {
	bound := map[string]bool{}
	seen := map[string]bool{}
	var free []string

	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case nil:
			return
		case *ast.Var:
			if v.Declare && v.Sigil == ast.SigilScalar {
				bound[v.Name] = true
				return
			}
			if v.Sigil == ast.SigilScalar && !v.Global && !bound[v.Name] && known(v.Name) && !seen[v.Name] {
				seen[v.Name] = true
				free = append(free, v.Name)
			}
		case *ast.Program:
			for _, s := range v.Body {
				walk(s)
			}
		case *ast.Block:
			for _, s := range v.Body {
				walk(s)
			}
		case *ast.ExprStmt:
			walk(v.Expr)
		case *ast.BinOp:
			walk(v.Left)
			walk(v.Right)
		case *ast.UnaryOp:
			walk(v.Operand)
		case *ast.Assign:
			walk(v.Target)
			walk(v.Value)
		case *ast.Ternary:
			walk(v.Cond)
			walk(v.Then)
			walk(v.Else)
		case *ast.Index:
			walk(v.Container)
			walk(v.Key)
		case *ast.Slice:
			walk(v.Container)
			for _, k := range v.Keys {
				walk(k)
			}
		case *ast.Call:
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.MethodCall:
			walk(v.Invocant)
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.ListLit:
			for _, e := range v.Elems {
				walk(e)
			}
		case *ast.Ref:
			walk(v.Target)
		case *ast.Deref:
			walk(v.Target)
		case *ast.If:
			walk(v.Cond)
			for _, s := range v.Then {
				walk(s)
			}
			for _, s := range v.Else {
				walk(s)
			}
		case *ast.While:
			walk(v.Cond)
			for _, s := range v.Body {
				walk(s)
			}
		case *ast.CFor:
			walk(v.Init)
			walk(v.Cond)
			walk(v.Step)
			for _, s := range v.Body {
				walk(s)
			}
		case *ast.Foreach:
			if v.Var != nil {
				bound[v.Var.Name] = true
			}
			walk(v.List)
			for _, s := range v.Body {
				walk(s)
			}
		case *ast.Eval:
			for _, s := range v.Body {
				walk(s)
			}
		case *ast.Return:
			walk(v.Value)
		case *ast.SubLit:
			// Nested closures resolve their own free variables against
			// *this* sub's frame when they capture further outward;
			// still walk so grandchild captures surface here too.
			for _, s := range v.Body {
				walk(s)
			}
		}
	}

	for _, s := range body {
		walk(s)
	}
	return free
}
