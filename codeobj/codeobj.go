// Package codeobj is the apply(args, context) glue of spec.md §4.5: a
// small sum type unifying an interpreted code object (a bytecode.Chunk
// plus, for closures, a materialized captured-variable vector) and a
// native Go-implemented one, so that CALL_SUB/CALL_METHOD never need to
// know which kind of callee they reached (spec.md §9's "a code object
// is a sum type... with a shared apply method" redesign note).
//
// Grounded on vmfactory/factory.go's factory/interface-injection style:
// codeobj cannot import vm directly (vm.Apply needs to call back into
// codeobj.Instance.Apply for nested CALL_SUB), so the interpreted path
// is wired through a package-level hook the vm package installs once at
// startup, exactly the way vmfactory injects a CompilerCallback into
// the VirtualMachine to avoid a compiler<->vm import cycle.
package codeobj

import (
	"fmt"

	"github.com/wudi/harp/bytecode"
	"github.com/wudi/harp/values"
)

// Context is the calling-context tag threaded through Apply (spec.md's
// glossary "calling context"): void, scalar, or list.
type Context byte

const (
	CtxVoid Context = iota
	CtxScalar
	CtxList
)

// Kind distinguishes the two Instance shapes.
type Kind byte

const (
	KindInterpreted Kind = iota
	KindNative
)

// NativeFunc is the shape a host-provided builtin or collaborator-owned
// routine must have to be installed as a code object (spec.md §4.5:
// "native code objects" are an external collaborator's concern; this is
// the narrow interface this core fixes for them).
type NativeFunc func(args []*values.Value, ctx Context) ([]*values.Value, error)

// Instance is one runtime code object: either a chunk ready to run
// (Captured is nil for a non-closure sub, or the materialized
// captured-variable vector for a closure instance — spec.md §3's
// "reserved registers 3..3+C-1"), or a native function.
//
// Two closures sharing one template Chunk share its instruction stream,
// constant pool, and string pool; only Captured differs per instance
// (spec.md §4.2's "materializes a closure instance sharing streams/pools
// but owning a fresh captured vector").
type Instance struct {
	Kind     Kind
	Name     string
	Chunk    *bytecode.Chunk
	Captured []*values.Value
	Native   NativeFunc
}

// NewInterpreted wraps a non-closure chunk (CaptureCount == 0) as a
// directly callable code object.
func NewInterpreted(chunk *bytecode.Chunk) *Instance {
	return &Instance{Kind: KindInterpreted, Name: chunk.Name, Chunk: chunk}
}

// NewClosure materializes a closure instance from a template chunk
// (CaptureCount == len(captured) by construction at CREATE_CLOSURE time)
// and the outer registers' current values. The captured slice is copied
// once at creation, so replacing an entry of the caller's slice, or
// storing a new value into an outer register, afterwards does not change
// what the closure holds (spec.md §4.2). The entries are the same
// *values.Value cells the outer registers held at creation: a write into
// such a cell is seen on both sides, but an assignment to the variable
// (which replaces the register's value) is seen only on the side that
// made it.
func NewClosure(template *bytecode.Chunk, captured []*values.Value) *Instance {
	own := make([]*values.Value, len(captured))
	copy(own, captured)
	return &Instance{Kind: KindInterpreted, Name: template.Name, Chunk: template, Captured: own}
}

// NewNative wraps a host function as a code object (spec.md §4.5).
func NewNative(name string, fn NativeFunc) *Instance {
	return &Instance{Kind: KindNative, Name: name, Native: fn}
}

// Interpreter is the injected callback that actually drives a chunk to
// completion; the vm package installs it via SetInterpreter during its
// own package init so codeobj never imports vm.
type Interpreter func(chunk *bytecode.Chunk, captured []*values.Value, args []*values.Value, ctx Context) ([]*values.Value, error)

var interpret Interpreter

// SetInterpreter installs the chunk-execution callback. Called exactly
// once, by vm's init(), before any Instance.Apply reaches an
// interpreted code object.
func SetInterpreter(i Interpreter) { interpret = i }

// Apply is the single entry point every CALL_SUB/CALL_METHOD opcode
// handler goes through (spec.md §4.5): it does not care whether it
// reached a hand-written builtin or a compiled sub, only that the
// result shape — a value list plus error — matches.
func (inst *Instance) Apply(args []*values.Value, ctx Context) ([]*values.Value, error) {
	switch inst.Kind {
	case KindNative:
		return inst.Native(args, ctx)
	case KindInterpreted:
		if interpret == nil {
			return nil, fmt.Errorf("codeobj: no interpreter installed for %q", inst.Name)
		}
		return interpret(inst.Chunk, inst.Captured, args, ctx)
	default:
		return nil, fmt.Errorf("codeobj: unknown code object kind %d", inst.Kind)
	}
}

// IsClosure reports whether this instance owns a materialized captured
// vector rather than being a template or a bare top-level sub.
func (inst *Instance) IsClosure() bool { return inst.Kind == KindInterpreted && inst.Captured != nil }
