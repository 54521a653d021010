// Package registry is the global symbol table of spec.md §6.3: named
// code objects and global scalars/arrays/hashes, shared across every
// invocation in a process regardless of whether the caller is an
// interpreted or a natively-compiled code object (spec.md §4.5).
package registry

import (
	"fmt"
	"sync"

	"github.com/wudi/harp/values"
)

// Table is the process-wide symbol table. The zero value is unusable;
// use New.
type Table struct {
	mu      sync.RWMutex
	scalars map[string]*values.Value
	arrays  map[string]*values.Value // KindArray cells, shared by reference
	hashes  map[string]*values.Value // KindHash cells, shared by reference
	code    map[string]interface{}   // qualified name -> *codeobj.Instance
}

func New() *Table {
	return &Table{
		scalars: make(map[string]*values.Value),
		arrays:  make(map[string]*values.Value),
		hashes:  make(map[string]*values.Value),
		code:    make(map[string]interface{}),
	}
}

// GlobalScalar returns a stable, live cell for name, creating an undef
// one on first access (spec.md §6.3).
func (t *Table) GlobalScalar(name string) *values.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.scalars[name]
	if !ok {
		v = values.Undef()
		t.scalars[name] = v
	}
	return v
}

// SetGlobalScalar overwrites the cell's contents in place so existing
// aliases (e.g. closures that captured the cell) observe the write.
func (t *Table) SetGlobalScalar(name string, v *values.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cell, ok := t.scalars[name]
	if !ok {
		t.scalars[name] = v
		return
	}
	*cell = *v
}

func (t *Table) GlobalArray(name string) *values.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.arrays[name]
	if !ok {
		v = values.NewArray(nil)
		t.arrays[name] = v
	}
	return v
}

func (t *Table) GlobalHash(name string) *values.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.hashes[name]
	if !ok {
		v = values.NewHash()
		t.hashes[name] = v
	}
	return v
}

// RegisterCode installs a code object under a qualified name. Both the
// interpreter and a natively-compiled code object register here alike
// (spec.md §4.2's register_as_named_sub, §4.5).
func (t *Table) RegisterCode(qualifiedName string, code interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.code[qualifiedName] = code
}

func (t *Table) LookupCode(qualifiedName string) (interface{}, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.code[qualifiedName]
	return c, ok
}

// MustLookupCode is a convenience used by the interpreter's CALL_SUB
// path, wrapping a miss in the same error shape as other interpreter-
// detected errors (spec.md §7).
func (t *Table) MustLookupCode(qualifiedName string) (interface{}, error) {
	c, ok := t.LookupCode(qualifiedName)
	if !ok {
		return nil, fmt.Errorf("undefined subroutine &%s", qualifiedName)
	}
	return c, nil
}
