package compiler

// Scope is the compiler's lexical-variable-to-register map (spec.md
// §4.2): "the compiler records a name→register map for each scope;
// lookup walks outward to find captures." Block-scoped (if/while/sub
// bodies all push a Scope), not chunk-scoped — a chunk may contain many
// nested Scopes but only one register-allocation counter.
type Scope struct {
	parent *Scope
	vars   map[string]uint32
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: make(map[string]uint32)}
}

// declare binds name to reg in this scope (a `my $x` declaration site).
func (s *Scope) declare(name string, reg uint32) {
	s.vars[name] = reg
}

// lookup walks outward through enclosing blocks within the same chunk,
// returning the register holding name if one of those blocks declared it.
func (s *Scope) lookup(name string) (uint32, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if r, ok := sc.vars[name]; ok {
			return r, true
		}
	}
	return 0, false
}
