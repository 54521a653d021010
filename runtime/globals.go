// Package runtime is the narrow, concrete stand-in for the external
// collaborators spec.md §6 treats as out of the core's scope: the
// runtime value operator library, container APIs, the global symbol
// table wrapper, the phase-variable store, error/warning emitters,
// a module loader stub, and I/O primitives. The core (compiler, vm,
// codeobj) depends on this package only through the narrow function
// surfaces spec.md §6 fixes — never on its internals — matching how
// vm/vm.go calls out to a sibling "runtime2" package for the same
// reason in the teacher.
package runtime

import "github.com/wudi/harp/registry"

// Globals is the single process-wide symbol table every invocation
// shares (spec.md §6.3, §5's "the sole shared state is the global
// symbol table"). A package-level singleton mirrors the teacher's own
// process-wide globalClasses table in vm/vm.go.
var Globals = registry.New()

// Bootstrap installs the builtin subroutine table into Globals. Safe to
// call more than once; later calls are no-ops once installed.
func Bootstrap() error {
	bootstrapOnce.Do(installBuiltins)
	return nil
}
